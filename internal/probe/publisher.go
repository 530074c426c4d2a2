// Package probe moves captured segments between a capture host and the
// processing engine over NATS, for the split cs-probe/cs-engine deployment.
package probe

import (
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/config"
	"CombatSpectra/internal/model"
)

// Publisher publishes captured segments to a NATS subject.
type Publisher struct {
	nc      *nats.Conn
	subject string
}

// NewPublisher connects to NATS.
func NewPublisher(cfg config.ProbeConfig) (*Publisher, error) {
	nc, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, err
	}
	logrus.Infof("probe: connected to NATS server at %s", cfg.NATSURL)
	return &Publisher{nc: nc, subject: cfg.Subject}, nil
}

// Publish encodes one segment and sends it.
func (p *Publisher) Publish(seg *model.Segment) error {
	return p.nc.Publish(p.subject, MarshalSegment(seg))
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if p.nc != nil {
		p.nc.Drain()
		logrus.Info("probe: NATS connection drained and closed")
	}
}
