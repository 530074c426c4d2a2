package probe

import (
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/config"
	"CombatSpectra/internal/model"
)

// drainTimeout bounds how long Close waits for in-flight handlers.
const drainTimeout = 5 * time.Second

// SegmentHandler processes one received segment.
type SegmentHandler func(seg *model.Segment)

// Subscriber receives segments from a NATS subject.
type Subscriber struct {
	nc      *nats.Conn
	sub     *nats.Subscription
	subject string
	closed  chan struct{}
}

// NewSubscriber connects to NATS.
func NewSubscriber(cfg config.ProbeConfig) (*Subscriber, error) {
	closed := make(chan struct{})
	nc, err := nats.Connect(cfg.NATSURL,
		nats.ClosedHandler(func(*nats.Conn) { close(closed) }))
	if err != nil {
		return nil, err
	}
	logrus.Infof("probe: connected to NATS server at %s", cfg.NATSURL)
	return &Subscriber{nc: nc, subject: cfg.Subject, closed: closed}, nil
}

// Start subscribes and hands every decoded segment to the handler. Decode
// failures are logged and skipped.
func (s *Subscriber) Start(handler SegmentHandler) error {
	sub, err := s.nc.Subscribe(s.subject, func(msg *nats.Msg) {
		seg, err := UnmarshalSegment(msg.Data)
		if err != nil {
			logrus.Warnf("probe: dropping undecodable segment: %v", err)
			return
		}
		handler(seg)
	})
	if err != nil {
		return err
	}
	s.sub = sub
	logrus.Infof("probe: subscribed to '%s'", s.subject)
	return nil
}

// Close drains the NATS connection and waits until in-flight handlers have
// finished, so the caller may safely tear down whatever the handler feeds.
func (s *Subscriber) Close() {
	if s.nc == nil || s.nc.IsClosed() {
		return
	}
	if err := s.nc.Drain(); err != nil {
		logrus.Warnf("probe: NATS drain failed (%v), closing hard", err)
		s.nc.Close()
	}
	select {
	case <-s.closed:
	case <-time.After(drainTimeout):
		logrus.Warn("probe: NATS drain timed out, closing hard")
		s.nc.Close()
		<-s.closed
	}
	logrus.Info("probe: NATS connection closed")
}
