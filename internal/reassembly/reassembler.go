// Package reassembly turns raw, possibly out-of-order or duplicated TCP
// segments into ordered per-connection byte streams, approximating what the
// endpoints' own stacks delivered to their applications. It is a best-effort
// observer, not a reliability layer: an unrecoverable gap degrades that one
// flow and the stream resynchronizes at the next observed segment boundary.
package reassembly

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/model"
)

// DeliverFunc receives ordered stream bytes for one direction of a flow.
// The slice is only valid for the duration of the call.
type DeliverFunc func(key model.FlowKey, dir model.Direction, data []byte, at time.Time)

// ResyncFunc is notified when one direction of a flow gave up on a gap and
// jumped past it. Bytes were lost, so per-direction parse state held
// downstream must be discarded; the notification arrives before the post-gap
// bytes are delivered.
type ResyncFunc func(key model.FlowKey, dir model.Direction)

// Config bounds the reassembler's buffers.
type Config struct {
	// FlowIdleTimeout evicts flows with no traffic for this long.
	FlowIdleTimeout time.Duration
	// GapTimeout bounds how long a stream waits for a missing segment
	// before dropping data ahead of the gap and resynchronizing.
	GapTimeout time.Duration
	// MaxBufferedPerStream caps out-of-order bytes held per direction.
	MaxBufferedPerStream int
}

func (c *Config) applyDefaults() {
	if c.FlowIdleTimeout <= 0 {
		c.FlowIdleTimeout = 90 * time.Second
	}
	if c.GapTimeout <= 0 {
		c.GapTimeout = 3 * time.Second
	}
	if c.MaxBufferedPerStream <= 0 {
		c.MaxBufferedPerStream = 4 << 20
	}
}

// Reassembler maintains the set of observed flows.
type Reassembler struct {
	mu       sync.Mutex
	flows    map[model.FlowKey]*flow
	cfg      Config
	deliver  DeliverFunc
	onEvict  func(model.FlowKey)
	onResync ResyncFunc
	done     chan struct{}
	wg       sync.WaitGroup
}

// New creates a reassembler that hands ordered bytes to deliver. onEvict, if
// non-nil, is called when a flow is dropped (idle timeout, RST or explicit
// reset) so that downstream per-flow state can be released too. onResync,
// if non-nil, is called per ResyncFunc's contract.
func New(cfg Config, deliver DeliverFunc, onEvict func(model.FlowKey), onResync ResyncFunc) *Reassembler {
	cfg.applyDefaults()
	return &Reassembler{
		flows:    make(map[model.FlowKey]*flow),
		cfg:      cfg,
		deliver:  deliver,
		onEvict:  onEvict,
		onResync: onResync,
		done:     make(chan struct{}),
	}
}

// Start launches the idle-flow janitor.
func (r *Reassembler) Start() {
	r.wg.Add(1)
	go r.janitor()
}

// Stop terminates the janitor. Buffered data is discarded.
func (r *Reassembler) Stop() {
	close(r.done)
	r.wg.Wait()
}

// Feed processes one captured segment. Ordered bytes, if any became
// contiguous, are handed to the delivery callback before Feed returns, so a
// single-goroutine caller preserves per-flow ordering end to end.
func (r *Reassembler) Feed(seg *model.Segment) {
	key, dir := model.NewFlowKey(seg.Tuple)

	r.mu.Lock()
	if seg.RST {
		if _, ok := r.flows[key]; ok {
			delete(r.flows, key)
			r.mu.Unlock()
			r.notifyEvict(key)
			return
		}
		r.mu.Unlock()
		return
	}

	f, ok := r.flows[key]
	if !ok {
		f = newFlow(key)
		r.flows[key] = f
	}
	f.lastSeen = seg.Timestamp
	chunks, resynced := f.streams[dir].feed(seg, r.cfg)
	r.mu.Unlock()

	if resynced && r.onResync != nil {
		r.onResync(key, dir)
	}
	for _, c := range chunks {
		r.deliver(key, dir, c, seg.Timestamp)
	}
}

// Reset drops one flow explicitly (used by the session tracker when an old
// session's flow is superseded).
func (r *Reassembler) Reset(key model.FlowKey) {
	r.mu.Lock()
	_, ok := r.flows[key]
	delete(r.flows, key)
	r.mu.Unlock()
	if ok {
		r.notifyEvict(key)
	}
}

// FlowCount reports how many flows are currently tracked.
func (r *Reassembler) FlowCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.flows)
}

func (r *Reassembler) notifyEvict(key model.FlowKey) {
	if r.onEvict != nil {
		r.onEvict(key)
	}
}

func (r *Reassembler) janitor() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.cfg.FlowIdleTimeout / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.evictIdle(time.Now())
		case <-r.done:
			return
		}
	}
}

func (r *Reassembler) evictIdle(now time.Time) {
	var evicted []model.FlowKey

	r.mu.Lock()
	for key, f := range r.flows {
		if now.Sub(f.lastSeen) >= r.cfg.FlowIdleTimeout {
			delete(r.flows, key)
			evicted = append(evicted, key)
		}
	}
	r.mu.Unlock()

	for _, key := range evicted {
		logrus.Debugf("reassembly: evicted idle flow %s", key)
		r.notifyEvict(key)
	}
}
