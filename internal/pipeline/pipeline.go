// Package pipeline wires capture output through reassembly, session
// routing, frame decoding and classification into the aggregation engine.
package pipeline

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/classify"
	"CombatSpectra/internal/engine"
	"CombatSpectra/internal/model"
	"CombatSpectra/internal/protocol"
	"CombatSpectra/internal/reassembly"
	"CombatSpectra/internal/session"
)

// Stats are the pipeline's recoverable-error and throughput counters.
type Stats struct {
	SegmentsFed   uint64
	EventsApplied uint64
	UnknownFrames uint64
	DecodeErrors  uint64
}

type streamID struct {
	key model.FlowKey
	dir model.Direction
}

// Pipeline is the ordered processing path for one capture source. A single
// consumer goroutine drains the segment channel, so sequencing within a TCP
// connection is preserved end to end; the aggregation meter provides its own
// locking for concurrent readers.
type Pipeline struct {
	meter       *engine.Meter
	reassembler *reassembly.Reassembler
	tracker     *session.Tracker

	// framers holds per-direction frame state for the active session.
	// Only the pipeline goroutine touches it.
	framers map[streamID]*protocol.Framer
	evicted chan model.FlowKey

	segCh chan *model.Segment
	wg    sync.WaitGroup

	segmentsFed   atomic.Uint64
	eventsApplied atomic.Uint64
	unknownFrames atomic.Uint64
	decodeErrors  atomic.Uint64
}

// New assembles a pipeline around the given meter.
func New(meter *engine.Meter, cfg reassembly.Config, chanSize int) *Pipeline {
	if chanSize <= 0 {
		chanSize = 4096
	}
	p := &Pipeline{
		meter:   meter,
		framers: make(map[streamID]*protocol.Framer),
		evicted: make(chan model.FlowKey, 256),
		segCh:   make(chan *model.Segment, chanSize),
	}

	// The tracker resets superseded flows through a closure so that it can
	// be constructed before the reassembler that depends on it.
	p.tracker = session.NewTracker(p.route, func(key model.FlowKey) {
		p.reassembler.Reset(key)
	})
	p.reassembler = reassembly.New(cfg, p.tracker.Deliver, p.flowEvicted, p.streamResynced)
	return p
}

// Start launches the processing goroutine and the reassembly janitor.
func (p *Pipeline) Start() {
	p.reassembler.Start()
	p.wg.Add(1)
	go p.run()
	logrus.Info("pipeline started")
}

// Stop drains buffered segments and shuts the pipeline down.
func (p *Pipeline) Stop() {
	close(p.segCh)
	p.wg.Wait()
	p.reassembler.Stop()
	logrus.Info("pipeline stopped")
}

// Input returns the channel segments should be sent to.
func (p *Pipeline) Input() chan<- *model.Segment {
	return p.segCh
}

// Meter exposes the aggregation engine for the query surface.
func (p *Pipeline) Meter() *engine.Meter {
	return p.meter
}

// HasSession reports whether an active game session has been identified.
func (p *Pipeline) HasSession() bool {
	return p.tracker.HasActive()
}

// Stats returns a snapshot of the pipeline counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		SegmentsFed:   p.segmentsFed.Load(),
		EventsApplied: p.eventsApplied.Load(),
		UnknownFrames: p.unknownFrames.Load(),
		DecodeErrors:  p.decodeErrors.Load(),
	}
}

func (p *Pipeline) run() {
	defer p.wg.Done()
	for {
		select {
		case key := <-p.evicted:
			p.dropFramers(key)
		case seg, ok := <-p.segCh:
			if !ok {
				return
			}
			p.segmentsFed.Add(1)
			p.reassembler.Feed(seg)
		}
	}
}

// flowEvicted runs on the reassembler's janitor goroutine; framer teardown
// is queued to the pipeline goroutine, which owns the framer map.
func (p *Pipeline) flowEvicted(key model.FlowKey) {
	p.tracker.FlowEvicted(key)
	select {
	case p.evicted <- key:
	default:
		logrus.Warn("pipeline: eviction queue full, framer state leaked until next session switch")
	}
}

func (p *Pipeline) dropFramers(key model.FlowKey) {
	delete(p.framers, streamID{key: key, dir: model.DirAToB})
	delete(p.framers, streamID{key: key, dir: model.DirBToA})
}

// streamResynced runs inside Feed on the pipeline goroutine, before the
// post-gap bytes arrive. A partial frame buffered ahead of the gap will
// never be completed, so it is discarded rather than glued onto whatever
// follows.
func (p *Pipeline) streamResynced(key model.FlowKey, dir model.Direction) {
	if framer, ok := p.framers[streamID{key: key, dir: dir}]; ok {
		framer.Reset()
	}
}

// route receives ordered bytes of the active session and runs the frame
// decode → classify → apply tail of the pipeline. All failures here are
// recoverable: they cost at most the affected frame.
func (p *Pipeline) route(key model.FlowKey, dir model.Direction, data []byte, at time.Time) {
	id := streamID{key: key, dir: dir}
	framer, ok := p.framers[id]
	if !ok {
		framer = protocol.NewFramer()
		p.framers[id] = framer
	}

	for _, fr := range framer.Push(data) {
		msg, err := protocol.Decode(fr, at)
		if err != nil {
			p.decodeErrors.Add(1)
			logrus.Warnf("pipeline: dropping corrupt frame type=0x%04x: %v", uint16(fr.Type), err)
			continue
		}
		if msg == nil {
			continue
		}
		ev := classify.Classify(msg)
		if ev == nil {
			continue
		}
		if _, unknown := ev.(model.UnknownEvent); unknown {
			p.unknownFrames.Add(1)
			continue
		}
		p.meter.Apply(ev)
		p.eventsApplied.Add(1)
	}
}
