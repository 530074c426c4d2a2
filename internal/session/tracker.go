// Package session picks the one flow that carries the game protocol out of
// everything seen on the capture interface, and routes only its bytes to the
// decoding pipeline.
package session

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/model"
	"CombatSpectra/internal/protocol"
)

// RouteFunc receives stream bytes of the active session.
type RouteFunc func(key model.FlowKey, dir model.Direction, data []byte, at time.Time)

// candidate buffers the head of an undecided flow until it either shows the
// handshake signature or proves uninteresting. At most
// protocol.HandshakePrefixSize-1 undecided bytes plus one delivery are ever
// held per direction: once a direction's verdict is in, its head is freed.
type candidate struct {
	head [2][]byte
	// decided marks directions whose leading bytes can no longer match the
	// handshake signature. A decided direction buffers nothing further.
	decided  [2]bool
	rejected bool
}

// Tracker identifies the active game session among observed flows.
type Tracker struct {
	mu         sync.Mutex
	candidates map[model.FlowKey]*candidate
	active     model.FlowKey
	hasActive  bool

	route RouteFunc
	// onReplaced is called with the superseded flow when a reconnect
	// switches the active session, so its reassembly state can be freed.
	onReplaced func(model.FlowKey)
}

// NewTracker creates a tracker that forwards the active session through
// route. onReplaced may be nil.
func NewTracker(route RouteFunc, onReplaced func(model.FlowKey)) *Tracker {
	return &Tracker{
		candidates: make(map[model.FlowKey]*candidate),
		route:      route,
		onReplaced: onReplaced,
	}
}

// Deliver is the reassembler's delivery callback. Bytes of the active flow
// are routed onward; bytes of undecided flows are probed for the handshake
// signature; everything else is discarded before any expensive parsing.
func (t *Tracker) Deliver(key model.FlowKey, dir model.Direction, data []byte, at time.Time) {
	t.mu.Lock()

	if t.hasActive && key == t.active {
		t.mu.Unlock()
		t.route(key, dir, data, at)
		return
	}

	c, ok := t.candidates[key]
	if !ok {
		c = &candidate{}
		t.candidates[key] = c
	}
	if c.rejected || c.decided[dir] {
		t.mu.Unlock()
		return
	}

	c.head[dir] = append(c.head[dir], data...)
	if !protocol.IsHandshakePrefix(c.head[dir]) {
		if len(c.head[dir]) >= protocol.HandshakePrefixSize {
			// The verdict for this direction is final; free its head.
			c.decided[dir] = true
			c.head[dir] = nil

			// The flow as a whole is out once no direction can still
			// match. A direction that never carried a byte counts as
			// non-matching; waiting on it would hold the candidate
			// open for one-way transfers that never speak the game
			// protocol.
			other := dir.Reverse()
			if c.decided[other] || len(c.head[other]) == 0 {
				c.rejected = true
				c.head[other] = nil
			}
		}
		t.mu.Unlock()
		return
	}

	// This flow is the game session. A reconnect replaces the previous
	// active flow; the battle window is left alone, only an explicit
	// clear resets it.
	var replaced model.FlowKey
	hadActive := t.hasActive
	if hadActive {
		replaced = t.active
	}
	t.active = key
	t.hasActive = true
	heads := c.head
	delete(t.candidates, key)
	t.mu.Unlock()

	if hadActive {
		logrus.Infof("session: reconnect detected, switching active flow %s -> %s", replaced, key)
		if t.onReplaced != nil {
			t.onReplaced(replaced)
		}
	} else {
		logrus.Infof("session: game session detected on flow %s", key)
	}

	for d, head := range heads {
		if len(head) > 0 {
			t.route(key, model.Direction(d), head, at)
		}
	}
}

// FlowEvicted releases tracker state for a flow the reassembler dropped. If
// it was the active session, the tracker goes back to watching candidates.
func (t *Tracker) FlowEvicted(key model.FlowKey) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.candidates, key)
	if t.hasActive && key == t.active {
		logrus.Infof("session: active flow %s went away, waiting for a new handshake", key)
		t.hasActive = false
	}
}

// HasActive reports whether a game session is currently identified.
func (t *Tracker) HasActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hasActive
}
