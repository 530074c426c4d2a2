package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CombatSpectra/internal/model"
	"CombatSpectra/internal/protocol"
)

func flowKey(portA uint16) model.FlowKey {
	return model.FlowKey{IPA: "10.0.0.2", PortA: portA, IPB: "203.0.113.9", PortB: 443}
}

// routed records everything a tracker forwarded downstream.
type routed struct {
	key  model.FlowKey
	dir  model.Direction
	data []byte
}

type recorder struct {
	routes   []routed
	replaced []model.FlowKey
}

func (r *recorder) route(key model.FlowKey, dir model.Direction, data []byte, _ time.Time) {
	buf := make([]byte, len(data))
	copy(buf, data)
	r.routes = append(r.routes, routed{key: key, dir: dir, data: buf})
}

func (r *recorder) onReplaced(key model.FlowKey) {
	r.replaced = append(r.replaced, key)
}

func TestTrackerPromotesHandshakeFlow(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, rec.onReplaced)
	key := flowKey(50001)
	at := time.Now()

	// 1. Bytes before the handshake is complete are buffered, not routed.
	handshake := protocol.AppendHandshake(nil)
	tr.Deliver(key, model.DirAToB, handshake[:3], at)
	assert.Empty(t, rec.routes)
	assert.False(t, tr.HasActive())

	// 2. Completing the signature promotes the flow and replays the buffered head.
	tr.Deliver(key, model.DirAToB, handshake[3:], at)
	require.True(t, tr.HasActive())
	require.Len(t, rec.routes, 1)
	assert.Equal(t, key, rec.routes[0].key)
	assert.Equal(t, handshake, rec.routes[0].data)

	// 3. Subsequent bytes take the fast path straight through.
	tr.Deliver(key, model.DirAToB, []byte{0xAA, 0xBB}, at)
	require.Len(t, rec.routes, 2)
	assert.Equal(t, []byte{0xAA, 0xBB}, rec.routes[1].data)
}

func TestTrackerReplaysBothDirections(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, nil)
	key := flowKey(50002)
	at := time.Now()

	// Server-to-client bytes arrive before the client handshake is seen.
	tr.Deliver(key, model.DirBToA, []byte("srv"), at)
	tr.Deliver(key, model.DirAToB, protocol.AppendHandshake(nil), at)

	require.Len(t, rec.routes, 2)
	dirs := map[model.Direction][]byte{
		rec.routes[0].dir: rec.routes[0].data,
		rec.routes[1].dir: rec.routes[1].data,
	}
	assert.Equal(t, protocol.AppendHandshake(nil), dirs[model.DirAToB])
	assert.Equal(t, []byte("srv"), dirs[model.DirBToA])
}

func TestTrackerRejectsNonMatchingFlow(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, nil)
	key := flowKey(50003)
	at := time.Now()

	junk := make([]byte, protocol.HandshakePrefixSize)
	tr.Deliver(key, model.DirAToB, junk, at)

	// One direction with a final non-matching verdict plus a silent peer
	// rejects the whole flow; a late handshake on it is ignored.
	tr.Deliver(key, model.DirAToB, protocol.AppendHandshake(nil), at)
	tr.Deliver(key, model.DirBToA, protocol.AppendHandshake(nil), at)
	assert.Empty(t, rec.routes)
	assert.False(t, tr.HasActive())
}

func TestTrackerOneWayFlowBuffersNothingAfterVerdict(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, nil)
	key := flowKey(50008)
	at := time.Now()

	// A bulk transfer that only ever talks in one direction must not make
	// the tracker accumulate the stream while the peer stays silent.
	chunk := make([]byte, 64<<10)
	for i := 0; i < 1024; i++ {
		tr.Deliver(key, model.DirBToA, chunk, at)
	}

	tr.mu.Lock()
	c := tr.candidates[key]
	require.NotNil(t, c)
	rejected := c.rejected
	retained := len(c.head[model.DirAToB]) + len(c.head[model.DirBToA])
	tr.mu.Unlock()

	assert.True(t, rejected)
	assert.Zero(t, retained)
	assert.Empty(t, rec.routes)
	assert.False(t, tr.HasActive())
}

func TestTrackerHandshakeAfterPeerVerdict(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, nil)
	key := flowKey(50009)
	at := time.Now()

	handshake := protocol.AppendHandshake(nil)
	junk := make([]byte, protocol.HandshakePrefixSize)

	// The server direction holds an undecided partial head while the client
	// direction gets a non-matching verdict: the flow must stay open.
	tr.Deliver(key, model.DirBToA, handshake[:3], at)
	tr.Deliver(key, model.DirAToB, junk, at)
	assert.False(t, tr.HasActive())

	tr.Deliver(key, model.DirBToA, handshake[3:], at)
	require.True(t, tr.HasActive())
	require.Len(t, rec.routes, 1)
	assert.Equal(t, model.DirBToA, rec.routes[0].dir)
	assert.Equal(t, handshake, rec.routes[0].data)
}

func TestTrackerIgnoresOtherFlows(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, nil)
	at := time.Now()

	tr.Deliver(flowKey(50004), model.DirAToB, protocol.AppendHandshake(nil), at)
	rec.routes = nil

	tr.Deliver(flowKey(60000), model.DirAToB, []byte("http traffic"), at)
	assert.Empty(t, rec.routes, "non-session flow must not reach the pipeline")
}

func TestTrackerReconnectSwitchesActiveFlow(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, rec.onReplaced)
	oldKey := flowKey(50005)
	newKey := flowKey(50006)
	at := time.Now()

	tr.Deliver(oldKey, model.DirAToB, protocol.AppendHandshake(nil), at)
	tr.Deliver(newKey, model.DirAToB, protocol.AppendHandshake(nil), at)

	require.Equal(t, []model.FlowKey{oldKey}, rec.replaced)
	assert.True(t, tr.HasActive())

	// Old flow bytes are no longer routed, new flow bytes are.
	rec.routes = nil
	tr.Deliver(oldKey, model.DirAToB, []byte("stale"), at)
	tr.Deliver(newKey, model.DirAToB, []byte("live"), at)
	require.Len(t, rec.routes, 1)
	assert.Equal(t, newKey, rec.routes[0].key)
}

func TestTrackerFlowEvicted(t *testing.T) {
	rec := &recorder{}
	tr := NewTracker(rec.route, nil)
	key := flowKey(50007)
	at := time.Now()

	tr.Deliver(key, model.DirAToB, protocol.AppendHandshake(nil), at)
	require.True(t, tr.HasActive())

	tr.FlowEvicted(key)
	assert.False(t, tr.HasActive())

	// A fresh handshake after eviction re-identifies the session.
	tr.Deliver(key, model.DirAToB, protocol.AppendHandshake(nil), at)
	assert.True(t, tr.HasActive())
}
