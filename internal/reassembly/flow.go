package reassembly

import (
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/model"
)

// flow holds both directional streams of one TCP connection.
type flow struct {
	key      model.FlowKey
	streams  [2]stream
	lastSeen time.Time
}

func newFlow(key model.FlowKey) *flow {
	return &flow{key: key}
}

// stream tracks one direction's sequencing state.
type stream struct {
	anchored bool
	nextSeq  uint32
	// pending buffers segments that arrived ahead of nextSeq, keyed by
	// their sequence number.
	pending      map[uint32][]byte
	pendingBytes int
	// lastAdvance is the capture time of the last in-order progress, used
	// to bound how long a gap may stall the stream.
	lastAdvance time.Time
}

// seqDiff computes a-b in sequence space, tolerating 32-bit wraparound.
func seqDiff(a, b uint32) int64 {
	return int64(int32(a - b))
}

// feed applies one segment and returns the ordered chunks (zero or more)
// that became contiguous, plus whether the stream gave up on a gap and
// jumped forward to produce them. Caller holds the reassembler lock.
func (s *stream) feed(seg *model.Segment, cfg Config) ([][]byte, bool) {
	if seg.SYN {
		// SYN consumes one sequence number and anchors the stream.
		s.anchor(seg.Seq+1, seg.Timestamp)
		return nil, false
	}
	if len(seg.Payload) == 0 {
		return nil, false
	}
	if !s.anchored {
		// First data observed mid-connection: start here.
		s.anchor(seg.Seq, seg.Timestamp)
	}

	var chunks [][]byte
	switch d := seqDiff(seg.Seq, s.nextSeq); {
	case d == 0:
		chunks = append(chunks, seg.Payload)
		s.advance(seg.Seq+uint32(len(seg.Payload)), seg.Timestamp)
	case d < 0:
		// Starts behind the cursor: either a pure duplicate or a
		// retransmission carrying some new tail bytes.
		if d+int64(len(seg.Payload)) <= 0 {
			return nil, false
		}
		tail := seg.Payload[-d:]
		chunks = append(chunks, tail)
		s.advance(s.nextSeq+uint32(len(tail)), seg.Timestamp)
	default:
		// Ahead of the cursor: buffer and maybe give up on the gap.
		s.buffer(seg, cfg)
		if seg.Timestamp.Sub(s.lastAdvance) >= cfg.GapTimeout {
			if jumped := s.resync(seg.Timestamp); len(jumped) > 0 {
				return jumped, true
			}
		}
		return nil, false
	}

	chunks = append(chunks, s.drain(seg.Timestamp)...)
	return chunks, false
}

func (s *stream) anchor(seq uint32, at time.Time) {
	s.anchored = true
	s.nextSeq = seq
	s.lastAdvance = at
	s.pending = nil
	s.pendingBytes = 0
}

func (s *stream) advance(next uint32, at time.Time) {
	s.nextSeq = next
	s.lastAdvance = at
}

// buffer stores an ahead-of-cursor segment, discarding it when the same
// sequence number is already held or the per-stream cap would be exceeded.
func (s *stream) buffer(seg *model.Segment, cfg Config) {
	if s.pending == nil {
		s.pending = make(map[uint32][]byte)
	}
	if _, dup := s.pending[seg.Seq]; dup {
		return
	}
	if s.pendingBytes+len(seg.Payload) > cfg.MaxBufferedPerStream {
		logrus.Warnf("reassembly: out-of-order buffer full, dropping segment seq=%d len=%d", seg.Seq, len(seg.Payload))
		return
	}
	buf := make([]byte, len(seg.Payload))
	copy(buf, seg.Payload)
	s.pending[seg.Seq] = buf
	s.pendingBytes += len(buf)
}

// drain emits buffered segments that have become contiguous with the cursor.
func (s *stream) drain(at time.Time) [][]byte {
	var chunks [][]byte
	for {
		buf, ok := s.pending[s.nextSeq]
		if !ok {
			break
		}
		delete(s.pending, s.nextSeq)
		s.pendingBytes -= len(buf)
		chunks = append(chunks, buf)
		s.advance(s.nextSeq+uint32(len(buf)), at)
	}
	return chunks
}

// resync gives up on a gap that outlived its timeout: the cursor jumps to
// the earliest buffered segment and everything contiguous from there is
// emitted. Bytes between the old cursor and that segment are lost.
func (s *stream) resync(at time.Time) [][]byte {
	if len(s.pending) == 0 {
		return nil
	}
	seqs := make([]uint32, 0, len(s.pending))
	for seq := range s.pending {
		seqs = append(seqs, seq)
	}
	sort.Slice(seqs, func(i, j int) bool { return seqDiff(seqs[i], seqs[j]) < 0 })

	lost := seqDiff(seqs[0], s.nextSeq)
	logrus.Warnf("reassembly: gap of %d bytes timed out, resynchronizing at seq=%d", lost, seqs[0])
	s.nextSeq = seqs[0]
	s.lastAdvance = at
	return s.drain(at)
}
