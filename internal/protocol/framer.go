package protocol

import (
	"encoding/binary"

	"github.com/sirupsen/logrus"
)

// Frame is one extracted application message. The payload slice aliases the
// framer's buffer and must not be retained across Push calls.
type Frame struct {
	Type    MessageType
	Payload []byte
}

// Framer is a stateful splitter for one byte stream. Partial frames wait in
// the buffer until enough contiguous bytes arrive; corrupt length fields
// cause a forward scan for the next plausible frame boundary.
type Framer struct {
	buf []byte

	// Resyncs counts corruption-triggered boundary scans, Discarded the
	// bytes skipped by them.
	Resyncs   uint64
	Discarded uint64
}

// NewFramer creates an empty framer.
func NewFramer() *Framer {
	return &Framer{}
}

// Push appends stream bytes and returns every complete frame now available.
// It never fails: corrupt data costs bytes, not the stream.
func (f *Framer) Push(data []byte) []Frame {
	f.buf = append(f.buf, data...)

	var frames []Frame
	for {
		if len(f.buf) < headerSize {
			return frames
		}

		length := binary.BigEndian.Uint32(f.buf[:lenFieldSize])
		if length < typeFieldSize || length > MaxPayloadSize+typeFieldSize {
			f.scanForward()
			continue
		}

		total := lenFieldSize + int(length)
		if len(f.buf) < total {
			// Partial frame; wait for more stream bytes.
			return frames
		}

		frames = append(frames, Frame{
			Type:    MessageType(binary.BigEndian.Uint16(f.buf[lenFieldSize:headerSize])),
			Payload: f.buf[headerSize:total],
		})
		f.buf = f.buf[total:]
	}
}

// Reset discards buffered bytes when the underlying stream itself
// resynchronized past a reassembly gap: a partial frame buffered ahead of
// the gap will never be completed.
func (f *Framer) Reset() {
	f.buf = nil
}

// Buffered reports how many bytes are waiting for frame completion.
func (f *Framer) Buffered() int {
	return len(f.buf)
}

// scanForward skips the presumed-corrupt frame start and searches for the
// next offset that looks like a frame header: a sane length followed by a
// known discriminator. If none is found the tail that cannot yet be judged
// is kept and everything before it is dropped.
func (f *Framer) scanForward() {
	f.Resyncs++
	for off := 1; off+headerSize <= len(f.buf); off++ {
		length := binary.BigEndian.Uint32(f.buf[off : off+lenFieldSize])
		if length < typeFieldSize || length > MaxPayloadSize+typeFieldSize {
			continue
		}
		t := MessageType(binary.BigEndian.Uint16(f.buf[off+lenFieldSize : off+headerSize]))
		if !knownType(t) {
			continue
		}
		logrus.Warnf("protocol: framing error, skipped %d bytes to next plausible boundary", off)
		f.Discarded += uint64(off)
		f.buf = f.buf[off:]
		return
	}

	// Nothing plausible yet: keep only the last headerSize-1 bytes, which
	// may still be the start of a not-yet-complete header.
	keep := headerSize - 1
	if len(f.buf) > keep {
		f.Discarded += uint64(len(f.buf) - keep)
		f.buf = f.buf[len(f.buf)-keep:]
	} else if len(f.buf) > 0 {
		f.Discarded++
		f.buf = f.buf[1:]
	}
}
