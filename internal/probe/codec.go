package probe

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"CombatSpectra/internal/model"
)

// Wire schema of a published segment, hand-encoded protobuf wire format.
// The message is small and fixed enough that generated code buys nothing.
const (
	segFieldTimestamp = 1 // varint, unix nanoseconds
	segFieldSrcIP     = 2 // bytes
	segFieldDstIP     = 3 // bytes
	segFieldSrcPort   = 4 // varint
	segFieldDstPort   = 5 // varint
	segFieldSeq       = 6 // varint
	segFieldFlags     = 7 // varint
	segFieldPayload   = 8 // bytes
)

const (
	segFlagSYN = 1 << 0
	segFlagFIN = 1 << 1
	segFlagRST = 1 << 2
)

// MarshalSegment encodes a segment for the NATS transport.
func MarshalSegment(seg *model.Segment) []byte {
	var flags uint64
	if seg.SYN {
		flags |= segFlagSYN
	}
	if seg.FIN {
		flags |= segFlagFIN
	}
	if seg.RST {
		flags |= segFlagRST
	}

	var b []byte
	b = protowire.AppendTag(b, segFieldTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(seg.Timestamp.UnixNano()))
	b = protowire.AppendTag(b, segFieldSrcIP, protowire.BytesType)
	b = protowire.AppendBytes(b, seg.Tuple.SrcIP)
	b = protowire.AppendTag(b, segFieldDstIP, protowire.BytesType)
	b = protowire.AppendBytes(b, seg.Tuple.DstIP)
	b = protowire.AppendTag(b, segFieldSrcPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(seg.Tuple.SrcPort))
	b = protowire.AppendTag(b, segFieldDstPort, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(seg.Tuple.DstPort))
	b = protowire.AppendTag(b, segFieldSeq, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(seg.Seq))
	b = protowire.AppendTag(b, segFieldFlags, protowire.VarintType)
	b = protowire.AppendVarint(b, flags)
	b = protowire.AppendTag(b, segFieldPayload, protowire.BytesType)
	b = protowire.AppendBytes(b, seg.Payload)
	return b
}

// UnmarshalSegment decodes a segment received from the NATS transport.
func UnmarshalSegment(data []byte) (*model.Segment, error) {
	seg := &model.Segment{}
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		data = data[n:]

		switch typ {
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return nil, fmt.Errorf("bad varint: %w", protowire.ParseError(n))
			}
			data = data[n:]
			switch num {
			case segFieldTimestamp:
				seg.Timestamp = time.Unix(0, int64(val))
			case segFieldSrcPort:
				seg.Tuple.SrcPort = uint16(val)
			case segFieldDstPort:
				seg.Tuple.DstPort = uint16(val)
			case segFieldSeq:
				seg.Seq = uint32(val)
			case segFieldFlags:
				seg.SYN = val&segFlagSYN != 0
				seg.FIN = val&segFlagFIN != 0
				seg.RST = val&segFlagRST != 0
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return nil, fmt.Errorf("bad bytes field: %w", protowire.ParseError(n))
			}
			data = data[n:]
			buf := make([]byte, len(raw))
			copy(buf, raw)
			switch num {
			case segFieldSrcIP:
				seg.Tuple.SrcIP = buf
			case segFieldDstIP:
				seg.Tuple.DstIP = buf
			case segFieldPayload:
				seg.Payload = buf
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("bad field: %w", protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return seg, nil
}
