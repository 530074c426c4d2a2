package model

import (
	"fmt"
	"net"
	"time"
)

// FourTuple identifies one direction of a TCP connection.
type FourTuple struct {
	SrcIP   net.IP
	DstIP   net.IP
	SrcPort uint16
	DstPort uint16
}

// Direction tells which endpoint of a flow produced a segment.
type Direction uint8

const (
	// DirAToB is traffic from the flow key's lower endpoint to its upper endpoint.
	DirAToB Direction = iota
	// DirBToA is the reverse direction.
	DirBToA
)

// Reverse returns the opposite direction of the same flow.
func (d Direction) Reverse() Direction { return d ^ 1 }

// FlowKey is the direction-normalized identity of a TCP connection: both
// directions of the same connection map to the same key.
type FlowKey struct {
	IPA, IPB     string
	PortA, PortB uint16
}

// NewFlowKey normalizes a 4-tuple so that the lexically lower endpoint comes
// first, and reports which direction the original tuple represents.
func NewFlowKey(ft FourTuple) (FlowKey, Direction) {
	src := endpoint{ft.SrcIP.String(), ft.SrcPort}
	dst := endpoint{ft.DstIP.String(), ft.DstPort}
	if src.less(dst) {
		return FlowKey{IPA: src.ip, PortA: src.port, IPB: dst.ip, PortB: dst.port}, DirAToB
	}
	return FlowKey{IPA: dst.ip, PortA: dst.port, IPB: src.ip, PortB: src.port}, DirBToA
}

func (k FlowKey) String() string {
	return fmt.Sprintf("%s:%d<->%s:%d", k.IPA, k.PortA, k.IPB, k.PortB)
}

type endpoint struct {
	ip   string
	port uint16
}

func (e endpoint) less(o endpoint) bool {
	if e.ip != o.ip {
		return e.ip < o.ip
	}
	return e.port < o.port
}

// Segment is one captured TCP segment. It is produced by the capture layer
// (or decoded from the probe transport) and owned by the flow reassembler
// once delivered.
type Segment struct {
	Timestamp time.Time
	Tuple     FourTuple
	Seq       uint32
	Payload   []byte
	SYN       bool
	FIN       bool
	RST       bool
}
