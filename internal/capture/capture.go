// Package capture selects the capture interface and turns live packets into
// TCP segments for the reassembly pipeline.
package capture

import (
	"fmt"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/model"
)

// Capture owns one live pcap handle.
type Capture struct {
	handle *pcap.Handle
	device string
}

// Open opens the device for live capture with the given BPF filter. A
// failure here is fatal to the process: there is no capture source without
// a handle.
func Open(device, bpf string, snaplen int32, promiscuous bool) (*Capture, error) {
	if snaplen <= 0 {
		snaplen = 65535
	}
	handle, err := pcap.OpenLive(device, snaplen, promiscuous, pcap.BlockForever)
	if err != nil {
		return nil, fmt.Errorf("failed to open device %s: %w", device, err)
	}
	if bpf != "" {
		if err := handle.SetBPFFilter(bpf); err != nil {
			handle.Close()
			return nil, fmt.Errorf("failed to set BPF filter %q: %w", bpf, err)
		}
	}
	return &Capture{handle: handle, device: device}, nil
}

// Run reads packets until the handle is closed and its buffered packets are
// drained, sending every TCP segment to out; out must stay open until Run
// returns. Non-TCP and unparseable packets are skipped; capture delivers,
// the pipeline judges.
func (c *Capture) Run(out chan<- *model.Segment) {
	logrus.Infof("capture: started on %s", c.device)
	source := gopacket.NewPacketSource(c.handle, c.handle.LinkType())
	var captured uint64
	for packet := range source.Packets() {
		seg, err := ParseSegment(packet)
		if err != nil {
			continue
		}
		out <- seg
		captured++
		if captured%100000 == 0 {
			logrus.Debugf("capture: %d segments captured", captured)
		}
	}
	logrus.Infof("capture: stopped on %s after %d segments", c.device, captured)
}

// Close stops the capture loop.
func (c *Capture) Close() {
	c.handle.Close()
}

// ParseSegment extracts the TCP segment from a decoded packet.
func ParseSegment(packet gopacket.Packet) (*model.Segment, error) {
	tuple := model.FourTuple{}

	if l := packet.Layer(layers.LayerTypeIPv4); l != nil {
		ip := l.(*layers.IPv4)
		tuple.SrcIP = ip.SrcIP
		tuple.DstIP = ip.DstIP
	} else if l := packet.Layer(layers.LayerTypeIPv6); l != nil {
		ip := l.(*layers.IPv6)
		tuple.SrcIP = ip.SrcIP
		tuple.DstIP = ip.DstIP
	} else {
		return nil, fmt.Errorf("not an IP packet")
	}

	l := packet.Layer(layers.LayerTypeTCP)
	if l == nil {
		return nil, fmt.Errorf("not a TCP packet")
	}
	tcp := l.(*layers.TCP)
	tuple.SrcPort = uint16(tcp.SrcPort)
	tuple.DstPort = uint16(tcp.DstPort)

	ts := time.Now()
	if meta := packet.Metadata(); meta != nil && !meta.Timestamp.IsZero() {
		ts = meta.Timestamp
	}

	return &model.Segment{
		Timestamp: ts,
		Tuple:     tuple,
		Seq:       tcp.Seq,
		Payload:   tcp.Payload,
		SYN:       tcp.SYN,
		FIN:       tcp.FIN,
		RST:       tcp.RST,
	}, nil
}
