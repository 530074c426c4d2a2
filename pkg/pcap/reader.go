// Package pcap replays capture files through the live pipeline.
package pcap

import (
	"github.com/google/gopacket"
	"github.com/google/gopacket/pcap"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/capture"
	"CombatSpectra/internal/model"
)

// Reader reads TCP segments from a pcap file.
type Reader struct {
	handle *pcap.Handle
}

// NewReader opens the given capture file.
func NewReader(filePath string) (*Reader, error) {
	handle, err := pcap.OpenOffline(filePath)
	if err != nil {
		return nil, err
	}
	return &Reader{handle: handle}, nil
}

// Close closes the pcap handle.
func (r *Reader) Close() {
	r.handle.Close()
}

// ReadSegments sends every TCP segment in the file to out and closes the
// channel when done. Non-TCP packets are skipped silently; they are expected
// in any real capture.
func (r *Reader) ReadSegments(out chan<- *model.Segment) {
	defer close(out)

	source := gopacket.NewPacketSource(r.handle, r.handle.LinkType())
	var read, skipped int
	for packet := range source.Packets() {
		seg, err := capture.ParseSegment(packet)
		if err != nil {
			skipped++
			continue
		}
		out <- seg
		read++
	}
	logrus.Infof("pcap: replayed %d TCP segments (%d packets skipped)", read, skipped)
}
