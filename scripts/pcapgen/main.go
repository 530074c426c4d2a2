// pcapgen writes a synthetic capture file containing one game session plus
// background noise flows, for exercising pcap-analyzer and the pipeline
// without access to live traffic.
package main

import (
	"flag"
	"math/rand"
	"net"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/sirupsen/logrus"

	"CombatSpectra/internal/protocol"
)

const (
	playerID = 114514
	enemyID  = 15395
)

func main() {
	outputFile := flag.String("o", "session.pcap", "Output pcap file path.")
	combatCount := flag.Int("c", 500, "Number of combat frames to generate.")
	noiseCount := flag.Int("n", 200, "Number of unrelated noise packets to interleave.")
	flag.Parse()

	f, err := os.Create(*outputFile)
	if err != nil {
		logrus.Fatalf("Failed to create output file: %v", err)
	}
	defer f.Close()

	w := pcapgo.NewWriter(f)
	if err := w.WriteFileHeader(65536, layers.LinkTypeEthernet); err != nil {
		logrus.Fatalf("Failed to write pcap header: %v", err)
	}

	stream := buildStream(*combatCount)
	now := time.Now()

	g := &generator{w: w, now: now}
	g.writeSession(stream)
	g.writeNoise(*noiseCount)

	logrus.Infof("Wrote %d packets (%d session bytes, %d noise packets) to %s",
		g.written, len(stream), *noiseCount, *outputFile)
}

// buildStream assembles the client byte stream of one whole battle.
func buildStream(combat int) []byte {
	var b []byte
	b = protocol.AppendHandshake(b)
	b = protocol.AppendFrame(b, protocol.MsgEntitySync, protocol.EntitySyncPayload(protocol.EntitySyncMessage{
		Entity: playerID, Player: true, Name: "测试用户", Profession: "雷影剑士",
	}))
	b = protocol.AppendFrame(b, protocol.MsgEntitySync, protocol.EntitySyncPayload(protocol.EntitySyncMessage{
		Entity: enemyID, Enemy: true, Name: "雷电食人魔", HP: 18011262, MaxHP: 18011262,
	}))

	for i := 0; i < combat; i++ {
		amount := uint64(rand.Intn(5000) + 100)
		msg := protocol.CombatMessage{
			Attacker: playerID,
			Target:   enemyID,
			Amount:   amount,
			HPLessen: amount,
			SkillID:  uint64(rand.Intn(9) + 2200),
			Critical: rand.Intn(4) == 0,
			Lucky:    rand.Intn(10) == 0,
		}
		b = protocol.AppendFrame(b, protocol.MsgCombat, protocol.CombatPayload(msg))
		if i%50 == 49 {
			b = protocol.AppendKeepAlive(b)
		}
	}
	return b
}

type generator struct {
	w       *pcapgo.Writer
	now     time.Time
	written int
}

// writeSession segments the stream into MTU-sized TCP packets on one flow,
// starting with a SYN so the reassembler anchors cleanly.
func (g *generator) writeSession(stream []byte) {
	srcIP := net.IP{10, 0, 0, 2}
	dstIP := net.IP{203, 0, 113, 9}
	seq := rand.Uint32()

	g.writePacket(srcIP, dstIP, 50001, 443, seq, nil, true)
	seq++

	for off := 0; off < len(stream); {
		size := rand.Intn(1200) + 200
		if off+size > len(stream) {
			size = len(stream) - off
		}
		g.writePacket(srcIP, dstIP, 50001, 443, seq, stream[off:off+size], false)
		seq += uint32(size)
		off += size
		g.now = g.now.Add(time.Duration(rand.Intn(40)) * time.Millisecond)
	}
}

// writeNoise emits packets from random flows that must all be rejected by the
// session tracker.
func (g *generator) writeNoise(count int) {
	for i := 0; i < count; i++ {
		srcIP := net.IP{10, 0, 0, byte(rand.Intn(250) + 3)}
		dstIP := net.IP{93, 184, byte(rand.Intn(256)), byte(rand.Intn(256))}
		payload := make([]byte, rand.Intn(1000)+50)
		rand.Read(payload)
		g.writePacket(srcIP, dstIP, uint16(rand.Intn(64000)+1024), 443, rand.Uint32(), payload, false)
		g.now = g.now.Add(time.Duration(rand.Intn(10)) * time.Millisecond)
	}
}

func (g *generator) writePacket(srcIP, dstIP net.IP, srcPort, dstPort uint16, seq uint32, payload []byte, syn bool) {
	eth := &layers.Ethernet{
		SrcMAC:       net.HardwareAddr{0x00, 0x11, 0x22, 0x33, 0x44, 0x55},
		DstMAC:       net.HardwareAddr{0x00, 0x66, 0x77, 0x88, 0x99, 0xAA},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		SrcIP:    srcIP,
		DstIP:    dstIP,
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		Seq:     seq,
		SYN:     syn,
		ACK:     !syn,
		Window:  14600,
	}
	tcp.SetNetworkLayerForChecksum(ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	if err := gopacket.SerializeLayers(buf, opts, eth, ip, tcp, gopacket.Payload(payload)); err != nil {
		logrus.Fatalf("Failed to serialize packet: %v", err)
	}

	ci := gopacket.CaptureInfo{
		Timestamp:     g.now,
		CaptureLength: len(buf.Bytes()),
		Length:        len(buf.Bytes()),
	}
	if err := g.w.WritePacket(ci, buf.Bytes()); err != nil {
		logrus.Fatalf("Failed to write packet: %v", err)
	}
	g.written++
}
