package probe

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CombatSpectra/internal/model"
)

func TestSegmentRoundTrip(t *testing.T) {
	in := &model.Segment{
		Timestamp: time.Unix(1748779200, 123456789),
		Tuple: model.FourTuple{
			SrcIP:   net.ParseIP("10.0.0.2").To4(),
			DstIP:   net.ParseIP("203.0.113.9").To4(),
			SrcPort: 50001,
			DstPort: 443,
		},
		Seq:     0xDEADBEEF,
		Payload: []byte{0x00, 0x01, 0x02, 0xFF},
		SYN:     true,
		RST:     true,
	}

	out, err := UnmarshalSegment(MarshalSegment(in))
	require.NoError(t, err)

	assert.True(t, out.Timestamp.Equal(in.Timestamp))
	assert.True(t, out.Tuple.SrcIP.Equal(in.Tuple.SrcIP))
	assert.True(t, out.Tuple.DstIP.Equal(in.Tuple.DstIP))
	assert.Equal(t, in.Tuple.SrcPort, out.Tuple.SrcPort)
	assert.Equal(t, in.Tuple.DstPort, out.Tuple.DstPort)
	assert.Equal(t, in.Seq, out.Seq)
	assert.Equal(t, in.Payload, out.Payload)
	assert.True(t, out.SYN)
	assert.False(t, out.FIN)
	assert.True(t, out.RST)
}

func TestSegmentEmptyPayload(t *testing.T) {
	in := &model.Segment{
		Timestamp: time.Unix(1748779200, 0),
		Tuple: model.FourTuple{
			SrcIP:   net.ParseIP("2001:db8::1"),
			DstIP:   net.ParseIP("2001:db8::2"),
			SrcPort: 1,
			DstPort: 2,
		},
		Seq: 0,
		FIN: true,
	}

	out, err := UnmarshalSegment(MarshalSegment(in))
	require.NoError(t, err)
	assert.Empty(t, out.Payload)
	assert.True(t, out.FIN)
	assert.True(t, out.Tuple.SrcIP.Equal(in.Tuple.SrcIP))
}

func TestUnmarshalRejectsTruncatedData(t *testing.T) {
	data := MarshalSegment(&model.Segment{
		Timestamp: time.Unix(1748779200, 0),
		Tuple:     model.FourTuple{SrcIP: net.IPv4(1, 2, 3, 4), DstIP: net.IPv4(5, 6, 7, 8)},
		Payload:   []byte("payload"),
	})

	_, err := UnmarshalSegment(data[:len(data)-3])
	assert.Error(t, err)
}
