package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeTime() time.Time {
	return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestDecodeCombatRoundTrip(t *testing.T) {
	in := CombatMessage{
		Attacker: 114514,
		Target:   15395,
		Amount:   4200,
		HPLessen: 3900,
		SkillID:  220301,
		Critical: true,
		Lucky:    true,
	}

	msg, err := Decode(Frame{Type: MsgCombat, Payload: CombatPayload(in)}, fakeTime())
	require.NoError(t, err)

	out, ok := msg.(CombatMessage)
	require.True(t, ok)
	assert.Equal(t, in.Attacker, out.Attacker)
	assert.Equal(t, in.Target, out.Target)
	assert.Equal(t, in.Amount, out.Amount)
	assert.Equal(t, in.HPLessen, out.HPLessen)
	assert.Equal(t, in.SkillID, out.SkillID)
	assert.True(t, out.Critical)
	assert.True(t, out.Lucky)
	assert.False(t, out.Heal)
	assert.Equal(t, fakeTime(), out.At)
}

func TestDecodeHealFlag(t *testing.T) {
	payload := CombatPayload(CombatMessage{Attacker: 1, Target: 2, Amount: 500, Heal: true})
	msg, err := Decode(Frame{Type: MsgCombat, Payload: payload}, fakeTime())
	require.NoError(t, err)
	assert.True(t, msg.(CombatMessage).Heal)
}

func TestDecodeEntitySyncRoundTrip(t *testing.T) {
	in := EntitySyncMessage{
		Entity: 15395,
		Enemy:  true,
		Name:   "雷电食人魔",
		MaxHP:  18011262,
	}

	msg, err := Decode(Frame{Type: MsgEntitySync, Payload: EntitySyncPayload(in)}, fakeTime())
	require.NoError(t, err)

	out, ok := msg.(EntitySyncMessage)
	require.True(t, ok)
	assert.Equal(t, in.Entity, out.Entity)
	assert.True(t, out.Enemy)
	assert.False(t, out.Player)
	assert.Equal(t, in.Name, out.Name)
	assert.Equal(t, uint64(0), out.HP, "hp was not carried by this sync")
	assert.Equal(t, in.MaxHP, out.MaxHP)
}

func TestDecodeKeepAliveYieldsNothing(t *testing.T) {
	msg, err := Decode(Frame{Type: MsgKeepAlive}, fakeTime())
	require.NoError(t, err)
	assert.Nil(t, msg)
}

func TestDecodeUnknownDiscriminator(t *testing.T) {
	msg, err := Decode(Frame{Type: MessageType(0x5150), Payload: []byte{1, 2, 3}}, fakeTime())
	require.NoError(t, err)

	unknown, ok := msg.(UnknownMessage)
	require.True(t, ok)
	assert.Equal(t, MessageType(0x5150), unknown.Type)
}

func TestDecodeCorruptPayloadFails(t *testing.T) {
	// A dangling tag with no value is a schema violation for a recognized
	// discriminator.
	_, err := Decode(Frame{Type: MsgCombat, Payload: []byte{0x08}}, fakeTime())
	assert.Error(t, err)
}

func TestDecodeHandshakeRequiresMagic(t *testing.T) {
	msg, err := Decode(Frame{Type: MsgHandshake, Payload: []byte(handshakeMagic)}, fakeTime())
	require.NoError(t, err)
	assert.IsType(t, HandshakeMessage{}, msg)

	_, err = Decode(Frame{Type: MsgHandshake, Payload: []byte("nope")}, fakeTime())
	assert.Error(t, err)
}

func TestIsHandshakePrefix(t *testing.T) {
	stream := AppendHandshake(nil)
	assert.True(t, IsHandshakePrefix(stream))
	assert.True(t, IsHandshakePrefix(append(stream, 0xAA, 0xBB)))

	assert.False(t, IsHandshakePrefix(stream[:4]), "incomplete prefix is not yet a match")
	assert.False(t, IsHandshakePrefix(AppendKeepAlive(nil)))
	assert.False(t, IsHandshakePrefix(combatFrame(t, 1)))
}
