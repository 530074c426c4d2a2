package protocol

import (
	"encoding/binary"

	"google.golang.org/protobuf/encoding/protowire"
)

// Encoding counterparts of the decoders. Production code only observes
// traffic, but the offline tooling and the package tests need to synthesize
// byte-exact streams, and keeping both sides next to the schema constants
// keeps them from drifting apart.

// AppendFrame appends one framed message to dst and returns the result.
func AppendFrame(dst []byte, t MessageType, payload []byte) []byte {
	dst = binary.BigEndian.AppendUint32(dst, uint32(typeFieldSize+len(payload)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(t))
	return append(dst, payload...)
}

// AppendHandshake appends a session handshake frame.
func AppendHandshake(dst []byte) []byte {
	return AppendFrame(dst, MsgHandshake, []byte(handshakeMagic))
}

// AppendKeepAlive appends an empty keep-alive frame.
func AppendKeepAlive(dst []byte) []byte {
	return AppendFrame(dst, MsgKeepAlive, nil)
}

// CombatPayload encodes a CombatMessage body.
func CombatPayload(m CombatMessage) []byte {
	var flags uint64
	if m.Critical {
		flags |= combatFlagCritical
	}
	if m.Lucky {
		flags |= combatFlagLucky
	}
	if m.Heal {
		flags |= combatFlagHeal
	}

	var b []byte
	b = appendVarintField(b, combatFieldAttacker, m.Attacker)
	b = appendVarintField(b, combatFieldTarget, m.Target)
	b = appendVarintField(b, combatFieldAmount, m.Amount)
	b = appendVarintField(b, combatFieldHPLessen, m.HPLessen)
	b = appendVarintField(b, combatFieldFlags, flags)
	if m.SkillID != 0 {
		b = appendVarintField(b, combatFieldSkill, m.SkillID)
	}
	return b
}

// EntitySyncPayload encodes an EntitySyncMessage body. Zero-valued fields
// are omitted, matching the sparse syncs seen on the wire.
func EntitySyncPayload(m EntitySyncMessage) []byte {
	var b []byte
	b = appendVarintField(b, entityFieldID, m.Entity)
	switch {
	case m.Player:
		b = appendVarintField(b, entityFieldKind, entityKindPlayer)
	case m.Enemy:
		b = appendVarintField(b, entityFieldKind, entityKindEnemy)
	}
	if m.Name != "" {
		b = appendBytesField(b, entityFieldName, []byte(m.Name))
	}
	if m.Profession != "" {
		b = appendBytesField(b, entityFieldProfession, []byte(m.Profession))
	}
	if m.HP != 0 {
		b = appendVarintField(b, entityFieldHP, m.HP)
	}
	if m.MaxHP != 0 {
		b = appendVarintField(b, entityFieldMaxHP, m.MaxHP)
	}
	return b
}

func appendVarintField(b []byte, num protowire.Number, val uint64) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, val)
}

func appendBytesField(b []byte, num protowire.Number, raw []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, raw)
}
