package protocol

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Message is the closed set of decoded protocol messages.
type Message interface {
	MessageType() MessageType
}

// CombatMessage is one decoded damage or heal application.
type CombatMessage struct {
	Attacker uint64
	Target   uint64
	Amount   uint64
	HPLessen uint64
	SkillID  uint64
	Critical bool
	Lucky    bool
	Heal     bool
	At       time.Time
}

func (CombatMessage) MessageType() MessageType { return MsgCombat }

// EntitySyncMessage is one decoded entity attribute update.
type EntitySyncMessage struct {
	Entity     uint64
	Player     bool
	Enemy      bool
	Name       string
	Profession string
	HP         uint64
	MaxHP      uint64
	At         time.Time
}

func (EntitySyncMessage) MessageType() MessageType { return MsgEntitySync }

// HandshakeMessage marks the start of a game session on a flow.
type HandshakeMessage struct {
	At time.Time
}

func (HandshakeMessage) MessageType() MessageType { return MsgHandshake }

// UnknownMessage stands in for frames whose discriminator no decoder claims.
type UnknownMessage struct {
	Type MessageType
	At   time.Time
}

func (m UnknownMessage) MessageType() MessageType { return m.Type }

// payloadDecoder turns one frame payload into a Message.
type payloadDecoder func(payload []byte, at time.Time) (Message, error)

// decoders is the discriminator dispatch table. Absent entries yield
// UnknownMessage; a nil entry means "recognized, carries nothing" and the
// frame is silently dropped.
var decoders = map[MessageType]payloadDecoder{
	MsgKeepAlive:  nil,
	MsgHandshake:  decodeHandshake,
	MsgEntitySync: decodeEntitySync,
	MsgCombat:     decodeCombat,
}

// Decode maps one frame to a Message. A nil Message with nil error means the
// frame is recognized but carries nothing (keep-alives). An error means a
// recognized discriminator whose payload failed its schema; the caller drops
// the frame and the stream continues at the next frame boundary.
func Decode(fr Frame, at time.Time) (Message, error) {
	dec, ok := decoders[fr.Type]
	if !ok {
		return UnknownMessage{Type: fr.Type, At: at}, nil
	}
	if dec == nil {
		return nil, nil
	}
	return dec(fr.Payload, at)
}

// IsHandshakePrefix reports whether the byte stream begins with a handshake
// frame, without decoding anything else. The session tracker uses this as
// its cheap accept/reject test for candidate flows.
func IsHandshakePrefix(data []byte) bool {
	if len(data) < HandshakePrefixSize {
		return false
	}
	if MessageType(uint16(data[lenFieldSize])<<8|uint16(data[lenFieldSize+1])) != MsgHandshake {
		return false
	}
	return string(data[headerSize:HandshakePrefixSize]) == handshakeMagic
}

func decodeHandshake(payload []byte, at time.Time) (Message, error) {
	if len(payload) < len(handshakeMagic) || string(payload[:len(handshakeMagic)]) != handshakeMagic {
		return nil, fmt.Errorf("handshake payload missing magic")
	}
	return HandshakeMessage{At: at}, nil
}

func decodeCombat(payload []byte, at time.Time) (Message, error) {
	msg := CombatMessage{At: at}
	err := eachField(payload, func(num protowire.Number, val uint64, _ []byte) {
		switch num {
		case combatFieldAttacker:
			msg.Attacker = val
		case combatFieldTarget:
			msg.Target = val
		case combatFieldAmount:
			msg.Amount = val
		case combatFieldHPLessen:
			msg.HPLessen = val
		case combatFieldFlags:
			msg.Critical = val&combatFlagCritical != 0
			msg.Lucky = val&combatFlagLucky != 0
			msg.Heal = val&combatFlagHeal != 0
		case combatFieldSkill:
			msg.SkillID = val
		}
	})
	if err != nil {
		return nil, fmt.Errorf("combat payload: %w", err)
	}
	return msg, nil
}

func decodeEntitySync(payload []byte, at time.Time) (Message, error) {
	msg := EntitySyncMessage{At: at}
	err := eachField(payload, func(num protowire.Number, val uint64, raw []byte) {
		switch num {
		case entityFieldID:
			msg.Entity = val
		case entityFieldKind:
			msg.Player = val == entityKindPlayer
			msg.Enemy = val == entityKindEnemy
		case entityFieldName:
			msg.Name = string(raw)
		case entityFieldProfession:
			msg.Profession = string(raw)
		case entityFieldHP:
			msg.HP = val
		case entityFieldMaxHP:
			msg.MaxHP = val
		}
	})
	if err != nil {
		return nil, fmt.Errorf("entity sync payload: %w", err)
	}
	return msg, nil
}

// eachField walks a protobuf wire-format payload, passing varint fields via
// val and length-delimited fields via raw. Other wire types are skipped.
func eachField(payload []byte, visit func(num protowire.Number, val uint64, raw []byte)) error {
	for len(payload) > 0 {
		num, typ, n := protowire.ConsumeTag(payload)
		if n < 0 {
			return protowire.ParseError(n)
		}
		payload = payload[n:]

		switch typ {
		case protowire.VarintType:
			val, n := protowire.ConsumeVarint(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			visit(num, val, nil)
			payload = payload[n:]
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			visit(num, 0, raw)
			payload = payload[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, payload)
			if n < 0 {
				return protowire.ParseError(n)
			}
			payload = payload[n:]
		}
	}
	return nil
}
