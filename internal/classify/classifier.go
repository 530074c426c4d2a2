// Package classify maps decoded protocol messages onto combat domain events.
package classify

import (
	"CombatSpectra/internal/model"
	"CombatSpectra/internal/protocol"
)

// Classify turns one decoded message into a domain event, or nil when the
// message carries no combat semantics (handshakes, keep-alives). Unknown
// messages pass through as model.UnknownEvent so the pipeline can count them.
func Classify(msg protocol.Message) model.Event {
	switch m := msg.(type) {
	case protocol.CombatMessage:
		if m.Heal {
			return model.HealEvent{
				Source:     m.Attacker,
				Target:     m.Target,
				Amount:     m.Amount,
				IsCritical: m.Critical,
				IsLucky:    m.Lucky,
				SkillID:    m.SkillID,
				Timestamp:  m.At,
			}
		}
		return model.DamageEvent{
			Source:     m.Attacker,
			Target:     m.Target,
			Amount:     m.Amount,
			HPLessen:   m.HPLessen,
			IsCritical: m.Critical,
			IsLucky:    m.Lucky,
			SkillID:    m.SkillID,
			Timestamp:  m.At,
		}
	case protocol.EntitySyncMessage:
		kind := model.EntityUnknown
		switch {
		case m.Player:
			kind = model.EntityPlayer
		case m.Enemy:
			kind = model.EntityEnemy
		}
		return model.EntityInfoEvent{
			Entity:     m.Entity,
			Kind:       kind,
			Name:       m.Name,
			Profession: m.Profession,
			HP:         m.HP,
			MaxHP:      m.MaxHP,
			Timestamp:  m.At,
		}
	case protocol.UnknownMessage:
		return model.UnknownEvent{MessageType: uint16(m.Type), Timestamp: m.At}
	default:
		return nil
	}
}
