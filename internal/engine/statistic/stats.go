package statistic

import "time"

// ValueBreakdown accumulates amounts by combat classification. The Total
// field is always the sum of the four category buckets; HPLessen tracks the
// post-mitigation health loss separately and is not part of that invariant.
type ValueBreakdown struct {
	Normal    uint64 `json:"normal"`
	Critical  uint64 `json:"critical"`
	Lucky     uint64 `json:"lucky"`
	CritLucky uint64 `json:"crit_lucky"`
	HPLessen  uint64 `json:"hpLessen"`
	Total     uint64 `json:"total"`
}

// CountBreakdown mirrors ValueBreakdown for event counts.
type CountBreakdown struct {
	Normal    uint64 `json:"normal"`
	Critical  uint64 `json:"critical"`
	Lucky     uint64 `json:"lucky"`
	CritLucky uint64 `json:"crit_lucky"`
	Total     uint64 `json:"total"`
}

// add folds one event into the breakdown, keeping Total consistent with the
// category buckets after every call.
func (b *ValueBreakdown) add(amount, hpLessen uint64, critical, lucky bool) {
	switch {
	case critical && lucky:
		b.CritLucky += amount
	case critical:
		b.Critical += amount
	case lucky:
		b.Lucky += amount
	default:
		b.Normal += amount
	}
	b.HPLessen += hpLessen
	b.Total += amount
}

func (c *CountBreakdown) add(critical, lucky bool) {
	switch {
	case critical && lucky:
		c.CritLucky++
	case critical:
		c.Critical++
	case lucky:
		c.Lucky++
	default:
		c.Normal++
	}
	c.Total++
}

// CharacterStats is the mutable per-character aggregate owned by the meter.
// It must only be touched while holding the meter's lock.
type CharacterStats struct {
	ID         uint64
	Name       string
	Profession string

	Damage      ValueBreakdown
	DamageCount CountBreakdown
	Healing     ValueBreakdown
	HealCount   CountBreakdown
	TakenDamage uint64

	RealtimeDPS    uint64
	RealtimeHPS    uint64
	MaxRealtimeDPS uint64
	MaxRealtimeHPS uint64

	damageWindow RateWindow
	healWindow   RateWindow
}

// NewCharacterStats creates an empty aggregate for the given entity id.
func NewCharacterStats(id uint64) *CharacterStats {
	return &CharacterStats{ID: id}
}

// AddDamage folds one dealt-damage event in and refreshes the 1-second
// instantaneous rate and its historical maximum.
func (s *CharacterStats) AddDamage(at time.Time, amount, hpLessen uint64, critical, lucky bool) {
	s.Damage.add(amount, hpLessen, critical, lucky)
	s.DamageCount.add(critical, lucky)
	s.RealtimeDPS = s.damageWindow.Add(at, amount)
	if s.RealtimeDPS > s.MaxRealtimeDPS {
		s.MaxRealtimeDPS = s.RealtimeDPS
	}
}

// AddHealing folds one healing event in, mirroring AddDamage.
func (s *CharacterStats) AddHealing(at time.Time, amount uint64, critical, lucky bool) {
	s.Healing.add(amount, 0, critical, lucky)
	s.HealCount.add(critical, lucky)
	s.RealtimeHPS = s.healWindow.Add(at, amount)
	if s.RealtimeHPS > s.MaxRealtimeHPS {
		s.MaxRealtimeHPS = s.RealtimeHPS
	}
}

// MergeInfo applies entity metadata without ever erasing known values:
// empty fields in a later sync do not overwrite earlier ones.
func (s *CharacterStats) MergeInfo(name, profession string) {
	if name != "" {
		s.Name = name
	}
	if profession != "" {
		s.Profession = profession
	}
}

// EnemyStats is the mutable per-enemy aggregate owned by the meter.
type EnemyStats struct {
	ID    uint64
	Name  string
	HP    uint64
	MaxHP uint64
}

// MergeInfo applies an enemy attribute sync. MaxHP never decreases once
// learned, and HP is clamped into [0, MaxHP] when MaxHP is known. hpKnown
// tells whether the sync carried an HP value at all, so an absent field
// cannot zero out a previously learned one.
func (s *EnemyStats) MergeInfo(name string, hp uint64, hpKnown bool, maxHP uint64) {
	if name != "" {
		s.Name = name
	}
	if maxHP > s.MaxHP {
		s.MaxHP = maxHP
	}
	if hpKnown {
		s.HP = hp
	}
	if s.MaxHP > 0 && s.HP > s.MaxHP {
		s.HP = s.MaxHP
	}
}
