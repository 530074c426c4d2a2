package statistic

import "time"

// CharacterView is the immutable per-character slice of a snapshot, shaped
// for the HTTP query surface and the battle-report uploader.
type CharacterView struct {
	Name           string         `json:"name,omitempty"`
	Profession     string         `json:"profession"`
	RealtimeDPS    uint64         `json:"realtime_dps"`
	MaxRealtimeDPS uint64         `json:"realtime_dps_max"`
	TotalDPS       float64        `json:"total_dps"`
	TotalDamage    ValueBreakdown `json:"total_damage"`
	TotalCount     CountBreakdown `json:"total_count"`
	RealtimeHPS    uint64         `json:"realtime_hps"`
	MaxRealtimeHPS uint64         `json:"realtime_hps_max"`
	TotalHPS       float64        `json:"total_hps"`
	TotalHealing   ValueBreakdown `json:"total_healing"`
	HealingCount   CountBreakdown `json:"healing_count"`
	TakenDamage    uint64         `json:"taken_damage"`
}

// EnemyView is the immutable per-enemy slice of a snapshot.
type EnemyView struct {
	Name  string `json:"name"`
	HP    uint64 `json:"hp"`
	MaxHP uint64 `json:"max_hp"`
}

// Snapshot is an internally consistent copy of the full aggregate state at
// one instant. It shares no memory with the live meter.
type Snapshot struct {
	TakenAt    time.Time
	Elapsed    time.Duration
	Characters map[uint64]CharacterView
	Enemies    map[uint64]EnemyView
}

// View derives the immutable representation of a character, computing the
// whole-battle average rates from the elapsed battle time.
func (s *CharacterStats) View(elapsed time.Duration) CharacterView {
	v := CharacterView{
		Name:           s.Name,
		Profession:     s.Profession,
		RealtimeDPS:    s.RealtimeDPS,
		MaxRealtimeDPS: s.MaxRealtimeDPS,
		TotalDamage:    s.Damage,
		TotalCount:     s.DamageCount,
		RealtimeHPS:    s.RealtimeHPS,
		MaxRealtimeHPS: s.MaxRealtimeHPS,
		TotalHealing:   s.Healing,
		HealingCount:   s.HealCount,
		TakenDamage:    s.TakenDamage,
	}
	if secs := elapsed.Seconds(); secs > 0 {
		v.TotalDPS = float64(s.Damage.Total) / secs
		v.TotalHPS = float64(s.Healing.Total) / secs
	}
	return v
}

// View derives the immutable representation of an enemy.
func (s *EnemyStats) View() EnemyView {
	return EnemyView{Name: s.Name, HP: s.HP, MaxHP: s.MaxHP}
}
