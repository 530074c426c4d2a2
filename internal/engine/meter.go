// Package engine owns the aggregate combat state: it folds classified domain
// events into per-character and per-enemy statistics and serves consistent
// snapshot reads and atomic resets.
package engine

import (
	"sync"
	"time"

	"CombatSpectra/internal/engine/statistic"
	"CombatSpectra/internal/model"
)

// Meter is the aggregation engine. All mutation goes through Apply, all
// reads through Snapshot; both are safe for concurrent use. Lock hold time
// is bounded to a single event fold or one deep copy of the maps.
type Meter struct {
	mu        sync.RWMutex
	chars     map[uint64]*statistic.CharacterStats
	enemies   map[uint64]*statistic.EnemyStats
	startTime time.Time
	started   bool
}

// NewMeter creates an empty meter whose battle window starts with the first
// combat event it sees.
func NewMeter() *Meter {
	return &Meter{
		chars:   make(map[uint64]*statistic.CharacterStats),
		enemies: make(map[uint64]*statistic.EnemyStats),
	}
}

// Apply folds one domain event into the aggregate state.
func (m *Meter) Apply(ev model.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch e := ev.(type) {
	case model.DamageEvent:
		m.markStarted(e.Timestamp)
		m.character(e.Source).AddDamage(e.Timestamp, e.Amount, e.HPLessen, e.IsCritical, e.IsLucky)
		// Damage taken is attributed to targets we already track; enemy
		// health bookkeeping lives in EnemyStats, not here.
		if target, ok := m.chars[e.Target]; ok {
			target.TakenDamage += e.HPLessen
		}
	case model.HealEvent:
		m.markStarted(e.Timestamp)
		m.character(e.Target).AddHealing(e.Timestamp, e.Amount, e.IsCritical, e.IsLucky)
	case model.EntityInfoEvent:
		m.applyInfo(e)
	case model.UnknownEvent:
		// Counted upstream by the pipeline; nothing to aggregate.
	}
}

// character returns the stats entry for an entity id, creating it on first
// sight. The battle window reference is global, not per character.
func (m *Meter) character(id uint64) *statistic.CharacterStats {
	s, ok := m.chars[id]
	if !ok {
		s = statistic.NewCharacterStats(id)
		m.chars[id] = s
	}
	return s
}

func (m *Meter) applyInfo(e model.EntityInfoEvent) {
	switch e.Kind {
	case model.EntityPlayer:
		m.character(e.Entity).MergeInfo(e.Name, e.Profession)
	case model.EntityEnemy:
		s, ok := m.enemies[e.Entity]
		if !ok {
			s = &statistic.EnemyStats{ID: e.Entity}
			m.enemies[e.Entity] = s
		}
		// A zero HP field means "not carried by this sync", per the
		// non-destructive merge rule.
		s.MergeInfo(e.Name, e.HP, e.HP > 0, e.MaxHP)
	}
}

func (m *Meter) markStarted(at time.Time) {
	if !m.started {
		m.started = true
		m.startTime = at
	}
}

// Snapshot returns an immutable, internally consistent copy of all character
// and enemy statistics plus the elapsed battle time. Before the first combat
// event (and right after Clear) the elapsed time is zero.
func (m *Meter) Snapshot() statistic.Snapshot {
	now := time.Now()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var elapsed time.Duration
	if m.started {
		elapsed = now.Sub(m.startTime)
		if elapsed < 0 {
			elapsed = 0
		}
	}

	snap := statistic.Snapshot{
		TakenAt:    now,
		Elapsed:    elapsed,
		Characters: make(map[uint64]statistic.CharacterView, len(m.chars)),
		Enemies:    make(map[uint64]statistic.EnemyView, len(m.enemies)),
	}
	for id, s := range m.chars {
		snap.Characters[id] = s.View(elapsed)
	}
	for id, s := range m.enemies {
		snap.Enemies[id] = s.View()
	}
	return snap
}

// Clear atomically discards all statistics and restarts the battle window.
// An Apply racing a Clear lands fully before or fully after it.
func (m *Meter) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.chars = make(map[uint64]*statistic.CharacterStats)
	m.enemies = make(map[uint64]*statistic.EnemyStats)
	m.started = false
	m.startTime = time.Time{}
}
