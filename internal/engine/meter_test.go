package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CombatSpectra/internal/engine/statistic"
	"CombatSpectra/internal/model"
)

func damage(src, tgt, amount uint64, crit, lucky bool, at time.Time) model.DamageEvent {
	return model.DamageEvent{
		Source:     src,
		Target:     tgt,
		Amount:     amount,
		HPLessen:   amount,
		IsCritical: crit,
		IsLucky:    lucky,
		Timestamp:  at,
	}
}

func breakdownConsistent(t *testing.T, v statistic.ValueBreakdown, c statistic.CountBreakdown) {
	t.Helper()
	assert.Equal(t, v.Normal+v.Critical+v.Lucky+v.CritLucky, v.Total, "value total must equal sum of categories")
	assert.Equal(t, c.Normal+c.Critical+c.Lucky+c.CritLucky, c.Total, "count total must equal sum of categories")
}

func TestMeterDamageBreakdown(t *testing.T) {
	m := NewMeter()
	now := time.Now()

	m.Apply(damage(114514, 15395, 100, false, false, now))
	m.Apply(damage(114514, 15395, 50, true, false, now.Add(10*time.Millisecond)))
	m.Apply(damage(114514, 15395, 20, true, true, now.Add(20*time.Millisecond)))

	snap := m.Snapshot()
	view, ok := snap.Characters[114514]
	require.True(t, ok, "actor must be created on first sight")

	assert.Equal(t, uint64(100), view.TotalDamage.Normal)
	assert.Equal(t, uint64(50), view.TotalDamage.Critical)
	assert.Equal(t, uint64(0), view.TotalDamage.Lucky)
	assert.Equal(t, uint64(20), view.TotalDamage.CritLucky)
	assert.Equal(t, uint64(170), view.TotalDamage.Total)

	assert.Equal(t, uint64(1), view.TotalCount.Normal)
	assert.Equal(t, uint64(1), view.TotalCount.Critical)
	assert.Equal(t, uint64(1), view.TotalCount.CritLucky)
	assert.Equal(t, uint64(3), view.TotalCount.Total)
}

func TestMeterInvariantHoldsAfterEveryApply(t *testing.T) {
	m := NewMeter()
	now := time.Now()

	flags := []struct{ crit, lucky bool }{
		{false, false}, {true, false}, {false, true}, {true, true},
		{true, false}, {false, false}, {true, true}, {false, true},
	}
	for i, f := range flags {
		m.Apply(damage(1, 2, uint64(10+i), f.crit, f.lucky, now.Add(time.Duration(i)*time.Millisecond)))
		snap := m.Snapshot()
		view := snap.Characters[1]
		breakdownConsistent(t, view.TotalDamage, view.TotalCount)
	}
}

func TestMeterHealing(t *testing.T) {
	m := NewMeter()
	now := time.Now()

	m.Apply(model.HealEvent{Source: 7, Target: 9, Amount: 300, IsCritical: true, Timestamp: now})
	m.Apply(model.HealEvent{Source: 7, Target: 9, Amount: 200, Timestamp: now.Add(time.Millisecond)})

	snap := m.Snapshot()
	view, ok := snap.Characters[9]
	require.True(t, ok, "healing is attributed to the target")
	assert.Equal(t, uint64(300), view.TotalHealing.Critical)
	assert.Equal(t, uint64(200), view.TotalHealing.Normal)
	assert.Equal(t, uint64(500), view.TotalHealing.Total)
	assert.Equal(t, uint64(2), view.HealingCount.Total)
	breakdownConsistent(t, view.TotalHealing, view.HealingCount)
}

func TestMeterTakenDamageForKnownTarget(t *testing.T) {
	m := NewMeter()
	now := time.Now()

	// Target 2 becomes known by acting first.
	m.Apply(damage(2, 99, 10, false, false, now))
	m.Apply(model.DamageEvent{Source: 1, Target: 2, Amount: 500, HPLessen: 450, Timestamp: now.Add(time.Millisecond)})

	snap := m.Snapshot()
	assert.Equal(t, uint64(450), snap.Characters[2].TakenDamage)
}

func TestMeterRealtimeWindow(t *testing.T) {
	m := NewMeter()
	t0 := time.Now()

	m.Apply(damage(1, 2, 100, false, false, t0))
	m.Apply(damage(1, 2, 200, false, false, t0.Add(500*time.Millisecond)))
	m.Apply(damage(1, 2, 300, false, false, t0.Add(999*time.Millisecond)))

	snap := m.Snapshot()
	assert.Equal(t, uint64(600), snap.Characters[1].RealtimeDPS, "all three within one second")

	// The first two fall out of the window at t0+1500ms.
	m.Apply(damage(1, 2, 50, false, false, t0.Add(1500*time.Millisecond)))
	snap = m.Snapshot()
	assert.Equal(t, uint64(350), snap.Characters[1].RealtimeDPS)
}

func TestMeterRealtimeMaxMonotonic(t *testing.T) {
	m := NewMeter()
	t0 := time.Now()

	var prevMax uint64
	amounts := []uint64{100, 400, 50, 10, 700, 5}
	for i, a := range amounts {
		m.Apply(damage(1, 2, a, false, false, t0.Add(time.Duration(i*700)*time.Millisecond)))
		max := m.Snapshot().Characters[1].MaxRealtimeDPS
		assert.GreaterOrEqual(t, max, prevMax, "instantaneous maximum must never decrease between clears")
		prevMax = max
	}
}

func TestMeterClearIsAtomicAndEmpty(t *testing.T) {
	m := NewMeter()
	m.Apply(damage(1, 2, 100, false, false, time.Now()))
	require.NotEmpty(t, m.Snapshot().Characters)

	m.Clear()
	snap := m.Snapshot()
	assert.Empty(t, snap.Characters)
	assert.Empty(t, snap.Enemies)
	assert.LessOrEqual(t, snap.Elapsed, 10*time.Millisecond, "elapsed must restart with the battle window")
}

func TestMeterEnemyInfoMerge(t *testing.T) {
	m := NewMeter()
	now := time.Now()

	m.Apply(model.EntityInfoEvent{
		Entity: 15395, Kind: model.EntityEnemy,
		Name: "雷电食人魔", MaxHP: 18011262, Timestamp: now,
	})
	m.Apply(model.EntityInfoEvent{
		Entity: 15395, Kind: model.EntityEnemy,
		HP: 12000000, Timestamp: now.Add(time.Second),
	})

	snap := m.Snapshot()
	enemy, ok := snap.Enemies[15395]
	require.True(t, ok)
	assert.Equal(t, "雷电食人魔", enemy.Name, "empty name must not erase the known one")
	assert.Equal(t, uint64(12000000), enemy.HP)
	assert.Equal(t, uint64(18011262), enemy.MaxHP)

	// HP beyond MaxHP clamps, and MaxHP never shrinks.
	m.Apply(model.EntityInfoEvent{
		Entity: 15395, Kind: model.EntityEnemy,
		HP: 99999999, MaxHP: 1, Timestamp: now.Add(2 * time.Second),
	})
	enemy = m.Snapshot().Enemies[15395]
	assert.Equal(t, uint64(18011262), enemy.MaxHP)
	assert.LessOrEqual(t, enemy.HP, enemy.MaxHP)
}

func TestMeterPlayerInfoMerge(t *testing.T) {
	m := NewMeter()
	now := time.Now()

	m.Apply(model.EntityInfoEvent{Entity: 5, Kind: model.EntityPlayer, Name: "Iris", Profession: "射线", Timestamp: now})
	m.Apply(model.EntityInfoEvent{Entity: 5, Kind: model.EntityPlayer, Timestamp: now.Add(time.Second)})

	view := m.Snapshot().Characters[5]
	assert.Equal(t, "Iris", view.Name)
	assert.Equal(t, "射线", view.Profession)
}

func TestMeterTotalDPSUsesElapsed(t *testing.T) {
	m := NewMeter()
	m.Apply(damage(1, 2, 1000, false, false, time.Now().Add(-2*time.Second)))

	snap := m.Snapshot()
	require.Greater(t, snap.Elapsed, time.Duration(0))
	view := snap.Characters[1]
	assert.InDelta(t, float64(view.TotalDamage.Total)/snap.Elapsed.Seconds(), view.TotalDPS, 0.5)
}

func TestMeterConcurrentAppliesAndSnapshots(t *testing.T) {
	m := NewMeter()
	var wg sync.WaitGroup
	stop := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
				snap := m.Snapshot()
				for _, v := range snap.Characters {
					sum := v.TotalDamage.Normal + v.TotalDamage.Critical + v.TotalDamage.Lucky + v.TotalDamage.CritLucky
					if sum != v.TotalDamage.Total {
						t.Errorf("torn snapshot: %d != %d", sum, v.TotalDamage.Total)
						return
					}
				}
			}
		}
	}()

	now := time.Now()
	for i := 0; i < 5000; i++ {
		m.Apply(damage(uint64(i%4), 100, 7, i%2 == 0, i%3 == 0, now.Add(time.Duration(i)*time.Microsecond)))
	}
	close(stop)
	wg.Wait()
}
