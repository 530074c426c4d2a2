package classify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CombatSpectra/internal/model"
	"CombatSpectra/internal/protocol"
)

var at = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestClassifyDamage(t *testing.T) {
	ev := Classify(protocol.CombatMessage{
		Attacker: 114514,
		Target:   15395,
		Amount:   4200,
		HPLessen: 3900,
		SkillID:  220301,
		Critical: true,
		At:       at,
	})

	dmg, ok := ev.(model.DamageEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(114514), dmg.Source)
	assert.Equal(t, uint64(15395), dmg.Target)
	assert.Equal(t, uint64(4200), dmg.Amount)
	assert.Equal(t, uint64(3900), dmg.HPLessen)
	assert.True(t, dmg.IsCritical)
	assert.False(t, dmg.IsLucky)
	assert.Equal(t, at, dmg.When())
}

func TestClassifyHealFlagSelectsHealEvent(t *testing.T) {
	ev := Classify(protocol.CombatMessage{Attacker: 1, Target: 2, Amount: 800, Heal: true, Lucky: true, At: at})

	heal, ok := ev.(model.HealEvent)
	require.True(t, ok)
	assert.Equal(t, uint64(1), heal.Source)
	assert.Equal(t, uint64(2), heal.Target)
	assert.Equal(t, uint64(800), heal.Amount)
	assert.True(t, heal.IsLucky)
}

func TestClassifyEntitySync(t *testing.T) {
	ev := Classify(protocol.EntitySyncMessage{
		Entity: 15395,
		Enemy:  true,
		Name:   "雷电食人魔",
		MaxHP:  18011262,
		At:     at,
	})

	info, ok := ev.(model.EntityInfoEvent)
	require.True(t, ok)
	assert.Equal(t, model.EntityEnemy, info.Kind)
	assert.Equal(t, "雷电食人魔", info.Name)
	assert.Equal(t, uint64(18011262), info.MaxHP)

	player := Classify(protocol.EntitySyncMessage{Entity: 7, Player: true, Profession: "射线", At: at})
	assert.Equal(t, model.EntityPlayer, player.(model.EntityInfoEvent).Kind)

	bare := Classify(protocol.EntitySyncMessage{Entity: 8, At: at})
	assert.Equal(t, model.EntityUnknown, bare.(model.EntityInfoEvent).Kind)
}

func TestClassifyUnknownPassesThrough(t *testing.T) {
	ev := Classify(protocol.UnknownMessage{Type: protocol.MessageType(0x0042), At: at})

	unknown, ok := ev.(model.UnknownEvent)
	require.True(t, ok)
	assert.Equal(t, uint16(0x0042), unknown.MessageType)
}

func TestClassifyNonCombatYieldsNil(t *testing.T) {
	assert.Nil(t, Classify(protocol.HandshakeMessage{At: at}))
	assert.Nil(t, Classify(nil))
}
