package model

import "time"

// EntityKind distinguishes the two entity families the protocol syncs.
type EntityKind uint8

const (
	EntityUnknown EntityKind = iota
	EntityPlayer
	EntityEnemy
)

// Event is the closed set of domain events the classifier produces.
// Implementations are immutable once created.
type Event interface {
	When() time.Time
}

// DamageEvent is one application of damage from Source to Target.
// Amount is the nominal pre-mitigation value; HPLessen is the health
// actually removed from the target after mitigation.
type DamageEvent struct {
	Source     uint64
	Target     uint64
	Amount     uint64
	HPLessen   uint64
	IsCritical bool
	IsLucky    bool
	SkillID    uint64
	Timestamp  time.Time
}

func (e DamageEvent) When() time.Time { return e.Timestamp }

// HealEvent is one application of healing from Source to Target.
type HealEvent struct {
	Source     uint64
	Target     uint64
	Amount     uint64
	IsCritical bool
	IsLucky    bool
	SkillID    uint64
	Timestamp  time.Time
}

func (e HealEvent) When() time.Time { return e.Timestamp }

// EntityInfoEvent carries metadata learned about an entity. Zero-valued
// fields mean "not present in this sync", never "erase what was known".
type EntityInfoEvent struct {
	Entity     uint64
	Kind       EntityKind
	Name       string
	Profession string
	HP         uint64
	MaxHP      uint64
	Timestamp  time.Time
}

func (e EntityInfoEvent) When() time.Time { return e.Timestamp }

// UnknownEvent records a frame whose discriminator no decoder claimed.
// It carries no payload; the pipeline only counts these.
type UnknownEvent struct {
	MessageType uint16
	Timestamp   time.Time
}

func (e UnknownEvent) When() time.Time { return e.Timestamp }
