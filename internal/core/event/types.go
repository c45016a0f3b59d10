package event

import "github.com/l1jgo/rewind/internal/core/ecs"

// Combat events. Emitted by world entities during a step.

type ProjectileHit struct {
	Projectile ecs.EntityID
	Owner      ecs.EntityID
	Target     ecs.EntityID
	Damage     int32
	Absorbed   int32 // taken by a shield
}

type UnitKilled struct {
	Unit   ecs.EntityID
	Killer ecs.EntityID
	Team   int
}

type BarrierBroken struct {
	Barrier ecs.EntityID
	By      ecs.EntityID
}

type ShieldBroken struct {
	Shield ecs.EntityID
	Owner  ecs.EntityID
}
