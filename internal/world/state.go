// Package world holds the time-travelable combat entities of a match and the
// arena state they share.
package world

import (
	"fmt"
	"slices"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/event"
	"github.com/l1jgo/rewind/internal/core/history"
	coresys "github.com/l1jgo/rewind/internal/core/system"
	"github.com/l1jgo/rewind/internal/data"
	"github.com/l1jgo/rewind/internal/geom"
	"github.com/l1jgo/rewind/internal/scripting"
	"github.com/l1jgo/rewind/internal/system"
	"go.uber.org/zap"
)

// DamageCalc turns a hit into hp lost. *scripting.Engine implements it.
type DamageCalc interface {
	CalcDamage(ctx scripting.DamageContext) int32
}

type baseDamage struct{}

func (baseDamage) CalcDamage(ctx scripting.DamageContext) int32 { return ctx.BaseDamage }

// State is the arena: every live entity, indexed by id in ordered stores.
// Stores hold active entities only; a deactivated entity leaves its store at
// step end and comes back when a rewind restores it.
// Accessed only from the game loop goroutine; no locks needed.
type State struct {
	sched *coresys.Scheduler
	hist  *history.History
	ecs   *ecs.World
	bus   *event.Bus
	dmg   DamageCalc
	arena geom.Rect
	log   *zap.Logger

	units       *ecs.Store[Unit]
	projectiles *ecs.Store[Projectile]
	barriers    *ecs.Store[Barrier]
	shields     *ecs.Store[Shield]
	buffs       *ecs.Store[Buff]

	freed int // objects released for good, for stats
}

func NewState(
	sched *coresys.Scheduler,
	hist *history.History,
	bus *event.Bus,
	arena geom.Rect,
	dmg DamageCalc,
	log *zap.Logger,
) *State {
	if log == nil {
		log = zap.NewNop()
	}
	if dmg == nil {
		dmg = baseDamage{}
	}
	w := ecs.NewWorld()
	reg := w.Registry()
	s := &State{
		sched:       sched,
		hist:        hist,
		ecs:         w,
		bus:         bus,
		dmg:         dmg,
		arena:       arena,
		log:         log,
		units:       ecs.Track[Unit](reg),
		projectiles: ecs.Track[Projectile](reg),
		barriers:    ecs.Track[Barrier](reg),
		shields:     ecs.Track[Shield](reg),
		buffs:       ecs.Track[Buff](reg),
	}
	sched.AddPriorityReceiver(system.NewDispatchReceiver(bus))
	sched.AddLateReceiver(system.NewCleanupReceiver(w))
	return s
}

func (s *State) Scheduler() *coresys.Scheduler { return s.sched }
func (s *State) History() *history.History     { return s.hist }
func (s *State) Bus() *event.Bus               { return s.bus }
func (s *State) Arena() geom.Rect              { return s.arena }
func (s *State) Freed() int                    { return s.freed }

func (s *State) nextID() ecs.EntityID {
	return ecs.EntityID(s.hist.NextEntityID())
}

// Destroy is the only way entities leave the world. A rewind may still need
// obj if the newest snapshot holds it, in which case it is only deactivated.
func (s *State) Destroy(obj history.Destroyable) bool {
	freed := history.RequestDestroy(obj)
	if freed {
		s.freed++
	}
	return freed
}

// ── Lookups ───────────────────────────────────────────────────────

// Unit returns an active unit by id.
func (s *State) Unit(id ecs.EntityID) (*Unit, bool) {
	return s.units.Get(id)
}

// Units returns the active units in spawn order.
func (s *State) Units() []*Unit {
	out := make([]*Unit, 0, s.units.Len())
	s.units.Each(func(_ ecs.EntityID, u *Unit) {
		if u.active {
			out = append(out, u)
		}
	})
	return out
}

// Projectiles returns the active projectiles in store order.
func (s *State) Projectiles() []*Projectile {
	out := make([]*Projectile, 0, s.projectiles.Len())
	s.projectiles.Each(func(_ ecs.EntityID, p *Projectile) {
		if p.active {
			out = append(out, p)
		}
	})
	return out
}

// TeamsAlive returns the teams with at least one active unit, ascending.
func (s *State) TeamsAlive() []int {
	var teams []int
	s.units.Each(func(_ ecs.EntityID, u *Unit) {
		if !u.active {
			return
		}
		for _, t := range teams {
			if t == u.team {
				return
			}
		}
		teams = append(teams, u.team)
	})
	slices.Sort(teams)
	return teams
}

func (s *State) ProjectileCount() int { return s.projectiles.Len() }
func (s *State) BarrierCount() int    { return s.barriers.Len() }

// ShieldOf returns the active shield protecting owner, if any.
func (s *State) ShieldOf(owner ecs.EntityID) *Shield {
	var found *Shield
	s.shields.Each(func(_ ecs.EntityID, sh *Shield) {
		if found == nil && sh.active && sh.owner == owner {
			found = sh
		}
	})
	return found
}

// BuffsOn returns the active buffs targeting unit.
func (s *State) BuffsOn(unit ecs.EntityID) []*Buff {
	var out []*Buff
	s.buffs.Each(func(_ ecs.EntityID, b *Buff) {
		if b.active && b.target.id == unit {
			out = append(out, b)
		}
	})
	return out
}

// ── Scenario ──────────────────────────────────────────────────────

// Populate spawns the barriers and participant units of sc, in file order.
// Returns the units in participant order.
func (s *State) Populate(sc *data.Scenario, units *data.UnitTable) ([]*Unit, error) {
	for _, b := range sc.Barriers {
		s.SpawnBarrier(geom.V(b.X, b.Y), b.Radius, b.HP)
	}
	out := make([]*Unit, 0, len(sc.Participants))
	for _, p := range sc.Participants {
		tmpl := units.Get(p.UnitID)
		if tmpl == nil {
			return nil, fmt.Errorf("participant %q: unknown unit_id %d", p.Name, p.UnitID)
		}
		out = append(out, s.SpawnUnit(p.Name, p.Team, tmpl, geom.V(p.X, p.Y)))
	}
	s.log.Info("arena populated",
		zap.String("scenario", sc.Name),
		zap.Int("units", len(out)),
		zap.Int("barriers", len(sc.Barriers)),
	)
	return out, nil
}

// ── Combat ────────────────────────────────────────────────────────

// hitUnit applies one projectile hit to u. A shield soaks damage first.
func (s *State) hitUnit(p *Projectile, u *Unit) {
	ctx := scripting.DamageContext{
		BaseDamage:   p.damage,
		TargetArmor:  u.tmpl.Armor,
		TargetHP:     u.st.HP,
		TargetMaxHP:  u.tmpl.HP,
		Distance:     p.st.Travelled,
		TargetIsUnit: true,
	}
	if owner, ok := s.units.Get(p.owner); ok && owner.active {
		ctx.AttackerHP = owner.st.HP
		ctx.AttackerMax = owner.tmpl.HP
	}
	dmg := s.dmg.CalcDamage(ctx)

	var absorbed int32
	if sh := s.ShieldOf(u.id); sh != nil {
		absorbed = min(dmg, sh.st.HP)
		sh.st.HP -= absorbed
		dmg -= absorbed
		if sh.st.HP <= 0 {
			s.Destroy(sh)
			event.Emit(s.bus, event.ShieldBroken{Shield: sh.id, Owner: u.id})
		}
	}

	u.st.HP -= dmg
	event.Emit(s.bus, event.ProjectileHit{
		Projectile: p.id,
		Owner:      p.owner,
		Target:     u.id,
		Damage:     dmg,
		Absorbed:   absorbed,
	})
	s.log.Debug("projectile hit",
		zap.Uint64("projectile", uint64(p.id)),
		zap.Uint64("target", uint64(u.id)),
		zap.Int32("damage", dmg),
		zap.Int32("absorbed", absorbed),
		zap.Int32("hp", u.st.HP),
	)

	if u.st.HP <= 0 {
		u.st.HP = 0
		s.Destroy(u)
		event.Emit(s.bus, event.UnitKilled{Unit: u.id, Killer: p.owner, Team: u.team})
		s.log.Debug("unit killed", zap.String("unit", u.name), zap.Uint64("killer", uint64(p.owner)))
	}
}

func (s *State) hitBarrier(p *Projectile, b *Barrier) {
	dmg := s.dmg.CalcDamage(scripting.DamageContext{
		BaseDamage: p.damage,
		TargetHP:   b.st.HP,
		Distance:   p.st.Travelled,
	})
	b.st.HP -= dmg
	if b.st.HP <= 0 {
		b.st.HP = 0
		s.Destroy(b)
		event.Emit(s.bus, event.BarrierBroken{Barrier: b.id, By: p.owner})
	}
}

// blocked reports whether a circle at pos overlaps an active barrier.
func (s *State) blocked(pos geom.Vec2, radius float64) bool {
	hit := false
	s.barriers.Each(func(_ ecs.EntityID, b *Barrier) {
		if !hit && b.active && geom.Overlap(pos, radius, b.pos, b.radius) {
			hit = true
		}
	})
	return hit
}

// ── Attach / detach ───────────────────────────────────────────────

// attach re-appends a restored receiver so that, after a full apply, pass
// order and store order both follow registry order.
func attach[T any](store *ecs.Store[T], id ecs.EntityID, v *T) {
	store.Remove(id)
	store.Set(id, v)
}

// restoreAs unwraps a snapshot state. A state of the wrong type means the
// registry and the snapshot are misaligned, which is never recoverable.
func restoreAs[S any](kind string, id ecs.EntityID, st history.State) S {
	v, ok := st.(S)
	if !ok {
		panic(fmt.Sprintf("world: %s %d restored from %T", kind, id, st))
	}
	return v
}
