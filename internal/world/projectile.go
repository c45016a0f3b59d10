package world

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/history"
	"github.com/l1jgo/rewind/internal/geom"
)

type ProjectileState struct {
	Pos       geom.Vec2
	Vel       geom.Vec2
	TTL       time.Duration
	Travelled float64
}

// Projectile flies straight until it hits an enemy unit or a barrier, leaves
// the arena, or runs out of time. Owner, team and damage are fixed at spawn.
type Projectile struct {
	w      *State
	id     ecs.EntityID
	owner  ecs.EntityID
	team   int
	damage int32
	radius float64

	active bool
	st     ProjectileState
}

func (s *State) spawnProjectile(u *Unit) *Projectile {
	t := u.tmpl
	p := &Projectile{
		w:      s,
		id:     s.nextID(),
		owner:  u.id,
		team:   u.team,
		damage: t.ProjectileDamage,
		radius: t.ProjectileRadius,
		active: true,
		st: ProjectileState{
			Pos: u.st.Pos.Add(u.st.Facing.Scale(t.Radius + t.ProjectileRadius)),
			Vel: u.st.Facing.Scale(t.ProjectileSpeed),
			TTL: t.ProjectileTTL(),
		},
	}
	s.hist.AddTimeTraveler(p)
	s.projectiles.Set(p.id, p)
	s.sched.AddReceiver(p)
	return p
}

func (p *Projectile) ID() ecs.EntityID    { return p.id }
func (p *Projectile) Owner() ecs.EntityID { return p.owner }
func (p *Projectile) Active() bool        { return p.active }
func (p *Projectile) Pos() geom.Vec2      { return p.st.Pos }

func (p *Projectile) Tick(dt time.Duration) {
	if !p.active {
		return
	}
	step := p.st.Vel.Scale(dt.Seconds())
	p.st.Pos = p.st.Pos.Add(step)
	p.st.Travelled += step.Len()
	p.st.TTL -= dt

	if p.st.TTL <= 0 || !p.w.arena.Contains(p.st.Pos) {
		p.w.Destroy(p)
		return
	}

	var target *Unit
	p.w.units.Each(func(_ ecs.EntityID, u *Unit) {
		if target == nil && u.active && u.team != p.team &&
			geom.Overlap(p.st.Pos, p.radius, u.st.Pos, u.tmpl.Radius) {
			target = u
		}
	})
	if target != nil {
		p.w.hitUnit(p, target)
		p.w.Destroy(p)
		return
	}

	var wall *Barrier
	p.w.barriers.Each(func(_ ecs.EntityID, b *Barrier) {
		if wall == nil && b.active && geom.Overlap(p.st.Pos, p.radius, b.pos, b.radius) {
			wall = b
		}
	})
	if wall != nil {
		p.w.hitBarrier(p, wall)
		p.w.Destroy(p)
	}
}

func (p *Projectile) CaptureState() history.State {
	if !p.active {
		return nil
	}
	return p.st
}

func (p *Projectile) Restore(st history.State) {
	if st == nil {
		p.detach()
		p.w.projectiles.Remove(p.id)
		return
	}
	p.st = restoreAs[ProjectileState]("projectile", p.id, st)
	p.active = true
	attach(p.w.projectiles, p.id, p)
	p.w.sched.RemoveReceiver(p)
	p.w.sched.AddReceiver(p)
}

func (p *Projectile) History() *history.History { return p.w.hist }

func (p *Projectile) Travelers() []history.TimeTraveler { return []history.TimeTraveler{p} }

func (p *Projectile) Deactivate() {
	if !p.active {
		return
	}
	p.detach()
	p.w.ecs.MarkForDestruction(p.id)
}

func (p *Projectile) Free() { p.Deactivate() }

func (p *Projectile) detach() {
	p.active = false
	p.w.sched.RemoveReceiver(p)
}
