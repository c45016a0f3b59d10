package world

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/history"
	"github.com/l1jgo/rewind/internal/data"
	"github.com/l1jgo/rewind/internal/geom"
	"github.com/l1jgo/rewind/internal/input"
)

// UnitState is everything about a unit that a rewind restores.
// Fixed-size fields only: Digest hashes it with encoding/binary.
type UnitState struct {
	Pos      geom.Vec2
	Facing   geom.Vec2
	HP       int32
	FireCD   time.Duration
	ShieldCD time.Duration
	DashCD   time.Duration
	Last     input.Sample // previous step's input, for edge detection
}

// Unit is a participant's avatar. It owns two travelers: itself (normal
// pass) and its Animator (late pass).
type Unit struct {
	w    *State
	id   ecs.EntityID
	name string
	team int
	tmpl *data.UnitTemplate

	active bool
	st     UnitState
	src    input.Source
	anim   *Animator
}

// SpawnUnit creates a unit at pos facing +X and registers it and its animator.
func (s *State) SpawnUnit(name string, team int, tmpl *data.UnitTemplate, pos geom.Vec2) *Unit {
	u := &Unit{
		w:      s,
		id:     s.nextID(),
		name:   name,
		team:   team,
		tmpl:   tmpl,
		active: true,
		src:    input.Idle{},
		st: UnitState{
			Pos:    s.arena.Clamp(pos, tmpl.Radius),
			Facing: geom.V(1, 0),
			HP:     tmpl.HP,
		},
	}
	u.anim = newAnimator(u)

	s.hist.AddTimeTraveler(u)
	s.hist.AddTimeTraveler(u.anim)
	s.units.Set(u.id, u)
	s.sched.AddReceiver(u)
	s.sched.AddLateReceiver(u.anim)
	return u
}

func (u *Unit) ID() ecs.EntityID             { return u.id }
func (u *Unit) Name() string                 { return u.name }
func (u *Unit) Team() int                    { return u.team }
func (u *Unit) Template() *data.UnitTemplate { return u.tmpl }
func (u *Unit) Active() bool                 { return u.active }
func (u *Unit) Pos() geom.Vec2               { return u.st.Pos }
func (u *Unit) Facing() geom.Vec2            { return u.st.Facing }
func (u *Unit) HP() int32                    { return u.st.HP }
func (u *Unit) LastInput() input.Sample      { return u.st.Last }
func (u *Unit) Animator() *Animator          { return u.anim }

func (u *Unit) FireReady() bool   { return u.st.FireCD <= 0 }
func (u *Unit) ShieldReady() bool { return u.st.ShieldCD <= 0 }
func (u *Unit) DashReady() bool   { return u.st.DashCD <= 0 }

// SetSource selects where the unit reads input from. Not part of the
// rewound state: the turn controller reassigns sources before every pass.
func (u *Unit) SetSource(src input.Source) {
	if src == nil {
		src = input.Idle{}
	}
	u.src = src
}

func (u *Unit) Source() input.Source { return u.src }

// Tick reads one input sample and acts on it.
func (u *Unit) Tick(dt time.Duration) {
	if !u.active {
		return
	}
	in := u.src.Poll(u.st.Last)
	u.st.Last = in
	sec := dt.Seconds()

	u.st.FireCD = max(0, u.st.FireCD-dt)
	u.st.ShieldCD = max(0, u.st.ShieldCD-dt)
	u.st.DashCD = max(0, u.st.DashCD-dt)

	if !in.Aim.IsZero() {
		u.st.Facing = in.Aim.Normalize()
	}
	if !in.Move.IsZero() {
		next := u.w.arena.Clamp(u.st.Pos.Add(in.Move.Scale(u.tmpl.Speed*sec)), u.tmpl.Radius)
		if !u.w.blocked(next, u.tmpl.Radius) {
			u.st.Pos = next
		}
	}

	if in.Held.Has(input.ButtonFire) && u.st.FireCD <= 0 {
		u.w.spawnProjectile(u)
		u.st.FireCD = u.tmpl.FireCooldown()
	}
	if in.Pressed.Has(input.ButtonShield) && u.st.ShieldCD <= 0 && u.tmpl.ShieldHP > 0 {
		u.w.SpawnShield(u)
		u.st.ShieldCD = u.tmpl.ShieldCooldown()
	}
	if in.Pressed.Has(input.ButtonDash) && u.st.DashCD <= 0 && u.tmpl.DashScale > 0 {
		u.w.SpawnBuff(u, u.tmpl.DashScale, u.tmpl.DashDuration())
		u.st.DashCD = u.tmpl.DashCooldown()
	}
}

// ── history.TimeTraveler ──────────────────────────────────────────

func (u *Unit) CaptureState() history.State {
	if !u.active {
		return nil
	}
	return u.st
}

func (u *Unit) Restore(st history.State) {
	if st == nil {
		u.detach()
		u.w.units.Remove(u.id)
		return
	}
	u.st = restoreAs[UnitState]("unit", u.id, st)
	u.active = true
	attach(u.w.units, u.id, u)
	u.w.sched.RemoveReceiver(u)
	u.w.sched.AddReceiver(u)
}

func (u *Unit) History() *history.History { return u.w.hist }

// ── history.Destroyable ───────────────────────────────────────────

func (u *Unit) Travelers() []history.TimeTraveler {
	return []history.TimeTraveler{u, u.anim}
}

// Deactivate hides the unit and its animator until a rewind restores them.
func (u *Unit) Deactivate() {
	if !u.active && !u.anim.active {
		return
	}
	u.detach()
	u.anim.detach()
	u.w.ecs.MarkForDestruction(u.id)
}

func (u *Unit) Free() {
	u.Deactivate()
	u.src = input.Idle{}
}

func (u *Unit) detach() {
	u.active = false
	u.w.sched.RemoveReceiver(u)
}
