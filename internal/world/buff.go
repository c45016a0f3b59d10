package world

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/history"
	coresys "github.com/l1jgo/rewind/internal/core/system"
)

type BuffState struct {
	Remaining time.Duration
}

// Buff speeds up (or slows down) every receiver tick of its target unit for a
// while, through a scheduler speed modifier.
//
// The modifier table is part of every snapshot and is restored after all
// entities, so Restore never touches it; only expiry removes the modifier.
type Buff struct {
	w      *State
	id     ecs.EntityID
	target *Unit
	mod    *coresys.Modifier

	active bool
	st     BuffState
}

// SpawnBuff attaches a speed modifier of scale to target for d of game time.
func (s *State) SpawnBuff(target *Unit, scale float64, d time.Duration) *Buff {
	b := &Buff{
		w:      s,
		id:     s.nextID(),
		target: target,
		mod:    coresys.NewModifier(scale),
		active: true,
		st:     BuffState{Remaining: d},
	}
	s.hist.AddTimeTraveler(b)
	s.buffs.Set(b.id, b)
	s.sched.AddReceiver(b)
	s.sched.AddSpeedModifier(target, b.mod)
	return b
}

func (b *Buff) ID() ecs.EntityID            { return b.id }
func (b *Buff) Target() ecs.EntityID        { return b.target.id }
func (b *Buff) Modifier() *coresys.Modifier { return b.mod }
func (b *Buff) Active() bool                { return b.active }

// Tick counts down in unscaled buff time; the buff itself carries no modifier.
func (b *Buff) Tick(dt time.Duration) {
	if !b.active {
		return
	}
	b.st.Remaining -= dt
	if b.st.Remaining <= 0 {
		b.w.sched.RemoveSpeedModifier(b.target, b.mod)
		b.w.Destroy(b)
	}
}

func (b *Buff) CaptureState() history.State {
	if !b.active {
		return nil
	}
	return b.st
}

func (b *Buff) Restore(st history.State) {
	if st == nil {
		b.detach()
		b.w.buffs.Remove(b.id)
		return
	}
	b.st = restoreAs[BuffState]("buff", b.id, st)
	b.active = true
	attach(b.w.buffs, b.id, b)
	b.w.sched.RemoveReceiver(b)
	b.w.sched.AddReceiver(b)
}

func (b *Buff) History() *history.History { return b.w.hist }

func (b *Buff) Travelers() []history.TimeTraveler { return []history.TimeTraveler{b} }

func (b *Buff) Deactivate() {
	if !b.active {
		return
	}
	b.detach()
	b.w.ecs.MarkForDestruction(b.id)
}

func (b *Buff) Free() { b.Deactivate() }

func (b *Buff) detach() {
	b.active = false
	b.w.sched.RemoveReceiver(b)
}
