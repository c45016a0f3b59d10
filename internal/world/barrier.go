package world

import (
	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/history"
	"github.com/l1jgo/rewind/internal/geom"
)

type BarrierState struct {
	HP int32
}

// Barrier is a static breakable obstacle. It blocks units and projectiles
// but is never ticked.
type Barrier struct {
	w      *State
	id     ecs.EntityID
	pos    geom.Vec2
	radius float64

	active bool
	st     BarrierState
}

func (s *State) SpawnBarrier(pos geom.Vec2, radius float64, hp int32) *Barrier {
	b := &Barrier{
		w:      s,
		id:     s.nextID(),
		pos:    pos,
		radius: radius,
		active: true,
		st:     BarrierState{HP: hp},
	}
	s.hist.AddTimeTraveler(b)
	s.barriers.Set(b.id, b)
	return b
}

func (b *Barrier) ID() ecs.EntityID { return b.id }
func (b *Barrier) Pos() geom.Vec2   { return b.pos }
func (b *Barrier) HP() int32        { return b.st.HP }
func (b *Barrier) Active() bool     { return b.active }

func (b *Barrier) CaptureState() history.State {
	if !b.active {
		return nil
	}
	return b.st
}

func (b *Barrier) Restore(st history.State) {
	if st == nil {
		b.active = false
		b.w.barriers.Remove(b.id)
		return
	}
	b.st = restoreAs[BarrierState]("barrier", b.id, st)
	b.active = true
	attach(b.w.barriers, b.id, b)
}

func (b *Barrier) History() *history.History { return b.w.hist }

func (b *Barrier) Travelers() []history.TimeTraveler { return []history.TimeTraveler{b} }

func (b *Barrier) Deactivate() {
	if !b.active {
		return
	}
	b.active = false
	b.w.ecs.MarkForDestruction(b.id)
}

func (b *Barrier) Free() { b.Deactivate() }
