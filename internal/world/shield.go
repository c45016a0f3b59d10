package world

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/history"
)

type ShieldState struct {
	HP        int32
	Remaining time.Duration
}

// Shield absorbs damage aimed at its owner until broken or expired.
type Shield struct {
	w     *State
	id    ecs.EntityID
	owner ecs.EntityID

	active bool
	st     ShieldState
}

// SpawnShield raises a shield on u from its template.
func (s *State) SpawnShield(u *Unit) *Shield {
	sh := &Shield{
		w:      s,
		id:     s.nextID(),
		owner:  u.id,
		active: true,
		st: ShieldState{
			HP:        u.tmpl.ShieldHP,
			Remaining: u.tmpl.ShieldDuration(),
		},
	}
	s.hist.AddTimeTraveler(sh)
	s.shields.Set(sh.id, sh)
	s.sched.AddReceiver(sh)
	return sh
}

func (sh *Shield) ID() ecs.EntityID    { return sh.id }
func (sh *Shield) Owner() ecs.EntityID { return sh.owner }
func (sh *Shield) HP() int32           { return sh.st.HP }
func (sh *Shield) Active() bool        { return sh.active }

func (sh *Shield) Tick(dt time.Duration) {
	if !sh.active {
		return
	}
	sh.st.Remaining -= dt
	if sh.st.Remaining <= 0 {
		sh.w.Destroy(sh)
	}
}

func (sh *Shield) CaptureState() history.State {
	if !sh.active {
		return nil
	}
	return sh.st
}

func (sh *Shield) Restore(st history.State) {
	if st == nil {
		sh.detach()
		sh.w.shields.Remove(sh.id)
		return
	}
	sh.st = restoreAs[ShieldState]("shield", sh.id, st)
	sh.active = true
	attach(sh.w.shields, sh.id, sh)
	sh.w.sched.RemoveReceiver(sh)
	sh.w.sched.AddReceiver(sh)
}

func (sh *Shield) History() *history.History { return sh.w.hist }

func (sh *Shield) Travelers() []history.TimeTraveler { return []history.TimeTraveler{sh} }

func (sh *Shield) Deactivate() {
	if !sh.active {
		return
	}
	sh.detach()
	sh.w.ecs.MarkForDestruction(sh.id)
}

func (sh *Shield) Free() { sh.Deactivate() }

func (sh *Shield) detach() {
	sh.active = false
	sh.w.sched.RemoveReceiver(sh)
}
