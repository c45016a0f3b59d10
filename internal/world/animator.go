package world

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/history"
	"github.com/l1jgo/rewind/internal/input"
)

// Clip is the animation a unit is playing.
type Clip uint8

const (
	ClipIdle Clip = iota
	ClipRun
	ClipFire
	ClipDash
)

func (c Clip) String() string {
	switch c {
	case ClipIdle:
		return "idle"
	case ClipRun:
		return "run"
	case ClipFire:
		return "fire"
	case ClipDash:
		return "dash"
	}
	return "unknown"
}

const fireClipLength = 200 * time.Millisecond

type AnimState struct {
	Clip Clip
	T    time.Duration // time spent in Clip
}

// Animator follows its unit in the late pass, after the unit has moved.
// It is a separate traveler so the unit is a multi-part destroyable.
type Animator struct {
	unit   *Unit
	active bool
	st     AnimState
}

func newAnimator(u *Unit) *Animator {
	return &Animator{unit: u, active: true}
}

func (a *Animator) Clip() Clip              { return a.st.Clip }
func (a *Animator) ClipTime() time.Duration { return a.st.T }

func (a *Animator) Tick(dt time.Duration) {
	if !a.active {
		return
	}
	next := a.pick()
	if next != a.st.Clip {
		a.st = AnimState{Clip: next}
		return
	}
	a.st.T += dt
}

func (a *Animator) pick() Clip {
	u := a.unit
	in := u.st.Last
	switch {
	case len(u.w.BuffsOn(u.id)) > 0:
		return ClipDash
	case in.Held.Has(input.ButtonFire) || (a.st.Clip == ClipFire && a.st.T < fireClipLength):
		return ClipFire
	case !in.Move.IsZero():
		return ClipRun
	}
	return ClipIdle
}

func (a *Animator) CaptureState() history.State {
	if !a.active {
		return nil
	}
	return a.st
}

func (a *Animator) Restore(st history.State) {
	if st == nil {
		a.detach()
		return
	}
	a.st = restoreAs[AnimState]("animator", a.unit.id, st)
	a.active = true
	a.unit.w.sched.RemoveLateReceiver(a)
	a.unit.w.sched.AddLateReceiver(a)
}

func (a *Animator) History() *history.History { return a.unit.w.hist }

func (a *Animator) detach() {
	a.active = false
	a.unit.w.sched.RemoveLateReceiver(a)
}
