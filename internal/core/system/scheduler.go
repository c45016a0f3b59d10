package system

import (
	"time"

	"go.uber.org/zap"
)

// Scheduler executes receivers once per fixed step in two ordered passes.
// Accessed only from the game loop goroutine; no locks.
//
// Receivers may add or remove themselves (or others) while a pass is running.
// Each pass keeps an iteration cursor; a removal at or before the cursor
// moves it back by one so the next receiver is neither skipped nor ticked twice.
type Scheduler struct {
	step      time.Duration
	timeScale float64
	paused    bool

	receivers []Receiver
	cursor    int // -1 when the normal pass is not running

	late       []Receiver
	lateCursor int

	modifiers map[Receiver][]*Modifier

	frame   uint64
	elapsed time.Duration

	log *zap.Logger
}

func NewScheduler(step time.Duration, timeScale float64, log *zap.Logger) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeScale <= 0 {
		timeScale = 1
	}
	return &Scheduler{
		step:       step,
		timeScale:  timeScale,
		receivers:  make([]Receiver, 0, 64),
		cursor:     -1,
		late:       make([]Receiver, 0, 32),
		lateCursor: -1,
		modifiers:  make(map[Receiver][]*Modifier),
		log:        log,
	}
}

func (s *Scheduler) FixedStep() time.Duration { return s.step }
func (s *Scheduler) TimeScale() float64       { return s.timeScale }
func (s *Scheduler) Paused() bool             { return s.paused }

// SetPaused takes effect on the next call to Step.
func (s *Scheduler) SetPaused(paused bool) { s.paused = paused }

func (s *Scheduler) SetTimeScale(scale float64) {
	if scale <= 0 {
		s.log.Warn("ignored non-positive time scale", zap.Float64("scale", scale))
		return
	}
	s.timeScale = scale
}

// Frame returns the number of steps executed so far.
func (s *Scheduler) Frame() uint64 { return s.frame }

// Elapsed returns scaled game time advanced so far.
func (s *Scheduler) Elapsed() time.Duration { return s.elapsed }

// SetTime rewinds the frame counter and game clock. Used by History on apply.
func (s *Scheduler) SetTime(frame uint64, elapsed time.Duration) {
	s.frame = frame
	s.elapsed = elapsed
}

// Step runs one fixed step: the normal pass, then the late pass.
// Returns false without ticking anything while paused.
func (s *Scheduler) Step() bool {
	if s.paused {
		return false
	}
	for s.cursor = 0; s.cursor < len(s.receivers); s.cursor++ {
		r := s.receivers[s.cursor]
		r.Tick(s.DeltaFor(r))
	}
	s.cursor = -1

	for s.lateCursor = 0; s.lateCursor < len(s.late); s.lateCursor++ {
		r := s.late[s.lateCursor]
		r.Tick(s.DeltaFor(r))
	}
	s.lateCursor = -1

	s.frame++
	s.elapsed += time.Duration(float64(s.step) * s.timeScale)
	return true
}

// DeltaFor returns the effective step size for r.
func (s *Scheduler) DeltaFor(r Receiver) time.Duration {
	scale := s.timeScale
	for _, m := range s.modifiers[r] {
		scale *= m.Scale
	}
	return time.Duration(float64(s.step) * scale)
}

// ── Normal pass ───────────────────────────────────────────────────

// AddReceiver appends r to the normal pass. No-op if already present.
func (s *Scheduler) AddReceiver(r Receiver) {
	if indexOf(s.receivers, r) >= 0 {
		return
	}
	s.receivers = append(s.receivers, r)
}

// AddPriorityReceiver inserts r at the front of the normal pass.
// No-op if already present.
func (s *Scheduler) AddPriorityReceiver(r Receiver) {
	if indexOf(s.receivers, r) >= 0 {
		return
	}
	s.receivers = append(s.receivers, nil)
	copy(s.receivers[1:], s.receivers)
	s.receivers[0] = r
	// Everything shifted right; keep the cursor on the receiver it was on.
	if s.cursor >= 0 {
		s.cursor++
	}
}

// RemoveReceiver removes r from the normal pass. Safe to call mid-pass.
func (s *Scheduler) RemoveReceiver(r Receiver) bool {
	return removeAt(&s.receivers, &s.cursor, r)
}

func (s *Scheduler) HasReceiver(r Receiver) bool { return indexOf(s.receivers, r) >= 0 }
func (s *Scheduler) ReceiverCount() int          { return len(s.receivers) }

// ── Late pass ─────────────────────────────────────────────────────

// AddLateReceiver appends r to the late pass. No-op if already present.
func (s *Scheduler) AddLateReceiver(r Receiver) {
	if indexOf(s.late, r) >= 0 {
		return
	}
	s.late = append(s.late, r)
}

// RemoveLateReceiver removes r from the late pass. Safe to call mid-pass.
func (s *Scheduler) RemoveLateReceiver(r Receiver) bool {
	return removeAt(&s.late, &s.lateCursor, r)
}

func (s *Scheduler) HasLateReceiver(r Receiver) bool { return indexOf(s.late, r) >= 0 }
func (s *Scheduler) LateReceiverCount() int          { return len(s.late) }

func indexOf(list []Receiver, r Receiver) int {
	for i, x := range list {
		if x == r {
			return i
		}
	}
	return -1
}

func removeAt(list *[]Receiver, cursor *int, r Receiver) bool {
	i := indexOf(*list, r)
	if i < 0 {
		return false
	}
	l := *list
	copy(l[i:], l[i+1:])
	l[len(l)-1] = nil
	*list = l[:len(l)-1]
	if i <= *cursor {
		*cursor--
	}
	return true
}

// ── Speed modifiers ───────────────────────────────────────────────

// AddSpeedModifier attaches m to r. Adding the same modifier twice is a no-op.
func (s *Scheduler) AddSpeedModifier(r Receiver, m *Modifier) {
	if m == nil {
		return
	}
	for _, x := range s.modifiers[r] {
		if x == m {
			return
		}
	}
	s.modifiers[r] = append(s.modifiers[r], m)
}

// RemoveSpeedModifier detaches m from r by identity.
func (s *Scheduler) RemoveSpeedModifier(r Receiver, m *Modifier) bool {
	mods := s.modifiers[r]
	for i, x := range mods {
		if x != m {
			continue
		}
		if len(mods) == 1 {
			delete(s.modifiers, r)
			return true
		}
		cp := make([]*Modifier, 0, len(mods)-1)
		cp = append(cp, mods[:i]...)
		cp = append(cp, mods[i+1:]...)
		s.modifiers[r] = cp
		return true
	}
	return false
}

// SpeedModifiers returns a copy of the modifiers attached to r.
func (s *Scheduler) SpeedModifiers(r Receiver) []*Modifier {
	mods := s.modifiers[r]
	if len(mods) == 0 {
		return nil
	}
	cp := make([]*Modifier, len(mods))
	copy(cp, mods)
	return cp
}

// ModifierState returns a deep copy of the whole modifier table.
func (s *Scheduler) ModifierState() ModifierState {
	return ModifierState{table: cloneModifiers(s.modifiers)}
}

// RestoreModifierState replaces the live table with a deep copy of state,
// so the caller's copy is never aliased by later mutations.
func (s *Scheduler) RestoreModifierState(state ModifierState) {
	s.modifiers = cloneModifiers(state.table)
}
