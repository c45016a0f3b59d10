// Package history stores snapshots of every registered time-travelable entity
// and rewinds the world to them.
//
// Position i of a snapshot's state list belongs to registry index i. A nil
// state means the entity was inactive at capture time; once an entity captures
// nil it must keep capturing nil, so any later snapshot sees it dead too.
package history

import (
	"errors"
	"maps"
	"slices"
	"time"

	"github.com/l1jgo/rewind/internal/core/system"
	"go.uber.org/zap"
)

var (
	// ErrNotAtTip is returned by TakeSnapshot when the store was rewound to a
	// snapshot other than the newest. History cannot branch.
	ErrNotAtTip = errors.New("history: not at newest snapshot")
	// ErrRewindIntoFuture is returned when the target snapshot lies after the
	// current frame.
	ErrRewindIntoFuture = errors.New("history: rewind target is in the future")
	// ErrNoSnapshot is returned when rewinding an empty store.
	ErrNoSnapshot = errors.New("history: no snapshot taken")
	// ErrInExcursion is returned when history is appended to, or a second
	// excursion is started, while an excursion is running.
	ErrInExcursion = errors.New("history: excursion in progress")
)

// State is an opaque per-entity value. The store never looks inside it.
// Implementations must return values that share no mutable memory with the
// live entity.
type State any

// TimeTraveler is implemented by every entity whose state is rewound.
type TimeTraveler interface {
	// CaptureState returns the entity's full state, or nil while inactive.
	CaptureState() State
	// Restore replaces the entity's state. A nil state tears the entity down.
	Restore(s State)
	// History returns the store the entity is registered with.
	History() *History
}

// Clock is the scheduler surface a History rewinds along with its entities.
type Clock interface {
	Frame() uint64
	Elapsed() time.Duration
	SetTime(frame uint64, elapsed time.Duration)
	ModifierState() system.ModifierState
	RestoreModifierState(system.ModifierState)
}

// Snapshot is one captured instant.
type Snapshot struct {
	states    []State
	frame     uint64
	elapsed   time.Duration
	nextID    uint64
	modifiers system.ModifierState
}

func (s *Snapshot) Frame() uint64          { return s.frame }
func (s *Snapshot) Elapsed() time.Duration { return s.elapsed }
func (s *Snapshot) Len() int               { return len(s.states) }

// Alive reports whether registry index i had a state when s was taken.
func (s *Snapshot) Alive(i int) bool {
	return i >= 0 && i < len(s.states) && s.states[i] != nil
}

// History owns the entity registry and the ordered snapshot list.
// Accessed only from the game loop goroutine; no locks.
type History struct {
	clock Clock
	log   *zap.Logger

	travelers []TimeTraveler
	index     map[TimeTraveler]int
	saved     map[TimeTraveler]struct{} // non-nil in the newest snapshot

	snapshots []*Snapshot
	current   int // -1 before the first snapshot

	nextID    uint64
	applying  bool
	excursion bool
}

func New(clock Clock, log *zap.Logger) *History {
	if log == nil {
		log = zap.NewNop()
	}
	return &History{
		clock:     clock,
		log:       log,
		travelers: make([]TimeTraveler, 0, 64),
		index:     make(map[TimeTraveler]int, 64),
		saved:     make(map[TimeTraveler]struct{}, 64),
		current:   -1,
		nextID:    1,
	}
}

// NextEntityID hands out ids from a counter that is captured in every
// snapshot, so an entity created again after a rewind gets the same id.
func (h *History) NextEntityID() uint64 {
	id := h.nextID
	h.nextID++
	return id
}

// AddTimeTraveler appends t to the registry. No-op if t is already registered.
func (h *History) AddTimeTraveler(t TimeTraveler) {
	if _, ok := h.index[t]; ok {
		return
	}
	h.index[t] = len(h.travelers)
	h.travelers = append(h.travelers, t)
}

// Register is an alias of AddTimeTraveler.
func (h *History) Register(t TimeTraveler) { h.AddTimeTraveler(t) }

// Registered reports whether t is in the registry.
func (h *History) Registered(t TimeTraveler) bool {
	_, ok := h.index[t]
	return ok
}

// Unregister drops t when no retained snapshot can reference its slot, which
// only holds for entities registered after the newest snapshot. Other entities
// stay until compaction reclaims them. Returns true if t was dropped.
func (h *History) Unregister(t TimeTraveler) bool {
	if h.applying {
		return false
	}
	i, ok := h.index[t]
	if !ok {
		return false
	}
	if i < h.newestLen() {
		return false
	}
	copy(h.travelers[i:], h.travelers[i+1:])
	h.travelers[len(h.travelers)-1] = nil
	h.travelers = h.travelers[:len(h.travelers)-1]
	delete(h.index, t)
	delete(h.saved, t)
	for j := i; j < len(h.travelers); j++ {
		h.index[h.travelers[j]] = j
	}
	return true
}

// IsSaved reports whether t has a state in the newest snapshot, meaning a
// rewind may still need to bring it back.
func (h *History) IsSaved(t TimeTraveler) bool {
	_, ok := h.saved[t]
	return ok
}

func (h *History) Len() int           { return len(h.travelers) }
func (h *History) SnapshotCount() int { return len(h.snapshots) }
func (h *History) Current() int       { return h.current }
func (h *History) AtTip() bool        { return h.current == len(h.snapshots)-1 }

// Snapshot returns the i-th retained snapshot.
func (h *History) Snapshot(i int) *Snapshot {
	if i < 0 || i >= len(h.snapshots) {
		return nil
	}
	return h.snapshots[i]
}

func (h *History) newestLen() int {
	if len(h.snapshots) == 0 {
		return 0
	}
	return len(h.snapshots[len(h.snapshots)-1].states)
}

// TakeSnapshot captures every registered entity in registry order and appends
// the result. Fails without mutating anything unless the store is at the
// newest snapshot.
func (h *History) TakeSnapshot() error {
	if h.excursion {
		return ErrInExcursion
	}
	if !h.AtTip() {
		h.log.Warn("snapshot refused: history not at tip",
			zap.Int("current", h.current),
			zap.Int("snapshots", len(h.snapshots)),
		)
		return ErrNotAtTip
	}

	snap := &Snapshot{
		states:    make([]State, len(h.travelers)),
		frame:     h.clock.Frame(),
		elapsed:   h.clock.Elapsed(),
		nextID:    h.nextID,
		modifiers: h.clock.ModifierState(),
	}
	clear(h.saved)
	for i, t := range h.travelers {
		st := t.CaptureState()
		snap.states[i] = st
		if st != nil {
			h.saved[t] = struct{}{}
		}
	}

	h.snapshots = append(h.snapshots, snap)
	h.current = len(h.snapshots) - 1
	h.log.Debug("snapshot taken",
		zap.Int("snapshot", h.current),
		zap.Uint64("frame", snap.frame),
		zap.Int("entities", len(snap.states)),
		zap.Int("alive", len(h.saved)),
	)
	return nil
}

// Rewind reapplies the newest snapshot.
func (h *History) Rewind() error {
	return h.apply(len(h.snapshots) - 1)
}

// RewindToStart reapplies the oldest retained snapshot.
func (h *History) RewindToStart() error {
	return h.apply(0)
}

func (h *History) apply(idx int) error {
	if idx < 0 || idx >= len(h.snapshots) {
		return ErrNoSnapshot
	}
	snap := h.snapshots[idx]
	if now := h.clock.Frame(); snap.frame > now {
		h.log.Warn("rewind refused: target is in the future",
			zap.Int("snapshot", idx),
			zap.Uint64("frame", snap.frame),
			zap.Uint64("current_frame", now),
		)
		return ErrRewindIntoFuture
	}
	h.restore(idx)
	return nil
}

// restore applies snapshot idx without the future check.
func (h *History) restore(idx int) {
	snap := h.snapshots[idx]
	h.applying = true
	// Restore may register new travelers; only the entities known now are applied.
	registered := h.travelers[:len(h.travelers):len(h.travelers)]
	for i, t := range registered {
		if i < len(snap.states) && snap.states[i] != nil {
			t.Restore(snap.states[i])
		} else {
			t.Restore(nil)
		}
	}
	h.applying = false

	// Entities created after the snapshot vanish.
	if n := len(snap.states); len(h.travelers) > n {
		for _, t := range h.travelers[n:] {
			delete(h.index, t)
			delete(h.saved, t)
		}
		clear(h.travelers[n:])
		h.travelers = h.travelers[:n]
	}

	h.clock.RestoreModifierState(snap.modifiers)
	h.clock.SetTime(snap.frame, snap.elapsed)
	h.nextID = snap.nextID
	h.current = idx

	h.log.Debug("rewound",
		zap.Int("snapshot", idx),
		zap.Uint64("frame", snap.frame),
		zap.Int("entities", len(h.travelers)),
	)
}

// Excursion runs fn, which may rewind and step the world but must not take or
// compact snapshots, then returns the world to the newest snapshot. The very
// objects registered at that snapshot are restored; anything fn registered
// is torn down first. Replaying retained history this way never leaves the
// newest snapshot's states on objects that merely look alike.
//
// fn's error is returned after the world is back at the newest snapshot.
func (h *History) Excursion(fn func() error) error {
	if h.excursion {
		return ErrInExcursion
	}
	if len(h.snapshots) == 0 {
		return ErrNoSnapshot
	}
	if !h.AtTip() {
		return ErrNotAtTip
	}
	idx := h.current
	n := min(len(h.snapshots[idx].states), len(h.travelers))
	kept := slices.Clone(h.travelers[:n])
	saved := maps.Clone(h.saved)

	h.excursion = true
	err := fn()
	h.excursion = false

	own := make(map[TimeTraveler]struct{}, len(kept))
	for _, t := range kept {
		own[t] = struct{}{}
	}
	h.applying = true
	for _, t := range h.travelers {
		if _, ok := own[t]; !ok {
			t.Restore(nil)
		}
	}
	h.applying = false

	h.travelers = kept
	clear(h.index)
	for i, t := range kept {
		h.index[t] = i
	}
	h.saved = saved
	h.restore(idx)
	return err
}

// InExcursion reports whether an excursion is running.
func (h *History) InExcursion() bool { return h.excursion }
