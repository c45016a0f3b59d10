package history

import (
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/rewind/internal/core/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cell is a minimal traveler holding one string.
type cell struct {
	h        *History
	val      string
	alive    bool
	restores int
	teardown int
}

func newCell(h *History, val string) *cell {
	c := &cell{h: h, val: val, alive: true}
	h.AddTimeTraveler(c)
	return c
}

func (c *cell) CaptureState() State {
	if !c.alive {
		return nil
	}
	return c.val
}

func (c *cell) Restore(s State) {
	if s == nil {
		c.alive = false
		c.teardown++
		return
	}
	c.alive = true
	c.val = s.(string)
	c.restores++
}

func (c *cell) History() *History { return c.h }

func (c *cell) Tick(time.Duration) {}

func (c *cell) kill() { c.alive = false }

func newHistory(t *testing.T) (*History, *system.Scheduler) {
	t.Helper()
	s := system.NewScheduler(10*time.Millisecond, 1, nil)
	return New(s, nil), s
}

func TestTakeSnapshotThenRewindRoundTrips(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a0")
	b := newCell(h, "b0")
	require.NoError(t, h.TakeSnapshot())

	a.val = "a1"
	b.kill()
	late := newCell(h, "born later")
	require.Equal(t, 3, h.Len())

	require.NoError(t, h.Rewind())
	assert.Equal(t, "a0", a.val)
	assert.True(t, b.alive)
	assert.Equal(t, "b0", b.val)
	assert.False(t, late.alive)
	assert.Equal(t, 1, late.teardown)
	assert.Equal(t, 2, h.Len())
	assert.False(t, h.Registered(late))
}

func TestAddTimeTravelerIsIdempotent(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a")
	h.AddTimeTraveler(a)
	h.Register(a)
	assert.Equal(t, 1, h.Len())
}

func TestTakeSnapshotRefusedWhenNotAtTip(t *testing.T) {
	h, _ := newHistory(t)
	newCell(h, "x")
	require.NoError(t, h.TakeSnapshot())
	require.NoError(t, h.TakeSnapshot())

	require.NoError(t, h.RewindToStart())
	assert.Equal(t, 0, h.Current())

	err := h.TakeSnapshot()
	assert.ErrorIs(t, err, ErrNotAtTip)
	assert.Equal(t, 2, h.SnapshotCount())
	assert.Equal(t, 0, h.Current())
}

func TestRewindIntoFutureRefused(t *testing.T) {
	h, s := newHistory(t)
	c := newCell(h, "start")
	require.NoError(t, h.TakeSnapshot())
	for range 5 {
		s.Step()
	}
	c.val = "tip"
	require.NoError(t, h.TakeSnapshot())

	require.NoError(t, h.RewindToStart())
	assert.Equal(t, uint64(0), s.Frame())
	assert.Equal(t, "start", c.val)

	c.val = "changed"
	err := h.Rewind()
	assert.ErrorIs(t, err, ErrRewindIntoFuture)
	assert.Equal(t, "changed", c.val, "refused rewind must not touch entities")
	assert.Equal(t, 0, h.Current())
}

func TestRewindEmptyHistory(t *testing.T) {
	h, _ := newHistory(t)
	assert.ErrorIs(t, h.Rewind(), ErrNoSnapshot)
	assert.ErrorIs(t, h.RewindToStart(), ErrNoSnapshot)
}

func TestRewindRestoresClockAndIDs(t *testing.T) {
	h, s := newHistory(t)
	r := newCell(h, "r")
	slow := system.NewModifier(0.5)
	s.AddSpeedModifier(r, slow)

	first := h.NextEntityID()
	s.Step()
	require.NoError(t, h.TakeSnapshot())

	s.Step()
	s.Step()
	s.RemoveSpeedModifier(r, slow)
	s.AddSpeedModifier(r, system.NewModifier(4))
	afterSnap := h.NextEntityID()

	require.NoError(t, h.Rewind())
	assert.Equal(t, uint64(1), s.Frame())
	assert.Equal(t, 10*time.Millisecond, s.Elapsed())
	assert.Equal(t, []*system.Modifier{slow}, s.SpeedModifiers(r))
	assert.Equal(t, afterSnap, h.NextEntityID(), "ids handed out after a rewind repeat")
	assert.Equal(t, first+1, afterSnap)
}

func TestCleanUpScenario(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "1")
	b := newCell(h, "2")
	c := newCell(h, "3")
	require.NoError(t, h.TakeSnapshot()) // S0

	b.val = "2b"
	require.NoError(t, h.TakeSnapshot()) // S1

	c.kill()
	require.NoError(t, h.TakeSnapshot()) // S2

	h.CleanUpSnapshots(0, 1)
	require.Equal(t, 2, h.SnapshotCount())
	require.Equal(t, 1, h.Current())

	a.val, b.val = "junk", "junk"
	require.NoError(t, h.Rewind())
	assert.Equal(t, "1", a.val)
	assert.Equal(t, "2b", b.val)
	assert.False(t, c.alive)
	assert.False(t, h.IsSaved(c))
	assert.True(t, h.IsSaved(a))
	assert.True(t, h.IsSaved(b))
}

func TestCleanUpDropsUnreachableAndRealigns(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a0")
	d := newCell(h, "d0")
	b := newCell(h, "b0")
	require.NoError(t, h.TakeSnapshot()) // S0: a0 d0 b0

	d.kill()
	b.val = "b1"
	require.NoError(t, h.TakeSnapshot()) // S1: a0 nil b1

	b.val = "b2"
	require.NoError(t, h.TakeSnapshot()) // S2: a0 nil b2

	h.CleanUpSnapshots(0, 1)
	assert.Equal(t, 2, h.Len())
	assert.False(t, h.Registered(d))
	assert.Equal(t, 1, d.teardown)
	assert.Equal(t, 1, h.Current())
	assert.Equal(t, 2, h.Snapshot(0).Len())

	require.NoError(t, h.RewindToStart())
	assert.Equal(t, "a0", a.val)
	assert.Equal(t, "b1", b.val)

	// RewindToStart left the frame equal, so the tip is still reachable.
	require.NoError(t, h.Rewind())
	assert.Equal(t, "b2", b.val)
}

func TestCleanUpKeepsEntitiesBornAfterRange(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a0")
	require.NoError(t, h.TakeSnapshot()) // S0: a0
	require.NoError(t, h.TakeSnapshot()) // S1: a0
	n := newCell(h, "n0")
	require.NoError(t, h.TakeSnapshot()) // S2: a0 n0
	pending := newCell(h, "p0")

	h.CleanUpSnapshots(0, 2)
	assert.True(t, h.Registered(a))
	assert.True(t, h.Registered(n))
	assert.True(t, h.Registered(pending))
	assert.Zero(t, n.teardown)
	assert.Zero(t, pending.teardown)
}

func TestCleanUpPreservesRetainedState(t *testing.T) {
	h, _ := newHistory(t)
	cells := []*cell{newCell(h, "a"), newCell(h, "b"), newCell(h, "c"), newCell(h, "d")}
	for round := range 4 {
		for i, c := range cells {
			if c.alive {
				c.val = string(rune('a'+i)) + string(rune('0'+round))
			}
		}
		if round == 1 {
			cells[1].kill()
		}
		require.NoError(t, h.TakeSnapshot())
	}

	before := make([]string, len(cells))
	require.NoError(t, h.Rewind())
	for i, c := range cells {
		before[i] = c.CaptureStateString()
	}

	h.CleanUpSnapshots(0, 2)
	require.NoError(t, h.Rewind())
	for i, c := range cells {
		assert.Equal(t, before[i], c.CaptureStateString(), "cell %d", i)
	}
}

func (c *cell) CaptureStateString() string {
	if s := c.CaptureState(); s != nil {
		return s.(string)
	}
	return "<dead>"
}

func TestCleanUpNoOpAndClamping(t *testing.T) {
	h, _ := newHistory(t)
	newCell(h, "x")
	for range 4 {
		require.NoError(t, h.TakeSnapshot())
	}

	h.CleanUpSnapshots(2, 2)
	h.CleanUpSnapshots(3, 1)
	assert.Equal(t, 4, h.SnapshotCount())

	require.NoError(t, h.RewindToStart())
	h.CleanUpSnapshots(0, 2)
	assert.Equal(t, 2, h.SnapshotCount())
	assert.Equal(t, 0, h.Current(), "position inside the removed range clamps to its start")

	h.CleanUpSnapshots(-5, 99)
	assert.Equal(t, 0, h.SnapshotCount())
	assert.Equal(t, -1, h.Current())
	assert.True(t, h.AtTip())
	assert.Equal(t, 1, h.Len(), "unsnapshotted entities stay registered")
}

func TestUnregisterOnlyPastNewestSnapshot(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a")
	require.NoError(t, h.TakeSnapshot())
	b := newCell(h, "b")
	c := newCell(h, "c")

	assert.False(t, h.Unregister(a))
	assert.True(t, h.Unregister(b))
	assert.False(t, h.Unregister(b))
	assert.Equal(t, 2, h.Len())

	// c moved down one slot.
	require.NoError(t, h.TakeSnapshot())
	c.val = "c1"
	require.NoError(t, h.Rewind())
	assert.Equal(t, "c", c.val)
}

func TestSnapshotAlive(t *testing.T) {
	h, _ := newHistory(t)
	newCell(h, "a")
	dead := newCell(h, "b")
	dead.kill()
	require.NoError(t, h.TakeSnapshot())
	s := h.Snapshot(0)
	require.NotNil(t, s)
	assert.True(t, s.Alive(0))
	assert.False(t, s.Alive(1))
	assert.False(t, s.Alive(2))
	assert.Nil(t, h.Snapshot(3))
}

func TestCleanUpKeepsSlotsPastOldestRetained(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a0")
	require.NoError(t, h.TakeSnapshot()) // S0: a0
	require.NoError(t, h.TakeSnapshot()) // S1: a0
	short := newCell(h, "s0")
	short.kill()
	newCell(h, "m0")
	require.NoError(t, h.TakeSnapshot()) // S2: a0 nil m0

	h.CleanUp(0, 1)
	require.Equal(t, 2, h.SnapshotCount())
	assert.True(t, h.Registered(short), "slot past the oldest retained snapshot is kept")
	assert.Equal(t, 3, h.Snapshot(1).Len())

	// Replaying from the oldest snapshot recreates both slots in order.
	require.NoError(t, h.RewindToStart())
	assert.Equal(t, 1, h.Len())
	short2 := newCell(h, "s0")
	short2.kill()
	mid2 := newCell(h, "m0")
	a.val = "junk"

	require.NoError(t, h.Rewind())
	assert.Equal(t, "a0", a.val)
	assert.False(t, short2.alive)
	assert.True(t, mid2.alive)
	assert.Equal(t, "m0", mid2.val)
}

func TestExcursionRestoresOriginalObjects(t *testing.T) {
	h, _ := newHistory(t)
	a := newCell(h, "a0")
	require.NoError(t, h.TakeSnapshot()) // S0: a0
	a.val = "a1"
	m := newCell(h, "m0")
	require.NoError(t, h.TakeSnapshot()) // S1: a1 m0

	boom := errors.New("boom")
	var replayed *cell
	err := h.Excursion(func() error {
		assert.True(t, h.InExcursion())
		require.NoError(t, h.RewindToStart())
		assert.Equal(t, "a0", a.val)
		assert.False(t, m.alive)

		a.val = "a1"
		replayed = newCell(h, "m0")
		replayed.val = "changed"

		assert.ErrorIs(t, h.TakeSnapshot(), ErrInExcursion)
		h.CleanUpSnapshots(0, 1)
		assert.Equal(t, 2, h.SnapshotCount())
		assert.ErrorIs(t, h.Excursion(func() error { return nil }), ErrInExcursion)
		return boom
	})
	require.ErrorIs(t, err, boom)

	assert.False(t, h.InExcursion())
	assert.Equal(t, 1, h.Current())
	assert.Equal(t, 2, h.Len())
	assert.True(t, h.Registered(m))
	assert.True(t, m.alive)
	assert.Equal(t, "m0", m.val)
	assert.True(t, h.IsSaved(m))
	assert.Equal(t, "a1", a.val)

	assert.False(t, h.Registered(replayed))
	assert.False(t, replayed.alive)
	assert.Equal(t, 1, replayed.teardown)

	require.NoError(t, h.TakeSnapshot())
}

func TestExcursionNeedsTip(t *testing.T) {
	h, _ := newHistory(t)
	called := false
	fn := func() error { called = true; return nil }
	assert.ErrorIs(t, h.Excursion(fn), ErrNoSnapshot)

	newCell(h, "a")
	require.NoError(t, h.TakeSnapshot())
	require.NoError(t, h.TakeSnapshot())
	require.NoError(t, h.RewindToStart())
	assert.ErrorIs(t, h.Excursion(fn), ErrNotAtTip)
	assert.False(t, called)
}
