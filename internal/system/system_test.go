package system

import (
	"testing"
	"time"

	"github.com/l1jgo/rewind/internal/core/ecs"
	"github.com/l1jgo/rewind/internal/core/event"
	coresys "github.com/l1jgo/rewind/internal/core/system"
	"github.com/stretchr/testify/assert"
)

type ping struct{ n int }

type emitter struct {
	bus *event.Bus
	n   int
}

func (e *emitter) Tick(time.Duration) {
	e.n++
	event.Emit(e.bus, ping{n: e.n})
}

func TestDispatchDeliversPreviousStep(t *testing.T) {
	sched := coresys.NewScheduler(10*time.Millisecond, 1, nil)
	bus := event.NewBus()
	var got []int
	event.Subscribe(bus, func(p ping) { got = append(got, p.n) })

	sched.AddReceiver(&emitter{bus: bus})
	sched.AddPriorityReceiver(NewDispatchReceiver(bus))

	sched.Step()
	assert.Empty(t, got)
	sched.Step()
	assert.Equal(t, []int{1}, got)
	sched.Step()
	assert.Equal(t, []int{1, 2}, got)
}

type tag struct{}

func TestCleanupFlushesAtStepEnd(t *testing.T) {
	sched := coresys.NewScheduler(10*time.Millisecond, 1, nil)
	w := ecs.NewWorld()
	tags := ecs.Track[tag](w.Registry())
	tags.Set(1, &tag{})
	tags.Set(2, &tag{})
	sched.AddLateReceiver(NewCleanupReceiver(w))

	w.MarkForDestruction(1)
	assert.True(t, tags.Has(1))
	sched.Step()
	assert.False(t, tags.Has(1))
	assert.True(t, tags.Has(2))
	assert.Zero(t, w.Pending())
}
