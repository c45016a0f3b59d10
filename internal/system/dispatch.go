package system

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/event"
)

// DispatchReceiver delivers last step's events before any entity runs.
// Added with AddPriorityReceiver so it is always first in the normal pass.
type DispatchReceiver struct {
	bus *event.Bus
}

func NewDispatchReceiver(bus *event.Bus) *DispatchReceiver {
	return &DispatchReceiver{bus: bus}
}

func (s *DispatchReceiver) Tick(_ time.Duration) {
	s.bus.SwapBuffers()
	s.bus.DispatchAll()
}
