package system

import (
	"time"

	"github.com/l1jgo/rewind/internal/core/ecs"
)

// CleanupReceiver flushes the deferred entity destruction queue at step end.
// Late pass.
type CleanupReceiver struct {
	world *ecs.World
}

func NewCleanupReceiver(world *ecs.World) *CleanupReceiver {
	return &CleanupReceiver{world: world}
}

func (s *CleanupReceiver) Tick(_ time.Duration) {
	s.world.FlushDestroyQueue()
}
