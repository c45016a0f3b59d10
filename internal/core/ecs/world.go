package ecs

// World is the top-level ECS container. It owns the component registry and a
// deferred destruction queue flushed by the cleanup receiver each step.
type World struct {
	registry     *Registry
	destroyQueue []EntityID
}

func NewWorld() *World {
	return &World{
		registry:     NewRegistry(),
		destroyQueue: make([]EntityID, 0, 64),
	}
}

func (w *World) Registry() *Registry { return w.registry }

// MarkForDestruction queues an entity for end-of-step removal from every store.
func (w *World) MarkForDestruction(id EntityID) {
	w.destroyQueue = append(w.destroyQueue, id)
}

// Pending returns the number of queued destructions.
func (w *World) Pending() int { return len(w.destroyQueue) }

// FlushDestroyQueue removes all queued entities from every store.
// Called by the cleanup receiver at the end of each step.
func (w *World) FlushDestroyQueue() {
	for _, id := range w.destroyQueue {
		w.registry.RemoveAll(id)
	}
	w.destroyQueue = w.destroyQueue[:0]
}
