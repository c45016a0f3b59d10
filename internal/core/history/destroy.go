package history

// Destroyable is a game object carrying one or more time-travelable parts.
// Every destruction path in the game goes through RequestDestroy.
type Destroyable interface {
	Travelers() []TimeTraveler
	// Deactivate hides the object but keeps it restorable.
	Deactivate()
	// Free releases the object for good. Must be idempotent.
	Free()
}

// RequestDestroy frees obj only if none of its parts is saved in the newest
// snapshot of its owning history. Otherwise a rewind may still need the object
// and it is merely deactivated. Returns true if obj was freed.
//
// Cost is one IsSaved check per part, i.e. O(histories) per call.
func RequestDestroy(obj Destroyable) bool {
	parts := obj.Travelers()
	for _, t := range parts {
		if h := t.History(); h != nil && h.IsSaved(t) {
			obj.Deactivate()
			return false
		}
	}
	for _, t := range parts {
		if h := t.History(); h != nil {
			h.Unregister(t)
		}
	}
	obj.Free()
	return true
}
