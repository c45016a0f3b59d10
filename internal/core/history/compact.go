package history

import "go.uber.org/zap"

// CleanUpSnapshots drops the snapshots in [start, end) and reclaims every
// registry slot that no retained snapshot can reach any more.
//
// A slot survives if its entity has a state in at least one retained snapshot,
// or if it lies at or past the end of the oldest retained snapshot. Replaying
// forward from the oldest snapshot creates those slots again in the same
// order, so they are never renumbered while that snapshot is kept.
// Surviving slots are renumbered in one pass over every retained snapshot, so
// index i of any snapshot still lines up with registry index i. Entities whose
// slot is dropped are told they have no state and leave the registry.
//
// start >= end is a no-op.
func (h *History) CleanUpSnapshots(start, end int) {
	if start < 0 {
		start = 0
	}
	if end > len(h.snapshots) {
		end = len(h.snapshots)
	}
	if start >= end {
		return
	}
	if h.excursion {
		h.log.Warn("cleanup refused during excursion", zap.Int("start", start), zap.Int("end", end))
		return
	}
	removed := end - start

	retained := make([]*Snapshot, 0, len(h.snapshots)-removed)
	retained = append(retained, h.snapshots[:start]...)
	retained = append(retained, h.snapshots[end:]...)

	// 1. Mark needed slots.
	needed := make([]bool, len(h.travelers))
	keepFrom := 0
	if len(retained) > 0 {
		keepFrom = len(retained[0].states)
	}
	for _, s := range retained {
		for i, st := range s.states {
			if st != nil && i < len(needed) {
				needed[i] = true
			}
		}
	}
	for i := keepFrom; i < len(needed); i++ {
		needed[i] = true
	}

	// 2-3. Drop the range and compact the survivors' state lists.
	for _, s := range retained {
		kept := make([]State, 0, len(s.states))
		for i, st := range s.states {
			if i < len(needed) && needed[i] {
				kept = append(kept, st)
			}
		}
		s.states = kept
	}
	clear(h.snapshots)
	h.snapshots = retained

	// 4. Destroy and drop unreachable entities.
	h.applying = true
	kept := make([]TimeTraveler, 0, len(h.travelers))
	dropped := 0
	for i, t := range h.travelers {
		if needed[i] {
			kept = append(kept, t)
			continue
		}
		t.Restore(nil)
		delete(h.index, t)
		delete(h.saved, t)
		dropped++
	}
	h.applying = false
	h.travelers = kept
	for i, t := range h.travelers {
		h.index[t] = i
	}

	clear(h.saved)
	if n := len(h.snapshots); n > 0 {
		newest := h.snapshots[n-1]
		for i, st := range newest.states {
			if st != nil {
				h.saved[h.travelers[i]] = struct{}{}
			}
		}
	}

	// 5. Keep the current position valid.
	switch {
	case h.current >= end:
		h.current -= removed
	case h.current >= start:
		h.current = start
	}
	if h.current >= len(h.snapshots) {
		h.current = len(h.snapshots) - 1
	}

	h.log.Debug("snapshots compacted",
		zap.Int("start", start),
		zap.Int("end", end),
		zap.Int("retained", len(h.snapshots)),
		zap.Int("entities_dropped", dropped),
		zap.Int("entities", len(h.travelers)),
	)
}

// CleanUp is an alias of CleanUpSnapshots.
func (h *History) CleanUp(start, end int) { h.CleanUpSnapshots(start, end) }
