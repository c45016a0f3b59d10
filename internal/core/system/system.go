package system

import "time"

// Pass defines execution ordering within a single step.
type Pass int

const (
	PassNormal Pass = iota // 0: entity logic (input, movement, combat)
	PassLate               // 1: reads normal-pass results (animators, cleanup)
)

func (p Pass) String() string {
	switch p {
	case PassNormal:
		return "normal"
	case PassLate:
		return "late"
	}
	return "unknown"
}

// Receiver is the interface every ticked object implements. dt is the
// receiver's effective step: fixed step × time scale × its speed modifiers.
type Receiver interface {
	Tick(dt time.Duration)
}

// Modifier is a multiplicative speed scalar attached to a receiver.
// Modifiers are matched by pointer identity, never by value, so two buffs with
// the same Scale can be added and removed independently.
// Scale must not change after the modifier has been added.
type Modifier struct {
	Scale float64
}

func NewModifier(scale float64) *Modifier {
	return &Modifier{Scale: scale}
}

// ModifierState is an opaque deep copy of a scheduler's modifier table.
type ModifierState struct {
	table map[Receiver][]*Modifier
}

// Len returns the number of receivers holding at least one modifier.
func (s ModifierState) Len() int { return len(s.table) }

func cloneModifiers(src map[Receiver][]*Modifier) map[Receiver][]*Modifier {
	dst := make(map[Receiver][]*Modifier, len(src))
	for r, mods := range src {
		if len(mods) == 0 {
			continue
		}
		cp := make([]*Modifier, len(mods))
		copy(cp, mods)
		dst[r] = cp
	}
	return dst
}
