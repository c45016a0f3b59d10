// Package input produces one control sample per simulated step, either live
// from a device, recorded from a live source, replayed from a tape, or idle.
package input

import "github.com/l1jgo/rewind/internal/geom"

// Buttons is a bitmask of discrete controls.
type Buttons uint8

const (
	ButtonFire Buttons = 1 << iota
	ButtonShield
	ButtonDash
)

func (b Buttons) Has(x Buttons) bool { return b&x != 0 }

// DeviceState is what a control device reports for one step: continuous axes
// and the level of every button.
type DeviceState struct {
	Move geom.Vec2
	Aim  geom.Vec2
	Held Buttons
}

// Sample is one step of input. Pressed and Released are edges relative to the
// previous step's Held.
type Sample struct {
	Move     geom.Vec2
	Aim      geom.Vec2
	Held     Buttons
	Pressed  Buttons
	Released Buttons
}

// Carry keeps the continuous values and button levels of s but clears every
// edge, i.e. "nothing changed since s".
func (s Sample) Carry() Sample {
	return Sample{Move: s.Move, Aim: s.Aim, Held: s.Held}
}

// FromDevice builds a sample from a device reading, deriving edges from prev.
func FromDevice(st DeviceState, prev Sample) Sample {
	return Sample{
		Move:     st.Move.ClampLen(1),
		Aim:      st.Aim,
		Held:     st.Held,
		Pressed:  st.Held &^ prev.Held,
		Released: prev.Held &^ st.Held,
	}
}
