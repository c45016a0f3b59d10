package ai

import (
	"github.com/l1jgo/rewind/internal/data"
	"github.com/l1jgo/rewind/internal/input"
	"github.com/l1jgo/rewind/internal/scripting"
	"github.com/l1jgo/rewind/internal/world"
)

// DecideFunc is the Lua global a scripted controller calls.
const DecideFunc = "decide"

// ScriptDevice asks a Lua function what to do every step.
type ScriptDevice struct {
	eng  *scripting.Engine
	fn   string
	w    *world.State
	self *world.Unit
}

func NewScriptDevice(eng *scripting.Engine, fn string, w *world.State, self *world.Unit) *ScriptDevice {
	if fn == "" {
		fn = DecideFunc
	}
	return &ScriptDevice{eng: eng, fn: fn, w: w, self: self}
}

// Read implements input.Device.
func (d *ScriptDevice) Read() input.DeviceState {
	if !d.self.Active() {
		return input.DeviceState{}
	}
	return d.eng.Decide(d.fn, View(d.w, d.self))
}

// View packs what self can see into the scripting context.
func View(w *world.State, self *world.Unit) scripting.DecideContext {
	ctx := scripting.DecideContext{
		Self:        unitView(self),
		ArenaW:      w.Arena().W,
		ArenaH:      w.Arena().H,
		FireReady:   self.FireReady(),
		ShieldReady: self.ShieldReady(),
		DashReady:   self.DashReady(),
	}
	for _, u := range w.Units() {
		if u == self {
			continue
		}
		ctx.Others = append(ctx.Others, unitView(u))
	}
	return ctx
}

func unitView(u *world.Unit) scripting.UnitView {
	return scripting.UnitView{
		ID:     uint64(u.ID()),
		Team:   u.Team(),
		Pos:    u.Pos(),
		HP:     u.HP(),
		MaxHP:  u.Template().HP,
		Radius: u.Template().Radius,
	}
}

type idleDevice struct{}

func (idleDevice) Read() input.DeviceState { return input.DeviceState{} }

// NewDevice builds the device for a scenario controller kind. eng may be nil
// when no participant uses a script.
func NewDevice(kind string, eng *scripting.Engine, w *world.State, self *world.Unit) input.Device {
	switch kind {
	case data.ControllerScript:
		if eng != nil {
			return NewScriptDevice(eng, DecideFunc, w, self)
		}
	case data.ControllerIdle:
		return idleDevice{}
	}
	return NewBotDevice(w, self, DefaultBotConfig())
}
