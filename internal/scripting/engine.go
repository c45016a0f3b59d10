package scripting

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/l1jgo/rewind/internal/geom"
	"github.com/l1jgo/rewind/internal/input"
	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// Engine wraps a single gopher-lua VM for combat formulas and scripted
// controllers. Single-goroutine access only (game loop).
//
// Scripts must be pure functions of their arguments: no os/io, no math.random,
// no globals mutated across calls. Anything else breaks replay determinism.
type Engine struct {
	vm  *lua.LState
	log *zap.Logger
}

// NewEngine creates a Lua engine and loads all scripts from the given directory.
func NewEngine(scriptsDir string, log *zap.Logger) (*Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}
	vm := lua.NewState(lua.Options{
		SkipOpenLibs: false,
	})

	// Set API version global
	vm.SetGlobal("API_VERSION", lua.LNumber(1))

	e := &Engine{vm: vm, log: log}

	// combat 必須先載入，ai 腳本可呼叫其中的 helper
	for _, sub := range []string{"core", "combat", "ai"} {
		p := filepath.Join(scriptsDir, sub)
		if err := e.loadDir(p); err != nil {
			vm.Close()
			return nil, fmt.Errorf("load %s scripts: %w", sub, err)
		}
	}

	return e, nil
}

// loadDir loads all .lua files in a directory.
func (e *Engine) loadDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // skip missing dirs
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".lua" {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if err := e.vm.DoFile(path); err != nil {
			return fmt.Errorf("load %s: %w", path, err)
		}
		e.log.Debug("loaded lua script", zap.String("file", path))
	}
	return nil
}

// Has reports whether a global Lua function is defined.
func (e *Engine) Has(name string) bool {
	_, ok := e.vm.GetGlobal(name).(*lua.LFunction)
	return ok
}

// DamageContext holds pre-packed data for one projectile hit.
type DamageContext struct {
	BaseDamage   int32
	AttackerHP   int32
	AttackerMax  int32
	TargetArmor  int32
	TargetHP     int32
	TargetMaxHP  int32
	Distance     float64 // travelled by the projectile
	TargetIsUnit bool    // false for barriers
}

// CalcDamage calls the Lua calc_damage function. A missing or failing script
// falls back to the base damage so a broken formula never desyncs a replay.
func (e *Engine) CalcDamage(ctx DamageContext) int32 {
	fn := e.vm.GetGlobal("calc_damage")
	if fn == lua.LNil {
		return ctx.BaseDamage
	}

	t := e.vm.NewTable()
	t.RawSetString("base", lua.LNumber(ctx.BaseDamage))
	t.RawSetString("distance", lua.LNumber(ctx.Distance))
	t.RawSetString("target_is_unit", lua.LBool(ctx.TargetIsUnit))

	atk := e.vm.NewTable()
	atk.RawSetString("hp", lua.LNumber(ctx.AttackerHP))
	atk.RawSetString("max_hp", lua.LNumber(ctx.AttackerMax))
	t.RawSetString("attacker", atk)

	tgt := e.vm.NewTable()
	tgt.RawSetString("armor", lua.LNumber(ctx.TargetArmor))
	tgt.RawSetString("hp", lua.LNumber(ctx.TargetHP))
	tgt.RawSetString("max_hp", lua.LNumber(ctx.TargetMaxHP))
	t.RawSetString("target", tgt)

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua calc_damage error", zap.Error(err))
		return ctx.BaseDamage
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	n, ok := result.(lua.LNumber)
	if !ok {
		e.log.Error("lua calc_damage returned non-number", zap.String("type", result.Type().String()))
		return ctx.BaseDamage
	}
	if n < 0 {
		return 0
	}
	return int32(n)
}

// UnitView is the read-only picture of one unit handed to scripts.
type UnitView struct {
	ID     uint64
	Team   int
	Pos    geom.Vec2
	HP     int32
	MaxHP  int32
	Radius float64
}

// DecideContext is everything a scripted controller sees for one step.
type DecideContext struct {
	Self        UnitView
	Others      []UnitView // living units except Self, in spawn order
	ArenaW      float64
	ArenaH      float64
	FireReady   bool
	ShieldReady bool
	DashReady   bool
}

// Decide calls the Lua decide function and converts its table into a device
// reading. Errors yield a zero reading (stand still, hold nothing).
func (e *Engine) Decide(fnName string, ctx DecideContext) input.DeviceState {
	fn := e.vm.GetGlobal(fnName)
	if fn == lua.LNil {
		e.log.Error("lua function not found", zap.String("name", fnName))
		return input.DeviceState{}
	}

	t := e.vm.NewTable()
	t.RawSetString("self", e.unitTable(ctx.Self))
	others := e.vm.NewTable()
	for _, u := range ctx.Others {
		others.Append(e.unitTable(u))
	}
	t.RawSetString("others", others)
	t.RawSetString("arena_w", lua.LNumber(ctx.ArenaW))
	t.RawSetString("arena_h", lua.LNumber(ctx.ArenaH))
	t.RawSetString("fire_ready", lua.LBool(ctx.FireReady))
	t.RawSetString("shield_ready", lua.LBool(ctx.ShieldReady))
	t.RawSetString("dash_ready", lua.LBool(ctx.DashReady))

	if err := e.vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}, t); err != nil {
		e.log.Error("lua decide error", zap.String("func", fnName), zap.Error(err))
		return input.DeviceState{}
	}

	result := e.vm.Get(-1)
	e.vm.Pop(1)

	rt, ok := result.(*lua.LTable)
	if !ok {
		return input.DeviceState{}
	}

	var st input.DeviceState
	st.Move = geom.V(lFloat(rt, "move_x"), lFloat(rt, "move_y"))
	st.Aim = geom.V(lFloat(rt, "aim_x"), lFloat(rt, "aim_y"))
	if lua.LVAsBool(rt.RawGetString("fire")) {
		st.Held |= input.ButtonFire
	}
	if lua.LVAsBool(rt.RawGetString("shield")) {
		st.Held |= input.ButtonShield
	}
	if lua.LVAsBool(rt.RawGetString("dash")) {
		st.Held |= input.ButtonDash
	}
	return st
}

func (e *Engine) unitTable(u UnitView) *lua.LTable {
	t := e.vm.NewTable()
	t.RawSetString("id", lua.LNumber(u.ID))
	t.RawSetString("team", lua.LNumber(u.Team))
	t.RawSetString("x", lua.LNumber(u.Pos.X))
	t.RawSetString("y", lua.LNumber(u.Pos.Y))
	t.RawSetString("hp", lua.LNumber(u.HP))
	t.RawSetString("max_hp", lua.LNumber(u.MaxHP))
	t.RawSetString("radius", lua.LNumber(u.Radius))
	return t
}

// --- Lua helpers ---

// lFloat reads a numeric field from a Lua table; non-numbers read as 0.
func lFloat(t *lua.LTable, key string) float64 {
	return float64(lua.LVAsNumber(t.RawGetString(key)))
}

// Close shuts down the Lua VM.
func (e *Engine) Close() {
	e.vm.Close()
}
