package scripting

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/l1jgo/rewind/internal/geom"
	"github.com/l1jgo/rewind/internal/input"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScript(t *testing.T, root, sub, name, src string) {
	t.Helper()
	dir := filepath.Join(root, sub)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func newEngine(t *testing.T, root string) *Engine {
	t.Helper()
	e, err := NewEngine(root, nil)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return e
}

func TestCalcDamageCallsScript(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "combat", "damage.lua", `
function calc_damage(ctx)
  if not ctx.target_is_unit then return ctx.base * 2 end
  return ctx.base - ctx.target.armor
end`)
	e := newEngine(t, root)

	assert.Equal(t, int32(7), e.CalcDamage(DamageContext{BaseDamage: 10, TargetArmor: 3, TargetIsUnit: true}))
	assert.Equal(t, int32(20), e.CalcDamage(DamageContext{BaseDamage: 10}))
	assert.Equal(t, int32(0), e.CalcDamage(DamageContext{BaseDamage: 1, TargetArmor: 5, TargetIsUnit: true}), "negative clamps to zero")
}

func TestCalcDamageFallsBackToBase(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"missing", ``},
		{"runtime error", `function calc_damage(ctx) return ctx.nope.field end`},
		{"wrong type", `function calc_damage(ctx) return "lots" end`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeScript(t, root, "combat", "damage.lua", tt.src)
			e := newEngine(t, root)
			assert.Equal(t, int32(12), e.CalcDamage(DamageContext{BaseDamage: 12}))
		})
	}
}

func TestDecideConvertsTable(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "ai", "bot.lua", `
function decide(ctx)
  local o = ctx.others[1]
  return {
    move_x = o.x - ctx.self.x, move_y = 0,
    aim_x = 0, aim_y = 1,
    fire = ctx.fire_ready, shield = #ctx.others > 1, dash = true,
  }
end`)
	e := newEngine(t, root)
	require.True(t, e.Has("decide"))

	st := e.Decide("decide", DecideContext{
		Self:      UnitView{ID: 1, Pos: geom.V(10, 10)},
		Others:    []UnitView{{ID: 2, Team: 1, Pos: geom.V(13, 10)}},
		FireReady: true,
	})
	assert.Equal(t, geom.V(3, 0), st.Move)
	assert.Equal(t, geom.V(0, 1), st.Aim)
	assert.True(t, st.Held.Has(input.ButtonFire))
	assert.False(t, st.Held.Has(input.ButtonShield))
	assert.True(t, st.Held.Has(input.ButtonDash))
}

func TestDecideErrorsYieldZero(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "ai", "bad.lua", `function decide(ctx) error("boom") end`)
	e := newEngine(t, root)

	assert.Equal(t, input.DeviceState{}, e.Decide("decide", DecideContext{}))
	assert.Equal(t, input.DeviceState{}, e.Decide("no_such_fn", DecideContext{}))
}

func TestNewEngineReportsSyntaxErrors(t *testing.T) {
	root := t.TempDir()
	writeScript(t, root, "combat", "broken.lua", `function calc_damage(`)
	_, err := NewEngine(root, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load combat scripts")
}

func TestShippedScriptsLoad(t *testing.T) {
	e := newEngine(t, filepath.Join("..", "..", "scripts"))
	require.True(t, e.Has("calc_damage"))
	require.True(t, e.Has("decide"))

	full := e.CalcDamage(DamageContext{BaseDamage: 10, TargetIsUnit: true, AttackerHP: 100, AttackerMax: 100})
	far := e.CalcDamage(DamageContext{BaseDamage: 10, TargetIsUnit: true, AttackerHP: 100, AttackerMax: 100, Distance: 400})
	assert.Equal(t, int32(10), full)
	assert.Less(t, far, full)

	st := e.Decide("decide", DecideContext{
		Self:      UnitView{Team: 0, Pos: geom.V(0, 0), HP: 100, MaxHP: 100},
		Others:    []UnitView{{Team: 1, Pos: geom.V(500, 0)}},
		FireReady: true,
	})
	assert.InDelta(t, 1.0, st.Move.X, 1e-9)
	assert.True(t, st.Held.Has(input.ButtonFire))
}
