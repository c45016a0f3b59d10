package data

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const unitYAML = `
units:
  - unit_id: 1
    name: Ranger
    hp: 100
    armor: 2
    speed: 120
    radius: 12
    fire_cooldown_ms: 400
    projectile_speed: 420
    projectile_damage: 18
    projectile_radius: 4
    projectile_ttl_ms: 1200
    shield_hp: 40
    shield_duration_ms: 1500
    shield_cooldown_ms: 4000
    dash_scale: 2.0
    dash_duration_ms: 300
    dash_cooldown_ms: 2500
`

const scenarioYAML = `
name: duel
arena: {width: 800, height: 600}
participants:
  - {name: red, team: 1, unit_id: 1, x: 100, y: 300, controller: bot}
  - {name: blue, team: 2, unit_id: 1, x: 700, y: 300}
barriers:
  - {x: 400, y: 300, radius: 30, hp: 60}
`

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadUnitTable(t *testing.T) {
	units, err := LoadUnitTable(writeFile(t, "units.yaml", unitYAML))
	require.NoError(t, err)
	assert.Equal(t, 1, units.Count())

	u := units.Get(1)
	require.NotNil(t, u)
	assert.Equal(t, "Ranger", u.Name)
	assert.Equal(t, 400*time.Millisecond, u.FireCooldown())
	assert.Equal(t, 1500*time.Millisecond, u.ShieldDuration())
	assert.Nil(t, units.Get(2))
}

func TestLoadUnitTableErrors(t *testing.T) {
	_, err := LoadUnitTable(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "read unit_list")

	_, err = LoadUnitTable(writeFile(t, "bad.yaml", "units: [1, 2"))
	assert.ErrorContains(t, err, "parse unit_list")

	_, err = LoadUnitTable(writeFile(t, "zero.yaml", "units:\n  - {unit_id: 3, hp: 0, radius: 1}\n"))
	assert.ErrorContains(t, err, "must be positive")
}

func TestLoadScenario(t *testing.T) {
	units, err := LoadUnitTable(writeFile(t, "units.yaml", unitYAML))
	require.NoError(t, err)

	sc, err := LoadScenario(writeFile(t, "scenario.yaml", scenarioYAML), units)
	require.NoError(t, err)
	assert.Equal(t, "duel", sc.Name)
	require.Len(t, sc.Participants, 2)
	assert.Equal(t, ControllerBot, sc.Participants[1].Controller, "controller defaults to bot")
	require.Len(t, sc.Barriers, 1)
	assert.Equal(t, int32(60), sc.Barriers[0].HP)
}

func TestScenarioValidate(t *testing.T) {
	units := NewUnitTable(UnitTemplate{UnitID: 1, HP: 10, Radius: 1})
	base := func() Scenario {
		return Scenario{
			Arena: ArenaSize{Width: 100, Height: 100},
			Participants: []ParticipantEntry{
				{Name: "a", Team: 1, UnitID: 1},
				{Name: "b", Team: 2, UnitID: 1},
			},
		}
	}

	tests := []struct {
		name   string
		mutate func(*Scenario)
		want   string
	}{
		{"ok", func(*Scenario) {}, ""},
		{"one team", func(s *Scenario) { s.Participants[1].Team = 1 }, "two teams"},
		{"unknown unit", func(s *Scenario) { s.Participants[0].UnitID = 9 }, "unknown unit_id"},
		{"duplicate", func(s *Scenario) { s.Participants[1].Name = "a" }, "duplicate"},
		{"controller", func(s *Scenario) { s.Participants[0].Controller = "human" }, "unknown controller"},
		{"arena", func(s *Scenario) { s.Arena.Width = 0 }, "arena size"},
		{"barrier", func(s *Scenario) { s.Barriers = []BarrierEntry{{Radius: 1}} }, "barrier 0"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sc := base()
			tc.mutate(&sc)
			err := sc.Validate(units)
			if tc.want == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tc.want)
		})
	}
}

func TestShippedData(t *testing.T) {
	root := filepath.Join("..", "..", "data", "yaml")
	units, err := LoadUnitTable(filepath.Join(root, "unit_list.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 3, units.Count())

	sc, err := LoadScenario(filepath.Join(root, "scenario.yaml"), units)
	require.NoError(t, err)
	assert.Equal(t, "crossfire", sc.Name)
	assert.Len(t, sc.Participants, 4)
}
