package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "rewind.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadOverlaysDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
[sim]
fixed_step = "10ms"
turn_steps = 50

[history]
retain_snapshots = 2

[logging]
level = "debug"
format = "json"
`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Millisecond, cfg.Sim.FixedStep)
	assert.Equal(t, 50, cfg.Sim.TurnSteps)
	assert.Equal(t, 1.0, cfg.Sim.TimeScale, "untouched keys keep defaults")
	assert.Equal(t, 2, cfg.History.RetainSnapshots)
	assert.True(t, cfg.History.Audit)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 500*time.Millisecond, cfg.Sim.TurnDuration())
}

func TestLoadErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.ErrorContains(t, err, "read config")

	_, err = Load(writeConfig(t, "[sim\n"))
	assert.ErrorContains(t, err, "parse config")

	_, err = Load(writeConfig(t, "[history]\nretain_snapshots = 0\n"))
	assert.ErrorContains(t, err, "retain_snapshots")

	_, err = Load(writeConfig(t, "[database]\nenabled = true\ndsn = \"\"\n"))
	assert.ErrorContains(t, err, "database.dsn")
}

func TestDefaultsAreValid(t *testing.T) {
	require.NoError(t, Defaults().Validate())
}

func TestShippedConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "config", "rewind.toml"))
	require.NoError(t, err)
	assert.Equal(t, 20*time.Millisecond, cfg.Sim.FixedStep)
	assert.Equal(t, 3*time.Second, cfg.Sim.TurnDuration())
	assert.Equal(t, 30*time.Minute, cfg.Database.ConnMaxLifetime)
	assert.False(t, cfg.Database.Enabled)
}
