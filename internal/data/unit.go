package data

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// UnitTemplate holds static combat data for a unit type loaded from YAML.
type UnitTemplate struct {
	UnitID int32   `yaml:"unit_id"`
	Name   string  `yaml:"name"`
	HP     int32   `yaml:"hp"`
	Armor  int32   `yaml:"armor"`
	Speed  float64 `yaml:"speed"`  // arena units per second
	Radius float64 `yaml:"radius"` // collision circle

	FireCooldownMs   int     `yaml:"fire_cooldown_ms"`
	ProjectileSpeed  float64 `yaml:"projectile_speed"`
	ProjectileDamage int32   `yaml:"projectile_damage"`
	ProjectileRadius float64 `yaml:"projectile_radius"`
	ProjectileTTLMs  int     `yaml:"projectile_ttl_ms"`

	ShieldHP         int32 `yaml:"shield_hp"`
	ShieldDurationMs int   `yaml:"shield_duration_ms"`
	ShieldCooldownMs int   `yaml:"shield_cooldown_ms"`

	DashScale      float64 `yaml:"dash_scale"` // speed modifier while dashing
	DashDurationMs int     `yaml:"dash_duration_ms"`
	DashCooldownMs int     `yaml:"dash_cooldown_ms"`
}

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func (u *UnitTemplate) FireCooldown() time.Duration   { return ms(u.FireCooldownMs) }
func (u *UnitTemplate) ProjectileTTL() time.Duration  { return ms(u.ProjectileTTLMs) }
func (u *UnitTemplate) ShieldDuration() time.Duration { return ms(u.ShieldDurationMs) }
func (u *UnitTemplate) ShieldCooldown() time.Duration { return ms(u.ShieldCooldownMs) }
func (u *UnitTemplate) DashDuration() time.Duration   { return ms(u.DashDurationMs) }
func (u *UnitTemplate) DashCooldown() time.Duration   { return ms(u.DashCooldownMs) }

type unitListFile struct {
	Units []UnitTemplate `yaml:"units"`
}

// UnitTable holds all unit templates indexed by UnitID.
type UnitTable struct {
	templates map[int32]*UnitTemplate
}

// NewUnitTable builds a table from in-memory templates.
func NewUnitTable(units ...UnitTemplate) *UnitTable {
	t := &UnitTable{templates: make(map[int32]*UnitTemplate, len(units))}
	for i := range units {
		u := units[i]
		t.templates[u.UnitID] = &u
	}
	return t
}

// LoadUnitTable loads unit templates from a YAML file.
func LoadUnitTable(path string) (*UnitTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read unit_list: %w", err)
	}
	var f unitListFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse unit_list: %w", err)
	}
	for _, u := range f.Units {
		if u.HP <= 0 || u.Speed < 0 || u.Radius <= 0 {
			return nil, fmt.Errorf("unit_list: unit %d (%s): hp, radius must be positive", u.UnitID, u.Name)
		}
	}
	return NewUnitTable(f.Units...), nil
}

// Get returns a unit template by ID, or nil if not found.
func (t *UnitTable) Get(unitID int32) *UnitTemplate {
	return t.templates[unitID]
}

// Count returns the number of loaded templates.
func (t *UnitTable) Count() int {
	return len(t.templates)
}
