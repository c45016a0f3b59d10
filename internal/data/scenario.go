package data

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Controller kinds for a participant.
const (
	ControllerBot    = "bot"    // behaviour tree
	ControllerScript = "script" // Lua decide()
	ControllerIdle   = "idle"
)

type ArenaSize struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// ParticipantEntry places one controlled unit.
type ParticipantEntry struct {
	Name       string  `yaml:"name"`
	Team       int     `yaml:"team"`
	UnitID     int32   `yaml:"unit_id"`
	X          float64 `yaml:"x"`
	Y          float64 `yaml:"y"`
	Controller string  `yaml:"controller"`
}

// BarrierEntry places one breakable barrier.
type BarrierEntry struct {
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Radius float64 `yaml:"radius"`
	HP     int32   `yaml:"hp"`
}

// Scenario is the static setup of one match.
type Scenario struct {
	Name         string             `yaml:"name"`
	Arena        ArenaSize          `yaml:"arena"`
	Participants []ParticipantEntry `yaml:"participants"`
	Barriers     []BarrierEntry     `yaml:"barriers"`
}

// LoadScenario loads a match setup from a YAML file and checks it against units.
func LoadScenario(path string, units *UnitTable) (*Scenario, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	var sc Scenario
	if err := yaml.Unmarshal(raw, &sc); err != nil {
		return nil, fmt.Errorf("parse scenario: %w", err)
	}
	if err := sc.Validate(units); err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	return &sc, nil
}

// Validate checks that the scenario can be played.
func (sc *Scenario) Validate(units *UnitTable) error {
	if sc.Arena.Width <= 0 || sc.Arena.Height <= 0 {
		return fmt.Errorf("arena size %vx%v", sc.Arena.Width, sc.Arena.Height)
	}
	teams := make(map[int]struct{})
	names := make(map[string]struct{})
	for i := range sc.Participants {
		p := &sc.Participants[i]
		if p.Name == "" {
			return fmt.Errorf("participant %d: missing name", i)
		}
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("participant %q: duplicate name", p.Name)
		}
		names[p.Name] = struct{}{}
		if units != nil && units.Get(p.UnitID) == nil {
			return fmt.Errorf("participant %q: unknown unit_id %d", p.Name, p.UnitID)
		}
		switch p.Controller {
		case "":
			p.Controller = ControllerBot
		case ControllerBot, ControllerScript, ControllerIdle:
		default:
			return fmt.Errorf("participant %q: unknown controller %q", p.Name, p.Controller)
		}
		teams[p.Team] = struct{}{}
	}
	if len(teams) < 2 {
		return fmt.Errorf("need at least two teams, have %d", len(teams))
	}
	for i, b := range sc.Barriers {
		if b.Radius <= 0 || b.HP <= 0 {
			return fmt.Errorf("barrier %d: radius and hp must be positive", i)
		}
	}
	return nil
}
