// Package ai provides the control devices that drive units nobody is playing:
// a behaviour-tree bot and a Lua-scripted controller.
package ai

import (
	"math"

	bt "github.com/joeycumines/go-behaviortree"
	"github.com/l1jgo/rewind/internal/geom"
	"github.com/l1jgo/rewind/internal/input"
	"github.com/l1jgo/rewind/internal/world"
)

// BotConfig tunes the behaviour tree.
type BotConfig struct {
	PreferredRange float64 // distance the bot tries to hold from its target
	ShieldBelow    float64 // raise a shield under this fraction of max hp
	DashBeyond     float64 // dash towards targets further than this
}

func DefaultBotConfig() BotConfig {
	return BotConfig{PreferredRange: 120, ShieldBelow: 0.5, DashBeyond: 260}
}

// BotDevice reads the arena and answers with a device reading built by a
// behaviour tree. It never writes to the world.
type BotDevice struct {
	w    *world.State
	self *world.Unit
	cfg  BotConfig
	tree bt.Node

	// per-Read scratch
	target *world.Unit
	dist   float64
	out    input.DeviceState
}

func NewBotDevice(w *world.State, self *world.Unit, cfg BotConfig) *BotDevice {
	d := &BotDevice{w: w, self: self, cfg: cfg}
	d.tree = d.build()
	return d
}

// build assembles the tree: movement, then independent fire, shield and
// dash branches that each succeed when they have nothing to do.
func (d *BotDevice) build() bt.Node {
	optional := func(children ...bt.Node) bt.Node {
		return bt.New(bt.Selector, bt.New(bt.Sequence, children...), leaf(func() bool { return true }))
	}
	hasTarget := leaf(func() bool { return d.target != nil })

	move := bt.New(bt.Selector,
		bt.New(bt.Sequence, hasTarget, leaf(d.tooFar), leaf(d.approach)),
		bt.New(bt.Sequence, hasTarget, leaf(d.tooClose), leaf(d.retreat)),
		bt.New(bt.Sequence, hasTarget, leaf(d.strafe)),
		leaf(func() bool { return true }),
	)
	return bt.New(bt.Sequence,
		move,
		optional(hasTarget, leaf(d.aim), leaf(d.inRange), leaf(d.press(input.ButtonFire))),
		optional(leaf(d.hurt), leaf(d.self.ShieldReady), leaf(d.press(input.ButtonShield))),
		optional(hasTarget, leaf(d.farAway), leaf(d.self.DashReady), leaf(d.press(input.ButtonDash))),
	)
}

// leaf adapts a condition or action to a node: true is Success.
func leaf(fn func() bool) bt.Node {
	return bt.New(func([]bt.Node) (bt.Status, error) {
		if fn() {
			return bt.Success, nil
		}
		return bt.Failure, nil
	})
}

// Read implements input.Device.
func (d *BotDevice) Read() input.DeviceState {
	d.out = input.DeviceState{}
	d.pickTarget()
	if _, err := d.tree.Tick(); err != nil {
		return input.DeviceState{}
	}
	return d.out
}

// pickTarget chooses the closest living enemy; ties go to the earlier spawn.
func (d *BotDevice) pickTarget() {
	d.target, d.dist = nil, math.Inf(1)
	if !d.self.Active() {
		return
	}
	for _, u := range d.w.Units() {
		if u.Team() == d.self.Team() {
			continue
		}
		if dist := u.Pos().Dist(d.self.Pos()); dist < d.dist {
			d.target, d.dist = u, dist
		}
	}
}

func (d *BotDevice) toTarget() geom.Vec2 {
	return d.target.Pos().Sub(d.self.Pos()).Normalize()
}

func (d *BotDevice) tooFar() bool   { return d.dist > d.cfg.PreferredRange*1.2 }
func (d *BotDevice) tooClose() bool { return d.dist < d.cfg.PreferredRange*0.8 }
func (d *BotDevice) farAway() bool  { return d.dist > d.cfg.DashBeyond }

func (d *BotDevice) inRange() bool {
	t := d.self.Template()
	return d.dist <= t.ProjectileSpeed*t.ProjectileTTL().Seconds()
}

func (d *BotDevice) hurt() bool {
	full := float64(d.self.Template().HP)
	return full > 0 && float64(d.self.HP()) < full*d.cfg.ShieldBelow
}

func (d *BotDevice) approach() bool {
	d.out.Move = d.toTarget()
	return true
}

func (d *BotDevice) retreat() bool {
	d.out.Move = d.toTarget().Scale(-1)
	return true
}

// strafe circles the target, direction picked by team so opponents do not
// mirror each other.
func (d *BotDevice) strafe() bool {
	v := d.toTarget()
	if d.self.Team()%2 == 0 {
		d.out.Move = geom.V(-v.Y, v.X)
	} else {
		d.out.Move = geom.V(v.Y, -v.X)
	}
	return true
}

func (d *BotDevice) aim() bool {
	d.out.Aim = d.toTarget()
	return !d.out.Aim.IsZero()
}

func (d *BotDevice) press(b input.Buttons) func() bool {
	return func() bool {
		d.out.Held |= b
		return true
	}
}
