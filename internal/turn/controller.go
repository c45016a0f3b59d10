// Package turn runs a match as rounds of rewound turns.
//
// Every round starts from a snapshot. Each living participant gets one pass:
// the world is rewound to the round snapshot, participants that already had
// their pass replay their recorded input, the active participant plays live
// and is recorded, and the rest stand idle. The last pass is the canonical
// outcome of the round; it is committed with a new snapshot.
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/l1jgo/rewind/internal/core/event"
	"github.com/l1jgo/rewind/internal/core/history"
	coresys "github.com/l1jgo/rewind/internal/core/system"
	"github.com/l1jgo/rewind/internal/input"
	"github.com/l1jgo/rewind/internal/world"
	"go.uber.org/zap"
)

var (
	// ErrMatchOver is returned by Step once a winner (or a draw) is decided.
	ErrMatchOver = errors.New("turn: match is over")
	// ErrDesync is returned by Audit when a replayed round hashes differently
	// from the committed one.
	ErrDesync = errors.New("turn: replay desync")
)

// NoWinner is Result.Winner for a draw.
const NoWinner = -1

type Config struct {
	TurnSteps       int  // scheduler steps per pass
	MaxRounds       int  // 0 = until one team is left
	RetainSnapshots int  // snapshots kept; older rounds are compacted away
	Audit           bool // replay retained rounds after every commit
}

// Participant is one controlled unit.
type Participant struct {
	Name       string
	Team       int
	Controller string
	Unit       *world.Unit
	Device     input.Device

	Kills  int
	Damage int
}

// round is what a committed round leaves behind for audits.
type round struct {
	number int
	tapes  []*input.Tape // per participant; nil if it had no pass
	steps  int
	frame  uint64
	digest world.Digest
	tally  tally
}

type tally struct {
	kills  []int
	damage []int
}

func newTally(n int) tally {
	return tally{kills: make([]int, n), damage: make([]int, n)}
}

// Controller drives a match one scheduler step at a time.
// Accessed only from the game loop goroutine; no locks needed.
type Controller struct {
	id    uuid.UUID
	w     *world.State
	hist  *history.History
	sched *coresys.Scheduler
	cfg   Config
	log   *zap.Logger

	parts  []*Participant
	byUnit map[uint64]int

	started   bool
	committed int     // rounds committed so far
	baseRound int     // round number of the oldest retained snapshot
	rounds    []round // retained rounds, oldest first

	// current round
	inRound bool
	alive   []bool
	tapes   []*input.Tape
	pass    int
	inPass  bool
	steps   int
	rec     *input.Recording
	tally   tally

	auditing bool
	done     bool
	result   Result
}

func New(w *world.State, parts []*Participant, cfg Config, log *zap.Logger) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RetainSnapshots < 1 {
		cfg.RetainSnapshots = 1
	}
	c := &Controller{
		id:     uuid.New(),
		w:      w,
		hist:   w.History(),
		sched:  w.Scheduler(),
		cfg:    cfg,
		log:    log,
		parts:  parts,
		byUnit: make(map[uint64]int, len(parts)),
		pass:   -1,
	}
	for i, p := range parts {
		c.byUnit[uint64(p.Unit.ID())] = i
	}
	c.log = log.With(zap.String("match", c.id.String()))

	event.Subscribe(w.Bus(), c.onHit)
	event.Subscribe(w.Bus(), c.onKill)
	return c
}

func (c *Controller) MatchID() uuid.UUID           { return c.id }
func (c *Controller) Participants() []*Participant { return c.parts }
func (c *Controller) Done() bool                   { return c.done }
func (c *Controller) Result() Result               { return c.result }

// Round returns the number of the round being played (0-based).
func (c *Controller) Round() int { return c.committed }

// RetainedRounds returns how many committed rounds an audit can replay.
func (c *Controller) RetainedRounds() int { return len(c.rounds) }

// Active returns the participant whose pass is running, or nil between passes.
func (c *Controller) Active() *Participant {
	if !c.inPass {
		return nil
	}
	return c.parts[c.pass]
}

// Start takes the opening snapshot. Step calls it on first use.
func (c *Controller) Start() error {
	if c.started {
		return nil
	}
	if err := c.hist.TakeSnapshot(); err != nil {
		return fmt.Errorf("opening snapshot: %w", err)
	}
	c.started = true
	c.log.Info("match started",
		zap.Int("participants", len(c.parts)),
		zap.Int("turn_steps", c.cfg.TurnSteps),
		zap.Int("retain_snapshots", c.cfg.RetainSnapshots),
	)
	return nil
}

// Step advances the match by one scheduler step, opening and closing passes
// and committing rounds as needed.
func (c *Controller) Step() error {
	if c.done {
		return ErrMatchOver
	}
	if err := c.Start(); err != nil {
		return err
	}
	if !c.inPass {
		if err := c.beginPass(); err != nil {
			return err
		}
		if !c.inPass {
			// Nobody could act; the round was committed as is.
			return nil
		}
	}
	c.sched.Step()
	c.steps++
	if c.steps >= c.cfg.TurnSteps {
		return c.endPass()
	}
	return nil
}

// PlayRound steps until the current round is committed.
func (c *Controller) PlayRound() error {
	want := c.committed + 1
	for c.committed < want && !c.done {
		if err := c.Step(); err != nil {
			return err
		}
	}
	return nil
}

// Run plays headless until the match is over or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) (Result, error) {
	for !c.done {
		if err := ctx.Err(); err != nil {
			return c.result, err
		}
		if err := c.Step(); err != nil {
			return c.result, err
		}
	}
	return c.result, nil
}

func (c *Controller) beginRound() {
	c.alive = make([]bool, len(c.parts))
	for i, p := range c.parts {
		c.alive[i] = p.Unit.Active()
	}
	c.tapes = make([]*input.Tape, len(c.parts))
	c.tally = newTally(len(c.parts))
	c.steps = 0
	c.pass = -1
	c.inRound = true
}

func (c *Controller) nextActive(from int) int {
	for i := from; i < len(c.parts); i++ {
		if c.alive[i] {
			return i
		}
	}
	return -1
}

func (c *Controller) beginPass() error {
	if !c.inRound {
		c.beginRound()
	}
	i := c.nextActive(c.pass + 1)
	if i < 0 {
		return c.commit()
	}
	if err := c.hist.Rewind(); err != nil {
		return fmt.Errorf("round %d pass %d: %w", c.committed, i, err)
	}
	c.w.Bus().Reset()
	c.tally = newTally(len(c.parts))
	c.pass = i

	for j, p := range c.parts {
		switch {
		case j < i && c.tapes[j] != nil:
			p.Unit.SetSource(input.NewReplay(c.tapes[j]))
		case j == i:
			c.rec = input.NewRecording(input.NewLive(p.Device))
			p.Unit.SetSource(c.rec)
		default:
			p.Unit.SetSource(input.Idle{})
		}
	}
	c.inPass = true
	c.steps = 0
	c.log.Debug("turn started",
		zap.Int("round", c.committed),
		zap.String("participant", c.parts[i].Name),
		zap.Uint64("frame", c.sched.Frame()),
	)
	return nil
}

func (c *Controller) endPass() error {
	c.w.Bus().Flush()
	c.tapes[c.pass] = c.rec.Stop()
	c.rec = nil
	c.inPass = false
	if c.nextActive(c.pass+1) >= 0 {
		return nil
	}
	return c.commit()
}

// commit makes the last pass the round's outcome.
func (c *Controller) commit() error {
	r := round{
		number: c.committed,
		tapes:  c.tapes,
		steps:  c.steps,
		frame:  c.sched.Frame(),
		digest: c.w.Digest(),
		tally:  c.tally,
	}
	for i, p := range c.parts {
		p.Kills += r.tally.kills[i]
		p.Damage += r.tally.damage[i]
	}
	c.rounds = append(c.rounds, r)
	c.inRound = false
	c.pass = -1

	if err := c.hist.TakeSnapshot(); err != nil {
		return fmt.Errorf("commit round %d: %w", r.number, err)
	}
	c.compact()
	c.committed++

	teams := c.w.TeamsAlive()
	c.log.Info("round committed",
		zap.Int("round", r.number),
		zap.Uint64("frame", r.frame),
		zap.String("digest", r.digest.Short()),
		zap.Ints("teams_alive", teams),
		zap.Int("entities", c.hist.Len()),
		zap.Int("snapshots", c.hist.SnapshotCount()),
	)

	if c.cfg.Audit {
		if err := c.Audit(); err != nil {
			return err
		}
	}

	if len(teams) <= 1 || (c.cfg.MaxRounds > 0 && c.committed >= c.cfg.MaxRounds) {
		c.finish(teams)
	}
	return nil
}

// compact drops the oldest snapshots beyond the retain window along with the
// tapes only they could replay.
func (c *Controller) compact() {
	n := c.hist.SnapshotCount() - c.cfg.RetainSnapshots
	if n <= 0 {
		return
	}
	c.hist.CleanUp(0, n)
	c.baseRound += n
	if n > len(c.rounds) {
		n = len(c.rounds)
	}
	clear(c.rounds[:n])
	c.rounds = c.rounds[n:]
}

// Audit rewinds to the oldest retained snapshot, replays every retained round
// from its tapes and checks each against the committed digest. It always ends
// back at the newest snapshot with the same objects it started with.
func (c *Controller) Audit() error {
	if len(c.rounds) == 0 || c.inPass {
		return nil
	}
	c.auditing = true
	defer func() { c.auditing = false }()
	srcs := make([]input.Source, len(c.parts))
	for i, p := range c.parts {
		srcs[i] = p.Unit.Source()
	}

	err := c.hist.Excursion(func() error {
		if err := c.hist.RewindToStart(); err != nil {
			return err
		}
		for _, r := range c.rounds {
			for j, p := range c.parts {
				if r.tapes[j] != nil {
					p.Unit.SetSource(input.NewReplay(r.tapes[j]))
				} else {
					p.Unit.SetSource(input.Idle{})
				}
			}
			c.w.Bus().Reset()
			for range r.steps {
				c.sched.Step()
			}
			c.w.Bus().Flush()

			if got := c.w.Digest(); got != r.digest {
				c.log.Error("audit failed", zap.Int("round", r.number), zap.Uint64("frame", c.sched.Frame()))
				return fmt.Errorf("%w: round %d: got %s, committed %s",
					ErrDesync, r.number, got.Short(), r.digest.Short())
			}
		}
		return nil
	})
	c.w.Bus().Reset()
	for i, p := range c.parts {
		p.Unit.SetSource(srcs[i])
	}
	if errors.Is(err, ErrDesync) {
		return err
	}
	if err != nil {
		return fmt.Errorf("audit: %w", err)
	}
	c.log.Debug("audit passed", zap.Int("rounds", len(c.rounds)))
	return nil
}

// Reset throws away every retained round and resumes play from the oldest
// retained snapshot, which becomes the newest.
func (c *Controller) Reset() error {
	if !c.started || c.inPass {
		return nil
	}
	if err := c.hist.RewindToStart(); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	c.hist.CleanUpSnapshots(1, c.hist.SnapshotCount())
	for _, r := range c.rounds {
		for i, p := range c.parts {
			p.Kills -= r.tally.kills[i]
			p.Damage -= r.tally.damage[i]
		}
	}
	c.rounds = nil
	c.committed = c.baseRound
	c.inRound = false
	c.pass = -1
	c.done = false
	c.result = Result{}
	c.log.Info("match reset", zap.Int("round", c.committed), zap.Uint64("frame", c.sched.Frame()))
	return nil
}

func (c *Controller) finish(teams []int) {
	c.done = true
	winner := NoWinner
	if len(teams) == 1 {
		winner = teams[0]
	}
	c.result = Result{
		MatchID: c.id,
		Winner:  winner,
		Rounds:  c.committed,
		Frames:  c.sched.Frame(),
		Elapsed: c.sched.Elapsed(),
	}
	for _, p := range c.parts {
		c.result.Standings = append(c.result.Standings, Standing{
			Name:   p.Name,
			Team:   p.Team,
			Alive:  p.Unit.Active(),
			HP:     p.Unit.HP(),
			Kills:  p.Kills,
			Damage: p.Damage,
		})
	}
	c.log.Info("match over",
		zap.Int("winner", winner),
		zap.Int("rounds", c.committed),
		zap.Uint64("frames", c.result.Frames),
	)
}

// ── Event tally ───────────────────────────────────────────────────

func (c *Controller) onHit(e event.ProjectileHit) {
	if c.auditing {
		return
	}
	if i, ok := c.byUnit[uint64(e.Owner)]; ok {
		c.tally.damage[i] += int(e.Damage)
	}
}

func (c *Controller) onKill(e event.UnitKilled) {
	if c.auditing {
		return
	}
	if i, ok := c.byUnit[uint64(e.Killer)]; ok {
		c.tally.kills[i]++
	}
	c.log.Debug("unit killed",
		zap.Uint64("unit", uint64(e.Unit)),
		zap.Uint64("killer", uint64(e.Killer)),
		zap.Int("team", e.Team),
	)
}

// Result summarises a finished match.
type Result struct {
	MatchID   uuid.UUID
	Winner    int // NoWinner on a draw
	Rounds    int
	Frames    uint64
	Elapsed   time.Duration
	Standings []Standing
}

type Standing struct {
	Name   string
	Team   int
	Alive  bool
	HP     int32
	Kills  int
	Damage int
}
