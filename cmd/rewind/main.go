package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/l1jgo/rewind/internal/ai"
	"github.com/l1jgo/rewind/internal/config"
	"github.com/l1jgo/rewind/internal/core/event"
	"github.com/l1jgo/rewind/internal/core/history"
	coresys "github.com/l1jgo/rewind/internal/core/system"
	"github.com/l1jgo/rewind/internal/data"
	"github.com/l1jgo/rewind/internal/geom"
	"github.com/l1jgo/rewind/internal/persist"
	"github.com/l1jgo/rewind/internal/scripting"
	"github.com/l1jgo/rewind/internal/turn"
	"github.com/l1jgo/rewind/internal/world"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

// ── Startup display helpers ────────────────────────────────────────

func printBanner(scenario string) {
	fmt.Println()
	fmt.Println("\033[36;1m  ┌───────────────────────────────────────────┐\033[0m")
	fmt.Println("\033[36;1m  │\033[0m              Rewind  v0.1.0               \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  │\033[0m      回合倒帶對戰 · 固定步長模擬          \033[36;1m│\033[0m")
	fmt.Println("\033[36;1m  └───────────────────────────────────────────┘\033[0m")
	fmt.Println()
	fmt.Printf("  \033[1m場景:\033[0m %s\n\n", scenario)
}

// displayWidth counts CJK runes as two columns.
func displayWidth(s string) int {
	n := 0
	for _, r := range s {
		if r > 0x7F {
			n += 2
		} else {
			n++
		}
	}
	return n
}

func printSection(title string) {
	lineLen := max(46-displayWidth(title)-1, 3)
	fmt.Printf("  \033[33m── %s %s\033[0m\n", title, strings.Repeat("─", lineLen))
}

func printStat(label string, value any) {
	valStr := fmt.Sprint(value)
	dotsLen := max(42-displayWidth(label)-len(valStr), 3)
	fmt.Printf("  %s \033[90m%s\033[0m \033[32m%s\033[0m\n", label, strings.Repeat("·", dotsLen), valStr)
}

func printOK(msg string) {
	fmt.Printf("  \033[32m✓\033[0m %s\n", msg)
}

func printReady(msg string) {
	fmt.Printf("  \033[32m▶\033[0m %s\n", msg)
}

// ── Match setup and loop ──────────────────────────────────────────

func run() error {
	// 1. Load config
	cfgPath := "config/rewind.toml"
	if p := os.Getenv("REWIND_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// 2. Init logger
	log, err := newLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer log.Sync()

	// 3. Load data tables
	units, err := data.LoadUnitTable(cfg.Data.Units)
	if err != nil {
		return fmt.Errorf("unit table: %w", err)
	}
	sc, err := data.LoadScenario(cfg.Data.Scenario, units)
	if err != nil {
		return fmt.Errorf("scenario: %w", err)
	}

	printBanner(sc.Name)
	printSection("資料載入")
	printStat("單位模板", units.Count())
	printStat("參戰者", len(sc.Participants))
	printStat("障礙物", len(sc.Barriers))
	fmt.Println()

	// 4. Lua engine
	printSection("腳本引擎")
	eng, err := scripting.NewEngine(cfg.Scripting.Dir, log)
	if err != nil {
		return fmt.Errorf("scripting: %w", err)
	}
	defer eng.Close()
	printOK(fmt.Sprintf("Lua 腳本載入完成 (%s)", cfg.Scripting.Dir))
	if !eng.Has("calc_damage") {
		log.Warn("calc_damage 未定義，使用基礎傷害")
	}
	fmt.Println()

	// 5. Build the arena
	sched := coresys.NewScheduler(cfg.Sim.FixedStep, cfg.Sim.TimeScale, log)
	hist := history.New(sched, log)
	bus := event.NewBus()
	arena := geom.Rect{W: sc.Arena.Width, H: sc.Arena.Height}
	state := world.NewState(sched, hist, bus, arena, eng, log)

	spawned, err := state.Populate(sc, units)
	if err != nil {
		return fmt.Errorf("populate: %w", err)
	}
	parts := make([]*turn.Participant, len(spawned))
	for i, u := range spawned {
		entry := sc.Participants[i]
		parts[i] = &turn.Participant{
			Name:       entry.Name,
			Team:       entry.Team,
			Controller: entry.Controller,
			Unit:       u,
			Device:     ai.NewDevice(entry.Controller, eng, state, u),
		}
	}

	ctrl := turn.New(state, parts, turn.Config{
		TurnSteps:       cfg.Sim.TurnSteps,
		MaxRounds:       cfg.Sim.MaxRounds,
		RetainSnapshots: cfg.History.RetainSnapshots,
		Audit:           cfg.History.Audit,
	}, log)

	// 6. Run
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	printSection("對戰開始")
	printReady(fmt.Sprintf("對戰編號 %s", ctrl.MatchID()))
	printReady(fmt.Sprintf("固定步長 %s · 每回合 %d 步 (%s)", cfg.Sim.FixedStep, cfg.Sim.TurnSteps, cfg.Sim.TurnDuration()))
	if cfg.Sim.Realtime {
		printReady("即時模式")
	} else {
		printReady("無頭模式")
	}
	fmt.Println()

	start := time.Now()
	var res turn.Result
	if cfg.Sim.Realtime {
		res, err = runRealtime(ctx, ctrl, cfg.Sim.FixedStep)
	} else {
		res, err = ctrl.Run(ctx)
	}
	if errors.Is(err, context.Canceled) {
		log.Info("收到關閉信號，對戰中止", zap.Int("round", ctrl.Round()))
		return nil
	}
	if err != nil {
		return fmt.Errorf("match: %w", err)
	}

	digest := state.Digest()
	printReport(res, digest, time.Since(start))

	// 7. Optionally persist the result
	if !cfg.Database.Enabled {
		return nil
	}
	saveCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := saveResult(saveCtx, cfg.Database, log, sc, parts, res, digest); err != nil {
		return fmt.Errorf("save result: %w", err)
	}
	printOK("對戰結果已寫入資料庫")
	return nil
}

// runRealtime paces one scheduler step per tick.
func runRealtime(ctx context.Context, ctrl *turn.Controller, step time.Duration) (turn.Result, error) {
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for !ctrl.Done() {
		select {
		case <-ctx.Done():
			return ctrl.Result(), ctx.Err()
		case <-ticker.C:
			if err := ctrl.Step(); err != nil && !errors.Is(err, turn.ErrMatchOver) {
				return ctrl.Result(), err
			}
		}
	}
	return ctrl.Result(), nil
}

func printReport(res turn.Result, digest world.Digest, wall time.Duration) {
	p := message.NewPrinter(language.English)

	printSection("對戰結果")
	if res.Winner == turn.NoWinner {
		printStat("勝方", "平手")
	} else {
		printStat("勝方", fmt.Sprintf("隊伍 %d", res.Winner))
	}
	printStat("回合數", res.Rounds)
	printStat("模擬步數", p.Sprintf("%d", res.Frames))
	printStat("遊戲時間", res.Elapsed)
	printStat("實際耗時", wall.Round(time.Millisecond))
	printStat("狀態摘要", digest.Short())
	fmt.Println()

	printSection("戰績")
	for _, s := range res.Standings {
		status := "存活"
		if !s.Alive {
			status = "陣亡"
		}
		printStat(fmt.Sprintf("%s (隊伍 %d)", s.Name, s.Team),
			p.Sprintf("%s HP %d · 擊殺 %d · 傷害 %d", status, s.HP, s.Kills, s.Damage))
	}
	fmt.Println()
}

func saveResult(
	ctx context.Context,
	cfg config.DatabaseConfig,
	log *zap.Logger,
	sc *data.Scenario,
	parts []*turn.Participant,
	res turn.Result,
	digest world.Digest,
) error {
	db, err := persist.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	rec := persist.MatchRecord{
		ID:       res.MatchID,
		Scenario: sc.Name,
		Winner:   res.Winner,
		Rounds:   res.Rounds,
		Frames:   res.Frames,
		Elapsed:  res.Elapsed,
		Digest:   fmt.Sprintf("%x", digest[:]),
	}
	for i, s := range res.Standings {
		rec.Participants = append(rec.Participants, persist.ParticipantRecord{
			Name:       s.Name,
			Team:       s.Team,
			Controller: parts[i].Controller,
			Alive:      s.Alive,
			HP:         s.HP,
			Kills:      s.Kills,
			Damage:     s.Damage,
		})
	}
	return persist.NewMatchRepo(db).Save(ctx, rec)
}

func newLogger(cfg config.LoggingConfig) (*zap.Logger, error) {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = zapcore.InfoLevel
	}

	var zapCfg zap.Config
	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
		zapCfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		zapCfg.EncoderConfig.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
		zapCfg.EncoderConfig.ConsoleSeparator = "  "
		zapCfg.DisableCaller = true
		zapCfg.DisableStacktrace = true
	}
	zapCfg.Level = zap.NewAtomicLevelAt(level)

	return zapCfg.Build()
}
