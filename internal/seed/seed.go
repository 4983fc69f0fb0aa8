// Package seed populates a ledger database with a demo community: a cast of
// members with spread-out scores and a short burst of action history, so
// leaderboards, aggregates, and the audit log all have something to show.
package seed

import (
	"context"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/louisbranch/standing.credit/internal/credit"
	"github.com/louisbranch/standing.credit/internal/engine"
	"github.com/louisbranch/standing.credit/internal/ledger"
	"github.com/louisbranch/standing.credit/internal/lockout"
	"github.com/louisbranch/standing.credit/internal/outcome"
	"github.com/louisbranch/standing.credit/internal/platform/config"
	"github.com/louisbranch/standing.credit/internal/platform/errors"
	"github.com/louisbranch/standing.credit/internal/random"
	"github.com/louisbranch/standing.credit/internal/storage"
)

// Config holds seed command configuration.
type Config struct {
	DBPath    string
	Store     string
	Community string
	Seed      int64
	Disaster  bool
	Timeout   time.Duration
}

type envConfig struct {
	DBPath  string        `env:"STANDING_CREDIT_LEDGER_DB_PATH"`
	Timeout time.Duration `env:"STANDING_CREDIT_SEED_TIMEOUT" envDefault:"1m"`
}

// ParseConfig parses environment defaults and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var envCfg envConfig
	if err := config.ParseEnv(&envCfg); err != nil {
		return Config{}, err
	}

	cfg := Config{
		DBPath:  envCfg.DBPath,
		Timeout: envCfg.Timeout,
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join("data", "ledger.db")
	}

	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "path to ledger database (default: STANDING_CREDIT_LEDGER_DB_PATH or data/ledger.db)")
	fs.StringVar(&cfg.Store, "store", "sqlite", "ledger store backend (sqlite|bbolt)")
	fs.StringVar(&cfg.Community, "community", "demo", "community id to seed")
	fs.Int64Var(&cfg.Seed, "seed", 1, "random seed for the action burst")
	fs.BoolVar(&cfg.Disaster, "disaster", true, "finish the scenario with a tremor")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// grant is one member's starting balance.
type grant struct {
	member string
	score  int64
}

// cast is the demo roster. Scores are spread across positive, zero, and
// negative so both leaderboard directions are populated.
var cast = []grant{
	{"magnate", 320},
	{"broker", 180},
	{"clerk", 75},
	{"drifter", 20},
	{"newcomer", 0},
	{"gambler", -45},
	{"outcast", -130},
}

// attempt is one scripted player action in the burst.
type attempt struct {
	kind      credit.ActionKind
	initiator string
	target    string
}

// Each initiator appears at most once per kind, so cooldowns never reject
// the burst.
var burst = []attempt{
	{credit.ActionSteal, "drifter", "magnate"},
	{credit.ActionSteal, "gambler", "broker"},
	{credit.ActionSteal, "clerk", "magnate"},
	{credit.ActionSabotage, "outcast", "broker"},
	{credit.ActionSabotage, "broker", "magnate"},
	{credit.ActionSabotage, "magnate", "outcast"},
}

// Run seeds the database and writes a summary to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}

	store, err := openLedgerStore(cfg.Store, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer store.Close()

	tables, err := outcome.Default()
	if err != nil {
		return err
	}

	var engineCfg engine.Config
	if err := config.ParseEnv(&engineCfg); err != nil {
		return err
	}

	svc := ledger.NewService(store)
	eng := engine.New(svc, lockout.NewManager(), tables, random.NewSource(cfg.Seed), engineCfg)

	for _, g := range cast {
		if g.score == 0 {
			// A zero grant would be a no-op audit entry; the account appears
			// once someone acts on it.
			continue
		}
		if _, err := svc.Adjust(ctx, cfg.Community, "", g.member, g.score, "admin:grant"); err != nil {
			return fmt.Errorf("grant %s: %w", g.member, err)
		}
	}

	actions := 0
	for _, a := range burst {
		result, err := eng.AttemptAction(ctx, a.kind, cfg.Community, a.initiator, a.target)
		if err != nil {
			// Broke targets are expected mid-scenario; everything else is not.
			if errors.Is(err, errors.CodeStealTargetBroke) {
				continue
			}
			return fmt.Errorf("%s by %s: %w", a.kind, a.initiator, err)
		}
		actions++
		fmt.Fprintf(out, "%s: %s -> %s rolled %d (%s)\n", a.kind, a.initiator, a.target, result.Roll, result.Label)
	}

	if cfg.Disaster {
		result, err := eng.TriggerDisaster(ctx, "tremor", cfg.Community, "")
		if err != nil {
			return fmt.Errorf("tremor: %w", err)
		}
		fmt.Fprintf(out, "tremor struck %d member(s)\n", len(result.Strikes))
	}

	top, err := svc.Leaderboard(ctx, cfg.Community, storage.DirectionTop, 5)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "seeded %q with %d grants and %d actions; top of the board:\n", cfg.Community, len(cast)-1, actions)
	for i, acct := range top {
		fmt.Fprintf(out, "%d. %s (%d)\n", i+1, acct.Member, acct.Score)
	}
	return nil
}
