// Package maintenance verifies the ledger's audit invariant: for every
// account, replaying the entry log yields exactly the stored score.
package maintenance

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/louisbranch/standing.credit/internal/platform/config"
	"github.com/louisbranch/standing.credit/internal/storage"
)

// Config holds maintenance command configuration.
type Config struct {
	DBPath     string
	Store      string
	Community  string
	JSONOutput bool
	Timeout    time.Duration
}

type envConfig struct {
	DBPath  string        `env:"STANDING_CREDIT_LEDGER_DB_PATH"`
	Timeout time.Duration `env:"STANDING_CREDIT_MAINTENANCE_TIMEOUT" envDefault:"1m"`
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
	fs.StringVar(&cfg.Community, "community", "", "verify a single community (default: all)")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output a JSON report")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Mismatch is one account whose stored score disagrees with its log.
type Mismatch struct {
	Community string `json:"community"`
	Member    string `json:"member"`
	Score     int64  `json:"score"`
	LogSum    int64  `json:"log_sum"`
}

// Report summarizes one verification run.
type Report struct {
	Communities int        `json:"communities"`
	Accounts    int        `json:"accounts"`
	Mismatches  []Mismatch `json:"mismatches,omitempty"`
}

// Run executes the verification and writes a report to out. It returns an
// error when any account fails the invariant.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}

	store, err := openLedgerStore(cfg.Store, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open ledger store: %w", err)
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close ledger store: %v\n", closeErr)
		}
	}()

	report, err := Verify(ctx, store, cfg.Community)
	if err != nil {
		return err
	}

	if cfg.JSONOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return fmt.Errorf("encode report: %w", err)
		}
	} else {
		fmt.Fprintf(out, "checked %d accounts across %d communities\n", report.Accounts, report.Communities)
		for _, m := range report.Mismatches {
			fmt.Fprintf(out, "MISMATCH %s/%s: score %d, log sum %d\n", m.Community, m.Member, m.Score, m.LogSum)
		}
	}

	if len(report.Mismatches) > 0 {
		return fmt.Errorf("audit failed: %d account(s) disagree with the log", len(report.Mismatches))
	}
	return nil
}

// Verify replays the entry log for every account in scope and compares the
// running sum against the stored score.
func Verify(ctx context.Context, store storage.LedgerStore, community string) (Report, error) {
	var report Report

	communities := []string{community}
	if community == "" {
		all, err := store.ListCommunities(ctx)
		if err != nil {
			return Report{}, fmt.Errorf("list communities: %w", err)
		}
		communities = all
	}
	report.Communities = len(communities)

	for _, c := range communities {
		accounts, err := store.ListAccounts(ctx, c)
		if err != nil {
			return Report{}, fmt.Errorf("list accounts for %s: %w", c, err)
		}
		for _, acct := range accounts {
			sum, err := store.SumEntryDeltas(ctx, c, acct.Member)
			if err != nil {
				return Report{}, fmt.Errorf("sum entries for %s/%s: %w", c, acct.Member, err)
			}
			report.Accounts++
			if sum != acct.Score {
				report.Mismatches = append(report.Mismatches, Mismatch{
					Community: c,
					Member:    acct.Member,
					Score:     acct.Score,
					LogSum:    sum,
				})
			}
		}
	}

	return report, nil
}
