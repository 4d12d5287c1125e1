package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/good-yellow-bee/alertflow/internal/alerting"
	"github.com/good-yellow-bee/alertflow/internal/claim"
	"github.com/good-yellow-bee/alertflow/internal/metrics"
	"github.com/good-yellow-bee/alertflow/internal/notifier"
	"github.com/good-yellow-bee/alertflow/internal/storage"
	"github.com/good-yellow-bee/alertflow/pkg/build"
)

var (
	configFile string
	rulesFile  string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "alertflow",
	Short: "alertflow - alert management backend",
	Long: `alertflow ingests fault reports, collapses duplicates, tracks severity
and status transitions, and routes qualifying alerts to notification
channels according to rules, on-call schedules and blackout windows.`,
	RunE: runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(build.String())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "config file path (optional)")
	rootCmd.PersistentFlags().StringVarP(&rulesFile, "rules", "r", "", "rule file path (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	var cfg *Config

	if configFile != "" {
		var err error
		cfg, err = LoadConfig(configFile)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	} else {
		cfg = DefaultConfig()
	}

	if rulesFile != "" {
		cfg.Rules.File = rulesFile
	}
	cfg.Verbose = verbose

	// Auto-create data directory
	dbDir := filepath.Dir(cfg.Database.Path)
	if err := os.MkdirAll(dbDir, 0750); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	store := storage.NewSQLiteStore(cfg.Database.Path)
	if err := store.Open(); err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer store.Close()

	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrate database: %w", err)
	}
	log.Printf("database initialized at %s", cfg.Database.Path)

	dispatcher := notifier.NewDispatcher(notifier.RateLimitConfig{
		PerSecond: cfg.Notify.RatePerMinute / 60,
		Burst:     cfg.Notify.Burst,
		Enabled:   true,
	})
	dispatcher.Register(notifier.NewSMTPSender(notifier.SMTPConfig{
		Username: cfg.Notify.SMTPUsername,
		Password: cfg.Notify.SMTPPassword,
	}))
	dispatcher.Register(notifier.NewWebhookSender(duration(cfg.Notify.WebhookTimeout)))
	defer dispatcher.Close()

	var guard claim.Guard
	if cfg.Redis.Address != "" {
		redisGuard, err := claim.NewRedisGuard(cfg.Redis.Address, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			return fmt.Errorf("connect claim guard: %w", err)
		}
		guard = redisGuard
		log.Printf("using redis claim guard at %s", cfg.Redis.Address)
	} else {
		guard = claim.NewMemoryGuard()
	}
	defer guard.Close()

	opts := alerting.DefaultOptions()
	opts.HistoryLimit = cfg.Engine.HistoryLimit
	opts.IngestRetries = cfg.Engine.IngestRetries
	opts.SendTimeout = duration(cfg.Engine.SendTimeout)
	opts.SendRetries = cfg.Engine.SendRetries
	opts.FlappingWindow = duration(cfg.Engine.FlappingWindow)
	opts.FlappingCount = cfg.Engine.FlappingCount

	engine := alerting.NewEngine(store, dispatcher, guard, opts)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Rules.File != "" {
		file, err := alerting.LoadRuleFile(cfg.Rules.File)
		if err != nil {
			return fmt.Errorf("load rules: %w", err)
		}
		if err := alerting.SyncRuleFile(ctx, store, file, time.Now()); err != nil {
			return fmt.Errorf("sync rules: %w", err)
		}
		log.Printf("loaded %d notification rules, %d escalation rules from %s",
			len(file.NotificationRules), len(file.EscalationRules), cfg.Rules.File)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		log.Printf("received signal %v, shutting down...", sig)
		cancel()
	}()

	metrics.SetBuildInfo(build.Version, build.Commit, build.Time)
	log.Printf("starting alertflow %s", build.Version)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sweepLoop(gctx, "delayed", duration(cfg.Sweep.DelayedInterval), func(now time.Time) error {
			_, err := engine.SweepDelayed(gctx, now)
			return err
		})
	})
	g.Go(func() error {
		return sweepLoop(gctx, "escalation", duration(cfg.Sweep.EscalationInterval), func(now time.Time) error {
			_, err := engine.SweepEscalations(gctx, now)
			return err
		})
	})
	g.Go(func() error {
		return sweepLoop(gctx, "reactivate", duration(cfg.Sweep.ReactivateInterval), func(now time.Time) error {
			n, err := store.NotificationRules().Reactivate(gctx, now)
			if err != nil {
				return err
			}
			if n > 0 {
				metrics.RulesReactivated.Add(float64(n))
				engine.InvalidateRules()
				log.Printf("reactivated %d notification rules", n)
			}
			return nil
		})
	})

	if cfg.Rules.File != "" && cfg.Rules.Watch {
		watcher := alerting.NewWatcher(cfg.Rules.File, store, engine)
		g.Go(func() error {
			return watcher.Run(gctx)
		})
	}

	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Address)
		})
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run: %w", err)
	}

	log.Printf("alertflow stopped")
	return nil
}

// sweepLoop runs fn on the interval until the context is cancelled. Sweep
// errors are logged, not fatal.
func sweepLoop(ctx context.Context, name string, interval time.Duration, fn func(now time.Time) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			start := time.Now()
			if err := fn(now); err != nil {
				log.Printf("warning: %s sweep failed: %v", name, err)
			}
			metrics.SweepDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
		}
	}
}
