package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"fightsync/reconciler/internal/audit"
	"fightsync/reconciler/internal/config"
	"fightsync/reconciler/internal/ledger"
	"fightsync/reconciler/internal/reconcile"
	"fightsync/reconciler/internal/repository"
	"fightsync/reconciler/internal/scheduler"
	"fightsync/reconciler/internal/source"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	setupLogger()

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	cfg := config.MustLoad()
	log.Info().
		Str("env", cfg.AppEnv).
		Str("log_level", cfg.LogLevel).
		Msg("Configuration loaded")

	// Cancel on SIGINT/SIGTERM; every subcommand honors it.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, gracefully shutting down...")
		cancel()
	}()

	var err error
	switch os.Args[1] {
	case "run":
		err = cmdRun(ctx, cfg)
	case "status":
		err = cmdStatus(ctx, cfg)
	case "next":
		err = cmdNext(cfg)
	case "worker":
		err = cmdWorker(ctx, cfg)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		log.Error().Err(err).Str("command", os.Args[1]).Msg("Command failed")
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `Usage: reconciler <command>

Commands:
  run      execute one reconciliation pass and print its summary
  status   print catalog health, the latest run and strike ledger contents
  next     print the next scheduled run time
  worker   run reconciliation passes on the configured cron schedule`)
}

// cmdRun executes a single reconciliation pass.
func cmdRun(ctx context.Context, cfg *config.Config) error {
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := newLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	engine := newEngine(cfg, db, store)
	summary, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

// cmdStatus reports read-only state: database health, the latest run and
// the strike ledger. Nothing is mutated.
func cmdStatus(ctx context.Context, cfg *config.Config) error {
	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Health(ctx); err != nil {
		return err
	}
	fmt.Println("database: healthy")

	eventCount, err := db.Events.Count(ctx)
	if err != nil {
		return err
	}
	fighterCount, err := db.Fighters.Count(ctx)
	if err != nil {
		return err
	}
	fightCount, err := db.Fights.Count(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("catalog: %d events, %d fights, %d fighters\n", eventCount, fightCount, fighterCount)

	run, err := db.Runs.Latest(ctx)
	if err != nil {
		return err
	}
	if run == nil {
		fmt.Println("last run: none")
	} else {
		fmt.Printf("last run: %s at %s status=%s events=%d/%d/%d fights=%d/%d/%d\n",
			run.ID, run.StartedAt.Format(time.RFC3339), run.Status,
			run.EventsAdded, run.EventsUpdated, run.EventsCancelled,
			run.FightsAdded, run.FightsUpdated, run.FightsRemoved,
		)
	}

	store, closeStore, err := newLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	state, err := store.Load(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("strike ledger: %d event entries, %d fight entries\n", len(state.Events), len(state.Fights))
	for id, entry := range state.Events {
		fmt.Printf("  event %s: %d miss(es), last seen %s\n", id, entry.Count, entry.LastSeen.Format(time.RFC3339))
	}
	for key, entry := range state.Fights {
		fmt.Printf("  fight %s: %d miss(es), last seen %s\n", key, entry.Count, entry.LastSeen.Format(time.RFC3339))
	}

	return nil
}

// cmdNext prints the next scheduled run time without starting anything.
func cmdNext(cfg *config.Config) error {
	next, err := scheduler.NextRun(cfg.ReconcileCron, time.Now())
	if err != nil {
		return err
	}
	fmt.Printf("next run: %s (schedule %q)\n", next.Format(time.RFC3339), cfg.ReconcileCron)
	return nil
}

// cmdWorker runs the cron-driven daemon with the metrics endpoint.
func cmdWorker(ctx context.Context, cfg *config.Config) error {
	log.Info().Msg("Starting fight catalog reconciliation worker")

	db, err := connectDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	store, closeStore, err := newLedgerStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	if cfg.EnableMetrics {
		go startMetricsServer(strconv.Itoa(cfg.MetricsPort))
	}

	engine := newEngine(cfg, db, store)
	sched := scheduler.New(engine, cfg.ReconcileCron)
	if err := sched.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	sched.Stop()
	log.Info().Msg("Worker shutdown complete")
	return nil
}

func connectDatabase(ctx context.Context, cfg *config.Config) (*repository.Database, error) {
	db, err := repository.NewDatabase(ctx, repository.Config{
		Host:     cfg.DatabaseHost,
		Port:     strconv.Itoa(cfg.DatabasePort),
		User:     cfg.DatabaseUser,
		Password: cfg.DatabasePassword,
		Database: cfg.DatabaseName,
		SSLMode:  cfg.DatabaseSSLMode,
	})
	if err != nil {
		return nil, err
	}
	db.FighterBatchSize = cfg.FighterBatchSize
	db.FighterBatchPause = cfg.FighterBatchPause
	return db, nil
}

// newLedgerStore builds the configured ledger backend. The returned close
// function is a no-op for the file backend.
func newLedgerStore(ctx context.Context, cfg *config.Config) (ledger.Store, func(), error) {
	if cfg.LedgerBackend == "redis" {
		store, err := ledger.NewRedisStore(ctx, ledger.RedisConfig{
			Addr:     cfg.RedisAddr(),
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("addr", cfg.RedisAddr()).Msg("Strike ledger backed by Redis")
		return store, func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("Failed to close Redis ledger store")
			}
		}, nil
	}

	log.Info().Str("path", cfg.LedgerFilePath).Msg("Strike ledger backed by file")
	return ledger.NewFileStore(cfg.LedgerFilePath), func() {}, nil
}

func newEngine(cfg *config.Config, db *repository.Database, store ledger.Store) *reconcile.Engine {
	var adapters []source.Adapter
	if cfg.SourceUFCStatsEnabled {
		adapters = append(adapters, source.NewUFCStatsAdapter(cfg.SourceUFCStatsURL, cfg.SourceTimeout))
	}

	return reconcile.New(adapters, db, store, audit.NewLogSink(), reconcile.Config{
		EventCancelThreshold: cfg.EventCancelThreshold,
		FightCancelThreshold: cfg.FightCancelThreshold,
		FetchLimit:           cfg.SourceFetchLimit,
	})
}

func printSummary(summary *reconcile.Summary) {
	fmt.Printf("run %s finished: %s in %s\n", summary.RunID, summary.Status, summary.Elapsed.Round(time.Millisecond))
	fmt.Printf("  events: %d found, %d added, %d updated, %d cancelled\n",
		summary.EventsFound, summary.EventsAdded, summary.EventsUpdated, summary.EventsCancelled)
	fmt.Printf("  fights: %d added, %d updated, %d removed\n",
		summary.FightsAdded, summary.FightsUpdated, summary.FightsRemoved)
	fmt.Printf("  fighters: %d added\n", summary.FightersAdded)
	for _, r := range summary.Failed() {
		fmt.Printf("  failed: %s (%s): %v\n", r.EventID, r.Name, r.Err)
	}
}

// setupLogger configures the zerolog logger
func setupLogger() {
	// Pretty console logging in development
	if os.Getenv("APP_ENV") == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		})
	}

	// Set log level
	level := zerolog.InfoLevel
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		parsedLevel, err := zerolog.ParseLevel(lvl)
		if err == nil {
			level = parsedLevel
		}
	}
	zerolog.SetGlobalLevel(level)
}

// startMetricsServer starts the Prometheus metrics HTTP server
func startMetricsServer(port string) {
	http.Handle("/metrics", promhttp.Handler())

	// Health check endpoint
	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	addr := fmt.Sprintf(":%s", port)
	log.Info().Str("port", port).Msg("Starting metrics server")

	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Error().Err(err).Msg("Metrics server failed")
	}
}
