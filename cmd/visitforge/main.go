package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/visitforge/visitforge/internal/catalog"
	"github.com/visitforge/visitforge/internal/config"
	"github.com/visitforge/visitforge/internal/dashboard"
	"github.com/visitforge/visitforge/internal/engine"
	"github.com/visitforge/visitforge/internal/metrics"
	"github.com/visitforge/visitforge/internal/output"
	"github.com/visitforge/visitforge/internal/tracing"
	"github.com/visitforge/visitforge/internal/tracker"
	"github.com/visitforge/visitforge/internal/visit"
)

const progressInterval = time.Second

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	loader := config.NewLoader()
	cfg, err := loader.Load(args)
	if err != nil {
		if errors.Is(err, config.ErrHelpRequested) {
			return nil
		}
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	cat, err := loadCatalog(cfg)
	if err != nil {
		return err
	}

	composer := visit.NewComposer(cfg, cat, seededRand(cfg.Seed, 0))

	router, err := tracker.NewRouter(tracker.TargetsFromConfig(cfg), cfg.Strategy, seededRand(cfg.Seed, 1))
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := tracing.Init(ctx, cfg.Tracing)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = provider.Shutdown(shutdownCtx)
	}()

	collector := metrics.NewCollector()
	state := engine.NewRunState()

	var eventLog *log.Logger
	if cfg.LogEvents {
		eventLog = log.New(os.Stderr, "[visitforge] ", log.LstdFlags)
	}

	var tracer engine.Tracer
	if cfg.Tracing.Enabled() || cfg.Tracing.Propagate {
		tracer = tracing.NewVisitTracer(provider)
	}

	eng, err := engine.New(engine.Options{
		Config:    cfg,
		Composer:  composer,
		Router:    router,
		Sender:    tracker.NewHTTPSender(cfg.Timeout),
		Collector: collector,
		State:     state,
		Tracer:    tracer,
		EventLog:  eventLog,
	})
	if err != nil {
		return err
	}

	var dash *dashboard.Dashboard
	if cfg.Dashboard {
		dash, err = dashboard.New(state, collector, router, dashboard.RunConfig{
			TargetURL:      cfg.TargetURL,
			Concurrency:    cfg.Concurrency,
			VisitsPerDay:   cfg.TargetVisitsPerDay,
			MaxTotalVisits: cfg.MaxTotalVisits,
			AutoStopAfter:  cfg.AutoStopAfter,
			Timeout:        cfg.Timeout,
			Strategy:       string(cfg.Strategy),
			ConfigFile:     cfg.ConfigFile,
		}, cancel)
		if err != nil {
			return err
		}
		dash.Start()
		defer dash.Stop()
	}

	var progress *output.ProgressReporter
	if !cfg.JSONOutput && !cfg.Dashboard {
		progress = output.NewProgressReporter(state, collector, progressInterval, os.Stdout)
		progress.Start()
		defer func() {
			progress.Stop()
			fmt.Fprintln(os.Stdout)
		}()
	}

	result := eng.Run(ctx)

	report := output.NewRunReport(result, eng.TargetRate(), collector.Stats(result.Elapsed), router.Stats())

	if cfg.ReportFile != "" {
		if err := output.WriteReportFile(cfg.ReportFile, report); err != nil {
			return err
		}
	}

	if cfg.JSONOutput {
		if err := output.PrintJSONReport(os.Stdout, report); err != nil {
			return err
		}
	} else {
		output.PrintReport(os.Stdout, report)
	}

	if report.Hits.Failures > 0 {
		return fmt.Errorf("%d tracking hits failed", report.Hits.Failures)
	}
	return nil
}

func loadCatalog(cfg *config.Config) (*catalog.Catalog, error) {
	if cfg.CatalogFile == "" {
		return catalog.Default(), nil
	}
	cat, err := catalog.LoadFile(cfg.CatalogFile)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", cfg.CatalogFile, err)
	}
	return cat, nil
}

// seededRand derives an independent rand source per component so seeded runs
// stay reproducible regardless of scheduling. offset keeps the streams apart.
func seededRand(seed int64, offset int64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewSource(time.Now().UnixNano() + offset))
	}
	return rand.New(rand.NewSource(seed + offset*104729))
}
