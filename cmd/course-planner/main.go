package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/ritzau/course-planner/pkg/config"
	"github.com/ritzau/course-planner/pkg/export"
	"github.com/ritzau/course-planner/pkg/logging"
	"github.com/ritzau/course-planner/pkg/output"
	"github.com/ritzau/course-planner/pkg/planner"
	"github.com/ritzau/course-planner/pkg/pubsub"
	"github.com/ritzau/course-planner/pkg/watcher"
	"github.com/ritzau/course-planner/pkg/web"
)

func main() {
	// Parse command-line flags
	config.RegisterFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(pflag.CommandLine)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if cfg.JSONLogs {
		logging.SetJSONOutput(cfg.LogLevel())
	} else {
		logging.SetLevel(cfg.LogLevel())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.WebMode {
		err = runWeb(ctx, cfg)
	} else {
		err = runCLI(ctx, cfg)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// runCLI loads the catalog once, prints the report and, when subjects are
// given, generates a schedule
func runCLI(ctx context.Context, cfg *config.Config) error {
	format, _ := cfg.CatalogFormat()
	p := planner.New(planner.Options{DataDir: cfg.DataDir, Format: format, Seed: cfg.Seed})

	if err := p.Load(ctx, "startup"); err != nil {
		return err
	}
	snap, err := p.Snapshot()
	if err != nil {
		return err
	}

	output.PrintCatalogReport(os.Stdout, snap)
	output.PrintColoring(os.Stdout, snap.Coloring(), 10)

	for _, nrc := range cfg.Select {
		if _, err := p.Toggle(nrc); err != nil {
			logging.Warn("cannot select section", "nrc", nrc, "error", err)
		}
	}
	if len(cfg.Select) > 0 {
		output.PrintSelection(os.Stdout, p.Selection())
	}

	if len(cfg.Subjects) == 0 {
		return nil
	}

	opts, _ := cfg.Preferences()
	res, err := p.Generate(cfg.Subjects, opts, false)
	if err != nil {
		return err
	}
	output.PrintSchedule(os.Stdout, snap, res)
	if !res.OK() {
		return errors.New(res.Reason)
	}

	if cfg.ScheduleOut != "" {
		if err := writeSchedule(cfg, snap, res.Picked); err != nil {
			return err
		}
		logging.Info("schedule written", "path", cfg.ScheduleOut)
	}
	return nil
}

func writeSchedule(cfg *config.Config, snap *planner.Snapshot, picked []string) error {
	format, _ := cfg.ScheduleFormat()
	rows := export.ScheduleRows(snap.Graph, picked, snap.Subjects, snap.Professors)

	f, err := os.Create(cfg.ScheduleOut)
	if err != nil {
		return fmt.Errorf("failed to create schedule file: %w", err)
	}
	defer f.Close()

	if format == "pdf" {
		err = export.WriteSchedulePDF(f, rows, export.ScheduleTitle("Generated schedule", rows))
	} else {
		err = export.WriteScheduleCSV(f, rows)
	}
	if err != nil {
		return err
	}
	return f.Close()
}

// runWeb starts the server first and loads the catalog in the background;
// clients follow progress on the catalog_status topic
func runWeb(ctx context.Context, cfg *config.Config) error {
	publisher := pubsub.NewSSEPublisher()
	pubsub.ConfigureDefaults(publisher)
	defer publisher.Close()

	format, _ := cfg.CatalogFormat()
	p := planner.New(planner.Options{
		DataDir:   cfg.DataDir,
		Format:    format,
		Publisher: publisher,
		Seed:      cfg.Seed,
	})

	go func() {
		if err := p.Load(ctx, "startup"); err != nil {
			logging.Error("initial load failed", "error", err)
		}
	}()

	if cfg.Watch {
		go func() {
			if err := watcher.Run(ctx, p, cfg.DataDir, format); err != nil && !errors.Is(err, context.Canceled) {
				logging.Error("file watcher stopped", "error", err)
			}
		}()
	}

	server := web.NewServer(p, publisher)
	return server.Start(ctx, cfg.Port)
}
