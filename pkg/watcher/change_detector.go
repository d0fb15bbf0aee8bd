package watcher

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"github.com/ritzau/course-planner/pkg/loader"
	"github.com/ritzau/course-planner/pkg/logging"
)

// ChangeAnalysis describes what changed and whether the catalog must be reloaded
type ChangeAnalysis struct {
	NeedReload   bool
	Format       loader.Format // encoding the next load will use
	Collections  []string      // collections touched, e.g. "meetings"
	ChangedFiles []string
}

// AnalyzeChanges decides whether a change affects the catalog that would be
// loaded from dir. With FormatAuto a JSON file appearing or disappearing can
// switch the encoding, so JSON changes always count.
func AnalyzeChanges(event ChangeEvent, dir string, format loader.Format) *ChangeAnalysis {
	analysis := &ChangeAnalysis{
		ChangedFiles: event.Paths,
		Format:       format,
	}

	if format == loader.FormatAuto || format == "" {
		// An empty directory still needs a reload so the failure is reported
		if detected, err := loader.Detect(dir); err == nil {
			analysis.Format = detected
		}
	}

	seen := make(map[string]bool)
	for _, path := range event.Paths {
		ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
		relevant := ext == string(analysis.Format) ||
			(format == loader.FormatAuto && ext == string(loader.FormatJSON)) ||
			analysis.Format == loader.FormatAuto
		if !relevant {
			continue
		}
		analysis.NeedReload = true

		name := strings.ToLower(strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)))
		if !seen[name] {
			seen[name] = true
			analysis.Collections = append(analysis.Collections, name)
		}
	}

	return analysis
}

// Reloader is what Run drives; *planner.Planner satisfies it
type Reloader interface {
	Load(ctx context.Context, reason string) error
}

// Run watches dir and reloads r after each debounced batch of relevant
// changes. It blocks until ctx is cancelled.
func Run(ctx context.Context, r Reloader, dir string, format loader.Format) error {
	fw, err := NewFileWatcher(dir)
	if err != nil {
		return err
	}
	if err := fw.Start(ctx); err != nil {
		return err
	}
	defer fw.Stop()

	debouncer := NewDebouncer(fw.Events(), 300*time.Millisecond, 2*time.Second)
	debouncer.Start(ctx)

	for event := range debouncer.Output() {
		analysis := AnalyzeChanges(event, dir, format)
		if !analysis.NeedReload {
			logging.Debug("ignoring change to inactive catalog files", "paths", event.Paths, "format", string(analysis.Format))
			continue
		}

		logging.Info("catalog files changed",
			"change", event.Type.String(),
			"collections", strings.Join(analysis.Collections, ","))
		if err := r.Load(ctx, "file change"); err != nil {
			// The previous catalog stays installed
			logging.Error("reload failed", "error", err)
		}
	}
	return ctx.Err()
}
