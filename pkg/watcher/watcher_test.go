package watcher

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/ritzau/course-planner/pkg/loader"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestAnalyzeChanges(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sections.json"), "[]")

	tests := []struct {
		name   string
		paths  []string
		format loader.Format
		reload bool
		want   []string
	}{
		{"json in auto", []string{filepath.Join(dir, "meetings.json")}, loader.FormatAuto, true, []string{"meetings"}},
		{"csv shadowed by json", []string{filepath.Join(dir, "meetings.csv")}, loader.FormatAuto, false, nil},
		{"csv when csv is forced", []string{filepath.Join(dir, "meetings.csv")}, loader.FormatCSV, true, []string{"meetings"}},
		{"json when csv is forced", []string{filepath.Join(dir, "meetings.json")}, loader.FormatCSV, false, nil},
		{"collections deduped", []string{filepath.Join(dir, "subjects.json"), filepath.Join(dir, "subjects.json")}, loader.FormatJSON, true, []string{"subjects"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := AnalyzeChanges(ChangeEvent{Paths: tt.paths}, dir, tt.format)
			if a.NeedReload != tt.reload {
				t.Errorf("NeedReload = %v, want %v", a.NeedReload, tt.reload)
			}
			if !reflect.DeepEqual(a.Collections, tt.want) {
				t.Errorf("Collections = %v, want %v", a.Collections, tt.want)
			}
		})
	}
}

func TestAnalyzeChangesEmptyDirectory(t *testing.T) {
	dir := t.TempDir()
	a := AnalyzeChanges(ChangeEvent{Type: ChangeTypeRemoved, Paths: []string{filepath.Join(dir, "sections.csv")}}, dir, loader.FormatAuto)
	if !a.NeedReload {
		t.Error("removing the last catalog file should trigger a reload")
	}
}

func TestDebouncerMergesBursts(t *testing.T) {
	input := make(chan ChangeEvent)
	d := NewDebouncer(input, 50*time.Millisecond, time.Second)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	d.Start(ctx)

	input <- ChangeEvent{Type: ChangeTypeModified, Paths: []string{"a.json"}}
	input <- ChangeEvent{Type: ChangeTypeModified, Paths: []string{"b.json", "a.json"}}
	input <- ChangeEvent{Type: ChangeTypeRemoved, Paths: []string{"c.json"}}

	select {
	case ev := <-d.Output():
		if ev.Type != ChangeTypeModified || !reflect.DeepEqual(ev.Paths, []string{"a.json", "b.json"}) {
			t.Errorf("first event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no debounced event")
	}

	select {
	case ev := <-d.Output():
		if ev.Type != ChangeTypeRemoved || !reflect.DeepEqual(ev.Paths, []string{"c.json"}) {
			t.Errorf("second event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no removal event")
	}
}

func TestDebouncerFlushesOnClose(t *testing.T) {
	input := make(chan ChangeEvent, 1)
	d := NewDebouncer(input, time.Hour, time.Hour)
	d.Start(context.Background())

	input <- ChangeEvent{Type: ChangeTypeModified, Paths: []string{"x.csv"}}
	close(input)

	var got []ChangeEvent
	for ev := range d.Output() {
		got = append(got, ev)
	}
	if len(got) != 1 || got[0].Paths[0] != "x.csv" {
		t.Errorf("got %+v", got)
	}
}

type countingReloader struct {
	mu      sync.Mutex
	reloads int
	ch      chan struct{}
}

func (r *countingReloader) Load(ctx context.Context, reason string) error {
	r.mu.Lock()
	r.reloads++
	r.mu.Unlock()
	r.ch <- struct{}{}
	return nil
}

func TestRunReloadsOnCatalogChange(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "sections.json"), "[]")

	r := &countingReloader{ch: make(chan struct{}, 10)}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, r, dir, loader.FormatAuto) }()

	// Give the watcher time to register the directory
	time.Sleep(200 * time.Millisecond)
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, "meetings.json"), "[]")

	select {
	case <-r.ch:
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after catalog change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.reloads != 1 {
		t.Errorf("reloads = %d, want 1", r.reloads)
	}
}
