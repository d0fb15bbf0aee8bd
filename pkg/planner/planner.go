// Package planner owns the process-wide state of the application: the
// current catalog snapshot with its conflict graph, the user's selection and
// the last generator result. Collaborators (web, CLI, watcher) get a
// *Planner and never touch the pieces directly.
package planner

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ritzau/course-planner/pkg/conflicts"
	"github.com/ritzau/course-planner/pkg/generator"
	"github.com/ritzau/course-planner/pkg/graph"
	"github.com/ritzau/course-planner/pkg/loader"
	"github.com/ritzau/course-planner/pkg/logging"
	"github.com/ritzau/course-planner/pkg/metrics"
	"github.com/ritzau/course-planner/pkg/model"
	"github.com/ritzau/course-planner/pkg/pubsub"
)

var (
	// ErrNotLoaded is returned before the first successful load
	ErrNotLoaded = errors.New("catalog not loaded")

	// ErrUnknownSection is returned for an NRC that is not in the catalog
	ErrUnknownSection = errors.New("unknown section")
)

var log = logging.New("planner")

// Options configures a Planner
type Options struct {
	DataDir   string
	Format    loader.Format
	Publisher pubsub.Publisher // optional
	Seed      int64            // generator seed, 0 for a time-based one
}

// Planner coordinates loading, selection and generation
type Planner struct {
	dataDir   string
	format    loader.Format
	publisher pubsub.Publisher
	rng       generator.Source

	loadMu sync.Mutex // serializes loads

	// bindMu pairs the installed snapshot with the graph the selection is
	// bound to. install swaps both under the write lock; selection writers
	// hold the read lock from their checks through their update.
	bindMu   sync.RWMutex
	snapshot atomic.Pointer[Snapshot]
	state    *conflicts.State

	lastMu sync.RWMutex
	last   *generator.Result
}

// New creates a planner with an empty selection and no catalog
func New(opts Options) *Planner {
	format := opts.Format
	if format == "" {
		format = loader.FormatAuto
	}
	return &Planner{
		dataDir:   opts.DataDir,
		format:    format,
		publisher: opts.Publisher,
		rng:       generator.NewSource(opts.Seed),
		state:     conflicts.NewState(graph.Empty()),
	}
}

// DataDir returns the directory catalogs are loaded from
func (p *Planner) DataDir() string {
	return p.dataDir
}

// Load reads the data directory and installs the result. On failure the
// previous snapshot stays in place.
func (p *Planner) Load(ctx context.Context, reason string) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	log.Info("loading catalog", "reason", reason, "dir", p.dataDir)
	p.publishStatus(pubsub.CatalogStatus{State: "loading", Message: "Reading catalog files...", Step: 1, Total: 3})

	cat, err := loader.Load(p.dataDir, p.format)
	if err != nil {
		p.publishStatus(pubsub.CatalogStatus{State: "error", Message: fmt.Sprintf("Error loading catalog: %v", err), Step: 1, Total: 3})
		return fmt.Errorf("load failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	p.install(cat, p.dataDir)
	return nil
}

// Install replaces the catalog with an in-memory batch, as a reload would
func (p *Planner) Install(cat *model.Catalog, source string) *Snapshot {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()
	return p.install(cat, source)
}

// install builds the new graph completely before swapping it in. The
// selection starts empty on every install.
func (p *Planner) install(cat *model.Catalog, source string) *Snapshot {
	if cat == nil {
		cat = &model.Catalog{}
	}

	p.publishStatus(pubsub.CatalogStatus{State: "building", Message: "Building conflict graph...", Step: 2, Total: 3, Counts: cat.Counts()})

	start := time.Now()
	g := graph.Build(cat.Sections, cat.Meetings)
	generation := 1
	if prev := p.snapshot.Load(); prev != nil {
		generation = prev.Generation + 1
	}
	snap := newSnapshot(cat, g, source, generation)

	p.bindMu.Lock()
	p.snapshot.Store(snap)
	sel := p.state.Rebind(g)
	p.publishSelection("reset", sel)
	p.bindMu.Unlock()

	log.Info("catalog ready",
		"sections", g.Len(),
		"edges", g.EdgeCount(),
		"selected", len(sel.Selected),
		"duration", time.Since(start).Round(time.Millisecond).String())

	p.publishStatus(pubsub.CatalogStatus{
		State:    "ready",
		Message:  "Catalog ready",
		Step:     3,
		Total:    3,
		Counts:   cat.Counts(),
		Vertices: g.Len(),
		Edges:    g.EdgeCount(),
	})
	return snap
}

// Snapshot returns the current catalog snapshot
func (p *Planner) Snapshot() (*Snapshot, error) {
	snap := p.snapshot.Load()
	if snap == nil {
		return nil, ErrNotLoaded
	}
	return snap, nil
}

// Loaded reports whether a catalog is installed
func (p *Planner) Loaded() bool {
	return p.snapshot.Load() != nil
}

// Selection returns the current selection and conflict set
func (p *Planner) Selection() conflicts.Snapshot {
	return p.state.Snapshot()
}

// Toggle flips nrc in the selection. Blocked sections may be toggled; the
// result then reports a violation. Unknown NRCs are rejected.
func (p *Planner) Toggle(nrc string) (conflicts.Snapshot, error) {
	p.bindMu.RLock()
	defer p.bindMu.RUnlock()

	snap, err := p.Snapshot()
	if err != nil {
		return conflicts.Snapshot{}, err
	}
	if !snap.Graph.Has(nrc) {
		return conflicts.Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownSection, nrc)
	}

	blocked := p.state.IsBlocked(nrc)
	sel := p.state.Toggle(nrc)
	if blocked {
		log.Warn("blocked section toggled", "nrc", nrc, "violations", len(sel.Violations))
	}
	p.publishSelection("toggled", sel)
	return sel, nil
}

// Reset clears the selection
func (p *Planner) Reset() conflicts.Snapshot {
	p.bindMu.RLock()
	defer p.bindMu.RUnlock()

	sel := p.state.Reset()
	p.publishSelection("reset", sel)
	return sel
}

// Generate runs the schedule generator against the current snapshot. The
// current selection is passed as the fixed set; it only matters when
// opts.RespectFixedSelection is set. With apply, a successful pick replaces
// the selection.
func (p *Planner) Generate(subjects []string, opts generator.Options, apply bool) (*generator.Result, error) {
	p.bindMu.RLock()
	defer p.bindMu.RUnlock()

	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}

	fixed := p.state.Selected().Sorted()
	res := generator.Generate(snap.Graph, subjects, fixed, opts, p.rng)

	p.lastMu.Lock()
	p.last = &res
	p.lastMu.Unlock()

	log.Info("schedule generated",
		"id", res.ID.String(),
		"status", string(res.Status),
		"picked", len(res.Picked),
		"score", res.Score,
		"baseline", res.Baseline)

	applied := false
	if apply && res.OK() {
		if _, err := p.applyResult(&res); err != nil {
			return &res, err
		}
		applied = true
	}

	if p.publisher != nil {
		err := p.publisher.Publish(pubsub.TopicGenerator, string(res.Status), pubsub.GeneratorData{
			ID:      res.ID.String(),
			Status:  string(res.Status),
			Reason:  res.Reason,
			Picked:  len(res.Picked),
			Score:   res.Score,
			Applied: applied,
		})
		if err != nil {
			log.Warn("failed to publish generator result", "error", err)
		}
	}
	return &res, nil
}

// ApplyResult makes the selection equal to the result's pick in one update.
// Sections that disappeared in a reload since the run are skipped; a pick
// that conflicts in the current catalog is refused.
func (p *Planner) ApplyResult(res *generator.Result) (conflicts.Snapshot, error) {
	p.bindMu.RLock()
	defer p.bindMu.RUnlock()
	return p.applyResult(res)
}

// applyResult is ApplyResult for callers already holding bindMu
func (p *Planner) applyResult(res *generator.Result) (conflicts.Snapshot, error) {
	if res == nil {
		return conflicts.Snapshot{}, errors.New("no generator result")
	}
	if !res.OK() {
		return conflicts.Snapshot{}, fmt.Errorf("cannot apply %s result: %s", res.Status, res.Reason)
	}
	snap, err := p.Snapshot()
	if err != nil {
		return conflicts.Snapshot{}, err
	}

	target := make([]string, 0, len(res.Picked))
	for _, nrc := range res.Picked {
		if snap.Graph.Has(nrc) {
			target = append(target, nrc)
		}
	}
	if v := conflicts.Violations(conflicts.NewSet(target...), snap.Graph); len(v) > 0 {
		return conflicts.Snapshot{}, fmt.Errorf("catalog changed since the run: %s and %s now conflict", v[0].A, v[0].B)
	}

	sel := p.state.Apply(target)
	p.publishSelection("applied", sel)
	return sel, nil
}

// LastResult returns the most recent generator result
func (p *Planner) LastResult() (*generator.Result, bool) {
	p.lastMu.RLock()
	defer p.lastMu.RUnlock()
	return p.last, p.last != nil
}

// Coloring returns the greedy coloring of the current snapshot
func (p *Planner) Coloring() (metrics.Coloring, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Coloring(), nil
}

// SubjectEntry is a subject together with its sections
type SubjectEntry struct {
	Code     string   `json:"subjectCode"`
	Name     string   `json:"subjectName"`
	Semester *int     `json:"semester,omitempty"`
	Credits  *int     `json:"credits,omitempty"`
	Sections []string `json:"sections"`
}

// Subjects lists every subject that has sections or a catalog entry,
// ordered by code
func (p *Planner) Subjects() ([]SubjectEntry, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}

	codes := make(map[string]bool)
	for code := range snap.Subjects {
		codes[code] = true
	}
	for _, code := range snap.Graph.Subjects() {
		codes[code] = true
	}

	entries := make([]SubjectEntry, 0, len(codes))
	for code := range codes {
		s := snap.Subjects[code]
		sections := snap.Graph.SectionsOf(code)
		if sections == nil {
			sections = []string{}
		}
		entries = append(entries, SubjectEntry{
			Code:     code,
			Name:     s.Name,
			Semester: s.Semester,
			Credits:  s.Credits,
			Sections: sections,
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Code < entries[j].Code
	})
	return entries, nil
}

// SectionDetail describes one section for display
type SectionDetail struct {
	NRC         string   `json:"nrc"`
	SubjectCode string   `json:"subjectCode"`
	SubjectName string   `json:"subjectName,omitempty"`
	ProfessorID string   `json:"professorId,omitempty"`
	Professor   string   `json:"professor,omitempty"`
	Meetings    []string `json:"meetings"`
	Degree      int      `json:"degree"`
	Conflicts   []string `json:"conflicts"`
	Selected    bool     `json:"selected"`
	Blocked     bool     `json:"blocked"`
}

// Section returns the detail of nrc
func (p *Planner) Section(nrc string) (*SectionDetail, error) {
	snap, err := p.Snapshot()
	if err != nil {
		return nil, err
	}
	section, ok := snap.Graph.Section(nrc)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSection, nrc)
	}

	d := &SectionDetail{
		NRC:         nrc,
		SubjectCode: section.SubjectCode,
		SubjectName: snap.Subjects[section.SubjectCode].Name,
		ProfessorID: section.ProfessorID,
		Professor:   snap.Professors[section.ProfessorID].Name,
		Meetings:    make([]string, 0),
		Degree:      snap.Graph.Degree(nrc),
		Conflicts:   snap.Graph.Neighbors(nrc),
		Selected:    p.state.Selected().Has(nrc),
		Blocked:     p.state.IsBlocked(nrc),
	}
	for _, m := range snap.Graph.Meetings(nrc) {
		d.Meetings = append(d.Meetings, m.String())
	}
	return d, nil
}

func (p *Planner) publishStatus(status pubsub.CatalogStatus) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(pubsub.TopicCatalogStatus, status.State, status); err != nil {
		log.Warn("failed to publish catalog status", "error", err)
	}
}

func (p *Planner) publishSelection(eventType string, sel conflicts.Snapshot) {
	if p.publisher == nil {
		return
	}
	err := p.publisher.Publish(pubsub.TopicSelection, eventType, pubsub.SelectionData{
		Selected:   sel.Selected,
		Conflicts:  sel.Conflicts,
		Violations: len(sel.Violations),
		Version:    sel.Version,
	})
	if err != nil {
		log.Warn("failed to publish selection", "error", err)
	}
}
