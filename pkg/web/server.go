package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/ritzau/course-planner/pkg/export"
	"github.com/ritzau/course-planner/pkg/generator"
	"github.com/ritzau/course-planner/pkg/lens"
	"github.com/ritzau/course-planner/pkg/logging"
	"github.com/ritzau/course-planner/pkg/metrics"
	"github.com/ritzau/course-planner/pkg/planner"
	"github.com/ritzau/course-planner/pkg/pubsub"
)

var log = logging.New("web")

var validate = validator.New()

// topics that may be subscribed to over SSE
var topics = map[string]bool{
	pubsub.TopicCatalogStatus: true,
	pubsub.TopicSelection:     true,
	pubsub.TopicGenerator:     true,
}

// Server represents the web server
type Server struct {
	router    *mux.Router
	planner   *planner.Planner
	publisher pubsub.Publisher
	metrics   *Metrics
}

// NewServer creates a web server over p. Events are streamed from publisher,
// which should be the one p publishes to.
func NewServer(p *planner.Planner, publisher pubsub.Publisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		planner:   p,
		publisher: publisher,
		metrics:   NewMetrics(p),
	}
	s.setupRoutes()
	return s
}

// Handler returns the HTTP handler with request logging applied
func (s *Server) Handler() http.Handler {
	return s.router
}

// Metrics returns the server's Prometheus collectors
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware, s.metrics.Middleware)

	s.router.Handle("/metrics", s.metrics.Handler()).Methods("GET")

	// SSE subscription endpoint
	s.router.HandleFunc("/api/subscribe/{topic}", s.handleSubscribe).Methods("GET")

	s.router.HandleFunc("/api/status", s.handleStatus).Methods("GET")
	s.router.HandleFunc("/api/reload", s.handleReload).Methods("POST")

	// Graph and exports; more specific routes must come first
	s.router.HandleFunc("/api/graph.dot", s.handleGraphDOT).Methods("GET")
	s.router.HandleFunc("/api/graph/edges.csv", s.handleEdgesCSV).Methods("GET")
	s.router.HandleFunc("/api/graph/adjacency.csv", s.handleAdjacencyCSV).Methods("GET")
	s.router.HandleFunc("/api/graph", s.handleGraph).Methods("GET")
	s.router.HandleFunc("/api/metrics", s.handleMetrics).Methods("GET")
	s.router.HandleFunc("/api/coloring", s.handleColoring).Methods("GET")

	s.router.HandleFunc("/api/subjects", s.handleSubjects).Methods("GET")
	s.router.HandleFunc("/api/sections/{nrc}", s.handleSection).Methods("GET")

	s.router.HandleFunc("/api/selection", s.handleSelection).Methods("GET")
	s.router.HandleFunc("/api/selection/reset", s.handleReset).Methods("POST")
	s.router.HandleFunc("/api/selection/schedule.{format:csv|pdf}", s.handleSelectionSchedule).Methods("GET")
	s.router.HandleFunc("/api/selection/{nrc}/toggle", s.handleToggle).Methods("POST")

	s.router.HandleFunc("/api/generate/last", s.handleLastResult).Methods("GET")
	s.router.HandleFunc("/api/generate/last/schedule.{format:csv|pdf}", s.handleLastSchedule).Methods("GET")
	s.router.HandleFunc("/api/generate", s.handleGenerate).Methods("POST")
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	topic := mux.Vars(r)["topic"]
	if !topics[topic] {
		http.Error(w, fmt.Sprintf("Unknown topic: %s", topic), http.StatusNotFound)
		return
	}

	// EventSource sends Last-Event-ID when it reconnects
	var (
		sub pubsub.Subscription
		err error
	)
	if last, convErr := strconv.Atoi(r.Header.Get("Last-Event-ID")); convErr == nil {
		sub, err = s.publisher.SubscribeSince(r.Context(), topic, last)
	} else {
		sub, err = s.publisher.Subscribe(r.Context(), topic)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	defer sub.Close()

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*") // CORS support

	// Send initial comment to establish connection (Safari compatibility)
	fmt.Fprintf(w, ": connected\n\n")
	flush(w)

	// Stream events
	for event := range sub.Events() {
		if err := pubsub.WriteSSE(w, event); err != nil {
			log.Debug("error writing SSE event", "topic", topic, "error", err)
			return
		}
		flush(w)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Status())
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	if err := s.planner.Load(r.Context(), "api"); err != nil {
		logging.ErrorContext(r.Context(), "reload failed", "error", err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, s.planner.Status())
}

// handleGraph serves the conflict graph, optionally narrowed by lens query
// parameters (focus, depth, kinds, collapse, isolated)
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	l, err := lens.FromQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	sel := s.planner.Selection()
	view := export.View(snap.Graph, export.ViewInput{
		Subjects:   snap.Subjects,
		Professors: snap.Professors,
		Colors:     snap.Coloring(),
		Selected:   sel.Selected,
		Blocked:    sel.Conflicts,
	})
	writeJSON(w, http.StatusOK, lens.Render(view, snap.Graph, l))
}

func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	if err := export.WriteDOT(w, snap.Graph, "conflicts"); err != nil {
		logging.ErrorContext(r.Context(), "DOT export failed", "error", err)
	}
}

func (s *Server) handleEdgesCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="edges.csv"`)
	if err := export.WriteEdgesCSV(w, snap.Graph); err != nil {
		logging.ErrorContext(r.Context(), "edge export failed", "error", err)
	}
}

func (s *Server) handleAdjacencyCSV(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="adjacency.csv"`)
	if err := export.WriteAdjacencyCSV(w, snap.Graph); err != nil {
		logging.ErrorContext(r.Context(), "adjacency export failed", "error", err)
	}
}

// MetricsResponse is the summary plus the number of colors used
type MetricsResponse struct {
	metrics.Summary
	Colors int `json:"colors"`
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, MetricsResponse{
		Summary: snap.Metrics,
		Colors:  snap.Coloring().Count(),
	})
}

// ColoringResponse carries the coloring both per section and per group
type ColoringResponse struct {
	Colors map[string]int  `json:"colors"`
	Count  int             `json:"count"`
	Groups []metrics.Group `json:"groups"`
}

func (s *Server) handleColoring(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	c := snap.Coloring()
	groups := c.Groups()
	if groups == nil {
		groups = []metrics.Group{}
	}
	writeJSON(w, http.StatusOK, ColoringResponse{Colors: c, Count: c.Count(), Groups: groups})
}

func (s *Server) handleSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := s.planner.Subjects()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, subjects)
}

func (s *Server) handleSection(w http.ResponseWriter, r *http.Request) {
	detail, err := s.planner.Section(mux.Vars(r)["nrc"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Selection())
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	sel, err := s.planner.Toggle(mux.Vars(r)["nrc"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sel)
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.planner.Reset())
}

func (s *Server) handleSelectionSchedule(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	s.writeSchedule(w, r, snap, s.planner.Selection().Selected, "Selected sections")
}

func (s *Server) handleLastSchedule(w http.ResponseWriter, r *http.Request) {
	res, ok := s.planner.LastResult()
	if !ok {
		http.Error(w, "No schedule generated yet", http.StatusNotFound)
		return
	}
	snap, ok := s.snapshot(w)
	if !ok {
		return
	}
	s.writeSchedule(w, r, snap, res.Picked, "Generated schedule")
}

// writeSchedule renders the meetings of nrcs in the format named by the route
func (s *Server) writeSchedule(w http.ResponseWriter, r *http.Request, snap *planner.Snapshot, nrcs []string, heading string) {
	rows := export.ScheduleRows(snap.Graph, nrcs, snap.Subjects, snap.Professors)

	var err error
	switch format := mux.Vars(r)["format"]; format {
	case "pdf":
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="schedule.pdf"`)
		err = export.WriteSchedulePDF(w, rows, export.ScheduleTitle(heading, rows))
	default:
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", `attachment; filename="schedule.csv"`)
		err = export.WriteScheduleCSV(w, rows)
	}
	if err != nil {
		logging.ErrorContext(r.Context(), "schedule export failed", "error", err)
	}
}

// GenerateRequest is the body of POST /api/generate. A missing or null
// maxGapMinutes means unbounded.
type GenerateRequest struct {
	Subjects              []string `json:"subjects" validate:"max=200,dive,required,max=64"`
	PreferredShift        string   `json:"preferredShift"`
	MaxGapMinutes         *int     `json:"maxGapMinutes" validate:"omitempty,min=0,max=1440"`
	PreferCompactDays     bool     `json:"preferCompactDays"`
	RespectFixedSelection bool     `json:"respectFixedSelection"`
	Apply                 bool     `json:"apply"`
}

// Options validates the request and converts its preferences
func (req GenerateRequest) Options() (generator.Options, error) {
	if err := validate.Struct(req); err != nil {
		return generator.Options{}, fmt.Errorf("invalid request: %w", err)
	}
	shift, err := generator.ParseShift(req.PreferredShift)
	if err != nil {
		return generator.Options{}, err
	}
	opts := generator.DefaultOptions()
	opts.Shift = shift
	opts.PreferCompactDays = req.PreferCompactDays
	opts.RespectFixedSelection = req.RespectFixedSelection
	if req.MaxGapMinutes != nil {
		opts.MaxGapMinutes = *req.MaxGapMinutes
	}
	return opts, nil
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid request body: %v", err), http.StatusBadRequest)
		return
	}
	opts, err := req.Options()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := s.planner.Generate(req.Subjects, opts, req.Apply)
	if err != nil && res == nil {
		writeError(w, err)
		return
	}
	if err != nil {
		logging.WarnContext(r.Context(), "generated schedule not applied", "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleLastResult(w http.ResponseWriter, r *http.Request) {
	res, ok := s.planner.LastResult()
	if !ok {
		http.Error(w, "No schedule generated yet", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) snapshot(w http.ResponseWriter) (*planner.Snapshot, bool) {
	snap, err := s.planner.Snapshot()
	if err != nil {
		writeError(w, err)
		return nil, false
	}
	return snap, true
}

// Start serves on port until ctx is cancelled. Planner events feed the
// metrics for as long as the server runs.
func (s *Server) Start(ctx context.Context, port int) error {
	if s.publisher != nil {
		go func() {
			if err := s.metrics.Watch(ctx, s.publisher); err != nil {
				log.Warn("metrics will not count planner events", "error", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down web server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("failed to encode response", "error", err)
	}
}

// writeError maps planner errors to status codes
func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, planner.ErrNotLoaded):
		http.Error(w, "Catalog not loaded", http.StatusServiceUnavailable)
	case errors.Is(err, planner.ErrUnknownSection):
		http.Error(w, err.Error(), http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func flush(w http.ResponseWriter) {
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}
}
