package web

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ritzau/course-planner/pkg/generator"
	"github.com/ritzau/course-planner/pkg/planner"
	"github.com/ritzau/course-planner/pkg/pubsub"
)

// Metrics holds the Prometheus collectors of one server. Catalog and
// selection sizes are read from the planner at scrape time; loads and
// generator runs are counted from the events the planner publishes.
type Metrics struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	catalogLoads    *prometheus.CounterVec
	generatorRuns   *prometheus.CounterVec
	generatorScore  prometheus.Histogram
}

// NewMetrics registers the collectors for p
func NewMetrics(p *planner.Planner) *Metrics {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	catalogLoads := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_catalog_loads_total",
		Help: "Catalog loads by outcome",
	}, []string{"result"})

	generatorRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "planner_generator_runs_total",
		Help: "Generator runs by status",
	}, []string{"status"})

	generatorScore := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "planner_generator_score",
		Help:    "Score of successful generator runs",
		Buckets: []float64{0, 5, 10, 25, 50, 100, 250, 1000, 5000},
	})

	status := func(read func(planner.Status) int) func() float64 {
		return func() float64 { return float64(read(p.Status())) }
	}
	sections := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_sections",
		Help: "Sections in the loaded catalog",
	}, status(func(s planner.Status) int { return s.Vertices }))
	edges := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_conflict_edges",
		Help: "Edges in the conflict graph",
	}, status(func(s planner.Status) int { return s.Edges }))
	selected := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_selected_sections",
		Help: "Sections in the current selection",
	}, status(func(s planner.Status) int { return s.Selected }))
	generation := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "planner_catalog_generation",
		Help: "Number of catalogs installed since start",
	}, status(func(s planner.Status) int { return s.Generation }))

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, catalogLoads, generatorRuns, generatorScore,
		sections, edges, selected, generation, goroutines)

	return &Metrics{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		catalogLoads:    catalogLoads,
		generatorRuns:   generatorRuns,
		generatorScore:  generatorScore,
	}
}

// Handler exposes the Prometheus HTTP handler
func (m *Metrics) Handler() http.Handler {
	return m.handler
}

// Registry returns the registry the collectors live in
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Middleware records the duration and status of every routed request.
// Requests are labelled by route template so NRCs do not become labels.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if tmpl, err := route.GetPathTemplate(); err == nil {
				path = tmpl
			}
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(rec, r)

		m.ObserveHTTPRequest(r.Method, path, rec.status, time.Since(start))
	})
}

// ObserveHTTPRequest records one finished request
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	labelStatus := strconv.Itoa(status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// Observe counts catalog loads and generator runs. Other events are ignored.
func (m *Metrics) Observe(ev pubsub.Event) {
	switch ev.Topic {
	case pubsub.TopicCatalogStatus:
		if ev.Type == "ready" || ev.Type == "error" {
			m.catalogLoads.WithLabelValues(ev.Type).Inc()
		}
	case pubsub.TopicGenerator:
		var data pubsub.GeneratorData
		if err := json.Unmarshal(ev.Data, &data); err != nil {
			log.Debug("ignoring malformed generator event", "error", err)
			return
		}
		m.generatorRuns.WithLabelValues(data.Status).Inc()
		if data.Status == string(generator.StatusOK) {
			m.generatorScore.Observe(float64(data.Score))
		}
	}
}

// Watch feeds planner events into Observe until ctx is done
func (m *Metrics) Watch(ctx context.Context, publisher pubsub.Publisher) error {
	status, err := publisher.Subscribe(ctx, pubsub.TopicCatalogStatus)
	if err != nil {
		return err
	}
	defer status.Close()

	runs, err := publisher.Subscribe(ctx, pubsub.TopicGenerator)
	if err != nil {
		return err
	}
	defer runs.Close()

	statusEvents, runEvents := status.Events(), runs.Events()
	for statusEvents != nil || runEvents != nil {
		select {
		case ev, ok := <-statusEvents:
			if !ok {
				statusEvents = nil
				continue
			}
			m.Observe(ev)
		case ev, ok := <-runEvents:
			if !ok {
				runEvents = nil
				continue
			}
			m.Observe(ev)
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps event streams working through the recorder
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
