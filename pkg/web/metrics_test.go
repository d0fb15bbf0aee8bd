package web

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ritzau/course-planner/pkg/generator"
	"github.com/ritzau/course-planner/pkg/planner"
	"github.com/ritzau/course-planner/pkg/pubsub"
)

func TestMetricsEndpoint(t *testing.T) {
	ts, p := newTestServer(t, true)
	p.Toggle("A")

	do(t, "GET", ts.URL+"/api/sections/C", "")
	do(t, "GET", ts.URL+"/api/sections/ZZ", "")

	// Requests are counted after the response is sent, so poll
	want := []string{
		"planner_sections 4",
		"planner_conflict_edges 2",
		"planner_selected_sections 1",
		`http_requests_total{method="GET",path="/api/sections/{nrc}",status="200"} 1`,
		`http_requests_total{method="GET",path="/api/sections/{nrc}",status="404"} 1`,
	}
	deadline := time.Now().Add(2 * time.Second)
	for {
		resp := do(t, "GET", ts.URL+"/metrics", "")
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("metrics = %d", resp.StatusCode)
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			t.Fatal(err)
		}
		missing := missingLines(string(body), want)
		if len(missing) == 0 {
			return
		}
		if time.Now().After(deadline) {
			t.Fatalf("metrics output lacks %q", missing)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func missingLines(text string, want []string) []string {
	var missing []string
	for _, w := range want {
		if !strings.Contains(text, w) {
			missing = append(missing, w)
		}
	}
	return missing
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape = %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMetricsObserveEvents(t *testing.T) {
	m := NewMetrics(planner.New(planner.Options{}))

	m.Observe(pubsub.Event{Topic: pubsub.TopicCatalogStatus, Type: "loading"})
	m.Observe(pubsub.Event{Topic: pubsub.TopicCatalogStatus, Type: "ready"})
	m.Observe(pubsub.Event{Topic: pubsub.TopicCatalogStatus, Type: "error"})
	m.Observe(pubsub.Event{Topic: pubsub.TopicGenerator, Data: []byte(`{"status":"ok","score":12}`)})
	m.Observe(pubsub.Event{Topic: pubsub.TopicGenerator, Data: []byte(`{"status":"mandatory_conflict"}`)})
	m.Observe(pubsub.Event{Topic: pubsub.TopicGenerator, Data: []byte(`not json`)})

	text := scrape(t, m)
	for _, want := range []string{
		`planner_catalog_loads_total{result="ready"} 1`,
		`planner_catalog_loads_total{result="error"} 1`,
		`planner_generator_runs_total{status="ok"} 1`,
		`planner_generator_runs_total{status="mandatory_conflict"} 1`,
		"planner_generator_score_sum 12",
		"planner_generator_score_count 1",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output lacks %q", want)
		}
	}
	if strings.Contains(text, `result="loading"`) {
		t.Error("progress events counted as loads")
	}
}

func TestMetricsWatchCountsPlannerEvents(t *testing.T) {
	pub := pubsub.NewSSEPublisher()
	pubsub.ConfigureDefaults(pub)
	defer pub.Close()

	p := planner.New(planner.Options{Publisher: pub, Seed: 3})
	m := NewMetrics(p)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Watch(ctx, pub)
	}()

	p.Install(scenarioCatalog(), "test")
	if _, err := p.Generate([]string{"PHYS100"}, generator.DefaultOptions(), false); err != nil {
		t.Fatalf("Generate: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		text := scrape(t, m)
		if strings.Contains(text, `planner_generator_runs_total{status="ok"} 1`) &&
			strings.Contains(text, `planner_catalog_loads_total{result="ready"} 1`) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("planner events were not counted")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}
