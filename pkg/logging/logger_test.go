package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestCompactHandlerFormat(t *testing.T) {
	var buf bytes.Buffer
	h := NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	log := slog.New(h).With("component", "planner")

	log.Info("catalog loaded", "sections", 12, "source", "data dir")

	line := buf.String()
	if !strings.HasPrefix(line, "[INFO]  ") {
		t.Errorf("missing level prefix: %q", line)
	}
	if !strings.Contains(line, "(planner) catalog loaded") {
		t.Errorf("missing component/message: %q", line)
	}
	if !strings.Contains(line, `| sections=12 source="data dir"`) {
		t.Errorf("attributes not rendered: %q", line)
	}
	if strings.Contains(line, "component=") {
		t.Errorf("component should not be repeated as an attribute: %q", line)
	}
}

func TestCompactHandlerLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	log.Info("hidden")
	log.Warn("shown")

	if strings.Contains(buf.String(), "hidden") {
		t.Error("info record should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "[WARN]") {
		t.Error("warn record missing")
	}
}

func TestCompactHandlerGroup(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil)).WithGroup("gen")

	log.Info("done", "score", 42)

	if !strings.Contains(buf.String(), "gen.score=42") {
		t.Errorf("group prefix missing: %q", buf.String())
	}
}

func TestCompactHandlerListsAndNestedGroups(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewCompactHandler(&buf, nil)).With("run", 3).WithGroup("gen")

	nrcs := []string{"1", "2", "3", "4", "5", "6", "7", "8", "9", "10"}
	log.Info("picked", "nrcs", nrcs, slog.Group("score", "total", 12, "baseline", 40), "reason", "")

	line := buf.String()
	for _, want := range []string{
		"| run=3 ",
		"gen.nrcs=[1 2 3 4 5 6 7 8 +2]",
		"gen.score.total=12 gen.score.baseline=40",
		`gen.reason=""`,
	} {
		if !strings.Contains(line, want) {
			t.Errorf("line lacks %q: %q", want, line)
		}
	}
}

func TestCompactHandlerPlainToBuffer(t *testing.T) {
	var buf bytes.Buffer
	slog.New(NewCompactHandler(&buf, nil)).Error("boom", "error", errors.New("disk full"))

	if !strings.HasPrefix(buf.String(), "[ERROR] ") {
		t.Errorf("non-terminal output should not be colored: %q", buf.String())
	}
	if !strings.Contains(buf.String(), `error="disk full"`) {
		t.Errorf("error not quoted: %q", buf.String())
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":    slog.LevelDebug,
		"WARN":     slog.LevelWarn,
		"error":    slog.LevelError,
		"trace":    LevelTrace,
		"":         slog.LevelInfo,
		"nonsense": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)
	defer SetOutput(&bytes.Buffer{}, slog.LevelInfo)

	var seen string
	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		w.Write([]byte("ok"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/metrics", nil)
	req.Header.Set("X-Request-ID", "fixed-request-id-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if seen != "fixed-request-id-123" {
		t.Errorf("handler saw request ID %q", seen)
	}
	if rec.Header().Get("X-Request-ID") != "fixed-request-id-123" {
		t.Error("response missing X-Request-ID")
	}
	if !strings.Contains(buf.String(), "req=fixed-re") {
		t.Errorf("completion log missing shortened request ID: %q", buf.String())
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/metrics", nil))
	if len(rec.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("generated request ID should be a uuid, got %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestMiddlewareQuietsPolling(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)
	defer SetOutput(&bytes.Buffer{}, slog.LevelInfo)

	h := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/reload" {
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if buf.Len() != 0 {
		t.Errorf("scrape logged at info: %q", buf.String())
	}

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/reload", nil))
	if !strings.Contains(buf.String(), "[ERROR]") || !strings.Contains(buf.String(), "request failed") {
		t.Errorf("server error not logged: %q", buf.String())
	}
}
