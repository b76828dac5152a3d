package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// --- Logging Tests ---

func TestLogLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"DEBUG": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"ERROR": slog.LevelError,
		"":      slog.LevelInfo,
		"bogus": slog.LevelInfo,
	}
	for value, want := range tests {
		t.Setenv("LOG_LEVEL", value)
		if got := LogLevel(); got != want {
			t.Errorf("LOG_LEVEL=%q: expected %v, got %v", value, want, got)
		}
	}
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "json", slog.LevelInfo)

	WithRunID(logger, "run-1").Info("hello")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["run_id"] != "run-1" {
		t.Errorf("expected run_id attribute, got %v", entry)
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) != slog.Default() {
		t.Error("expected default logger when context is empty")
	}

	logger := NewLogger(&bytes.Buffer{}, "text", slog.LevelInfo)
	ctx := WithLogger(context.Background(), logger)
	if FromContext(ctx) != logger {
		t.Error("expected logger from context")
	}
}

func TestElapsed(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "text", slog.LevelInfo)

	done := Elapsed(logger, "parallel run")
	done()

	out := buf.String()
	if !strings.Contains(out, "elapsed time") || !strings.Contains(out, "op=\"parallel run\"") {
		t.Errorf("unexpected log output: %s", out)
	}
}

// --- Metrics Tests ---

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics()

	m.EndpointPublished("create")
	m.EndpointPublished("add_version")
	m.EndpointPublished("add_version")
	m.RunSubmitted("exp")
	m.RunFinished("Completed", time.Minute)
	m.RunCancelled("timeout")

	if got := testutil.ToFloat64(m.endpointPublish.WithLabelValues("add_version")); got != 2 {
		t.Errorf("expected 2 add_version publishes, got %v", got)
	}
	if got := testutil.ToFloat64(m.runsSubmitted.WithLabelValues("exp")); got != 1 {
		t.Errorf("expected 1 submitted run, got %v", got)
	}
	if got := testutil.ToFloat64(m.runsCancelled.WithLabelValues("timeout")); got != 1 {
		t.Errorf("expected 1 cancelled run, got %v", got)
	}
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	m.EndpointPublished("create")
	m.RunSubmitted("exp")
	m.RunFinished("Failed", time.Second)
	m.RunCancelled("interrupt")
	if err := m.Push(context.Background(), "http://unused", "job"); err != nil {
		t.Errorf("nil metrics push should be a no-op, got %v", err)
	}
}

func TestMetrics_Push(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	m := NewMetrics()
	m.RunSubmitted("exp")

	if err := m.Push(context.Background(), server.URL, "forecast_trigger"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/metrics/job/forecast_trigger" {
		t.Errorf("unexpected push path %s", gotPath)
	}
}
