package trigger

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mlclient/mltest"
	"github.com/shaiso/forecastrun/internal/supervisor"
)

type fakeLedger struct {
	mu      sync.Mutex
	records map[string]*domain.RunRecord
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: make(map[string]*domain.RunRecord)}
}

func (l *fakeLedger) Create(_ context.Context, rec *domain.RunRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records[rec.RunID] = rec
	return nil
}

func (l *fakeLedger) UpdateStatus(_ context.Context, runID string, status domain.RunStatus, runErr string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[runID]
	if !ok {
		return errors.New("not found")
	}
	rec.Status = status
	rec.Error = runErr
	return nil
}

func (l *fakeLedger) get(runID string) (domain.RunRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[runID]
	if !ok {
		return domain.RunRecord{}, false
	}
	return *rec, true
}

func testConfig() *config.Config {
	return &config.Config{
		ComputeClusterName: "e2ecpucluster",
		NodeCount:          5,
		Timeout:            time.Minute,
		PollInterval:       time.Millisecond,
		EndpointName:       config.DefaultEndpointName,
		InputPath:          "sampleInput.csv",
		OutputPrefix:       "outputs/",
	}
}

func newTestTrigger(t *testing.T, cfg *config.Config, now func() time.Time) (*Trigger, *mltest.Server, *fakeLedger) {
	t.Helper()
	server := mltest.NewServer("ws")
	t.Cleanup(server.Close)
	server.AddCompute(domain.ComputeTarget{Name: "e2ecpucluster", MaxNodes: 11})

	ledger := newFakeLedger()
	trig := New(Options{
		Config:  cfg,
		Service: mlclient.NewClient(mlclient.Config{BaseURL: server.URL(), Workspace: server.Workspace()}),
		Ledger:  ledger,
		Logger:  slog.New(slog.DiscardHandler),
		Now:     now,
	})
	return trig, server, ledger
}

func fixedClock() func() time.Time {
	ts := time.Date(2024, 3, 1, 12, 30, 45, 500, time.UTC)
	return func() time.Time { return ts }
}

// --- Stamper Tests ---

func TestStamper_DistinctWithinSecond(t *testing.T) {
	s := NewStamper(fixedClock())

	seen := make(map[string]bool)
	for range 5 {
		path := OutputPath("outputs/", s.Next())
		if seen[path] {
			t.Fatalf("duplicate output path %s", path)
		}
		seen[path] = true
	}
}

func TestStamper_FollowsClock(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 30, 45, 0, time.UTC)
	s := NewStamper(func() time.Time { return now })

	first := s.Next()
	now = now.Add(10 * time.Second)
	second := s.Next()

	if second.Sub(first) != 10*time.Second {
		t.Errorf("expected stamps 10s apart, got %s", second.Sub(first))
	}
}

func TestOutputPath(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 5, 7, 999, time.UTC)

	if got := OutputPath("outputs/", ts); got != "outputs/20240301T090507" {
		t.Errorf("unexpected output path %s", got)
	}
}

// --- Run Tests ---

func TestTrigger_FirstRunCreatesEndpoint(t *testing.T) {
	trig, server, ledger := newTestTrigger(t, testConfig(), fixedClock())

	res, err := trig.Run(context.Background(), RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if res.Op != domain.PublishCreate {
		t.Errorf("expected create, got %s", res.Op)
	}
	if res.OutputPath != "outputs/20240301T123045" {
		t.Errorf("unexpected output path %s", res.OutputPath)
	}
	if res.Run.Status != domain.RunStatusCompleted {
		t.Errorf("expected Completed, got %s", res.Run.Status)
	}

	runs := server.Runs()
	if len(runs) != 1 {
		t.Fatalf("expected 1 run, got %d", len(runs))
	}
	if runs[0].Experiment != config.TriggerExperiment || runs[0].EndpointID != res.Endpoint.ID {
		t.Errorf("unexpected run %+v", runs[0])
	}
	if runs[0].Parameter("input_path") != "sampleInput.csv" || runs[0].Parameter("output_path") != res.OutputPath {
		t.Errorf("unexpected parameters %v", runs[0].Parameters)
	}

	rec, ok := ledger.get(res.Run.ID)
	if !ok {
		t.Fatal("run was not recorded")
	}
	if rec.Status != domain.RunStatusCompleted || rec.PublishOp != domain.PublishCreate {
		t.Errorf("unexpected record %+v", rec)
	}
}

func TestTrigger_RepeatedRunsAddVersionsAndDistinctPaths(t *testing.T) {
	trig, server, _ := newTestTrigger(t, testConfig(), fixedClock())
	ctx := context.Background()

	first, err := trig.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := trig.Run(ctx, RunOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if second.Op != domain.PublishAddVersion {
		t.Errorf("expected add_version, got %s", second.Op)
	}
	if second.Endpoint.ID != first.Endpoint.ID {
		t.Error("endpoint identity changed")
	}
	if server.EndpointCount() != 1 {
		t.Errorf("expected 1 endpoint, got %d", server.EndpointCount())
	}
	if first.OutputPath == second.OutputPath {
		t.Errorf("output paths must differ, both %s", first.OutputPath)
	}
}

func TestTrigger_ComputeNotFound(t *testing.T) {
	cfg := testConfig()
	cfg.ComputeClusterName = "missing"
	trig, server, _ := newTestTrigger(t, cfg, nil)

	_, err := trig.Run(context.Background(), RunOptions{})
	if !errors.Is(err, mlclient.ErrComputeNotFound) {
		t.Fatalf("expected ErrComputeNotFound, got %v", err)
	}
	if !strings.Contains(err.Error(), "compute missing is not found in workspace ws") {
		t.Errorf("unexpected message %q", err)
	}
	if server.Calls("publish_endpoint") != 0 {
		t.Error("nothing should be published without compute")
	}
}

func TestTrigger_PublishOnly(t *testing.T) {
	trig, server, _ := newTestTrigger(t, testConfig(), nil)

	res, err := trig.Run(context.Background(), RunOptions{PublishOnly: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Run != nil || len(server.Runs()) != 0 {
		t.Error("publish only must not submit a run")
	}
	if server.EndpointCount() != 1 {
		t.Errorf("expected 1 endpoint, got %d", server.EndpointCount())
	}
}

func TestTrigger_NoWait(t *testing.T) {
	trig, server, _ := newTestTrigger(t, testConfig(), nil)

	res, err := trig.Run(context.Background(), RunOptions{NoWait: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Run == nil || len(server.Runs()) != 1 {
		t.Fatal("run should be submitted")
	}
	if server.Calls("get_run") != 0 {
		t.Error("no wait must not poll the run")
	}
}

func TestTrigger_FailedRun(t *testing.T) {
	trig, server, ledger := newTestTrigger(t, testConfig(), nil)
	server.SetScript(config.TriggerExperiment, domain.RunStatusRunning, domain.RunStatusFailed)

	res, err := trig.Run(context.Background(), RunOptions{})
	if !errors.Is(err, supervisor.ErrRunFailed) {
		t.Fatalf("expected ErrRunFailed, got %v", err)
	}

	rec, _ := ledger.get(res.Run.ID)
	if rec.Status != domain.RunStatusFailed || rec.Error == "" {
		t.Errorf("failure not recorded: %+v", rec)
	}
}

func TestTrigger_TimeoutDoesNotCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Timeout = 10 * time.Millisecond
	trig, server, _ := newTestTrigger(t, cfg, nil)
	server.SetScript(config.TriggerExperiment, domain.RunStatusRunning)

	_, err := trig.Run(context.Background(), RunOptions{})
	if !errors.Is(err, supervisor.ErrRunTimeout) {
		t.Fatalf("expected ErrRunTimeout, got %v", err)
	}
	if len(server.Cancels()) != 0 {
		t.Errorf("trigger must not cancel its run, got %v", server.Cancels())
	}
}

func TestTrigger_InterruptLeavesRunInService(t *testing.T) {
	trig, server, ledger := newTestTrigger(t, testConfig(), nil)
	server.SetScript(config.TriggerExperiment, domain.RunStatusRunning)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	res, err := trig.Run(ctx, RunOptions{})
	if !errors.Is(err, supervisor.ErrInterrupted) {
		t.Fatalf("expected ErrInterrupted, got %v", err)
	}
	if len(server.Cancels()) != 0 {
		t.Errorf("trigger must not cancel its run on interrupt, got %v", server.Cancels())
	}
	if _, ok := ledger.get(res.Run.ID); !ok {
		t.Error("submitted run should stay in the ledger")
	}
}
