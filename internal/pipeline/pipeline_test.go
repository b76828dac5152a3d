package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mlclient/mltest"
	"github.com/shaiso/forecastrun/internal/telemetry"
)

const endpointName = "TriggerDemandForecastGeneration"

func newTestPublisher(t *testing.T) (*Publisher, *mltest.Server, *telemetry.Metrics) {
	t.Helper()
	server := mltest.NewServer("ws")
	t.Cleanup(server.Close)

	metrics := telemetry.NewMetrics()
	client := mlclient.NewClient(mlclient.Config{BaseURL: server.URL(), Workspace: server.Workspace()})
	p := NewPublisher(Config{
		Service: client,
		Metrics: metrics,
		Logger:  slog.New(slog.DiscardHandler),
	})
	return p, server, metrics
}

func testDefinition() domain.PipelineDefinition {
	return TriggerDefinition(&config.Config{
		ComputeClusterName: "e2ecpucluster",
		EndpointName:       endpointName,
		InputPath:          "sampleInput.csv",
	})
}

// --- Resolve Tests ---

func TestResolve_NotFoundPlansCreate(t *testing.T) {
	p, _, _ := newTestPublisher(t)

	plan, err := p.Resolve(context.Background(), endpointName)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Op != domain.PublishCreate {
		t.Errorf("expected create, got %s", plan.Op)
	}
	if plan.Endpoint != nil {
		t.Error("create plan should not carry an endpoint")
	}
}

func TestResolve_OtherErrorPropagates(t *testing.T) {
	p, server, _ := newTestPublisher(t)
	server.Fail("get_endpoint", http.StatusUnauthorized, "UNAUTHORIZED", "token expired")

	_, err := p.Resolve(context.Background(), endpointName)
	if err == nil {
		t.Fatal("expected error")
	}

	var apiErr *mlclient.APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected wrapped 401 APIError, got %v", err)
	}
	if server.Calls("publish_endpoint") != 0 {
		t.Error("nothing should be published when lookup fails")
	}
}

// --- PublishOrUpdate Tests ---

func TestPublishOrUpdate_CreatesEndpointWithOneVersion(t *testing.T) {
	p, server, metrics := newTestPublisher(t)

	ep, op, err := p.PublishOrUpdate(context.Background(), endpointName, testDefinition(), config.EndpointDescription)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if op != domain.PublishCreate {
		t.Errorf("expected create, got %s", op)
	}
	if server.EndpointCount() != 1 {
		t.Errorf("expected 1 endpoint, got %d", server.EndpointCount())
	}
	if len(ep.Versions) != 1 {
		t.Errorf("expected 1 version, got %d", len(ep.Versions))
	}
	if server.Calls("add_version") != 0 {
		t.Error("create must not add versions")
	}

	expected := `
# HELP forecast_endpoint_publish_total Pipeline endpoint publications by operation (create, add_version)
# TYPE forecast_endpoint_publish_total counter
forecast_endpoint_publish_total{op="create"} 1
`
	if err := testutil.GatherAndCompare(metrics.Registry(), strings.NewReader(expected), "forecast_endpoint_publish_total"); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
}

func TestPublishOrUpdate_ExistingAddsOneVersion(t *testing.T) {
	p, server, _ := newTestPublisher(t)
	ctx := context.Background()

	first, _, err := p.PublishOrUpdate(ctx, endpointName, testDefinition(), config.EndpointDescription)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	second, op, err := p.PublishOrUpdate(ctx, endpointName, testDefinition(), config.EndpointDescription)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if op != domain.PublishAddVersion {
		t.Errorf("expected add_version, got %s", op)
	}
	if second.ID != first.ID {
		t.Errorf("endpoint identity changed: %s -> %s", first.ID, second.ID)
	}
	if len(second.Versions) != len(first.Versions)+1 {
		t.Errorf("expected exactly one more version, got %d -> %d", len(first.Versions), len(second.Versions))
	}
	if second.DefaultVersion != 2 {
		t.Errorf("new version should become default, got %d", second.DefaultVersion)
	}
	if server.EndpointCount() != 1 {
		t.Errorf("expected 1 endpoint, got %d", server.EndpointCount())
	}
	if server.Calls("publish_pipeline") != 1 {
		t.Errorf("expected 1 pipeline publish, got %d", server.Calls("publish_pipeline"))
	}
}

func TestPublishOrUpdate_AddVersionFailure(t *testing.T) {
	p, server, _ := newTestPublisher(t)
	ctx := context.Background()

	if _, _, err := p.PublishOrUpdate(ctx, endpointName, testDefinition(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	server.Fail("add_version", http.StatusInternalServerError, "INTERNAL_ERROR", "boom")

	_, op, err := p.PublishOrUpdate(ctx, endpointName, testDefinition(), "")
	if err == nil {
		t.Fatal("expected error")
	}
	if op != domain.PublishAddVersion {
		t.Errorf("expected add_version op with error, got %q", op)
	}
}

func TestApply_UnknownOp(t *testing.T) {
	p, _, _ := newTestPublisher(t)

	_, err := p.Apply(context.Background(), domain.PublishPlan{Op: "replace", Name: "x"}, domain.PipelineDefinition{}, "")
	if err == nil {
		t.Fatal("expected error for unknown op")
	}
}

// --- Definition Tests ---

func TestTriggerDefinition(t *testing.T) {
	def := testDefinition()

	wantParams := []domain.PipelineParameter{
		{Name: "input_path", DefaultValue: "sampleInput.csv"},
		{Name: "output_path", DefaultValue: "output"},
	}
	if diff := cmp.Diff(wantParams, def.Parameters); diff != "" {
		t.Errorf("parameters mismatch (-want +got):\n%s", diff)
	}

	if len(def.Steps) != 1 {
		t.Fatalf("expected 1 step, got %d", len(def.Steps))
	}
	step := def.Steps[0]
	if step.AllowReuse {
		t.Error("trigger step must not allow reuse")
	}
	if step.ComputeTarget != "e2ecpucluster" {
		t.Errorf("unexpected compute target %s", step.ComputeTarget)
	}

	params := map[string]string{"input_path": "in.csv", "output_path": "outputs/20240101T000000"}
	var args []string
	for _, a := range step.Arguments {
		args = append(args, a.Resolve(params))
	}
	want := []string{"--input_path", "in.csv", "--output_path", "outputs/20240101T000000"}
	if diff := cmp.Diff(want, args); diff != "" {
		t.Errorf("arguments mismatch (-want +got):\n%s", diff)
	}
}
