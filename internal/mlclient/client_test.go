package mlclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient/mltest"
)

func newTestClient(t *testing.T) (*Client, *mltest.Server) {
	t.Helper()
	server := mltest.NewServer("ws")
	t.Cleanup(server.Close)

	client := NewClient(Config{BaseURL: server.URL(), Workspace: server.Workspace()})
	return client, server
}

// --- Workspace Tests ---

func TestClient_GetWorkspaceAndDatastore(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	ws, err := client.GetWorkspace(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ws.Name != "ws" {
		t.Errorf("expected workspace ws, got %s", ws.Name)
	}

	ds, err := client.GetDefaultDatastore(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ds.IsDefault {
		t.Error("expected default datastore")
	}
}

func TestClient_GetCompute_NotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetCompute(context.Background(), "missing")
	if !errors.Is(err, ErrComputeNotFound) {
		t.Fatalf("expected ErrComputeNotFound, got %v", err)
	}
	if !errors.Is(err, ErrNotFound) {
		t.Error("ErrComputeNotFound should wrap ErrNotFound")
	}
}

func TestClient_GetCompute_Found(t *testing.T) {
	client, server := newTestClient(t)
	server.AddCompute(domain.ComputeTarget{Name: "e2ecpucluster", MaxNodes: 11})

	ct, err := client.GetCompute(context.Background(), "e2ecpucluster")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ct.MaxNodes != 11 {
		t.Errorf("expected 11 nodes, got %d", ct.MaxNodes)
	}
}

// --- Endpoint Tests ---

func TestClient_GetEndpoint_NotFound(t *testing.T) {
	client, _ := newTestClient(t)

	_, err := client.GetEndpoint(context.Background(), "TriggerDemandForecastGeneration")
	if !errors.Is(err, ErrEndpointNotFound) {
		t.Fatalf("expected ErrEndpointNotFound, got %v", err)
	}
}

func TestClient_GetEndpoint_OtherErrorPropagates(t *testing.T) {
	client, server := newTestClient(t)
	server.Fail("get_endpoint", http.StatusForbidden, "FORBIDDEN", "no access")

	_, err := client.GetEndpoint(context.Background(), "x")
	if err == nil {
		t.Fatal("expected error")
	}
	if errors.Is(err, ErrEndpointNotFound) {
		t.Error("forbidden must not be reported as not found")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.StatusCode != http.StatusForbidden || apiErr.Code != "FORBIDDEN" {
		t.Errorf("unexpected api error %+v", apiErr)
	}
}

func TestClient_PublishAndAddVersion(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	def := domain.PipelineDefinition{Name: "p", Steps: []domain.StepDef{{Name: "run"}}}

	ep, err := client.PublishEndpoint(ctx, PublishEndpointRequest{Name: "ep", Pipeline: def})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ep.Versions) != 1 {
		t.Fatalf("expected 1 version, got %d", len(ep.Versions))
	}

	p, err := client.PublishPipeline(ctx, PublishPipelineRequest{Name: "ep_Pipeline", Pipeline: def})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	updated, err := client.AddDefaultVersion(ctx, "ep", p.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.ID != ep.ID {
		t.Error("endpoint identity should not change")
	}
	if updated.DefaultVersion != 2 {
		t.Errorf("expected default version 2, got %d", updated.DefaultVersion)
	}
	if server.Calls("add_version") != 1 {
		t.Errorf("expected 1 add_version call, got %d", server.Calls("add_version"))
	}
}

// --- Run Tests ---

func TestClient_SubmitPollCancel(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	server.SetScript("exp", domain.RunStatusQueued, domain.RunStatusRunning)

	run, err := client.SubmitPipelineRun(ctx, "exp", domain.PipelineDefinition{Name: "nested"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := client.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.RunStatusQueued {
		t.Errorf("expected Queued, got %s", got.Status)
	}

	cancelled, err := client.CancelRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cancelled.Status != domain.RunStatusCanceled {
		t.Errorf("expected Canceled, got %s", cancelled.Status)
	}

	runs, err := client.ListRuns(ctx, "exp", 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("unexpected runs %+v", runs)
	}
}

func TestClient_GetRun_Interrupted(t *testing.T) {
	client, server := newTestClient(t)
	ctx := context.Background()
	server.SetScript("exp", mltest.StatusInterrupt)

	run, err := client.SubmitPipelineRun(ctx, "exp", domain.PipelineDefinition{Name: "nested"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	_, err = client.GetRun(ctx, run.ID)
	if !errors.Is(err, ErrRunInterrupted) {
		t.Fatalf("expected ErrRunInterrupted, got %v", err)
	}
}

// --- HTTP Tests ---

func TestClient_Headers(t *testing.T) {
	var auth, requestID string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		requestID = r.Header.Get("X-Request-Id")
		if r.URL.Path != "/api/v1/workspaces/ws/datastores/default" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(map[string]any{"data": map[string]any{"name": "blob"}})
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL + "/", Workspace: "ws", AccessToken: "secret"})
	if _, err := client.GetDefaultDatastore(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if auth != "Bearer secret" {
		t.Errorf("unexpected Authorization %q", auth)
	}
	if requestID == "" {
		t.Error("X-Request-Id should be set")
	}
}

func TestClient_ErrorWithoutBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(Config{BaseURL: server.URL, Workspace: "ws"})
	_, err := client.GetWorkspace(context.Background())

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", apiErr.StatusCode)
	}
}
