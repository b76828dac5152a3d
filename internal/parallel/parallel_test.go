package parallel

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
	"github.com/shaiso/forecastrun/internal/mlclient"
	"github.com/shaiso/forecastrun/internal/mlclient/mltest"
)

func testConfig(t *testing.T) domain.ParallelRunConfig {
	t.Helper()
	env, err := ForecastEnvironment(config.DefaultBaseImage)
	if err != nil {
		t.Fatalf("environment: %v", err)
	}
	return NewConfig(&config.Config{NodeCount: 5}, &domain.ComputeTarget{Name: "e2ecpucluster"}, env)
}

// --- Environment Tests ---

func TestForecastEnvironment(t *testing.T) {
	env, err := ForecastEnvironment(config.DefaultBaseImage)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if env.Name != "parallel_run_step" {
		t.Errorf("unexpected name %s", env.Name)
	}
	if !env.UserManagedDependencies {
		t.Error("dependencies must be user managed")
	}
	if env.BaseImage != "" {
		t.Errorf("base image must be empty, got %s", env.BaseImage)
	}
	if !strings.HasPrefix(env.Dockerfile, "FROM "+config.DefaultBaseImage+"\n") {
		t.Errorf("dockerfile should start with FROM base image:\n%s", env.Dockerfile)
	}
	for _, pkg := range RPackages {
		if !strings.Contains(env.Dockerfile, `install.packages("`+pkg+`"`) {
			t.Errorf("dockerfile does not install %s", pkg)
		}
	}
}

func TestForecastEnvironment_InvalidImage(t *testing.T) {
	_, err := ForecastEnvironment("Not A Valid::Image")
	if err == nil {
		t.Fatal("expected error for invalid image reference")
	}
}

// --- Config Tests ---

func TestNewConfig(t *testing.T) {
	c := testConfig(t)

	if c.ErrorThreshold != -1 {
		t.Errorf("error threshold must be -1, got %d", c.ErrorThreshold)
	}
	if c.AllowedFailedCount != 0 {
		t.Errorf("allowed failed count must be 0, got %d", c.AllowedFailedCount)
	}
	if c.OutputAction != "append_row" {
		t.Errorf("unexpected output action %s", c.OutputAction)
	}
	if diff := cmp.Diff([]string{"GranularityAttributeKey"}, c.PartitionKeys); diff != "" {
		t.Errorf("partition keys mismatch (-want +got):\n%s", diff)
	}
	if c.EntryScript != "forecast.R" || c.SourceDirectory != "REntryScript" {
		t.Errorf("unexpected entry %s/%s", c.SourceDirectory, c.EntryScript)
	}
	if c.NodeCount != 5 || c.ComputeTarget != "e2ecpucluster" {
		t.Errorf("unexpected cluster settings %d/%s", c.NodeCount, c.ComputeTarget)
	}
	if c.LoggingLevel != "DEBUG" {
		t.Errorf("unexpected logging level %s", c.LoggingLevel)
	}
	if err := ValidateConfig(c); err != nil {
		t.Errorf("built config should be valid: %v", err)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *domain.ParallelRunConfig)
	}{
		{"error threshold", func(c *domain.ParallelRunConfig) { c.ErrorThreshold = 10 }},
		{"allowed failed", func(c *domain.ParallelRunConfig) { c.AllowedFailedCount = 1 }},
		{"output action", func(c *domain.ParallelRunConfig) { c.OutputAction = "summary_only" }},
		{"zero nodes", func(c *domain.ParallelRunConfig) { c.NodeCount = 0 }},
		{"too many nodes", func(c *domain.ParallelRunConfig) { c.NodeCount = 11 }},
		{"partition keys", func(c *domain.ParallelRunConfig) { c.PartitionKeys = nil }},
		{"compute", func(c *domain.ParallelRunConfig) { c.ComputeTarget = "" }},
		{"environment", func(c *domain.ParallelRunConfig) { c.Environment = domain.Environment{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := testConfig(t)
			tt.modify(&c)
			if err := ValidateConfig(c); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

// --- Step Tests ---

func TestValidateStepName(t *testing.T) {
	tests := []struct {
		name  string
		valid bool
	}{
		{"r-forecast", true},
		{"abc", true},
		{"step240101-1200", true},
		{"ab", false},
		{strings.Repeat("a", 33), false},
		{"R-forecast", false},
		{"1forecast", false},
		{"forecast-", false},
		{"r_forecast", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateStepName(tt.name)
			if tt.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tt.valid && err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestPartitionInput(t *testing.T) {
	server := mltest.NewServer("ws")
	defer server.Close()
	client := mlclient.NewClient(mlclient.Config{BaseURL: server.URL(), Workspace: server.Workspace()})

	input, err := PartitionInput(context.Background(), client, "workspaceblobstore", "sampleInput.csv")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if input.Name != "partitioned_tabular_input" || input.DatasetID == "" {
		t.Errorf("unexpected input %+v", input)
	}

	want := []domain.PartitionRequest{{
		Datastore:     "workspaceblobstore",
		SourcePath:    "sampleInput.csv",
		PartitionKeys: []string{"GranularityAttributeKey"},
		TargetPath:    "partition_by_GranularityAttributeKey",
		Name:          "partitioned_historical_data",
	}}
	if diff := cmp.Diff(want, server.Partitions()); diff != "" {
		t.Errorf("partition request mismatch (-want +got):\n%s", diff)
	}
}

type failingPartitioner struct{}

func (failingPartitioner) PartitionDataset(context.Context, domain.PartitionRequest) (*domain.TabularDataset, error) {
	return nil, errors.New("datastore unavailable")
}

func TestPartitionInput_Error(t *testing.T) {
	_, err := PartitionInput(context.Background(), failingPartitioner{}, "ds", "in.csv")
	if err == nil || !strings.Contains(err.Error(), "in.csv") {
		t.Errorf("expected error mentioning input path, got %v", err)
	}
}

func TestStep(t *testing.T) {
	c := testConfig(t)
	input := domain.DatasetInput{Name: "partitioned_tabular_input", DatasetID: "ds-1"}
	output := Output("workspaceblobstore", "outputs/20240101T000000")

	step, err := Step(config.ForecastStepName, input, output, c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if step.Kind != domain.StepKindParallelRun {
		t.Errorf("unexpected kind %s", step.Kind)
	}
	if step.AllowReuse {
		t.Error("parallel step must not allow reuse")
	}
	if step.Output.Name != "parallelRunOutput" || step.Output.Destination != "outputs/20240101T000000" {
		t.Errorf("unexpected output %+v", step.Output)
	}
	if diff := cmp.Diff(&c, step.ParallelRun); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestStep_RejectsInvalid(t *testing.T) {
	c := testConfig(t)

	if _, err := Step("Bad Name", domain.DatasetInput{}, nil, c); err == nil {
		t.Error("expected step name error")
	}

	c.ErrorThreshold = 0
	if _, err := Step("r-forecast", domain.DatasetInput{}, nil, c); err == nil {
		t.Error("expected config error")
	}
}
