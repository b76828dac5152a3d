package parallel

import (
	"context"
	"fmt"
	"regexp"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
)

// Имена входа и выхода шага.
const (
	partitionedName = "partitioned_historical_data"
	inputName       = "partitioned_tabular_input"
	outputName      = "parallelRunOutput"
)

// Имя шага: от 3 до 32 символов.
var stepNamePattern = regexp.MustCompile(`^[a-z]([-a-z0-9]*[a-z0-9])?$`)

// PartitionService описывает партиционирование входа в сервисе.
type PartitionService interface {
	PartitionDataset(ctx context.Context, req domain.PartitionRequest) (*domain.TabularDataset, error)
}

// PartitionInput делит CSV inputPath по GranularityAttributeKey и возвращает именованный вход шага.
func PartitionInput(ctx context.Context, svc PartitionService, datastore, inputPath string) (domain.DatasetInput, error) {
	ds, err := svc.PartitionDataset(ctx, domain.PartitionRequest{
		Datastore:     datastore,
		SourcePath:    inputPath,
		PartitionKeys: []string{config.PartitionKey},
		TargetPath:    "partition_by_" + config.PartitionKey,
		Name:          partitionedName,
	})
	if err != nil {
		return domain.DatasetInput{}, fmt.Errorf("partition %s: %w", inputPath, err)
	}
	return domain.DatasetInput{Name: inputName, DatasetID: ds.ID}, nil
}

// Output возвращает выход шага в datastore по пути outputPath.
func Output(datastore, outputPath string) *domain.OutputConfig {
	return &domain.OutputConfig{
		Name:        outputName,
		Datastore:   datastore,
		Destination: outputPath,
	}
}

// ValidateStepName проверяет имя шага по правилам сервиса.
func ValidateStepName(name string) error {
	if len(name) < 3 || len(name) > 32 {
		return fmt.Errorf("step name %q must be 3-32 characters", name)
	}
	if !stepNamePattern.MatchString(name) {
		return fmt.Errorf("step name %q must match %s", name, stepNamePattern)
	}
	return nil
}

// Step собирает parallel-run шаг. Шаг всегда выполняется заново.
func Step(name string, input domain.DatasetInput, output *domain.OutputConfig, cfg domain.ParallelRunConfig) (domain.StepDef, error) {
	if err := ValidateStepName(name); err != nil {
		return domain.StepDef{}, err
	}
	if err := ValidateConfig(cfg); err != nil {
		return domain.StepDef{}, fmt.Errorf("invalid parallel run config: %w", err)
	}

	return domain.StepDef{
		Name:          name,
		Kind:          domain.StepKindParallelRun,
		ComputeTarget: cfg.ComputeTarget,
		AllowReuse:    false,
		Inputs:        []domain.DatasetInput{input},
		Output:        output,
		ParallelRun:   &cfg,
	}, nil
}
