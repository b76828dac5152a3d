package parallel

import (
	"errors"
	"fmt"
	"slices"

	"github.com/shaiso/forecastrun/internal/config"
	"github.com/shaiso/forecastrun/internal/domain"
)

// Значения конфигурации parallel-run шага.
const (
	configDescription = "Generate demand forecast."
	loggingLevel      = "DEBUG"
)

// NewConfig собирает конфигурацию шага для кластера compute.
func NewConfig(cfg *config.Config, compute *domain.ComputeTarget, env domain.Environment) domain.ParallelRunConfig {
	return domain.ParallelRunConfig{
		EntryScript:     config.EntryScript,
		SourceDirectory: config.EntrySourceDir,
		Description:     configDescription,
		PartitionKeys:   []string{config.PartitionKey},
		// Число выходных строк меньше входных, поэтому сверка отключена.
		ErrorThreshold: domain.ErrorThresholdDisabled,
		OutputAction:   domain.OutputActionAppendRow,
		NodeCount:      cfg.NodeCount,
		// Без сверки строк упавшая партиция видна только по этому лимиту.
		AllowedFailedCount: 0,
		LoggingLevel:       loggingLevel,
		ComputeTarget:      compute.Name,
		Environment:        env,
	}
}

// ValidateConfig проверяет инварианты конфигурации шага.
func ValidateConfig(c domain.ParallelRunConfig) error {
	var errs []error

	if c.ErrorThreshold != domain.ErrorThresholdDisabled {
		errs = append(errs, fmt.Errorf("error threshold must be %d, got %d", domain.ErrorThresholdDisabled, c.ErrorThreshold))
	}
	if c.AllowedFailedCount != 0 {
		errs = append(errs, fmt.Errorf("allowed failed count must be 0, got %d", c.AllowedFailedCount))
	}
	if c.OutputAction != domain.OutputActionAppendRow {
		errs = append(errs, fmt.Errorf("output action must be %q, got %q", domain.OutputActionAppendRow, c.OutputAction))
	}
	if c.NodeCount < 1 || c.NodeCount > domain.MaxNodeCount {
		errs = append(errs, fmt.Errorf("node count must be between 1 and %d, got %d", domain.MaxNodeCount, c.NodeCount))
	}
	if !slices.Contains(c.PartitionKeys, config.PartitionKey) {
		errs = append(errs, fmt.Errorf("partition keys must include %s", config.PartitionKey))
	}
	if c.EntryScript == "" {
		errs = append(errs, errors.New("entry script is required"))
	}
	if c.ComputeTarget == "" {
		errs = append(errs, errors.New("compute target is required"))
	}
	if c.Environment.Name == "" {
		errs = append(errs, errors.New("environment is required"))
	}

	return errors.Join(errs...)
}
