// Package config содержит параметры, общие для trigger и вложенного run.
//
// Значения берутся из переменных окружения, для каждого есть значение
// по умолчанию. Файлов конфигурации нет: оба бинарника запускаются
// в контейнерах сервиса, где окружение задаётся при отправке run.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/forecastrun/internal/domain"
)

// Имена экспериментов и ресурсов в рабочем пространстве.
const (
	TriggerExperiment  = "DemandForecastGeneration_TriggerScript"
	ParallelExperiment = "DemandForecastGeneration_ParallelRun"

	DefaultEndpointName = "TriggerDemandForecastGeneration"
	EndpointDescription = "Initiate demand forecast generation."

	PartitionKey      = "GranularityAttributeKey"
	ForecastStepName  = "r-forecast"
	EntryScript       = "forecast.R"
	EntrySourceDir    = "REntryScript"
	EnvironmentName   = "parallel_run_step"
	RunScriptName     = "forecast-run"
	InputPathParam    = "input_path"
	OutputPathParam   = "output_path"
	DefaultOutputPath = "output"

	// DefaultBaseImage задаёт CPU образ, поверх которого собирается окружение воркеров.
	DefaultBaseImage = "mcr.microsoft.com/azureml/openmpi3.1.2-ubuntu18.04:20210615.v1"
)

// Значения по умолчанию.
const (
	defaultComputeCluster = "e2ecpucluster"

	// На каждом узле сервис поднимает по воркеру на ядро, поэтому итоговый
	// параллелизм равен node_count * ядра узла. Ещё один узел кластера
	// занимает сам вложенный run.
	defaultNodeCount = 5

	defaultTimeout      = 24 * time.Hour
	defaultPollInterval = 15 * time.Second
	defaultServiceURL   = "http://localhost:8090"
	defaultWorkspace    = "forecasting"
	defaultInputPath    = "sampleInput.csv"
	defaultOutputPrefix = "outputs/"
)

// Config содержит параметры запуска.
type Config struct {
	// Кластер и лимиты.
	ComputeClusterName string
	NodeCount          int
	Timeout            time.Duration
	PollInterval       time.Duration

	// Сервис пайплайнов.
	ServiceURL   string
	Workspace    string
	AccessToken  string
	EndpointName string

	// Параметры run.
	InputPath    string
	OutputPrefix string
	BaseImage    string

	// Необязательная инфраструктура: пустое значение отключает компонент.
	DatabaseURL    string
	RabbitMQURL    string
	PushgatewayURL string
}

// Load читает Config из переменных окружения.
func Load() (*Config, error) {
	cfg := &Config{
		ComputeClusterName: getEnvOrDefault("FORECAST_COMPUTE_CLUSTER", defaultComputeCluster),
		ServiceURL:         getEnvOrDefault("FORECAST_SERVICE_URL", defaultServiceURL),
		Workspace:          getEnvOrDefault("FORECAST_WORKSPACE", defaultWorkspace),
		AccessToken:        os.Getenv("FORECAST_ACCESS_TOKEN"),
		EndpointName:       getEnvOrDefault("FORECAST_ENDPOINT_NAME", DefaultEndpointName),
		InputPath:          getEnvOrDefault("FORECAST_INPUT_PATH", defaultInputPath),
		OutputPrefix:       getEnvOrDefault("FORECAST_OUTPUT_PREFIX", defaultOutputPrefix),
		BaseImage:          getEnvOrDefault("FORECAST_BASE_IMAGE", DefaultBaseImage),
		DatabaseURL:        os.Getenv("DB_URL"),
		RabbitMQURL:        os.Getenv("RABBITMQ_URL"),
		PushgatewayURL:     os.Getenv("PUSHGATEWAY_URL"),
	}

	var err error
	if cfg.NodeCount, err = getEnvInt("FORECAST_NODE_COUNT", defaultNodeCount); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = getEnvSeconds("FORECAST_TIMEOUT_SEC", defaultTimeout); err != nil {
		return nil, err
	}
	if cfg.PollInterval, err = getEnvSeconds("FORECAST_POLL_INTERVAL_SEC", defaultPollInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate проверяет значения, которые сервис всё равно отверг бы.
func (c *Config) Validate() error {
	if c.ComputeClusterName == "" {
		return fmt.Errorf("compute cluster name is required")
	}
	if c.NodeCount < 1 || c.NodeCount > domain.MaxNodeCount {
		return fmt.Errorf("node count must be between 1 and %d, got %d", domain.MaxNodeCount, c.NodeCount)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.ServiceURL == "" {
		return fmt.Errorf("service url is required")
	}
	if c.Workspace == "" {
		return fmt.Errorf("workspace is required")
	}
	if c.EndpointName == "" {
		return fmt.Errorf("endpoint name is required")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	value, ok := os.LookupEnv(key)
	if !ok || value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return n, nil
}

func getEnvSeconds(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return time.Duration(n) * time.Second, nil
}
