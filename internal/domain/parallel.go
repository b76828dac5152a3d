package domain

// Значения ParallelRunConfig, которые сервис интерпретирует особым образом.
const (
	// ErrorThresholdDisabled отключает сверку количества выходных строк с входными.
	ErrorThresholdDisabled = -1

	// OutputActionAppendRow склеивает строки всех minibatch в один файл без заголовка.
	OutputActionAppendRow = "append_row"

	// MaxNodeCount ограничивает число узлов кластера для parallel-run шага.
	MaxNodeCount = 10
)

// ParallelRunConfig описывает раздачу партиций входных данных по кластеру.
//
// Каждая партиция (minibatch) обрабатывается одним вызовом внешнего скрипта.
// Конфигурация собирается заново на каждую отправку и не сохраняется.
type ParallelRunConfig struct {
	// EntryScript запускается воркером для каждой партиции.
	EntryScript     string `json:"entry_script"`
	SourceDirectory string `json:"source_directory"`
	Description     string `json:"description,omitempty"`

	// PartitionKeys задаёт колонки, по которым табличный вход делится на партиции.
	PartitionKeys []string `json:"partition_keys"`

	// ErrorThreshold ограничивает расхождение числа выходных и входных строк.
	// -1 означает, что расхождение никогда не считается ошибкой.
	ErrorThreshold int `json:"error_threshold"`

	OutputAction string `json:"output_action"`
	NodeCount    int    `json:"node_count"`

	// AllowedFailedCount задаёт число minibatch, которым разрешено упасть.
	AllowedFailedCount int `json:"allowed_failed_count"`

	LoggingLevel  string      `json:"logging_level,omitempty"`
	ComputeTarget string      `json:"compute_target"`
	Environment   Environment `json:"environment"`
}

// Environment описывает контейнерное окружение воркеров.
type Environment struct {
	Name string `json:"name"`

	// UserManagedDependencies запрещает сервису ставить зависимости поверх образа.
	UserManagedDependencies bool `json:"user_managed_dependencies"`

	// BaseImage пуст, когда образ целиком описан Dockerfile.
	BaseImage  string `json:"base_image,omitempty"`
	Dockerfile string `json:"dockerfile,omitempty"`

	// Version присваивает сервис при регистрации.
	Version string `json:"version,omitempty"`
}
