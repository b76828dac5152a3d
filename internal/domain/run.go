package domain

import (
	"time"
)

// Run описывает экземпляр выполнения пайплайна в сервисе.
//
// Run создаётся когда:
// - trigger отправляет опубликованный endpoint с параметрами
// - вложенный скрипт отправляет пайплайн с parallel-run шагом
//
// После перехода в финальный статус история run не меняется.
type Run struct {
	// ID выдаёт сервис при отправке.
	ID string `json:"id"`

	// Experiment задаёт группу, в которой сервис хранит run.
	Experiment string `json:"experiment"`

	// Status содержит последний известный статус.
	Status RunStatus `json:"status"`

	// EndpointID заполнен, если run запущен через pipeline endpoint.
	EndpointID string `json:"endpoint_id,omitempty"`

	// Parameters передаются в пайплайн как run parameters (input_path, output_path).
	Parameters map[string]string `json:"parameters,omitempty"`

	// PortalURL ведёт на страницу run в консоли сервиса.
	PortalURL string `json:"portal_url,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error содержит текст ошибки, если run завершился с Failed.
	Error string `json:"error,omitempty"`
}

// Duration возвращает продолжительность выполнения.
// Возвращает 0, если run ещё не завершён.
func (r *Run) Duration() time.Duration {
	if r.StartedAt == nil || r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(*r.StartedAt)
}

// IsFinished возвращает true, если run завершён (в любом статусе).
func (r *Run) IsFinished() bool {
	return r.Status.IsTerminal()
}

// Parameter возвращает значение run parameter или пустую строку.
func (r *Run) Parameter(name string) string {
	if r.Parameters == nil {
		return ""
	}
	return r.Parameters[name]
}
