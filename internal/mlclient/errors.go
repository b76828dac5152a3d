package mlclient

import (
	"errors"
	"fmt"
	"net/http"
)

// Коды ошибок, которые возвращает сервис в поле error.code.
const (
	CodeNotFound       = "NOT_FOUND"
	CodeConflict       = "CONFLICT"
	CodeRunInterrupted = "RUN_INTERRUPTED"
)

// Ошибки клиента сервиса пайплайнов.
var (
	// ErrNotFound: ресурс не найден (HTTP 404 или код NOT_FOUND).
	ErrNotFound = errors.New("not found")

	// ErrEndpointNotFound: pipeline endpoint с таким именем не опубликован.
	ErrEndpointNotFound = fmt.Errorf("pipeline endpoint %w", ErrNotFound)

	// ErrComputeNotFound: compute target с таким именем отсутствует в рабочем пространстве.
	ErrComputeNotFound = fmt.Errorf("compute target %w", ErrNotFound)

	// ErrRunInterrupted: сервис прервал ожидание run (например, узел вложенного run остановлен).
	ErrRunInterrupted = errors.New("run interrupted")
)

// APIError описывает ответ сервиса с HTTP статусом >= 400.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("API error: HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is сопоставляет APIError с общими ошибками клиента, чтобы вызывающий код
// проверял их через errors.Is, а не по тексту сообщения.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound || e.Code == CodeNotFound
	case ErrRunInterrupted:
		return e.Code == CodeRunInterrupted
	}
	return false
}
