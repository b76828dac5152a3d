package supervisor

import (
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/forecastrun/internal/domain"
)

// Ошибки ожидания run.
var (
	// ErrRunTimeout: run не пришёл в финальный статус за отведённое время.
	ErrRunTimeout = errors.New("run timed out")

	// ErrInterrupted: ожидание прервано сигналом или сервисом.
	ErrInterrupted = errors.New("run interrupted")

	// ErrRunFailed: run завершился со статусом Failed.
	ErrRunFailed = errors.New("run failed")

	// ErrRunCanceled: run отменён до завершения.
	ErrRunCanceled = errors.New("run canceled")
)

// TimeoutError описывает run, который остался в нефинальном статусе.
type TimeoutError struct {
	RunID      string
	Timeout    time.Duration
	LastStatus domain.RunStatus
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("run %s did not finish within %s, last status %q", e.RunID, e.Timeout, e.LastStatus)
}

func (e *TimeoutError) Unwrap() error {
	return ErrRunTimeout
}

// statusError переводит финальный статус в ошибку. Для успешных статусов nil.
func statusError(run *domain.Run) error {
	switch run.Status {
	case domain.RunStatusFailed:
		if run.Error != "" {
			return fmt.Errorf("%w: run %s: %s", ErrRunFailed, run.ID, run.Error)
		}
		return fmt.Errorf("%w: run %s", ErrRunFailed, run.ID)
	case domain.RunStatusCanceled:
		return fmt.Errorf("%w: run %s", ErrRunCanceled, run.ID)
	}
	return nil
}
