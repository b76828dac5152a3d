package domain

// RunStatus описывает статус run на стороне сервиса пайплайнов.
//
// Жизненный цикл:
//
//	NotStarted → Queued → Preparing → Starting → Running → Finalizing → Completed
//	                                                     ↘ Failed
//	(любой нефинальный) → CancelRequested → Canceled
//
// Finished сервис возвращает для шагов, завершившихся без явного Completed.
// Сервис может прислать и неизвестное значение: оно считается нефинальным.
type RunStatus string

const (
	RunStatusNotStarted      RunStatus = "NotStarted"
	RunStatusQueued          RunStatus = "Queued"
	RunStatusPreparing       RunStatus = "Preparing"
	RunStatusStarting        RunStatus = "Starting"
	RunStatusProvisioning    RunStatus = "Provisioning"
	RunStatusRunning         RunStatus = "Running"
	RunStatusFinalizing      RunStatus = "Finalizing"
	RunStatusCancelRequested RunStatus = "CancelRequested"

	// Финальные статусы.
	RunStatusCompleted RunStatus = "Completed"
	RunStatusFailed    RunStatus = "Failed"
	RunStatusCanceled  RunStatus = "Canceled"
	RunStatusFinished  RunStatus = "Finished"
)

// TerminalStatuses перечисляет статусы, после которых run больше не меняется.
var TerminalStatuses = []RunStatus{
	RunStatusCompleted,
	RunStatusFailed,
	RunStatusCanceled,
	RunStatusFinished,
}

// IsTerminal возвращает true, если статус финальный (run завершён).
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCanceled, RunStatusFinished:
		return true
	default:
		return false
	}
}

// IsSuccess возвращает true для успешно завершённого run.
func (s RunStatus) IsSuccess() bool {
	return s == RunStatusCompleted || s == RunStatusFinished
}

// String возвращает строковое представление RunStatus.
func (s RunStatus) String() string {
	return string(s)
}
