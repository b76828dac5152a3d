package domain

import (
	"time"

	"github.com/google/uuid"
)

// RunRecord хранит в журнале отправленный run и итог ожидания.
type RunRecord struct {
	ID           uuid.UUID  `json:"id"`
	Experiment   string     `json:"experiment"`
	RunID        string     `json:"run_id"`
	EndpointName string     `json:"endpoint_name,omitempty"`
	PublishOp    PublishOp  `json:"publish_op,omitempty"`
	InputPath    string     `json:"input_path"`
	OutputPath   string     `json:"output_path"`
	Status       RunStatus  `json:"status"`
	Error        string     `json:"error,omitempty"`
	SubmittedAt  time.Time  `json:"submitted_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
}

// NewRunRecord создаёт запись для только что отправленного run.
func NewRunRecord(run *Run, inputPath, outputPath string) *RunRecord {
	return &RunRecord{
		ID:          uuid.New(),
		Experiment:  run.Experiment,
		RunID:       run.ID,
		InputPath:   inputPath,
		OutputPath:  outputPath,
		Status:      run.Status,
		SubmittedAt: time.Now().UTC(),
	}
}
