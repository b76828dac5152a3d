package repo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/forecastrun/internal/domain"
)

// uniqueViolation задаёт код ошибки Postgres для нарушения уникальности.
const uniqueViolation = "23505"

const selectColumns = `
	SELECT id, experiment, run_id, endpoint_name, publish_op, input_path, output_path,
	       status, error, submitted_at, finished_at
	FROM forecast_runs
`

// Ledger хранит журнал отправленных runs.
type Ledger struct {
	pool *pgxpool.Pool
}

// NewLedger создаёт Ledger.
func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Create записывает отправленный run.
func (l *Ledger) Create(ctx context.Context, rec *domain.RunRecord) error {
	query := `
		INSERT INTO forecast_runs (id, experiment, run_id, endpoint_name, publish_op,
		                           input_path, output_path, status, error, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := l.pool.Exec(ctx, query,
		rec.ID,
		rec.Experiment,
		rec.RunID,
		nullString(rec.EndpointName),
		nullString(string(rec.PublishOp)),
		rec.InputPath,
		rec.OutputPath,
		rec.Status,
		nullString(rec.Error),
		rec.SubmittedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("run %s: %w", rec.RunID, ErrAlreadyExists)
		}
		return fmt.Errorf("insert run record: %w", err)
	}
	return nil
}

// UpdateStatus записывает статус, с которым закончилось ожидание run.
// finished_at заполняется только для финального статуса.
func (l *Ledger) UpdateStatus(ctx context.Context, runID string, status domain.RunStatus, runErr string) error {
	query := `
		UPDATE forecast_runs
		SET status = $2, error = $3, finished_at = $4
		WHERE run_id = $1
	`
	var finishedAt *time.Time
	if status.IsTerminal() {
		now := time.Now().UTC()
		finishedAt = &now
	}
	result, err := l.pool.Exec(ctx, query, runID, status, nullString(runErr), finishedAt)
	if err != nil {
		return fmt.Errorf("update run record: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByRunID возвращает запись по ID run в сервисе.
func (l *Ledger) GetByRunID(ctx context.Context, runID string) (*domain.RunRecord, error) {
	rec, err := scanRecord(l.pool.QueryRow(ctx, selectColumns+` WHERE run_id = $1`, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// ListRecent возвращает последние limit записей, новые первыми.
func (l *Ledger) ListRecent(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	rows, err := l.pool.Query(ctx, selectColumns+` ORDER BY submitted_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	var records []domain.RunRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, *rec)
	}
	return records, rows.Err()
}

// --- Helpers ---

// scanRecord читает одну строку. pgx.Rows тоже реализует pgx.Row.
func scanRecord(row pgx.Row) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	var endpointName, publishOp, runErr *string

	err := row.Scan(
		&rec.ID,
		&rec.Experiment,
		&rec.RunID,
		&endpointName,
		&publishOp,
		&rec.InputPath,
		&rec.OutputPath,
		&rec.Status,
		&runErr,
		&rec.SubmittedAt,
		&rec.FinishedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan run record: %w", err)
	}

	rec.EndpointName = deref(endpointName)
	rec.PublishOp = domain.PublishOp(deref(publishOp))
	rec.Error = deref(runErr)
	return &rec, nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
