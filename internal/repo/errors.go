package repo

import "errors"

// Ошибки журнала.
var (
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists: run с таким run_id уже записан.
	ErrAlreadyExists = errors.New("already exists")
)
