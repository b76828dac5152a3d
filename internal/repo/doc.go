// Package repo хранит журнал отправленных runs в Postgres.
//
// Журнал необязателен: без DB_URL trigger и вложенный run работают без него.
// Схема одна таблица forecast_runs, она создаётся EnsureSchema при старте.
package repo
