// Package telemetry обеспечивает наблюдаемость trigger и вложенного run.
//
// Включает:
//   - logging.go: structured logging через slog
//   - metrics.go: Prometheus метрики и отправка в Pushgateway
//
// Оба бинарника короткоживущие, поэтому метрики не отдаются через
// /metrics, а отправляются в Pushgateway перед выходом.
package telemetry
