// Package cli реализует команды forecast-cli для оператора.
//
// # Обзор
//
// CLI читает состояние из сервиса пайплайнов, журнала runs и шины событий.
// Публикацию и запуск выполняют forecast-trigger и forecast-run, CLI только
// показывает результат и умеет отменить run.
//
// # Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter), по умолчанию
//   - JSON (json.Encoder) с флагом --json
//
// Данные выводятся в stdout, сообщения в stderr. Это позволяет
// использовать pipe: forecast-cli run list --json | jq .
//
// # Commands
//
// Cobra-команды организованы по ресурсам:
//   - endpoint: show, versions
//   - run: list, show, cancel
//   - history: журнал runs из Postgres
//   - events: tail событий из RabbitMQ
//
// Каждая группа создаётся фабричной функцией (NewRunCmd и т.д.),
// принимающей замыкания для ленивого создания зависимостей и Output
// после разбора PersistentFlags.
package cli
