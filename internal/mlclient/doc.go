// Package mlclient реализует клиент REST API управляемого сервиса пайплайнов.
//
// # Обзор
//
// Клиент покрывает ровно те операции, которые нужны trigger и вложенному run:
// рабочее пространство и хранилище, compute target, публикацию endpoint и
// версий, партиционирование датасета, регистрацию окружения, отправку run,
// опрос статуса и отмену.
//
// Все ответы завёрнуты в {"data": ...}, ошибки в {"error": {"code", "message"}}.
// Ошибки возвращаются как *APIError и сопоставляются с ErrNotFound и
// ErrRunInterrupted через errors.Is:
//
//	ep, err := client.GetEndpoint(ctx, name)
//	if errors.Is(err, mlclient.ErrEndpointNotFound) {
//		// endpoint ещё не опубликован
//	}
//
// Пакет mltest содержит in-memory реализацию того же контракта для тестов.
package mlclient
