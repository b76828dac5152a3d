// Package mq публикует события жизненного цикла пайплайна в RabbitMQ.
//
// Структура:
//   - connection.go: соединение с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go: объявление exchange, очереди аудита и binding
//   - publisher.go: публикация сообщений и Notifier для остальных пакетов
//   - consumer.go: потребление сообщений (команда events tail)
//
// Типы сообщений:
//   - endpoint.published: опубликован endpoint или его новая версия
//   - run.submitted: run отправлен в сервис
//   - run.finished: ожидание run закончилось
//   - run.cancelled: run отменён этим процессом
//
// События необязательны: при пустом RABBITMQ_URL Notifier равен nil и
// все вызовы ничего не делают. Ошибка публикации только пишется в лог.
package mq
