// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — соединение с RabbitMQ (reconnect, publisher confirms)
//   - topology.go   — объявление exchanges, queues, bindings, tap-очередь
//   - publisher.go  — публикация событий циклов
//   - notifier.go   — scheduler.Notifier поверх Publisher
//   - consumer.go   — потребление сообщений (CLI watch)
//
// Типы сообщений:
//   - cycle.committed — цикл зафиксирован, пары готовы к рассылке
//   - roster.opened   — открыто окно сбора согласий
//
// ID сообщения детерминирован (cycle id + тип), поэтому повторная
// отправка из outbox распознаётся получателем как дубликат.
//
// Exchanges:
//   - coffee.cycles — события циклов
//   - coffee.dlq    — dead letter queue
package mq
