// Package api содержит read-only HTTP API.
//
// Структура:
//   - handler.go       — Handler с DI (интерфейсы хранилищ, scope, engine, logger)
//   - routes.go        — регистрация маршрутов
//   - middleware.go    — middleware (logging + метрики, recovery)
//   - response.go      — унифицированные JSON-ответы и обработка ошибок
//   - dto.go           — Data Transfer Objects (request/response)
//   - lease_handler.go — GET /lease
//   - scope_handler.go — scope, история пар, preview распределения
//   - cycle_handler.go — циклы и их группы
//
// API ничего не изменяет и не требует lease. Preview вычисляет
// распределение тем же pairing.Engine, что и планировщик, но не фиксирует
// его: результат может отличаться от того, что будет записано при commit.
package api
