// Package cli реализует инструмент командной строки random coffee.
//
// # Обзор
//
// CLI — клиентская утилита для наблюдения за планировщиком. Все команды,
// кроме watch, работают через HTTP API и не импортируют внутренние пакеты
// системы. Команда watch подключается к RabbitMQ напрямую через internal/mq.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API. Инкапсулирует запросы, парсинг ответов
// (DataResponse, ListResponse, ErrorResponse) и обработку ошибок:
// ответ с ошибкой возвращается как *APIError.
//
//	client := cli.NewClient("http://localhost:8080")
//	scopes, err := client.ListScopes(ctx)
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, служебные сообщения — в stderr.
// Это позволяет использовать pipe: coffee scope list --json | jq .
//
// ## Commands
//
//   - lease show
//   - scope list
//   - cycle list SCOPE, cycle show ID
//   - history SCOPE
//   - preview SCOPE CYCLE_KEY
//   - watch
//
// Каждая команда создаётся фабричной функцией (NewCycleCmd и т.д.),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
