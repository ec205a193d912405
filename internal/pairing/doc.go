// Package pairing реализует Pairing Engine — распределение участников
// по группам с минимизацией повторных знакомств.
//
// Структура:
//   - history.go  — симметричный счётчик прошлых встреч
//   - pairing.go  — жадный алгоритм Engine.Compute
//   - validate.go — проверка инвариантов результата
//
// Алгоритм:
//  1. Перемешиваем Roster (равномерно, чтобы не было позиционного смещения)
//  2. Идём по участникам в перемешанном порядке; для каждого свободного
//     выбираем свободного кандидата с минимальным числом прошлых встреч.
//     Первый кандидат без встреч выбирается сразу.
//  3. Оставшийся без пары участник добавляется в последнюю группу (тройка).
//
// Engine не делает I/O. Результат случаен для каждого вызова, но форма
// (непересекающееся покрытие Roster группами по 2–3) гарантирована.
// Повторный запуск того же цикла предотвращает scheduler, а не Engine.
package pairing
