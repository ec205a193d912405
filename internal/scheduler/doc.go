// Package scheduler реализует Cycle Scheduler — конечный автомат циклов.
//
// Для каждого scope планировщик открывает окно сбора согласий по poll cron,
// после закрытия окна (pairing cron) вычисляет пары через pairing.Engine
// и атомарно фиксирует результат, после чего передаёт его в Notifier.
//
// Структура:
//   - scheduler.go — Scheduler (Tick, переходы фаз, outbox)
//   - runner.go    — Runner: захват lease, heartbeat, тики
//   - cron.go      — окна циклов по cron-выражениям с учётом timezone
//   - notifier.go  — интерфейс Notifier и LogNotifier
//
// Использование:
//
//	sched, err := scheduler.New(scheduler.Config{
//	    Scopes:   cfg.Scopes,
//	    Cycles:   cycleRepo,
//	    Roster:   rosterRepo,
//	    History:  historyRepo,
//	    Notifier: mq.NewNotifier(publisher, scopes), // опционально
//	    Logger:   logger,
//	})
//
//	runner := scheduler.NewRunner(scheduler.RunnerConfig{
//	    Leases:    leaseManager,
//	    Scheduler: sched,
//	})
//	runner.Run(ctx)
//
// Lease:
//
// Изменяющую работу выполняет только владелец lease. Runner вызывает Tick
// только с живым handle, а CycleStore.Commit повторно проверяет владение
// в той же транзакции, что и запись результата.
package scheduler
