// Package lease реализует Lease Manager — гарантию, что только один процесс
// выполняет изменяющую работу над циклами.
//
// Вместо удерживаемой блокировки (pg_advisory_lock живёт, пока живо
// соединение) используется lease с истечением: запись
// {owner_token, acquired_at, expires_at}, которую владелец продлевает
// heartbeat'ом. Если процесс убит без возможности что-то освободить,
// lease просто истекает, и следующий процесс её захватывает.
//
// Использование:
//
//	mgr := lease.NewManager(lease.Config{
//	    Store:  repo.NewLeaseRepo(pool),
//	    TTL:    30 * time.Second,
//	    Logger: logger,
//	})
//
//	h, err := mgr.TryAcquire(ctx)
//	if errors.Is(err, domain.ErrLeaseDenied) {
//	    return // lease у другого процесса
//	}
//	go mgr.Keep(ctx, h)                    // heartbeat каждые TTL/3
//	defer mgr.Release(context.Background(), h)
//
//	// Работа выполняется только пока h.Alive().
//	// h.Context() отменяется при потере lease.
//
// Продление, не удавшееся после нескольких попыток, приводит к
// добровольному отказу от lease (handle помечается потерянным) — чтобы
// после истечения TTL два процесса не считали себя владельцами.
package lease
