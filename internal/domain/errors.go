package domain

import "errors"

// Ошибки, общие для lease, pairing и scheduler.
var (
	// ErrLeaseDenied — lease сейчас принадлежит другому процессу.
	// Это не ошибка, а обычный сигнал: тик пропускается.
	ErrLeaseDenied = errors.New("lease held by another instance")

	// ErrLeaseLost — владение lease потеряно во время работы.
	// Любой незавершённый commit должен быть прерван.
	ErrLeaseLost = errors.New("lease lost")

	// ErrInsufficientParticipants — участников меньше двух.
	// Цикл фиксируется без групп.
	ErrInsufficientParticipants = errors.New("insufficient participants")

	// ErrInvariantViolation — результат распределения некорректен
	// (участник в двух группах, группа неверного размера и т.п.).
	ErrInvariantViolation = errors.New("pairing invariant violation")

	// ErrCycleAlreadyCommitted — цикл с таким ключом уже зафиксирован.
	ErrCycleAlreadyCommitted = errors.New("cycle already committed")

	// ErrDuplicateParticipant — участник встречается в Roster дважды.
	ErrDuplicateParticipant = errors.New("duplicate participant in roster")
)
