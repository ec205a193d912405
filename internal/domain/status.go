package domain

// CycleStatus — сохранённый в БД статус цикла.
//
// Жизненный цикл:
//
//	COLLECTING → COMMITTED
type CycleStatus string

const (
	// CycleStatusCollecting — окно открыто, собираем согласия.
	CycleStatusCollecting CycleStatus = "COLLECTING"

	// CycleStatusCommitted — пары вычислены и записаны.
	CycleStatusCommitted CycleStatus = "COMMITTED"
)

// String возвращает строковое представление CycleStatus.
func (s CycleStatus) String() string {
	return string(s)
}

// IsTerminal возвращает true, если статус финальный.
func (s CycleStatus) IsTerminal() bool {
	return s == CycleStatusCommitted
}

// ParseCycleStatus парсит строку в CycleStatus.
func ParseCycleStatus(s string) CycleStatus {
	switch s {
	case "COMMITTED":
		return CycleStatusCommitted
	default:
		return CycleStatusCollecting
	}
}

// CyclePhase — фаза конечного автомата scope.
//
// Жизненный цикл:
//
//	IDLE → COLLECTING_OPTINS → PAIRING → COMMITTED → (IDLE следующего цикла)
//
// Фаза не хранится: она выводится из последнего цикла и текущего времени.
// PAIRING существует только в памяти владельца lease между закрытием окна
// и commit.
type CyclePhase string

const (
	// PhaseIdle — открытого цикла нет, ждём следующего окна.
	PhaseIdle CyclePhase = "IDLE"

	// PhaseCollectingOptIns — окно сбора согласий открыто.
	PhaseCollectingOptIns CyclePhase = "COLLECTING_OPTINS"

	// PhasePairing — окно закрыто, пары ещё не зафиксированы.
	PhasePairing CyclePhase = "PAIRING"

	// PhaseCommitted — последний цикл зафиксирован.
	PhaseCommitted CyclePhase = "COMMITTED"
)

// String возвращает строковое представление CyclePhase.
func (p CyclePhase) String() string {
	return string(p)
}
