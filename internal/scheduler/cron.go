package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shaiso/randomcoffee/internal/domain"
)

// cronParser — парсер cron-выражений.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// maxLookback ограничивает поиск последнего срабатывания poll cron.
const maxLookback = 366 * 24 * time.Hour

// Window — окно сбора согласий одного цикла.
type Window struct {
	OpensAt  time.Time
	ClosesAt time.Time
}

// cycleSchedule — разобранные cron-выражения scope.
type cycleSchedule struct {
	poll    cron.Schedule
	pairing cron.Schedule
	loc     *time.Location
}

// newCycleSchedule разбирает poll_cron и pairing_cron scope.
func newCycleSchedule(scope *domain.Scope) (*cycleSchedule, error) {
	poll, err := cronParser.Parse(scope.PollCron)
	if err != nil {
		return nil, fmt.Errorf("parse poll cron %q: %w", scope.PollCron, err)
	}
	pairing, err := cronParser.Parse(scope.PairingCron)
	if err != nil {
		return nil, fmt.Errorf("parse pairing cron %q: %w", scope.PairingCron, err)
	}
	return &cycleSchedule{
		poll:    poll,
		pairing: pairing,
		loc:     scope.Location(),
	}, nil
}

// latestWindow возвращает окно, открытое последним срабатыванием poll cron
// в интервале (after, now]. false — poll cron не срабатывал.
//
// Окно может быть уже закрыто (now >= ClosesAt): такие окна
// пропускаются вызывающим кодом, а не досчитываются задним числом.
func (cs *cycleSchedule) latestWindow(after, now time.Time) (Window, bool) {
	if floor := now.Add(-maxLookback); after.Before(floor) {
		after = floor
	}

	var opensAt time.Time
	for t := cs.poll.Next(after.In(cs.loc)); !t.IsZero() && !t.After(now); t = cs.poll.Next(t) {
		opensAt = t
	}
	if opensAt.IsZero() {
		return Window{}, false
	}

	return Window{
		OpensAt:  opensAt.UTC(),
		ClosesAt: cs.pairing.Next(opensAt).UTC(),
	}, true
}

// nextWindow возвращает ближайшее окно, которое откроется после from.
func (cs *cycleSchedule) nextWindow(from time.Time) Window {
	opensAt := cs.poll.Next(from.In(cs.loc))
	return Window{
		OpensAt:  opensAt.UTC(),
		ClosesAt: cs.pairing.Next(opensAt).UTC(),
	}
}

// NextWindow вычисляет ближайшее окно scope после from с учётом timezone.
// Используется API для отображения расписания.
func NextWindow(scope *domain.Scope, from time.Time) (Window, error) {
	cs, err := newCycleSchedule(scope)
	if err != nil {
		return Window{}, err
	}
	return cs.nextWindow(from), nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := cronParser.Parse(cronExpr)
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return nil
}
