package pairing

import (
	"fmt"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// Validate проверяет, что группы — непересекающееся покрытие Roster:
//   - каждый участник Roster ровно в одной группе
//   - в группах нет посторонних участников
//   - каждая группа из 2 или 3 человек
//
// Для Roster меньше двух групп быть не должно.
// Нарушение возвращается как domain.ErrInvariantViolation.
func Validate(roster domain.Roster, groups []domain.Group) error {
	if len(roster) < domain.MinGroupSize {
		if len(groups) != 0 {
			return fmt.Errorf("%w: %d groups for roster of %d", domain.ErrInvariantViolation, len(groups), len(roster))
		}
		return nil
	}

	inRoster := make(map[domain.ParticipantID]bool, len(roster))
	for _, p := range roster {
		inRoster[p.ID] = true
	}

	seen := make(map[domain.ParticipantID]int, len(roster))
	for gi, g := range groups {
		if g.Size() < domain.MinGroupSize || g.Size() > domain.MaxGroupSize {
			return fmt.Errorf("%w: group %d has %d members", domain.ErrInvariantViolation, gi, g.Size())
		}
		for _, m := range g.Members {
			if !inRoster[m.ID] {
				return fmt.Errorf("%w: participant %d is not in roster", domain.ErrInvariantViolation, m.ID)
			}
			if prev, ok := seen[m.ID]; ok {
				return fmt.Errorf("%w: participant %d in groups %d and %d", domain.ErrInvariantViolation, m.ID, prev, gi)
			}
			seen[m.ID] = gi
		}
	}

	if len(seen) != len(inRoster) {
		return fmt.Errorf("%w: %d of %d participants grouped", domain.ErrInvariantViolation, len(seen), len(inRoster))
	}
	return nil
}
