package domain

import "strings"

// Минимальный и максимальный размер группы.
const (
	MinGroupSize = 2
	MaxGroupSize = 3
)

// Group — результат распределения: 2 или 3 участника, которые встречаются.
//
// Состав группы фиксируется при commit и больше не меняется.
type Group struct {
	Members []Participant `json:"members"`
}

// NewGroup создаёт группу из участников.
func NewGroup(members ...Participant) Group {
	return Group{Members: members}
}

// Size возвращает количество участников.
func (g Group) Size() int {
	return len(g.Members)
}

// IsTriple возвращает true для группы из трёх человек.
func (g Group) IsTriple() bool {
	return len(g.Members) == MaxGroupSize
}

// Pairs разворачивает группу в попарные отношения.
// Тройка даёт три пары: каждая учитывается в истории отдельно.
func (g Group) Pairs() []Pair {
	pairs := make([]Pair, 0, len(g.Members))
	for i := 0; i < len(g.Members); i++ {
		for j := i + 1; j < len(g.Members); j++ {
			pairs = append(pairs, NewPair(g.Members[i].ID, g.Members[j].ID))
		}
	}
	return pairs
}

// Has возвращает true, если участник входит в группу.
func (g Group) Has(id ParticipantID) bool {
	for _, m := range g.Members {
		if m.ID == id {
			return true
		}
	}
	return false
}

// String возвращает "A ↔ B ↔ C".
func (g Group) String() string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.String()
	}
	return strings.Join(names, " ↔ ")
}
