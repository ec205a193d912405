package pairing

import (
	"fmt"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// Engine — жадный алгоритм распределения участников.
//
// Engine безопасен для конкурентного использования: генератор случайных
// чисел защищён мьютексом.
type Engine struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// Result — результат одного распределения.
type Result struct {
	// Groups — группы по 2–3 участника.
	Groups []domain.Group `json:"groups"`

	// Insufficient — участников меньше двух, групп нет.
	Insufficient bool `json:"insufficient"`

	// Empty — Roster был пустым (частный случай Insufficient).
	Empty bool `json:"empty"`

	// Repeats — сколько попарных отношений в результате уже были в истории.
	Repeats int `json:"repeats"`
}

// NewEngine создаёт Engine со случайным seed.
func NewEngine() *Engine {
	return NewSeededEngine(rand.Uint64())
}

// NewSeededEngine создаёт детерминированный Engine.
// Используется в тестах и для воспроизведения распределения.
func NewSeededEngine(seed uint64) *Engine {
	return &Engine{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Compute распределяет Roster по группам, минимизируя повторные встречи.
//
// При len(roster) < 2 возвращает Result{Insufficient: true} без групп.
// Roster не изменяется. Ошибка возвращается только при нарушении
// инвариантов результата, что означает баг в алгоритме.
func (e *Engine) Compute(roster domain.Roster, history *History) (*Result, error) {
	if len(roster) < domain.MinGroupSize {
		return &Result{Insufficient: true, Empty: len(roster) == 0}, nil
	}

	// 1. Перемешиваем копию Roster
	order := slices.Clone(roster)
	e.shuffle(order)

	// 2. Жадный проход
	used := make([]bool, len(order))
	var groups []domain.Group
	var leftovers []domain.Participant

	for i := range order {
		if used[i] {
			continue
		}
		used[i] = true

		j := bestCandidate(order, used, i, history)
		if j < 0 {
			leftovers = append(leftovers, order[i])
			continue
		}
		used[j] = true

		groups = append(groups, domain.NewGroup(order[i], order[j]))
	}

	// 3. Нечётный остаток — в последнюю группу
	groups = foldLeftovers(groups, leftovers)

	if err := Validate(roster, groups); err != nil {
		return nil, err
	}

	return &Result{
		Groups:  groups,
		Repeats: CountRepeats(groups, history),
	}, nil
}

// shuffle перемешивает участников (Fisher–Yates).
func (e *Engine) shuffle(ps []domain.Participant) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rng.Shuffle(len(ps), func(i, j int) { ps[i], ps[j] = ps[j], ps[i] })
}

// bestCandidate возвращает индекс свободного кандидата для order[i]
// с минимальным числом прошлых встреч. При равенстве побеждает первый
// в перемешанном порядке. Кандидат без встреч выбирается сразу.
// Возвращает -1, если свободных кандидатов нет.
func bestCandidate(order []domain.Participant, used []bool, i int, history *History) int {
	best, bestCount := -1, 0
	for j := i + 1; j < len(order); j++ {
		if used[j] {
			continue
		}
		c := history.Count(order[i].ID, order[j].ID)
		if c == 0 {
			return j
		}
		if best < 0 || c < bestCount {
			best, bestCount = j, c
		}
	}
	return best
}

// foldLeftovers добавляет оставшихся участников в последнюю группу.
// Если групп нет, остаток сам становится (неполной) группой.
func foldLeftovers(groups []domain.Group, leftovers []domain.Participant) []domain.Group {
	if len(leftovers) == 0 {
		return groups
	}
	if len(groups) == 0 {
		return []domain.Group{domain.NewGroup(leftovers...)}
	}
	last := &groups[len(groups)-1]
	last.Members = append(last.Members, leftovers...)
	return groups
}

// CountRepeats считает попарные отношения в группах, которые уже были в истории.
func CountRepeats(groups []domain.Group, history *History) int {
	repeats := 0
	for _, g := range groups {
		for _, p := range g.Pairs() {
			if history.Count(p.A, p.B) > 0 {
				repeats++
			}
		}
	}
	return repeats
}

// String возвращает краткое описание результата для логов.
func (r *Result) String() string {
	if r.Insufficient {
		return "insufficient participants"
	}
	return fmt.Sprintf("%d groups, %d repeats", len(r.Groups), r.Repeats)
}
