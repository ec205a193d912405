package pairing

import (
	"time"

	"github.com/shaiso/randomcoffee/internal/domain"
)

// History — сколько раз встречалась каждая пара участников.
//
// Отношение симметрично: ключ — нормализованная domain.Pair.
// History только дополняется.
type History struct {
	counts map[domain.Pair]int
	last   map[domain.Pair]time.Time
}

// NewHistory строит History из записей о встречах.
func NewHistory(meetings []domain.Meeting) *History {
	h := &History{
		counts: make(map[domain.Pair]int, len(meetings)),
		last:   make(map[domain.Pair]time.Time, len(meetings)),
	}
	for _, m := range meetings {
		h.add(m.Pair, m.At)
	}
	return h
}

// add учитывает одну встречу пары.
func (h *History) add(p domain.Pair, at time.Time) {
	p = domain.NewPair(p.A, p.B)
	h.counts[p]++
	if at.After(h.last[p]) {
		h.last[p] = at
	}
}

// Count возвращает число прошлых встреч a и b (порядок не важен).
func (h *History) Count(a, b domain.ParticipantID) int {
	if h == nil {
		return 0
	}
	return h.counts[domain.NewPair(a, b)]
}

// LastMet возвращает время последней встречи пары.
func (h *History) LastMet(a, b domain.ParticipantID) (time.Time, bool) {
	if h == nil {
		return time.Time{}, false
	}
	t, ok := h.last[domain.NewPair(a, b)]
	return t, ok
}

// Record дописывает группу в историю.
// Тройка даёт три независимых попарных факта.
func (h *History) Record(g domain.Group, at time.Time) {
	for _, p := range g.Pairs() {
		h.add(p, at)
	}
}

// Len возвращает количество различных пар в истории.
func (h *History) Len() int {
	if h == nil {
		return 0
	}
	return len(h.counts)
}

// PairCount — пара и число её встреч.
type PairCount struct {
	Pair    domain.Pair `json:"pair"`
	Count   int         `json:"count"`
	LastMet time.Time   `json:"last_met"`
}

// Counts возвращает все пары с числом встреч.
func (h *History) Counts() []PairCount {
	if h == nil {
		return nil
	}
	result := make([]PairCount, 0, len(h.counts))
	for p, c := range h.counts {
		result = append(result, PairCount{Pair: p, Count: c, LastMet: h.last[p]})
	}
	return result
}
