// Package allocator picks the sending account for one dispatch attempt.
package allocator

import (
	"math/rand"
	"sync"
	"time"

	"github.com/nimasrn/outreach-engine/internal/model"
)

type Allocator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func New(rng *rand.Rand) *Allocator {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return &Allocator{rng: rng}
}

// Pick returns one eligible account under strategy, or false when none of
// the linked accounts has capacity left. Unknown strategies fall back to
// random.
func (a *Allocator) Pick(strategy model.RotationStrategy, linked []model.LinkedAccount) (model.LinkedAccount, bool) {
	eligible := Eligible(linked)
	if len(eligible) == 0 {
		return model.LinkedAccount{}, false
	}

	switch strategy {
	case model.RotationRoundRobin:
		return leastUsed(eligible), true
	case model.RotationWeighted:
		return a.weighted(eligible), true
	default:
		return a.random(eligible), true
	}
}

// Eligible keeps sendable accounts that are under their daily limit.
func Eligible(linked []model.LinkedAccount) []model.LinkedAccount {
	out := make([]model.LinkedAccount, 0, len(linked))
	for _, l := range linked {
		if l.Eligible() {
			out = append(out, l)
		}
	}
	return out
}

func leastUsed(eligible []model.LinkedAccount) model.LinkedAccount {
	best := eligible[0]
	for _, l := range eligible[1:] {
		if l.SendsToday < best.SendsToday || (l.SendsToday == best.SendsToday && l.AccountID < best.AccountID) {
			best = l
		}
	}
	return best
}

func (a *Allocator) weighted(eligible []model.LinkedAccount) model.LinkedAccount {
	total := 0
	for _, l := range eligible {
		total += weightOf(l)
	}

	a.mu.Lock()
	draw := a.rng.Float64() * float64(total)
	a.mu.Unlock()

	cumulative := 0.0
	for _, l := range eligible {
		cumulative += float64(weightOf(l))
		if draw < cumulative {
			return l
		}
	}
	return eligible[len(eligible)-1]
}

func (a *Allocator) random(eligible []model.LinkedAccount) model.LinkedAccount {
	a.mu.Lock()
	defer a.mu.Unlock()
	return eligible[a.rng.Intn(len(eligible))]
}

func weightOf(l model.LinkedAccount) int {
	if l.Weight <= 0 {
		return 1
	}
	return l.Weight
}
