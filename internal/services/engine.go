package services

import (
	"math/rand/v2"

	"prizedraw/internal/models"
)

// RandFunc returns a uniformly distributed float in [0, 1).
type RandFunc func() float64

// DrawEngine samples winners from a resolved pool. It has no side effects.
type DrawEngine struct {
	rand RandFunc
}

// NewDrawEngine creates an engine using rnd, or math/rand/v2 when rnd is nil.
func NewDrawEngine(rnd RandFunc) *DrawEngine {
	if rnd == nil {
		rnd = rand.Float64
	}
	return &DrawEngine{rand: rnd}
}

// Draw picks drawCount distinct winners for prizeID. Mandatory persons are
// taken first; the remainder comes from the pool, never borrowing a mandatory
// person that was not selected. Fewer winners are returned only when the
// candidates run out, which resolution is meant to rule out.
func (e *DrawEngine) Draw(prizeID, drawCount int, eligible Eligible) []models.Person {
	if drawCount <= 0 {
		return nil
	}
	winners := e.sample(eligible.Mandatory, drawCount)
	if len(winners) >= drawCount {
		return winners
	}

	reserved := make(map[models.PersonID]bool, len(eligible.Mandatory))
	for _, p := range eligible.Mandatory {
		reserved[p.ID] = true
	}
	rest := make([]models.Person, 0, len(eligible.Pool))
	for _, p := range eligible.Pool {
		if !reserved[p.ID] {
			rest = append(rest, p)
		}
	}
	return append(winners, e.sample(rest, drawCount-len(winners))...)
}

// sample runs a partial Fisher-Yates shuffle over an index list and returns
// the first k picks. candidates is left untouched.
func (e *DrawEngine) sample(candidates []models.Person, k int) []models.Person {
	n := len(candidates)
	k = min(k, n)
	if k <= 0 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	out := make([]models.Person, 0, k)
	for i := 0; i < k; i++ {
		j := i + e.index(n-i)
		idx[i], idx[j] = idx[j], idx[i]
		out = append(out, candidates[idx[i]])
	}
	return out
}

func (e *DrawEngine) index(n int) int {
	i := int(e.rand() * float64(n))
	if i >= n {
		i = n - 1
	}
	if i < 0 {
		i = 0
	}
	return i
}
