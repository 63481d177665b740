package services

import (
	"testing"

	"prizedraw/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDrawEngine_Draw(t *testing.T) {
	t.Run("designated winner is forced regardless of randomness", func(t *testing.T) {
		prize := models.PrizeTier{ID: 1, Name: "特等獎", Count: 1, DrawCount: 1}
		list := designated(map[int][]models.Person{1: people("B")})
		eligible, err := ResolveEligiblePool(prize, people("A", "B", "C"), list, models.Blacklist{}, memView{}, false)
		require.NoError(t, err)

		for _, r := range []float64{0, 0.5, 0.999999} {
			winners := NewDrawEngine(sequence(r)).Draw(prize.ID, eligible.DrawCount, eligible)
			assert.Equal(t, []models.PersonID{"B"}, ids(winners))
		}
	})

	t.Run("winners are distinct and sized to the draw", func(t *testing.T) {
		engine := NewDrawEngine(seeded(7))
		eligible := Eligible{Pool: people("A", "B", "C", "D", "E", "F"), DrawCount: 4}
		for i := 0; i < 200; i++ {
			winners := engine.Draw(1, 4, eligible)
			require.Len(t, winners, 4)
			seen := map[models.PersonID]bool{}
			for _, w := range winners {
				assert.False(t, seen[w.ID], "duplicate winner %s", w.ID)
				seen[w.ID] = true
			}
		}
	})

	t.Run("mandatory persons come before pool persons", func(t *testing.T) {
		engine := NewDrawEngine(seeded(11))
		eligible := Eligible{Mandatory: people("M1", "M2"), Pool: people("A", "B", "C"), DrawCount: 4}
		winners := engine.Draw(1, 4, eligible)
		require.Len(t, winners, 4)
		assert.ElementsMatch(t, []models.PersonID{"M1", "M2"}, ids(winners[:2]))
		for _, w := range winners[2:] {
			assert.Contains(t, []models.PersonID{"A", "B", "C"}, w.ID)
		}
	})

	t.Run("mandatory persons present in the pool are not drawn twice", func(t *testing.T) {
		engine := NewDrawEngine(seeded(3))
		// M2 also leaks into the pool; it must still only be drawn as a mandatory pick.
		eligible := Eligible{Mandatory: people("M1", "M2", "M3"), Pool: people("M2", "A"), DrawCount: 4}
		for i := 0; i < 50; i++ {
			winners := engine.Draw(1, 4, eligible)
			require.Len(t, winners, 4)
			assert.ElementsMatch(t, []models.PersonID{"M1", "M2", "M3"}, ids(winners[:3]))
			assert.Equal(t, models.PersonID("A"), winners[3].ID)
		}
	})

	t.Run("partial Fisher-Yates follows the random source", func(t *testing.T) {
		eligible := Eligible{Pool: people("A", "B", "C", "D"), DrawCount: 2}
		// 0.5 of 4 picks index 2 (C); then C's slot is swapped with A,
		// 0.0 of the remaining 3 picks index 1 (B).
		winners := NewDrawEngine(sequence(0.5, 0)).Draw(1, 2, eligible)
		assert.Equal(t, []models.PersonID{"C", "B"}, ids(winners))
	})

	t.Run("pool exhaustion returns what is available", func(t *testing.T) {
		winners := NewDrawEngine(seeded(1)).Draw(1, 5, Eligible{Pool: people("A", "B")})
		assert.Len(t, winners, 2)
	})

	t.Run("input slices are not modified", func(t *testing.T) {
		pool := people("A", "B", "C", "D")
		NewDrawEngine(sequence(0.99, 0.99, 0.99)).Draw(1, 3, Eligible{Pool: pool})
		assert.Equal(t, []models.PersonID{"A", "B", "C", "D"}, ids(pool))
	})

	t.Run("sampling is roughly uniform", func(t *testing.T) {
		engine := NewDrawEngine(seeded(2024))
		eligible := Eligible{Pool: people("A", "B", "C", "D")}
		counts := map[models.PersonID]int{}
		const rounds = 40000
		for i := 0; i < rounds; i++ {
			counts[engine.Draw(1, 1, eligible)[0].ID]++
		}
		for id, n := range counts {
			assert.InDelta(t, rounds/4, n, rounds/40, "person %s drawn %d times", id, n)
		}
	})
}
