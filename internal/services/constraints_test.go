package services

import (
	"context"
	"testing"

	"prizedraw/internal/models"
	"prizedraw/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLists(t *testing.T, store storage.Store) *ConstraintLists {
	t.Helper()
	lists, err := NewConstraintLists(context.Background(), store)
	require.NoError(t, err)
	return lists
}

func TestConstraintLists(t *testing.T) {
	ctx := context.Background()
	x, y, z := person("X", "Xavier"), person("Y", "Yvonne"), person("Z", "Zoe")

	t.Run("blacklisted person cannot be designated", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddBlacklist(ctx, x))

		for _, prizeID := range []int{1, 2, 3} {
			err := lists.AddDesignated(ctx, prizeID, x)
			var conflict *ConstraintConflictError
			require.ErrorAs(t, err, &conflict)
			assert.Equal(t, ListBlacklist, conflict.Existing)
		}
		assert.Empty(t, lists.Designated().Prizes)
	})

	t.Run("designated person cannot be blacklisted", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddDesignated(ctx, 1, x))

		err := lists.AddBlacklist(ctx, x)
		var conflict *ConstraintConflictError
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, ListDesignated, conflict.Existing)
		assert.Empty(t, lists.Blacklist().Persons)
	})

	t.Run("person is designated for at most one tier", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddDesignated(ctx, 1, x))

		var dup *DuplicateConstraintError
		require.ErrorAs(t, lists.AddDesignated(ctx, 1, x), &dup)
		assert.Equal(t, 1, dup.PrizeID)
		require.ErrorAs(t, lists.AddDesignated(ctx, 2, x), &dup)
		assert.Equal(t, 1, dup.PrizeID)
		assert.Equal(t, []models.PersonID{"X"}, ids(lists.DesignatedFor(1)))
		assert.Empty(t, lists.DesignatedFor(2))
	})

	t.Run("blacklist rejects duplicates", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddBlacklist(ctx, y))
		var dup *DuplicateConstraintError
		require.ErrorAs(t, lists.AddBlacklist(ctx, y), &dup)
		assert.Len(t, lists.Blacklist().Persons, 1)
		assert.True(t, lists.IsBlacklisted("Y"))
	})

	t.Run("removing the last designated person drops the tier", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddDesignated(ctx, 1, x))
		require.NoError(t, lists.AddDesignated(ctx, 1, y))

		require.NoError(t, lists.RemoveDesignated(ctx, 1, "X"))
		assert.Equal(t, []models.PersonID{"Y"}, ids(lists.DesignatedFor(1)))

		require.NoError(t, lists.RemoveDesignated(ctx, 1, "Y"))
		_, ok := lists.Designated().Prizes[1]
		assert.False(t, ok)

		assert.ErrorIs(t, lists.RemoveDesignated(ctx, 1, "Y"), ErrPersonNotFound)
	})

	t.Run("removal frees a person for the other list", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddBlacklist(ctx, z))
		require.NoError(t, lists.RemoveBlacklist(ctx, "Z"))
		require.NoError(t, lists.AddDesignated(ctx, 4, z))
		assert.ErrorIs(t, lists.RemoveBlacklist(ctx, "Z"), ErrPersonNotFound)
	})

	t.Run("lists persist and reload", func(t *testing.T) {
		store := storage.NewMemoryStore()
		lists := newLists(t, store)
		require.NoError(t, lists.AddDesignated(ctx, 2, x))
		require.NoError(t, lists.AddBlacklist(ctx, y))

		reloaded := newLists(t, store)
		assert.Equal(t, []models.PersonID{"X"}, ids(reloaded.DesignatedFor(2)))
		assert.True(t, reloaded.IsBlacklisted("Y"))
	})

	t.Run("write failure keeps the in-memory change", func(t *testing.T) {
		store := newFlakyStore()
		lists := newLists(t, store)
		store.setFail(true)

		var writeErr *PersistenceWriteError
		require.ErrorAs(t, lists.AddBlacklist(ctx, x), &writeErr)
		assert.True(t, lists.IsBlacklisted("X"))
	})

	t.Run("lists stay disjoint across mixed mutations", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		everyone := people("P1", "P2", "P3", "P4", "P5", "P6")
		for i, p := range everyone {
			_ = lists.AddDesignated(ctx, i%3+1, p)
			_ = lists.AddBlacklist(ctx, p)
			_ = lists.AddDesignated(ctx, (i+1)%3+1, p)
			if i%2 == 0 {
				_ = lists.RemoveDesignated(ctx, i%3+1, p.ID)
				_ = lists.AddBlacklist(ctx, p)
				_ = lists.AddDesignated(ctx, 1, p)
			}
		}

		owner := map[models.PersonID]int{}
		for prizeID, persons := range lists.Designated().Prizes {
			for _, p := range persons {
				_, seen := owner[p.ID]
				assert.False(t, seen, "%s designated twice", p.ID)
				owner[p.ID] = prizeID
				assert.False(t, lists.IsBlacklisted(p.ID), "%s on both lists", p.ID)
			}
		}
		assert.Len(t, owner, 3)
		assert.Len(t, lists.Blacklist().Persons, 3)
	})

	t.Run("reset clears both lists", func(t *testing.T) {
		lists := newLists(t, storage.NewMemoryStore())
		require.NoError(t, lists.AddDesignated(ctx, 1, x))
		require.NoError(t, lists.AddBlacklist(ctx, y))
		require.NoError(t, lists.Reset(ctx))
		assert.Empty(t, lists.Designated().Prizes)
		assert.Empty(t, lists.Blacklist().Persons)
	})
}
