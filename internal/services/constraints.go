package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"prizedraw/internal/metrics"
	"prizedraw/internal/models"
	"prizedraw/internal/storage"

	"github.com/google/logger"
)

// ConstraintLists owns the designated list and the blacklist and keeps them
// disjoint. A person is on at most one tier's designated list.
type ConstraintLists struct {
	mu         sync.RWMutex
	store      storage.Store
	designated models.DesignatedList
	blacklist  models.Blacklist
}

// NewConstraintLists loads both lists from the store.
func NewConstraintLists(ctx context.Context, store storage.Store) (*ConstraintLists, error) {
	c := &ConstraintLists{
		store:      store,
		designated: models.DesignatedList{Prizes: make(map[int][]models.Person)},
	}
	if err := store.Get(ctx, storage.KeyDesignatedList, &c.designated); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load designated list: %w", err)
	}
	if c.designated.Prizes == nil {
		c.designated.Prizes = make(map[int][]models.Person)
	}
	if err := store.Get(ctx, storage.KeyBlacklist, &c.blacklist); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}
	return c, nil
}

// Designated returns a deep copy of the designated list.
func (c *ConstraintLists) Designated() models.DesignatedList {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := models.DesignatedList{Prizes: make(map[int][]models.Person, len(c.designated.Prizes))}
	for id, persons := range c.designated.Prizes {
		out.Prizes[id] = slices.Clone(persons)
	}
	return out
}

// DesignatedFor returns the designated persons of one tier.
func (c *ConstraintLists) DesignatedFor(prizeID int) []models.Person {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.designated.Prizes[prizeID])
}

// Blacklist returns a copy of the blacklist.
func (c *ConstraintLists) Blacklist() models.Blacklist {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return models.Blacklist{Persons: slices.Clone(c.blacklist.Persons)}
}

// IsBlacklisted reports whether the person is on the blacklist.
func (c *ConstraintLists) IsBlacklisted(personID models.PersonID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.blacklistedLocked(personID)
}

// AddDesignated pre-commits person to win prizeID.
func (c *ConstraintLists) AddDesignated(ctx context.Context, prizeID int, person models.Person) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blacklistedLocked(person.ID) {
		return &ConstraintConflictError{PersonID: person.ID, Existing: ListBlacklist}
	}
	if owner, ok := c.designatedOwnerLocked(person.ID); ok {
		return &DuplicateConstraintError{PersonID: person.ID, List: ListDesignated, PrizeID: owner}
	}

	c.designated.Prizes[prizeID] = append(c.designated.Prizes[prizeID], person)
	logger.Infof("Added %s (%s) to designated list of prize %d", person.Name, person.ID, prizeID)
	return c.saveDesignatedLocked(ctx)
}

// RemoveDesignated drops person from prizeID's designated list. Removing the
// last person removes the tier entry.
func (c *ConstraintLists) RemoveDesignated(ctx context.Context, prizeID int, personID models.PersonID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	persons, ok := c.designated.Prizes[prizeID]
	if !ok {
		return ErrPersonNotFound
	}
	kept := slices.DeleteFunc(slices.Clone(persons), func(p models.Person) bool { return p.ID == personID })
	if len(kept) == len(persons) {
		return ErrPersonNotFound
	}
	if len(kept) == 0 {
		delete(c.designated.Prizes, prizeID)
	} else {
		c.designated.Prizes[prizeID] = kept
	}
	logger.Infof("Removed %s from designated list of prize %d", personID, prizeID)
	return c.saveDesignatedLocked(ctx)
}

// DropPrize removes a tier's designated entry entirely.
func (c *ConstraintLists) DropPrize(ctx context.Context, prizeID int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.designated.Prizes[prizeID]; !ok {
		return nil
	}
	delete(c.designated.Prizes, prizeID)
	return c.saveDesignatedLocked(ctx)
}

// AddBlacklist makes person ineligible for every draw.
func (c *ConstraintLists) AddBlacklist(ctx context.Context, person models.Person) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.blacklistedLocked(person.ID) {
		return &DuplicateConstraintError{PersonID: person.ID, List: ListBlacklist}
	}
	if _, ok := c.designatedOwnerLocked(person.ID); ok {
		return &ConstraintConflictError{PersonID: person.ID, Existing: ListDesignated}
	}

	c.blacklist.Persons = append(c.blacklist.Persons, person)
	logger.Infof("Added %s (%s) to blacklist", person.Name, person.ID)
	return c.saveBlacklistLocked(ctx)
}

// RemoveBlacklist drops person from the blacklist.
func (c *ConstraintLists) RemoveBlacklist(ctx context.Context, personID models.PersonID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.blacklist.Persons)
	c.blacklist.Persons = slices.DeleteFunc(c.blacklist.Persons, func(p models.Person) bool { return p.ID == personID })
	if len(c.blacklist.Persons) == n {
		return ErrPersonNotFound
	}
	logger.Infof("Removed %s from blacklist", personID)
	return c.saveBlacklistLocked(ctx)
}

// Reset empties both lists.
func (c *ConstraintLists) Reset(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.designated = models.DesignatedList{Prizes: make(map[int][]models.Person)}
	c.blacklist = models.Blacklist{}
	return errors.Join(c.saveDesignatedLocked(ctx), c.saveBlacklistLocked(ctx))
}

func (c *ConstraintLists) blacklistedLocked(personID models.PersonID) bool {
	return slices.ContainsFunc(c.blacklist.Persons, func(p models.Person) bool { return p.ID == personID })
}

func (c *ConstraintLists) designatedOwnerLocked(personID models.PersonID) (int, bool) {
	for prizeID, persons := range c.designated.Prizes {
		if slices.ContainsFunc(persons, func(p models.Person) bool { return p.ID == personID }) {
			return prizeID, true
		}
	}
	return 0, false
}

func (c *ConstraintLists) saveDesignatedLocked(ctx context.Context) error {
	if err := c.store.Set(ctx, storage.KeyDesignatedList, c.designated); err != nil {
		logger.Errorf("Failed to persist designated list: %v", err)
		metrics.RecordPersistenceFailure(storage.KeyDesignatedList)
		return &PersistenceWriteError{Key: storage.KeyDesignatedList, Err: err}
	}
	return nil
}

func (c *ConstraintLists) saveBlacklistLocked(ctx context.Context) error {
	if err := c.store.Set(ctx, storage.KeyBlacklist, c.blacklist); err != nil {
		logger.Errorf("Failed to persist blacklist: %v", err)
		metrics.RecordPersistenceFailure(storage.KeyBlacklist)
		return &PersistenceWriteError{Key: storage.KeyBlacklist, Err: err}
	}
	return nil
}

