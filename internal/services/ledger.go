package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"prizedraw/internal/metrics"
	"prizedraw/internal/models"
	"prizedraw/internal/storage"

	"github.com/google/logger"
)

// WinnerView is the read side of the ledger the constraint resolver needs.
type WinnerView interface {
	CountFor(prizeID int) int
	HasWon(personID models.PersonID, prizeID int) bool
	HasEverWon(personID models.PersonID) bool
	Len() int
}

// WinnerLedger is the append-only history of winners, mirrored to the store.
type WinnerLedger struct {
	mu      sync.RWMutex
	store   storage.Store
	records []models.WinnerRecord
	now     func() time.Time
	// dirty is set after a failed write; the next write then stores the whole history.
	dirty bool
}

// NewWinnerLedger loads the persisted winner history.
func NewWinnerLedger(ctx context.Context, store storage.Store) (*WinnerLedger, error) {
	l := &WinnerLedger{store: store, now: time.Now}
	err := store.Get(ctx, storage.KeyWinners, &l.records)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load winners: %w", err)
	}
	return l, nil
}

// Append stamps every record with the commit time and appends them all.
// The in-memory append cannot partially fail; a failed durable write is
// returned as *PersistenceWriteError and the records stay in memory. After a
// failure the next write replaces the stored history with the in-memory one.
func (l *WinnerLedger) Append(ctx context.Context, records []models.WinnerRecord) ([]models.WinnerRecord, error) {
	if len(records) == 0 {
		return nil, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	committedAt := l.now()
	stamped := make([]models.WinnerRecord, len(records))
	for i, r := range records {
		r.WonAt = committedAt
		stamped[i] = r
	}
	l.records = append(l.records, stamped...)

	var err error
	if l.dirty {
		err = l.store.Set(ctx, storage.KeyWinners, l.records)
	} else {
		err = l.store.AppendAtomic(ctx, storage.KeyWinners, stamped)
	}
	if err != nil {
		l.dirty = true
		logger.Errorf("Failed to persist %d winner records: %v", len(stamped), err)
		metrics.RecordPersistenceFailure(storage.KeyWinners)
		return stamped, &PersistenceWriteError{Key: storage.KeyWinners, Err: err}
	}
	if l.dirty {
		logger.Infof("Resynced %d winner records to storage", len(l.records))
		l.dirty = false
	}
	return stamped, nil
}

// CountFor returns the number of winners recorded for the tier.
func (l *WinnerLedger) CountFor(prizeID int) int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := 0
	for _, r := range l.records {
		if r.PrizeID == prizeID {
			n++
		}
	}
	return n
}

// HasWon reports whether the person has won the given tier.
func (l *WinnerLedger) HasWon(personID models.PersonID, prizeID int) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.records {
		if r.PersonID == personID && r.PrizeID == prizeID {
			return true
		}
	}
	return false
}

// HasEverWon reports whether the person has won any tier.
func (l *WinnerLedger) HasEverWon(personID models.PersonID) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	for _, r := range l.records {
		if r.PersonID == personID {
			return true
		}
	}
	return false
}

// Len returns the total number of records.
func (l *WinnerLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// ExportAll returns a copy of every record in insertion order.
func (l *WinnerLedger) ExportAll() []models.WinnerRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]models.WinnerRecord, len(l.records))
	copy(out, l.records)
	return out
}

// Clear removes every record. It is irreversible.
func (l *WinnerLedger) Clear(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = nil
	if err := l.store.Delete(ctx, storage.KeyWinners); err != nil {
		l.dirty = true
		logger.Errorf("Failed to clear persisted winners: %v", err)
		metrics.RecordPersistenceFailure(storage.KeyWinners)
		return &PersistenceWriteError{Key: storage.KeyWinners, Err: err}
	}
	l.dirty = false
	logger.Info("Cleared winner ledger")
	return nil
}
