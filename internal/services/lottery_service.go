package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sync"

	"prizedraw/internal/metrics"
	"prizedraw/internal/models"
	"prizedraw/internal/storage"

	"github.com/google/logger"
)

// LotteryService owns the draw state: participants, settings, the winner
// ledger and the constraint lists.
type LotteryService struct {
	mu           sync.RWMutex
	store        storage.Store
	engine       *DrawEngine
	ledger       *WinnerLedger
	lists        *ConstraintLists
	settings     models.Settings
	participants []models.Person
}

// Option configures a LotteryService.
type Option func(*LotteryService)

// WithRand injects the random source used by the draw engine.
func WithRand(rnd RandFunc) Option {
	return func(s *LotteryService) { s.engine = NewDrawEngine(rnd) }
}

// NewLotteryService loads the persisted state from store.
func NewLotteryService(ctx context.Context, store storage.Store, opts ...Option) (*LotteryService, error) {
	s := &LotteryService{
		store:    store,
		engine:   NewDrawEngine(nil),
		settings: models.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if err := store.Get(ctx, storage.KeySettings, &s.settings); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load settings: %w", err)
	}
	if err := store.Get(ctx, storage.KeyParticipants, &s.participants); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load participants: %w", err)
	}

	var err error
	if s.ledger, err = NewWinnerLedger(ctx, store); err != nil {
		return nil, err
	}
	if s.lists, err = NewConstraintLists(ctx, store); err != nil {
		return nil, err
	}
	logger.Infof("Loaded %d participants, %d prizes, %d winners", len(s.participants), len(s.settings.Prizes), s.ledger.Len())
	return s, nil
}

// Ledger returns the winner ledger.
func (s *LotteryService) Ledger() *WinnerLedger { return s.ledger }

// Constraints returns the designated list and blacklist.
func (s *LotteryService) Constraints() *ConstraintLists { return s.lists }

// Settings returns a copy of the current settings.
func (s *LotteryService) Settings() models.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := s.settings
	out.Prizes = slices.Clone(s.settings.Prizes)
	return out
}

// UpdateSettings validates and replaces the settings. Tiers that already have
// winners cannot be removed.
func (s *LotteryService) UpdateSettings(ctx context.Context, settings models.Settings) error {
	if err := settings.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, old := range s.settings.Prizes {
		won := s.ledger.CountFor(old.ID)
		updated, ok := settings.Prize(old.ID)
		if !ok && won > 0 {
			return ErrPrizeHasWinners
		}
		if ok && updated.Count < won {
			return fmt.Errorf("%w: prize %d count %d is below %d recorded winners", ErrInvalidSettings, old.ID, updated.Count, won)
		}
	}
	if _, ok := settings.Prize(settings.CurrentPrizeID); !ok && len(settings.Prizes) > 0 {
		settings.CurrentPrizeID = settings.Prizes[0].ID
	}
	s.settings = settings
	return s.saveSettingsLocked(ctx)
}

// Prizes returns the configured tiers.
func (s *LotteryService) Prizes() []models.PrizeTier {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.settings.Prizes)
}

// AddPrize appends a tier, assigning the next free id.
func (s *LotteryService) AddPrize(ctx context.Context, prize models.PrizeTier) (models.PrizeTier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 1
	for _, p := range s.settings.Prizes {
		if p.ID >= next {
			next = p.ID + 1
		}
	}
	prize.ID = next
	if err := prize.Validate(); err != nil {
		return models.PrizeTier{}, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.settings.Prizes = append(s.settings.Prizes, prize)
	logger.Infof("Added prize %d (%s), count %d, draw count %d", prize.ID, prize.Name, prize.Count, prize.DrawCount)
	return prize, s.saveSettingsLocked(ctx)
}

// UpdatePrize edits a tier in place. The quota cannot drop below the number
// of winners already recorded.
func (s *LotteryService) UpdatePrize(ctx context.Context, prize models.PrizeTier) error {
	if err := prize.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.settings.Prizes, func(p models.PrizeTier) bool { return p.ID == prize.ID })
	if i < 0 {
		return ErrPrizeNotFound
	}
	if won := s.ledger.CountFor(prize.ID); prize.Count < won {
		return fmt.Errorf("%w: count %d is below %d recorded winners", ErrInvalidSettings, prize.Count, won)
	}
	s.settings.Prizes[i] = prize
	return s.saveSettingsLocked(ctx)
}

// DeletePrize removes a tier that has no winners, along with its designated entry.
func (s *LotteryService) DeletePrize(ctx context.Context, prizeID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.settings.Prizes, func(p models.PrizeTier) bool { return p.ID == prizeID })
	if i < 0 {
		return ErrPrizeNotFound
	}
	if s.ledger.CountFor(prizeID) > 0 {
		return ErrPrizeHasWinners
	}
	s.settings.Prizes = slices.Delete(s.settings.Prizes, i, i+1)
	if s.settings.CurrentPrizeID == prizeID && len(s.settings.Prizes) > 0 {
		s.settings.CurrentPrizeID = s.settings.Prizes[0].ID
	}
	logger.Infof("Deleted prize %d", prizeID)
	return errors.Join(s.saveSettingsLocked(ctx), s.lists.DropPrize(ctx, prizeID))
}

// SetCurrentPrize records the selected tier.
func (s *LotteryService) SetCurrentPrize(ctx context.Context, prizeID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.settings.Prize(prizeID); !ok {
		return ErrPrizeNotFound
	}
	s.settings.CurrentPrizeID = prizeID
	return s.saveSettingsLocked(ctx)
}

// CyclePrize moves the selection step tiers forward (or backward when
// negative), wrapping around the list, and returns the new selection.
func (s *LotteryService) CyclePrize(ctx context.Context, step int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.settings.Prizes)
	if n == 0 {
		return 0, ErrNoPrizesToSelect
	}
	i := slices.IndexFunc(s.settings.Prizes, func(p models.PrizeTier) bool { return p.ID == s.settings.CurrentPrizeID })
	if i < 0 {
		i = 0
	} else {
		i = ((i+step)%n + n) % n
	}
	s.settings.CurrentPrizeID = s.settings.Prizes[i].ID
	return s.settings.CurrentPrizeID, s.saveSettingsLocked(ctx)
}

// Participants returns the participant pool.
func (s *LotteryService) Participants() []models.Person {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.participants)
}

// ReplaceParticipants swaps in a new participant pool. Ids must be unique.
func (s *LotteryService) ReplaceParticipants(ctx context.Context, persons []models.Person) error {
	seen := make(map[models.PersonID]bool, len(persons))
	for _, p := range persons {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidSettings, err)
		}
		if seen[p.ID] {
			return fmt.Errorf("%w: %s", ErrDuplicatePerson, p.ID)
		}
		seen[p.ID] = true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = slices.Clone(persons)
	logger.Infof("Replaced participant pool with %d persons", len(persons))
	if err := s.store.Set(ctx, storage.KeyParticipants, s.participants); err != nil {
		logger.Errorf("Failed to persist participants: %v", err)
		metrics.RecordPersistenceFailure(storage.KeyParticipants)
		return &PersistenceWriteError{Key: storage.KeyParticipants, Err: err}
	}
	return nil
}

// ImportParticipants parses r and replaces the pool with its records.
func (s *LotteryService) ImportParticipants(ctx context.Context, r io.Reader) ([]models.Person, error) {
	persons, err := ParseParticipants(r)
	if err != nil {
		return nil, err
	}
	return persons, s.ReplaceParticipants(ctx, persons)
}

// FindParticipant looks a person up by id.
func (s *LotteryService) FindParticipant(id models.PersonID) (models.Person, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := slices.IndexFunc(s.participants, func(p models.Person) bool { return p.ID == id })
	if i < 0 {
		return models.Person{}, false
	}
	return s.participants[i], true
}

// AddDesignated designates a participant for a tier. Past winners are
// rejected unless repeat winners are allowed.
func (s *LotteryService) AddDesignated(ctx context.Context, prizeID int, personID models.PersonID) error {
	settings := s.Settings()
	if _, ok := settings.Prize(prizeID); !ok {
		return ErrPrizeNotFound
	}
	person, ok := s.FindParticipant(personID)
	if !ok {
		return ErrPersonNotFound
	}
	if !settings.AllowRepeatWinners && s.ledger.HasEverWon(personID) {
		return ErrAlreadyWon
	}
	return s.lists.AddDesignated(ctx, prizeID, person)
}

// AddBlacklist excludes a participant from every draw.
func (s *LotteryService) AddBlacklist(ctx context.Context, personID models.PersonID) error {
	person, ok := s.FindParticipant(personID)
	if !ok {
		return ErrPersonNotFound
	}
	return s.lists.AddBlacklist(ctx, person)
}

// Resolve runs constraint resolution for a tier against the current state.
func (s *LotteryService) Resolve(prizeID int) (models.PrizeTier, Eligible, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(prizeID)
}

func (s *LotteryService) resolveLocked(prizeID int) (models.PrizeTier, Eligible, error) {
	prize, ok := s.settings.Prize(prizeID)
	if !ok {
		return models.PrizeTier{}, Eligible{}, ErrPrizeNotFound
	}
	eligible, err := ResolveEligiblePool(
		prize,
		s.participants,
		s.lists.Designated(),
		s.lists.Blacklist(),
		s.ledger,
		s.settings.AllowRepeatWinners,
	)
	return prize, eligible, err
}

// Preflight checks that a draw of prizeID could run now without changing anything.
func (s *LotteryService) Preflight(prizeID int) error {
	_, _, err := s.Resolve(prizeID)
	if err != nil {
		metrics.RecordDraw(drawOutcome(err))
		logger.Warningf("Draw for prize %d rejected: %v", prizeID, err)
	}
	return err
}

// Commit draws winners for prizeID and appends them to the ledger. Nothing is
// recorded when resolution fails. A *PersistenceWriteError still comes with
// the committed records.
func (s *LotteryService) Commit(ctx context.Context, prizeID int) ([]models.WinnerRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prize, eligible, err := s.resolveLocked(prizeID)
	if err != nil {
		metrics.RecordDraw(drawOutcome(err))
		logger.Warningf("Draw for prize %d rejected at commit: %v", prizeID, err)
		return nil, err
	}
	winners := s.engine.Draw(prize.ID, eligible.DrawCount, eligible)
	if len(winners) != eligible.DrawCount {
		metrics.RecordDraw(metrics.OutcomeFailed)
		return nil, &InsufficientPoolError{PrizeID: prize.ID, Need: eligible.DrawCount, Available: len(winners)}
	}

	records := make([]models.WinnerRecord, len(winners))
	for i, w := range winners {
		records[i] = models.WinnerRecord{
			PersonID:   w.ID,
			Name:       w.Name,
			Department: w.Department,
			Avatar:     w.Avatar,
			PrizeID:    prize.ID,
			PrizeName:  prize.Name,
		}
	}
	committed, err := s.ledger.Append(ctx, records)
	metrics.RecordDraw(metrics.OutcomeCommitted)
	metrics.RecordWinners(prize.ID, len(committed))
	logger.Infof("Committed %d winners for prize %d (%s)", len(committed), prize.ID, prize.Name)
	return committed, err
}

// Winners returns every winner record in insertion order.
func (s *LotteryService) Winners() []models.WinnerRecord {
	return s.ledger.ExportAll()
}

// ExportWinnersCSV writes the winner history as CSV.
func (s *LotteryService) ExportWinnersCSV(w io.Writer) error {
	return WriteWinnersCSV(w, s.ledger.ExportAll())
}

// ClearWinners bulk-removes the winner history.
func (s *LotteryService) ClearWinners(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Clear(ctx)
}

// ClearAll resets every piece of durable state to its defaults.
func (s *LotteryService) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants = nil
	s.settings = models.DefaultSettings()
	var errs []error
	for _, key := range []string{storage.KeyParticipants, storage.KeySettings} {
		if err := s.store.Delete(ctx, key); err != nil {
			metrics.RecordPersistenceFailure(key)
			errs = append(errs, &PersistenceWriteError{Key: key, Err: err})
		}
	}
	errs = append(errs, s.ledger.Clear(ctx), s.lists.Reset(ctx))
	logger.Info("Cleared all draw data")
	return errors.Join(errs...)
}

func (s *LotteryService) saveSettingsLocked(ctx context.Context) error {
	if err := s.store.Set(ctx, storage.KeySettings, s.settings); err != nil {
		logger.Errorf("Failed to persist settings: %v", err)
		metrics.RecordPersistenceFailure(storage.KeySettings)
		return &PersistenceWriteError{Key: storage.KeySettings, Err: err}
	}
	return nil
}

func drawOutcome(err error) string {
	var quota *QuotaExhaustedError
	var pool *InsufficientPoolError
	switch {
	case errors.As(err, &quota):
		return metrics.OutcomeQuota
	case errors.As(err, &pool):
		return metrics.OutcomeInsufficient
	default:
		return metrics.OutcomeFailed
	}
}
