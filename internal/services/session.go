package services

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"prizedraw/internal/metrics"
	"prizedraw/internal/models"

	"github.com/google/logger"
)

// DefaultDismissDelay is how long auto mode presents winners before resetting.
const DefaultDismissDelay = 5 * time.Second

// Notifier receives session events. Notify is called with the session lock
// held and must not block or call back into the session.
type Notifier interface {
	Notify(event models.SessionEvent)
}

// DrawBackend is what the session needs from the lottery service.
type DrawBackend interface {
	Settings() models.Settings
	Preflight(prizeID int) error
	Commit(ctx context.Context, prizeID int) ([]models.WinnerRecord, error)
	SetCurrentPrize(ctx context.Context, prizeID int) error
	CyclePrize(ctx context.Context, step int) (int, error)
}

// Session drives one draw action at a time through idle, spinning and
// presenting. The countdown timer and an explicit stop race for the
// spinning→presenting transition; every scheduled callback carries the
// generation it was created for and is a no-op once the generation moves on.
type Session struct {
	mu           sync.Mutex
	backend      DrawBackend
	notifier     Notifier
	clock        Clock
	dismissDelay time.Duration

	status    models.SessionStatus
	mode      models.DrawMode
	prizeID   int
	winners   []models.Person
	remaining int

	gen          uint64
	tickTimer    Timer
	dismissTimer Timer
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClock replaces the timer source.
func WithClock(c Clock) SessionOption {
	return func(s *Session) { s.clock = c }
}

// WithDismissDelay sets how long auto mode presents winners.
func WithDismissDelay(d time.Duration) SessionOption {
	return func(s *Session) {
		if d > 0 {
			s.dismissDelay = d
		}
	}
}

// NewSession creates an idle session. notifier may be nil.
func NewSession(backend DrawBackend, notifier Notifier, opts ...SessionOption) *Session {
	s := &Session{
		backend:      backend,
		notifier:     notifier,
		clock:        RealClock,
		dismissDelay: DefaultDismissDelay,
		status:       models.StatusIdle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Snapshot returns the current session state.
func (s *Session) Snapshot() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// SelectPrize changes the selected tier. Only allowed while idle.
func (s *Session) SelectPrize(ctx context.Context, prizeID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusIdle {
		return ErrSessionBusy
	}
	return s.backend.SetCurrentPrize(ctx, prizeID)
}

// CyclePrize moves the selection forward or backward. Only allowed while idle.
func (s *Session) CyclePrize(ctx context.Context, step int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusIdle {
		return 0, ErrSessionBusy
	}
	return s.backend.CyclePrize(ctx, step)
}

// WhileIdle runs fn with the session held idle, so no draw can start until it
// returns. It fails with ErrSessionBusy outside idle.
func (s *Session) WhileIdle(fn func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusIdle {
		return ErrSessionBusy
	}
	return fn()
}

// StartDraw moves an idle session to spinning for prizeID, or the selected
// tier when prizeID is zero. Calling it outside idle does nothing. Quota and
// pool failures are returned and leave the session idle.
func (s *Session) StartDraw(ctx context.Context, prizeID int) (models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status != models.StatusIdle {
		logger.Infof("Ignoring start while session is %s", s.status)
		return s.snapshotLocked(), nil
	}
	settings := s.backend.Settings()
	if prizeID == 0 {
		prizeID = settings.CurrentPrizeID
	}
	if err := s.backend.Preflight(prizeID); err != nil {
		s.emitLocked(models.EventError, err)
		return s.snapshotLocked(), err
	}

	s.gen++
	s.cancelTimersLocked()
	s.status = models.StatusSpinning
	s.mode = settings.DrawMode
	s.prizeID = prizeID
	s.winners = nil
	s.remaining = 0
	if s.mode == models.DrawModeAuto {
		s.remaining = settings.CountdownDuration
		s.scheduleTickLocked()
	}
	logger.Infof("Draw started for prize %d in %s mode", prizeID, s.mode)
	s.transitionLocked(models.EventSpinning, nil)
	return s.snapshotLocked(), nil
}

// Stop ends spinning and commits the draw. Outside spinning it does nothing.
// A *PersistenceWriteError is returned alongside a presenting session.
func (s *Session) Stop(ctx context.Context) (models.SessionSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status != models.StatusSpinning {
		return s.snapshotLocked(), nil
	}
	err := s.stopLocked(ctx)
	return s.snapshotLocked(), err
}

// Dismiss returns a presenting session to idle. Outside presenting it does nothing.
func (s *Session) Dismiss() models.SessionSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.status == models.StatusPresenting {
		s.gen++
		s.resetLocked()
		s.transitionLocked(models.EventIdle, nil)
	}
	return s.snapshotLocked()
}

// Close cancels pending timers.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.cancelTimersLocked()
}

func (s *Session) stopLocked(ctx context.Context) error {
	s.gen++
	stopTimer(&s.tickTimer)
	s.remaining = 0

	records, err := s.backend.Commit(ctx, s.prizeID)
	var writeErr *PersistenceWriteError
	if err != nil && !errors.As(err, &writeErr) {
		logger.Warningf("Draw for prize %d failed at stop: %v", s.prizeID, err)
		s.resetLocked()
		s.transitionLocked(models.EventIdle, err)
		return err
	}

	s.winners = make([]models.Person, len(records))
	for i, r := range records {
		s.winners[i] = models.Person{ID: r.PersonID, Name: r.Name, Department: r.Department, Avatar: r.Avatar}
	}
	s.status = models.StatusPresenting
	if s.mode == models.DrawModeAuto {
		gen := s.gen
		s.dismissTimer = s.clock.AfterFunc(s.dismissDelay, func() { s.autoDismiss(gen) })
	}
	s.transitionLocked(models.EventPresenting, err)
	return err
}

func (s *Session) scheduleTickLocked() {
	gen := s.gen
	s.tickTimer = s.clock.AfterFunc(time.Second, func() { s.tick(gen) })
}

func (s *Session) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.status != models.StatusSpinning {
		return
	}
	s.remaining--
	if s.remaining <= 0 {
		_ = s.stopLocked(context.Background())
		return
	}
	s.emitLocked(models.EventTick, nil)
	s.scheduleTickLocked()
}

func (s *Session) autoDismiss(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.gen || s.status != models.StatusPresenting {
		return
	}
	s.gen++
	s.dismissTimer = nil
	s.resetLocked()
	s.transitionLocked(models.EventIdle, nil)
}

func (s *Session) resetLocked() {
	s.cancelTimersLocked()
	s.status = models.StatusIdle
	s.prizeID = 0
	s.winners = nil
	s.remaining = 0
}

func (s *Session) cancelTimersLocked() {
	stopTimer(&s.tickTimer)
	stopTimer(&s.dismissTimer)
}

func stopTimer(t *Timer) {
	if *t != nil {
		(*t).Stop()
		*t = nil
	}
}

func (s *Session) transitionLocked(event string, err error) {
	metrics.RecordTransition(string(s.status))
	s.emitLocked(event, err)
}

func (s *Session) emitLocked(event string, err error) {
	if s.notifier == nil {
		return
	}
	ev := models.SessionEvent{Type: event, Session: s.snapshotLocked()}
	if err != nil {
		ev.Error = err.Error()
	}
	s.notifier.Notify(ev)
}

func (s *Session) snapshotLocked() models.SessionSnapshot {
	return models.SessionSnapshot{
		Status:             s.status,
		Mode:               s.mode,
		PrizeID:            s.prizeID,
		Winners:            slices.Clone(s.winners),
		CountdownRemaining: s.remaining,
	}
}
