package services

import (
	"context"
	"errors"
	"math/rand/v2"
	"sync"
	"time"

	"prizedraw/internal/models"
	"prizedraw/internal/storage"
)

func person(id, name string) models.Person {
	return models.Person{ID: models.PersonID(id), Name: name, Department: "研發部"}
}

func people(ids ...string) []models.Person {
	out := make([]models.Person, len(ids))
	for i, id := range ids {
		out[i] = person(id, "Person "+id)
	}
	return out
}

func ids(persons []models.Person) []models.PersonID {
	out := make([]models.PersonID, len(persons))
	for i, p := range persons {
		out[i] = p.ID
	}
	return out
}

func seeded(seed uint64) RandFunc {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)).Float64
}

// sequence returns the given values in order, then repeats the last one.
func sequence(values ...float64) RandFunc {
	i := 0
	return func() float64 {
		v := values[min(i, len(values)-1)]
		i++
		return v
	}
}

var errDiskFull = errors.New("disk full")

// flakyStore wraps a MemoryStore and fails writes while failWrites is set.
type flakyStore struct {
	*storage.MemoryStore
	mu         sync.Mutex
	failWrites bool
}

func newFlakyStore() *flakyStore {
	return &flakyStore{MemoryStore: storage.NewMemoryStore()}
}

func (f *flakyStore) setFail(v bool) {
	f.mu.Lock()
	f.failWrites = v
	f.mu.Unlock()
}

func (f *flakyStore) failing() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.failWrites
}

func (f *flakyStore) Set(ctx context.Context, key string, value any) error {
	if f.failing() {
		return errDiskFull
	}
	return f.MemoryStore.Set(ctx, key, value)
}

func (f *flakyStore) AppendAtomic(ctx context.Context, key string, items any) error {
	if f.failing() {
		return errDiskFull
	}
	return f.MemoryStore.AppendAtomic(ctx, key, items)
}

func (f *flakyStore) Delete(ctx context.Context, key string) error {
	if f.failing() {
		return errDiskFull
	}
	return f.MemoryStore.Delete(ctx, key)
}

// memView is a WinnerView over a plain record slice.
type memView []models.WinnerRecord

func (v memView) CountFor(prizeID int) int {
	n := 0
	for _, r := range v {
		if r.PrizeID == prizeID {
			n++
		}
	}
	return n
}

func (v memView) HasWon(id models.PersonID, prizeID int) bool {
	for _, r := range v {
		if r.PersonID == id && r.PrizeID == prizeID {
			return true
		}
	}
	return false
}

func (v memView) HasEverWon(id models.PersonID) bool {
	for _, r := range v {
		if r.PersonID == id {
			return true
		}
	}
	return false
}

func (v memView) Len() int { return len(v) }

type fakeTimer struct {
	clock   *fakeClock
	d       time.Duration
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	wasPending := !t.stopped && !t.fired
	t.stopped = true
	return wasPending
}

// fakeClock records scheduled callbacks; tests fire them explicitly.
type fakeClock struct {
	mu     sync.Mutex
	timers []*fakeTimer
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, d: d, f: f}
	c.timers = append(c.timers, t)
	return t
}

// pending returns the timers that are neither stopped nor fired.
func (c *fakeClock) pending() []*fakeTimer {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			out = append(out, t)
		}
	}
	return out
}

// fireNext runs the oldest pending timer. It reports false when none is pending.
func (c *fakeClock) fireNext() bool {
	c.mu.Lock()
	var next *fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			next = t
			break
		}
	}
	if next != nil {
		next.fired = true
	}
	c.mu.Unlock()
	if next == nil {
		return false
	}
	next.f()
	return true
}

// fireStale runs a timer even though it was stopped, as a callback that was
// already in flight when Stop was called would.
func (c *fakeClock) fireStale(t *fakeTimer) {
	t.f()
}

// recorder collects session events.
type recorder struct {
	mu     sync.Mutex
	events []models.SessionEvent
}

func (r *recorder) Notify(ev models.SessionEvent) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.Type
	}
	return out
}
