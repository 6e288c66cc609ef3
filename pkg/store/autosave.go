package store

import (
	"context"
	"sync"
	"time"
)

// DefaultAutosaveDelay is the quiet period before a scheduled value is saved.
const DefaultAutosaveDelay = 2 * time.Second

// Autosaver saves the latest scheduled value for one key after a quiet period.
// Scheduling again before the period ends replaces the pending value and
// restarts the timer.
type Autosaver struct {
	store Store
	key   string
	delay time.Duration

	saveMu sync.Mutex // serializes writes so later values land last

	mu      sync.Mutex
	pending *string
	timer   *time.Timer
	closed  bool
	err     error
}

// NewAutosaver returns an Autosaver for key. A non-positive delay selects
// DefaultAutosaveDelay.
func NewAutosaver(s Store, key string, delay time.Duration) *Autosaver {
	if delay <= 0 {
		delay = DefaultAutosaveDelay
	}
	return &Autosaver{store: s, key: key, delay: delay}
}

// Schedule queues value for saving. It is ignored after Close.
func (a *Autosaver) Schedule(value string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.pending = &value
	if a.timer != nil {
		a.timer.Stop()
	}
	a.timer = time.AfterFunc(a.delay, func() {
		_ = a.Flush(context.Background())
	})
}

// Flush saves the pending value now, if any.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()

	a.mu.Lock()
	value := a.pending
	a.pending = nil
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	a.mu.Unlock()

	if value == nil {
		return nil
	}
	err := a.store.Save(ctx, a.key, *value)

	a.mu.Lock()
	a.err = err
	a.mu.Unlock()
	return err
}

// Err returns the result of the most recent save.
func (a *Autosaver) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Close flushes the pending value and stops accepting new ones.
func (a *Autosaver) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(context.Background())
}
