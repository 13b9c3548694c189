package server

import (
	"context"
	"errors"
	"sync"
)

// ErrQuerySuperseded is the cancellation cause of a read replaced by a newer one.
var ErrQuerySuperseded = errors.New("query superseded by a newer request")

// QueryKey scopes supersession to one logical view of one account.
type QueryKey struct {
	AccountID string
	Route     string
	ViewID    string
}

// QueryTracker cancels the in-flight query of a view when a newer query for the
// same view starts. Distinct keys never affect each other, and queries without a
// view id are never tracked.
type QueryTracker struct {
	mu          sync.Mutex
	inFlight    map[QueryKey]*trackedQuery
	nextID      int64
	onSupersede func()
}

type trackedQuery struct {
	id     int64
	cancel context.CancelCauseFunc
}

// NewQueryTracker builds a tracker; onSupersede, when set, runs once per cancelled query.
func NewQueryTracker(onSupersede func()) *QueryTracker {
	return &QueryTracker{
		inFlight:    make(map[QueryKey]*trackedQuery),
		onSupersede: onSupersede,
	}
}

// Begin registers a query for key and returns its context. The previous query for
// the same key, if still running, is cancelled with ErrQuerySuperseded. release
// must be called when the query finishes.
func (t *QueryTracker) Begin(parent context.Context, key QueryKey) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(parent)
	if key.AccountID == "" || key.ViewID == "" {
		return ctx, func() { cancel(nil) }
	}

	t.mu.Lock()
	t.nextID++
	query := &trackedQuery{id: t.nextID, cancel: cancel}
	previous := t.inFlight[key]
	t.inFlight[key] = query
	t.mu.Unlock()

	if previous != nil {
		previous.cancel(ErrQuerySuperseded)
		if t.onSupersede != nil {
			t.onSupersede()
		}
	}

	release := func() {
		t.mu.Lock()
		if current, ok := t.inFlight[key]; ok && current.id == query.id {
			delete(t.inFlight, key)
		}
		t.mu.Unlock()
		cancel(nil)
	}
	return ctx, release
}

// Superseded reports whether ctx was cancelled because a newer query replaced it.
func Superseded(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrQuerySuperseded)
}

func (t *QueryTracker) inFlightCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.inFlight)
}
