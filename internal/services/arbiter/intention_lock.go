package arbiter

import (
	"context"
	"sync"
	"time"

	"RiskArbiter/internal/domain/models"
)

// IntentionLocks hands out exclusive locks per (instrument, direction)
// pair. Acquisition is bounded: a caller that cannot get the lock
// within the timeout gives up instead of blocking the cycle.
type IntentionLocks struct {
	mu   sync.Mutex
	sems map[models.Intention]chan struct{}
}

// NewIntentionLocks creates an empty lock set.
func NewIntentionLocks() *IntentionLocks {
	return &IntentionLocks{sems: make(map[models.Intention]chan struct{})}
}

func (l *IntentionLocks) sem(intention models.Intention) chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	sem, ok := l.sems[intention]
	if !ok {
		sem = make(chan struct{}, 1)
		l.sems[intention] = sem
	}
	return sem
}

// Acquire takes the intention lock, waiting at most timeout. Returns
// false on timeout or context cancellation; the caller must then
// reject the candidate, never retry in a loop.
func (l *IntentionLocks) Acquire(ctx context.Context, intention models.Intention, timeout time.Duration) bool {
	sem := l.sem(intention)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case sem <- struct{}{}:
		return true
	case <-timer.C:
		return false
	case <-ctx.Done():
		return false
	}
}

// Release frees a previously acquired intention lock.
func (l *IntentionLocks) Release(intention models.Intention) {
	sem := l.sem(intention)
	select {
	case <-sem:
	default:
		// Releasing an unheld lock is a programming error but must not
		// deadlock the pipeline.
	}
}
