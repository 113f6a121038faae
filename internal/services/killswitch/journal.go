package killswitch

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"RiskArbiter/pkg/cache"
)

const journalKey = "killswitch:state"

// JournalEntry is the persisted record of a block transition.
type JournalEntry struct {
	BlockedAt time.Time         `json:"blocked_at"`
	Layers    map[string]string `json:"layers"`
}

// Journal persists block transitions so a process restart never
// forgets a BLOCKED state.
type Journal interface {
	Store(ctx context.Context, entry JournalEntry) error
	Load(ctx context.Context) (JournalEntry, bool, error)
	Clear(ctx context.Context) error
}

// CacheJournal stores the journal entry in a cache backend (Redis in
// production, in-memory in tests). Entries carry no TTL; a block
// outlives any cache expiry policy.
type CacheJournal struct {
	store cache.Service
}

// NewCacheJournal creates a journal on top of a cache service.
func NewCacheJournal(store cache.Service) *CacheJournal {
	return &CacheJournal{store: store}
}

var _ Journal = (*CacheJournal)(nil)

func (j *CacheJournal) Store(ctx context.Context, entry JournalEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	return j.store.Set(ctx, journalKey, string(data), 0)
}

func (j *CacheJournal) Load(ctx context.Context) (JournalEntry, bool, error) {
	var raw string
	err := j.store.Get(ctx, journalKey, &raw)
	if errors.Is(err, cache.ErrCacheMiss) {
		return JournalEntry{}, false, nil
	}
	if err != nil {
		return JournalEntry{}, false, err
	}
	var entry JournalEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return JournalEntry{}, false, err
	}
	return entry, true, nil
}

func (j *CacheJournal) Clear(ctx context.Context) error {
	return j.store.Delete(ctx, journalKey)
}
