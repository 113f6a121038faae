package ledger

import (
	"sync"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
)

// EvictionEvent is emitted whenever the ledger drops its oldest entry.
// Eviction is never silent.
type EvictionEvent struct {
	Count uint64 `json:"count"`
	ID    string `json:"id"`
}

// Ledger records every arbitration decision exactly once, keyed by the
// deterministic decision id. Entries are an explicit key→record map;
// every lookup goes through the map, never through key iteration.
// Mutations are serialized by a single mutex; reads copy out.
type Ledger struct {
	mu         sync.RWMutex
	entries    map[string]*models.Decision
	order      []string // insertion order, oldest first
	maxEntries int
	evictions  uint64

	onEvict func(EvictionEvent)
	log     *logger.Logger
	metrics service.Metrics
}

// New creates a bounded ledger. maxEntries must be positive.
func New(maxEntries int, log *logger.Logger, metrics service.Metrics) *Ledger {
	if maxEntries < 1 {
		maxEntries = 1
	}
	return &Ledger{
		entries:    make(map[string]*models.Decision),
		maxEntries: maxEntries,
		log:        log,
		metrics:    metrics,
	}
}

var _ service.Ledger = (*Ledger)(nil)

// OnEvict registers the eviction observer. Must be set before writes begin.
func (l *Ledger) OnEvict(fn func(EvictionEvent)) {
	l.mu.Lock()
	l.onEvict = fn
	l.mu.Unlock()
}

// Write records a decision. Writing an id that already exists is a
// no-op returning true: exactly one entry per id, ever.
func (l *Ledger) Write(d *models.Decision) bool {
	if d == nil || d.ID == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.entries[d.ID]; exists {
		return true
	}

	stored := *d
	l.entries[d.ID] = &stored
	l.order = append(l.order, d.ID)

	for len(l.order) > l.maxEntries {
		oldest := l.order[0]
		l.order = l.order[1:]
		delete(l.entries, oldest)
		l.evictions++
		event := EvictionEvent{Count: l.evictions, ID: oldest}
		l.log.Warn("ledger evicted oldest decision",
			logger.String("id", oldest),
			logger.Int64("evictions", int64(l.evictions)))
		if l.metrics != nil {
			l.metrics.RecordLedgerEviction()
		}
		if l.onEvict != nil {
			l.onEvict(event)
		}
	}
	return true
}

// Enrich attaches execution metadata to an existing entry, located by
// key lookup. The original payload is never removed; the first
// enrichment wins and repeats are no-ops.
func (l *Ledger) Enrich(decisionID string, meta models.ExecutionMetadata) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[decisionID]
	if !ok {
		return false
	}
	if entry.Execution == nil {
		m := meta
		entry.Execution = &m
	}
	return true
}

// Get returns a copy of the entry for an id.
func (l *Ledger) Get(decisionID string) (*models.Decision, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	entry, ok := l.entries[decisionID]
	if !ok {
		return nil, false
	}
	cp := *entry
	return &cp, true
}

// Export returns the append-only, timestamp-ordered view of all
// entries. The copies are safe for the caller to hold across cycles;
// re-exporting yields identical records for identical ledger state.
func (l *Ledger) Export() []*models.Decision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]*models.Decision, 0, len(l.order))
	for _, id := range l.order {
		if entry, ok := l.entries[id]; ok {
			cp := *entry
			out = append(out, &cp)
		}
	}
	return out
}

// Len returns the number of live entries.
func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Evictions returns the lifetime eviction count.
func (l *Ledger) Evictions() uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.evictions
}
