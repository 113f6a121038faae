package engine

import (
	"sync"

	"RiskArbiter/internal/domain/models"
)

// Broadcaster fans completed decisions out to live subscribers, such
// as the websocket stream. Slow subscribers are skipped rather than
// allowed to stall the cycle; the ledger stays the durable record.
type Broadcaster struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]chan *models.Decision
	buf    int
}

func NewBroadcaster(buffer int) *Broadcaster {
	if buffer <= 0 {
		buffer = 64
	}
	return &Broadcaster{subs: make(map[int]chan *models.Decision), buf: buffer}
}

// Subscribe registers a listener. The returned cancel func must be
// called when the listener goes away; it closes the channel.
func (b *Broadcaster) Subscribe() (<-chan *models.Decision, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	ch := make(chan *models.Decision, b.buf)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the decision to every subscriber with buffer space.
func (b *Broadcaster) Publish(d *models.Decision) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, ch := range b.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

// Subscribers reports the current listener count.
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}
