package audit

import (
	"context"
	"sync"
	"time"

	"RiskArbiter/internal/domain/models"
	"RiskArbiter/internal/domain/service"
	"RiskArbiter/pkg/logger"
)

// Config controls the dispatch queue.
type Config struct {
	QueueSize  int
	Workers    int
	RetryLimit int
	RetryDelay time.Duration
}

func (c *Config) normalize() {
	if c.QueueSize <= 0 {
		c.QueueSize = 1024
	}
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.RetryLimit < 0 {
		c.RetryLimit = 0
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 200 * time.Millisecond
	}
}

type job struct {
	decision *models.Decision
	attempts int
}

// Dispatcher fans ledgered decisions out to the configured audit sinks
// on background workers. The arbitration path only ever pays for a
// channel send; a slow or failing sink never blocks a cycle.
type Dispatcher struct {
	cfg    Config
	sinks  []service.AuditSink
	log    *logger.Logger
	jobs   chan job
	stopCh chan struct{}
	wg     sync.WaitGroup

	mu      sync.Mutex
	started bool
	dropped int64
}

func NewDispatcher(cfg Config, log *logger.Logger, sinks ...service.AuditSink) *Dispatcher {
	cfg.normalize()
	return &Dispatcher{
		cfg:    cfg,
		sinks:  sinks,
		log:    log,
		jobs:   make(chan job, cfg.QueueSize),
		stopCh: make(chan struct{}),
	}
}

// Start launches the worker pool. Idempotent.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.started {
		d.mu.Unlock()
		return
	}
	d.started = true
	d.mu.Unlock()

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx)
	}
}

// Stop drains in-flight jobs and closes every sink.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	d.started = false
	d.mu.Unlock()

	close(d.stopCh)
	d.wg.Wait()

	for _, s := range d.sinks {
		if err := s.Close(); err != nil {
			d.log.Warn("audit sink close", logger.Error(err))
		}
	}
}

// Enqueue hands one decision to the workers. Non-blocking: when the
// queue is full the decision is dropped from export and counted, never
// from the ledger.
func (d *Dispatcher) Enqueue(decision *models.Decision) bool {
	if decision == nil || len(d.sinks) == 0 {
		return false
	}
	select {
	case d.jobs <- job{decision: decision}:
		return true
	default:
		d.mu.Lock()
		d.dropped++
		d.mu.Unlock()
		d.log.Warn("audit queue full, decision not exported",
			logger.String("decision_id", decision.ID))
		return false
	}
}

// Dropped reports how many decisions were never exported.
func (d *Dispatcher) Dropped() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.dropped
}

func (d *Dispatcher) worker(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-d.stopCh:
			// drain what is already queued before exiting
			for {
				select {
				case j := <-d.jobs:
					d.deliver(ctx, j)
				default:
					return
				}
			}
		case j := <-d.jobs:
			d.deliver(ctx, j)
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, j job) {
	for _, s := range d.sinks {
		if err := s.Record(ctx, j.decision); err != nil {
			if j.attempts < d.cfg.RetryLimit {
				j.attempts++
				time.Sleep(d.cfg.RetryDelay)
				select {
				case d.jobs <- j:
				default:
					d.mu.Lock()
					d.dropped++
					d.mu.Unlock()
				}
				return
			}
			d.log.Error("audit sink delivery failed",
				logger.String("decision_id", j.decision.ID),
				logger.Error(err))
		}
	}
}
