package di

import (
	"context"
	"fmt"
	"time"

	"RiskArbiter/internal/domain/service"
	"RiskArbiter/internal/engine"
	"RiskArbiter/internal/handler/api"
	"RiskArbiter/internal/ledger"
	internalrepo "RiskArbiter/internal/repository"
	"RiskArbiter/internal/services/allocation"
	"RiskArbiter/internal/services/arbiter"
	"RiskArbiter/internal/services/audit"
	"RiskArbiter/internal/services/correlation"
	"RiskArbiter/internal/services/exposure"
	"RiskArbiter/internal/services/killswitch"
	"RiskArbiter/internal/services/scoring"
	"RiskArbiter/pkg/cache"
	pkgch "RiskArbiter/pkg/clickhouse"
	"RiskArbiter/pkg/config"
	xhttp "RiskArbiter/pkg/http"
	pkgkafka "RiskArbiter/pkg/kafka"
	"RiskArbiter/pkg/logger"
	"RiskArbiter/pkg/metrics"
	"RiskArbiter/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(&logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus recorder.
func ProvideMetrics() service.Metrics {
	return metrics.New()
}

// ProvideJournalStore creates the redis-backed kill switch journal
// store; nil when journaling is disabled.
func ProvideJournalStore(cfg *config.Config) (cache.Service, error) {
	if !cfg.KillSwitch.Journal.Enabled {
		return nil, nil
	}
	store, err := cache.NewRedisCache(cache.RedisConfig{
		Addr:     cfg.KillSwitch.Journal.Addr,
		Password: cfg.KillSwitch.Journal.Password,
		DB:       cfg.KillSwitch.Journal.DB,
		Prefix:   cfg.KillSwitch.Journal.Prefix,
	})
	if err != nil {
		return nil, fmt.Errorf("journal store: %w", err)
	}
	return store, nil
}

// ProvideKillSwitch creates the safety gate, restoring any journaled
// block from a previous run.
func ProvideKillSwitch(cfg *config.Config, log *logger.Logger, m service.Metrics, store cache.Service) service.KillSwitch {
	var journal killswitch.Journal
	if store != nil {
		journal = killswitch.NewCacheJournal(store)
	}
	return killswitch.New(killswitch.Thresholds{
		PerTradeRiskCapPct:   cfg.KillSwitch.PerTradeRiskCapPct,
		DailyDrawdownPct:     cfg.KillSwitch.DailyDrawdownPct,
		MaxConsecutiveLosses: cfg.KillSwitch.MaxConsecutiveLosses,
		MinWinRate:           cfg.KillSwitch.MinWinRate,
		MinTradesForWinRate:  cfg.KillSwitch.MinTradesForWinRate,
		PortfolioDrawdownPct: cfg.KillSwitch.PortfolioDrawdownPct,
	}, log, m, journal)
}

// ProvideExposureTracker creates the budget tracker wired to escalate
// ledger defects to the kill switch emergency path.
func ProvideExposureTracker(cfg *config.Config, log *logger.Logger, m service.Metrics, ks service.KillSwitch) (service.ExposureTracker, error) {
	tracker, err := exposure.New(exposure.Caps{
		TotalPct:     cfg.Budget.TotalCapPct,
		SymbolPct:    cfg.Budget.SymbolCapPct,
		StrategyPct:  cfg.Budget.StrategyCapPct,
		SectorPct:    cfg.Budget.SectorCapPct,
		DirectionPct: cfg.Budget.DirectionCapPct,
		ClusterPct:   cfg.Budget.ClusterCapPct,
	}, log, m)
	if err != nil {
		return nil, fmt.Errorf("exposure tracker: %w", err)
	}
	tracker.SetInvariantHook(func(reason string) {
		ks.EmergencyStop(reason)
	})
	return tracker, nil
}

// ProvideScorer creates the quality scorer.
func ProvideScorer(log *logger.Logger) service.Scorer {
	return scoring.New(log)
}

// ProvideAllocator creates the risk allocator.
func ProvideAllocator(cfg *config.Config, log *logger.Logger) service.Allocator {
	return allocation.New(service.AllocationLimits{
		MinScore:        cfg.Allocation.MinScore,
		MaxRiskPct:      cfg.Allocation.MaxRiskPct,
		MinTradablePct:  cfg.Allocation.MinTradablePct,
		SigmoidSlope:    cfg.Allocation.SigmoidSlope,
		SigmoidMidpoint: cfg.Allocation.SigmoidMidpoint,
	}, log)
}

// ProvideCorrelationTracker creates the rolling correlation tracker.
func ProvideCorrelationTracker(cfg *config.Config) service.CorrelationTracker {
	return correlation.New(cfg.Correlation.HistoryLength, cfg.Correlation.ClusterThreshold)
}

// ProvideLedger creates the bounded decision ledger.
func ProvideLedger(cfg *config.Config, log *logger.Logger, m service.Metrics) service.Ledger {
	return ledger.New(cfg.Ledger.MaxEntries, log, m)
}

// ProvideArbiter creates the conflict arbiter.
func ProvideArbiter(cfg *config.Config, tracker service.ExposureTracker, alloc service.Allocator, log *logger.Logger, m service.Metrics) *arbiter.Arbiter {
	return arbiter.New(arbiter.Config{
		LockTimeout:    cfg.Arbiter.LockTimeout,
		LiquidityFloor: cfg.Arbiter.LiquidityFloor,
		SlippageBps:    cfg.Arbiter.SlippageBps,
	}, tracker, alloc, log, m)
}

// ProvideClickHouseClient creates the archive client; nil when the
// ClickHouse export is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ch := cfg.Audit.ClickHouse
	if !ch.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithTimeouts(ch.DialTimeout, 10*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	stmts := append([]string{fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", ch.Database)},
		internalrepo.SchemaStatements(ch.Database+"."+ch.Table)...)
	if err := client.InitSchema(ctx, stmts); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideKafkaProducer creates the export producer; nil when the Kafka
// export is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	k := cfg.Audit.Kafka
	if !k.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(k.Brokers),
		pkgkafka.WithCompression(k.Compression),
		pkgkafka.WithRequiredAcks(k.RequiredAcks),
		pkgkafka.WithWriteTimeout(k.WriteTimeout),
		pkgkafka.WithMaxAttempts(k.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideAuditDispatcher assembles the export sinks. With no sink
// enabled the dispatcher refuses enqueues and the ledger remains the
// only record.
func ProvideAuditDispatcher(cfg *config.Config, log *logger.Logger, producer *pkgkafka.Producer, chClient *pkgch.Client) *audit.Dispatcher {
	var sinks []service.AuditSink
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaAuditSink(producer, cfg.Audit.Kafka.Topic))
	}
	if chClient != nil {
		table := cfg.Audit.ClickHouse.Database + "." + cfg.Audit.ClickHouse.Table
		sinks = append(sinks, internalrepo.NewClickHouseAuditSink(chClient.DB(), table))
	}
	return audit.NewDispatcher(audit.Config{
		QueueSize: cfg.Audit.QueueSize,
		Workers:   cfg.Audit.Workers,
	}, log, sinks...)
}

// ProvideBroadcaster creates the decision event stream.
func ProvideBroadcaster() *engine.Broadcaster {
	return engine.NewBroadcaster(0)
}

// ProvideEngine assembles the arbitration engine.
func ProvideEngine(
	scorer service.Scorer,
	arb *arbiter.Arbiter,
	tracker service.ExposureTracker,
	corr service.CorrelationTracker,
	ks service.KillSwitch,
	led service.Ledger,
	dispatcher *audit.Dispatcher,
	events *engine.Broadcaster,
	m service.Metrics,
	log *logger.Logger,
) *engine.Engine {
	return engine.New(scorer, arb, tracker, corr, ks, led, dispatcher, events, m, log)
}

// ProvideHandler creates the audit API handler.
func ProvideHandler(log *logger.Logger, eng *engine.Engine) xhttp.Handler {
	return api.NewDecisionsHandler(log, eng)
}

// ProvideApp creates the application.
func ProvideApp(
	cfg *config.Config,
	log *logger.Logger,
	eng *engine.Engine,
	dispatcher *audit.Dispatcher,
	handler xhttp.Handler,
	chClient *pkgch.Client,
	journal cache.Service,
) *server.App {
	return server.New(cfg, log, eng, dispatcher, handler, chClient, journal)
}
