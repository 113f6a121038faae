//go:build wireinject
// +build wireinject

package di

import (
	"RiskArbiter/pkg/config"
	"RiskArbiter/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideJournalStore,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		// Core components
		ProvideKillSwitch,
		ProvideExposureTracker,
		ProvideScorer,
		ProvideAllocator,
		ProvideCorrelationTracker,
		ProvideLedger,
		ProvideArbiter,
		ProvideAuditDispatcher,
		ProvideBroadcaster,

		// Engine and surface
		ProvideEngine,
		ProvideHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
