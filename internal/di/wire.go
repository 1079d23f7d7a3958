//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/config"
	"github.com/sjn96/solana-ai-trading-bot-sub002/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideRedisClient,

		// Stores
		ProvideSnapshotStore,
		ProvideParamStore,
		ProvideAttributionStore,
		ProvideAnalysisLog,

		// Market state and signal plane
		ProvideHistory,
		ProvideBus,
		ProvideScheduler,
		ProvideEstimator,
		ProvideRegistry,
		ProvideRunner,

		// Trading plane
		ProvideParamRegister,
		ProvideFreezeList,
		ProvideTracker,
		ProvideExchange,
		ProvideExecutionEngine,
		ProvideDecisionEngine,
		ProvideRiskGate,
		ProvidePlanner,
		ProvideLearner,
		ProvideDirectiveQueue,
		ProvideDirectiveSink,
		ProvideFeedback,

		// Ingest
		ProvideSnapshotPublisher,
		ProvideSnapshotProcessor,
		ProvideKafkaSnapshotSink,
		ProvideMarketFeed,
		ProvideSocialFeed,
		ProvideMarketCollector,
		ProvideSocialCollector,
		ProvideCandles,

		// Control plane and API
		ProvideAgentLoop,
		ProvideStatusUseCase,
		ProvideStatusHandler,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
