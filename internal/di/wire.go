//go:build wireinject
// +build wireinject

package di

import (
	"PairPulse/pkg/config"
	"PairPulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideResultCache,

		// Repositories
		ProvideStorage,
		ProvidePublisher,
		ProvideMarketStream,

		// Engine internals
		ProvideTickStore,
		ProvideAggregator,
		ProvideAlertEngine,
		ProvideEngine,

		// Use cases
		ProvideProcessor,
		ProvideCollector,
		ProvideTicksHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
