//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"RiskPulse/pkg/config"
	"RiskPulse/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideCache,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideArchive,
		ProvideKafkaProducer,
		ProvidePublisher,
		ProvideKafkaConsumer,
		ProvideRedisQueue,

		// Data plane
		ProvideGateway,
		ProvideMarketData,
		ProvidePriceStream,
		ProvidePricePipeline,

		// Services
		ProvideCalculator,
		ProvideWeightStore,
		ProvideClassifier,
		ProvideOptimizer,
		ProvideStressTester,
		ProvideAlertManager,
		ProvideSizer,

		// Engine
		ProvideDispatcher,
		ProvideEngine,
		ProvideControlHandler,
		ProvideScheduler,

		// Surface
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
