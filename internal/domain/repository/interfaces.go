package repository

import (
	"context"

	"RiskPulse/internal/domain/models"
)

// MarketData is the inbound boundary to the external portfolio/market-data
// collaborator. Implementations decide resilience (retry, breaker, cache);
// callers treat any returned error as that tick's data being unavailable.
type MarketData interface {
	GetPortfolio(ctx context.Context) (*models.PortfolioSnapshot, error)
	GetReturnSeries(ctx context.Context, symbols []string, lookback int) (map[string]models.ReturnSeries, error)
	GetMarketProxySeries(ctx context.Context, lookback int) (models.ReturnSeries, error)
	GetLiquidityInfo(ctx context.Context, symbols []string) (map[string]models.LiquidityInfo, error)
}

// PriceStream is an optional push feed of last-price marks from the
// provider, consumed between ticks to keep position marks fresh.
type PriceStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan models.PriceMark, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// Publisher is the outbound message bus. The engine publishes value objects
// wrapped in envelopes and never waits for subscriber acknowledgement.
type Publisher interface {
	Publish(ctx context.Context, e models.Envelope) error
	Close() error
}

// Archive is an optional append-only audit sink for published envelopes.
// The engine writes and never reads back.
type Archive interface {
	Append(ctx context.Context, e models.Envelope) error
	Close() error
}

// Metrics records engine observability counters.
type Metrics interface {
	RecordTick(kind string, seconds float64)
	RecordTickAbandoned(kind string)
	RecordError(kind string)
	RecordPublished(msgType string)
	RecordAlert(severity string)
	RecordRiskGauge(name string, value float64)
	RecordBreakerState(state string)
}
