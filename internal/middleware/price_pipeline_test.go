package middleware

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"RiskPulse/internal/domain/models"
)

type sinkFunc func(ctx context.Context, m models.PriceMark) error

func (f sinkFunc) ApplyMark(ctx context.Context, m models.PriceMark) error { return f(ctx, m) }

func mark(symbol string, price float64) models.PriceMark {
	return models.PriceMark{Symbol: symbol, Price: price, Timestamp: time.Now().Unix()}
}

func TestProcessForwardsValidMark(t *testing.T) {
	var got atomic.Int64
	p := NewPricePipeline(sinkFunc(func(ctx context.Context, m models.PriceMark) error {
		got.Add(1)
		return nil
	}), nil)

	if err := p.Process(context.Background(), mark("BTC", 45000)); err != nil {
		t.Fatalf("process: %v", err)
	}
	if got.Load() != 1 {
		t.Fatalf("sink called %d times, want 1", got.Load())
	}
}

func TestProcessRejectsInvalidMark(t *testing.T) {
	p := NewPricePipeline(sinkFunc(func(ctx context.Context, m models.PriceMark) error {
		t.Fatal("invalid mark must not reach the sink")
		return nil
	}), nil)

	cases := []models.PriceMark{
		{Symbol: "", Price: 1, Timestamp: 1},
		{Symbol: "BTC", Price: 0, Timestamp: 1},
		{Symbol: "BTC", Price: 1, Timestamp: 0},
	}
	for _, m := range cases {
		if err := p.Process(context.Background(), m); err == nil {
			t.Fatalf("mark %+v should be rejected", m)
		}
	}
}

func TestThrottlePerSymbol(t *testing.T) {
	var got atomic.Int64
	p := NewPricePipeline(sinkFunc(func(ctx context.Context, m models.PriceMark) error {
		got.Add(1)
		return nil
	}), nil, WithMaxRPS(1))

	p.Process(context.Background(), mark("BTC", 1)) //nolint:errcheck
	p.Process(context.Background(), mark("BTC", 2)) //nolint:errcheck
	// A different symbol has its own budget.
	p.Process(context.Background(), mark("ETH", 3)) //nolint:errcheck

	if got.Load() != 2 {
		t.Fatalf("sink called %d times, want 2 (BTC once, ETH once)", got.Load())
	}
}

func TestBufferedRetryOnDownstreamError(t *testing.T) {
	var failing atomic.Bool
	failing.Store(true)
	var got atomic.Int64
	p := NewPricePipeline(sinkFunc(func(ctx context.Context, m models.PriceMark) error {
		if failing.Load() {
			return errors.New("downstream down")
		}
		got.Add(1)
		return nil
	}), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	if err := p.Process(ctx, mark("BTC", 45000)); err == nil {
		t.Fatal("expected downstream error")
	}

	failing.Store(false)
	deadline := time.After(2 * time.Second)
	for got.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("buffered mark was never flushed")
		case <-time.After(10 * time.Millisecond):
		}
	}
}
