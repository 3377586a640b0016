package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

// MarkSink is the minimal downstream interface the pipeline needs.
type MarkSink interface {
	ApplyMark(ctx context.Context, m models.PriceMark) error
}

// PricePipeline sits between the websocket stream and the engine's position
// marks. It validates, throttles per symbol, and buffers when the downstream
// is unavailable.
type PricePipeline struct {
	sink    MarkSink
	metrics domrepo.Metrics
	maxRPS  int
	bufSize int
	bufCh   chan models.PriceMark
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex

	throttleMu sync.Mutex
	lastSeen   map[string]time.Time // per-symbol last accepted time
}

type PipelineOption func(*PricePipeline)

// WithMaxRPS sets the max accepted marks per second per symbol.
func WithMaxRPS(n int) PipelineOption {
	return func(p *PricePipeline) {
		if n > 0 {
			p.maxRPS = n
		}
	}
}

// WithBufferSize sets the temporary buffer size when downstream is
// unavailable.
func WithBufferSize(n int) PipelineOption {
	return func(p *PricePipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// NewPricePipeline creates a pipeline.
func NewPricePipeline(sink MarkSink, metrics domrepo.Metrics, opts ...PipelineOption) *PricePipeline {
	p := &PricePipeline{
		sink:     sink,
		metrics:  metrics,
		maxRPS:   20,
		bufSize:  1000,
		stopCh:   make(chan struct{}),
		lastSeen: make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan models.PriceMark, p.bufSize)
	return p
}

// Start launches background flushing of buffered marks.
func (p *PricePipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go func() {
		backoff := 50 * time.Millisecond
		for {
			select {
			case <-p.stopCh:
				return
			case m := <-p.bufCh:
				if err := p.sink.ApplyMark(ctx, m); err != nil {
					if backoff < 2*time.Second {
						backoff *= 2
					}
					p.recordError("pipeline_flush")
					time.Sleep(backoff)
					select {
					case p.bufCh <- m:
					default:
						p.recordError("pipeline_buffer_drop")
					}
				} else {
					backoff = 50 * time.Millisecond
				}
			}
		}
	}()
}

// Stop stops the background flushing.
func (p *PricePipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)
}

// Process validates, throttles, and forwards a mark, buffering on downstream
// errors.
func (p *PricePipeline) Process(ctx context.Context, m models.PriceMark) error {
	start := time.Now()
	if err := validateMark(m); err != nil {
		p.recordError("pipeline_validate")
		return err
	}
	if !p.allow(m.Symbol, start) {
		// throttled; a stale mark is harmless, drop silently
		p.recordError("pipeline_throttle")
		return nil
	}

	if err := p.sink.ApplyMark(ctx, m); err != nil {
		p.recordError("pipeline_process")
		select {
		case p.bufCh <- m:
		default:
			p.recordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	if p.metrics != nil {
		p.metrics.RecordTick("price_mark", time.Since(start).Seconds())
	}
	return nil
}

func (p *PricePipeline) recordError(kind string) {
	if p.metrics != nil {
		p.metrics.RecordError(kind)
	}
}

func validateMark(m models.PriceMark) error {
	if m.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if m.Timestamp <= 0 {
		return fmt.Errorf("timestamp invalid")
	}
	if m.Price <= 0 {
		return fmt.Errorf("non-positive price")
	}
	return nil
}

func (p *PricePipeline) allow(symbol string, now time.Time) bool {
	if p.maxRPS <= 0 {
		return true
	}
	p.throttleMu.Lock()
	defer p.throttleMu.Unlock()
	last := p.lastSeen[symbol]
	if last.IsZero() || now.Sub(last) >= time.Second/time.Duration(p.maxRPS) {
		p.lastSeen[symbol] = now
		return true
	}
	return false
}
