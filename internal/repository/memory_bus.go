package repository

import (
	"context"
	"sync"

	"RiskPulse/internal/domain/models"
	"RiskPulse/internal/domain/repository"
)

const memoryBusBuffer = 256

// MemoryBus is an in-process publisher for development and tests. Slow
// subscribers drop messages rather than block the tick loop.
type MemoryBus struct {
	mu     sync.RWMutex
	subs   []chan models.Envelope
	closed bool
}

// NewMemoryBus creates the in-memory publisher.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{}
}

var _ repository.Publisher = (*MemoryBus)(nil)

// Subscribe returns a channel receiving every subsequently published
// envelope. The channel closes when the bus closes.
func (b *MemoryBus) Subscribe() <-chan models.Envelope {
	ch := make(chan models.Envelope, memoryBusBuffer)
	b.mu.Lock()
	if b.closed {
		close(ch)
	} else {
		b.subs = append(b.subs, ch)
	}
	b.mu.Unlock()
	return ch
}

func (b *MemoryBus) Publish(ctx context.Context, e models.Envelope) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return models.ErrServiceUnavailable
	}
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
			// drop on backpressure
		}
	}
	return nil
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	for _, ch := range b.subs {
		close(ch)
	}
	b.subs = nil
	return nil
}
