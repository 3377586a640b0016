package queue

import "context"

// Job consumes messages of one type from the queue.
type Job interface {
	// Name identifies the job in logs and retry bookkeeping.
	Name() string

	// Type is the message type this job subscribes to.
	Type() string

	Handle(ctx context.Context, payload interface{}) error
}
