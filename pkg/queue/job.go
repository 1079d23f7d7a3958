package queue

import "context"

// Job consumes one message type off the queue. The directive job is the only
// registered job today; the contract stays generic so retraining or report
// replay can ride the same queue later.
type Job interface {
	// Name identifies the job in logs and retry bookkeeping.
	Name() string

	// Type is the message type this job consumes.
	Type() string

	// Handle processes one payload. Returning an error schedules a retry
	// until the queue's retry limit is spent.
	Handle(ctx context.Context, payload interface{}) error
}
