package dispatch

import (
	"context"

	"github.com/jtarchie/discovery/ids"
)

// Queue is an in-process, channel-backed stand-in for the named broker
// queue this module's worker pool drains. No broker client library is
// wired in: the reference stack's queue transport sits behind a
// fire-and-forget enqueue/consume pair that a channel satisfies directly.
type Queue struct {
	jobs chan Envelope
}

// NewQueue allocates a queue with room for buffer pending envelopes before
// Enqueue blocks.
func NewQueue(buffer int) *Queue {
	return &Queue{jobs: make(chan Envelope, buffer)}
}

// Enqueue pushes envelope onto the queue, assigning it a fresh message id
// when the caller did not supply one, and returns that id. Enqueue blocks
// only if the queue's buffer is full; it never starts a worker itself.
func (q *Queue) Enqueue(envelope Envelope) string {
	if envelope.MessageID == "" {
		envelope.MessageID = ids.NewRequestID()
	}

	q.jobs <- envelope

	return envelope.MessageID
}

// Consume blocks until an envelope is available or ctx is cancelled. The
// second return value is false only on cancellation.
func (q *Queue) Consume(ctx context.Context) (Envelope, bool) {
	select {
	case envelope := <-q.jobs:
		return envelope, true
	case <-ctx.Done():
		return Envelope{}, false
	}
}
