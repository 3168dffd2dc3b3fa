// Package dispatch implements the Dispatch Adapter: a non-blocking
// enqueue of a run request and a worker-side consumer that constructs and
// invokes a Task Runner for each envelope it receives.
package dispatch

// QueueName is the job queue this module's worker pool drains.
const QueueName = "task_runner"

// Envelope is the job pushed to the queue by the HTTP layer and consumed by
// a worker. Schema carries the task's registry entry as decoded JSON, so
// the worker can recompile it without a second registry lookup.
type Envelope struct {
	MessageID  string
	Schema     map[string]any
	OwnerID    string
	ParentID   string
	Parameters map[string]any
}
