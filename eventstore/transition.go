// Package eventstore decorates storage.Driver's run state machine with
// best-effort pub/sub publication, keeping persistence and notification as
// separate, composed concerns rather than one subclassing the other.
package eventstore

import (
	"encoding/json"

	"github.com/jtarchie/discovery/storage"
)

// Channel is the pub/sub channel every transition is published on.
const Channel = "runs"

const (
	EventRunCreated       = "run.created"
	EventRunStatusChanged = "run.status_changed"
)

// StatusChange captures the [previous, new] status pair carried on every
// run.status_changed event. It is encoded as a two-element JSON array.
type StatusChange struct {
	Previous storage.RunStatus
	Current  storage.RunStatus
}

// MarshalJSON encodes the pair as [previous, current].
func (s StatusChange) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]storage.RunStatus{s.Previous, s.Current})
}

// Transition is the descriptor a Store builds after each operation and hands
// to its Publisher; the operation itself returns the stored run. Only the
// fields relevant to the operation are set.
type Transition struct {
	Event       string            `json:"event"`
	RunID       string            `json:"id"`
	OwnerID     string            `json:"owner_id,omitempty"`
	ParentID    string            `json:"parent_id,omitempty"`
	Parameters  storage.Payload   `json:"params,omitempty"`
	Status      *StatusChange     `json:"status,omitempty"`
	StartedAt   string            `json:"started_at,omitempty"`
	CompletedAt string            `json:"completed_at,omitempty"`
	FailedAt    string            `json:"failed_at,omitempty"`
	Reason      string            `json:"reason,omitempty"`
}
