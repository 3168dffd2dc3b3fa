// Package storage persists registry entries (task and workflow schemas) and
// the runs dispatched against them.
package storage

import (
	"bytes"
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when an insert would violate a unique id.
var ErrDuplicate = errors.New("duplicate")

// EntryType distinguishes a registry row's schema kind.
type EntryType string

const (
	EntryTypeTask     EntryType = "TASK"
	EntryTypeWorkflow EntryType = "WORKFLOW"
)

// Entry is a row in the registry: a task or workflow schema as submitted.
type Entry struct {
	ID          string    `json:"id"`
	Type        EntryType `json:"type"`
	Name        string    `json:"name,omitempty"`
	Description string    `json:"description,omitempty"`
	Schema      Payload   `json:"schema"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// RunStatus is the lifecycle state of a Run.
type RunStatus string

const (
	RunStatusPending RunStatus = "PENDING"
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusFailed  RunStatus = "FAILED"
)

// RunError is one entry in a Run's errors list.
type RunError struct {
	Reason  string `json:"reason"`
	Message string `json:"message"`
}

// RunFile is an uploaded artifact descriptor.
type RunFile struct {
	Path        string `json:"path"`
	ContentType string `json:"content_type"`
}

// Run is one attempted execution of a task with concrete parameters.
type Run struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	OwnerID    string     `json:"owner_id"`
	ParentID   string     `json:"parent_id,omitempty"`
	Parameters Payload    `json:"parameters"`
	Status     RunStatus  `json:"status"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	FailedAt   *time.Time `json:"failed_at,omitempty"`
	Result     Payload    `json:"result,omitempty"`
	Files      []RunFile  `json:"files,omitempty"`
	Errors     []RunError `json:"errors,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// PaginationResult holds paginated items along with pagination metadata.
type PaginationResult[T any] struct {
	Items      []T  `json:"items"`
	Page       int  `json:"page"`
	PerPage    int  `json:"per_page"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
}

// Driver is the persistence surface for the registry and its runs. It is the
// named external collaborator for "the SQL database driver" (out of scope for
// deep design, but concretely implemented here against modernc.org/sqlite).
type Driver interface {
	Close() error

	// Registry CRUD.
	SaveEntry(ctx context.Context, entry Entry) (*Entry, error)
	GetEntry(ctx context.Context, id string) (*Entry, error)
	ListEntries(ctx context.Context, entryType EntryType, page, perPage int) (*PaginationResult[Entry], error)

	// Run state machine, mirroring the Event Handler / Run Store table.
	BeforeStart(ctx context.Context, runID, name, ownerID, parentID string, parameters Payload) (*Run, error)
	OnStart(ctx context.Context, runID string) (*Run, error)
	OnComplete(ctx context.Context, runID string, result Payload, files []RunFile) (*Run, error)
	// OnError also returns the run's status immediately before this failure
	// was recorded, since the caller needs it to publish an accurate
	// status_changed transition (a pre-start failure leaves PENDING, not
	// RUNNING).
	OnError(ctx context.Context, runID string, reason, message string) (*Run, RunStatus, error)
	GetRun(ctx context.Context, runID string) (*Run, error)
}

// Payload is a JSON object column, shared by Entry.Schema, Run.Parameters and
// Run.Result.
type Payload map[string]any

func (p *Payload) Value() (driver.Value, error) {
	contents, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("could not marshal payload: %w", err)
	}

	return contents, nil
}

func (p *Payload) Scan(sqlValue any) error {
	switch typedValue := sqlValue.(type) {
	case string:
		if typedValue == "" {
			return nil
		}

		err := json.NewDecoder(bytes.NewBufferString(typedValue)).Decode(p)
		if err != nil {
			return fmt.Errorf("could not unmarshal string payload: %w", err)
		}

		return nil
	case []byte:
		if len(typedValue) == 0 {
			return nil
		}

		err := json.NewDecoder(bytes.NewBuffer(typedValue)).Decode(p)
		if err != nil {
			return fmt.Errorf("could not unmarshal byte payload: %w", err)
		}

		return nil
	case nil:
		return nil
	default:
		return fmt.Errorf("%w: cannot scan type %T: %v", errors.ErrUnsupported, sqlValue, sqlValue)
	}
}
