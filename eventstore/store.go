package eventstore

import (
	"context"
	"log/slog"
	"time"

	"github.com/jtarchie/discovery/storage"
)

// Publisher receives a Transition after each persistence step. All publish
// calls are best-effort: the Store swallows any error, the persistence
// outcome stands regardless.
type Publisher interface {
	Publish(ctx context.Context, channel string, transition Transition) error
}

// Store decorates a storage.Driver's run operations with publication of a
// Transition to a Publisher after each successful write.
type Store struct {
	driver    storage.Driver
	publisher Publisher
	logger    *slog.Logger
}

// NewStore wraps driver with publisher. publisher may be nil, in which case
// transitions are computed but never sent.
func NewStore(driver storage.Driver, publisher Publisher, logger *slog.Logger) *Store {
	return &Store{driver: driver, publisher: publisher, logger: logger}
}

func (s *Store) BeforeStart(
	ctx context.Context,
	runID, name, ownerID, parentID string,
	parameters storage.Payload,
) (*storage.Run, error) {
	run, err := s.driver.BeforeStart(ctx, runID, name, ownerID, parentID, parameters)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Transition{
		Event:      EventRunCreated,
		RunID:      run.ID,
		OwnerID:    run.OwnerID,
		ParentID:   run.ParentID,
		Parameters: run.Parameters,
	})

	return run, nil
}

func (s *Store) OnStart(ctx context.Context, runID string) (*storage.Run, error) {
	run, err := s.driver.OnStart(ctx, runID)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Transition{
		Event:     EventRunStatusChanged,
		RunID:     run.ID,
		OwnerID:   run.OwnerID,
		ParentID:  run.ParentID,
		Status:    &StatusChange{Previous: storage.RunStatusPending, Current: storage.RunStatusRunning},
		StartedAt: formatTime(run.StartedAt),
	})

	return run, nil
}

func (s *Store) OnComplete(
	ctx context.Context,
	runID string,
	result storage.Payload,
	files []storage.RunFile,
) (*storage.Run, error) {
	run, err := s.driver.OnComplete(ctx, runID, result, files)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Transition{
		Event:       EventRunStatusChanged,
		RunID:       run.ID,
		OwnerID:     run.OwnerID,
		ParentID:    run.ParentID,
		Status:      &StatusChange{Previous: storage.RunStatusRunning, Current: storage.RunStatusSuccess},
		CompletedAt: formatTime(run.CompletedAt),
	})

	return run, nil
}

func (s *Store) OnError(ctx context.Context, runID, reason, message string) (*storage.Run, error) {
	run, previousStatus, err := s.driver.OnError(ctx, runID, reason, message)
	if err != nil {
		return nil, err
	}

	s.publish(ctx, Transition{
		Event:    EventRunStatusChanged,
		RunID:    run.ID,
		OwnerID:  run.OwnerID,
		ParentID: run.ParentID,
		Status:   &StatusChange{Previous: previousStatus, Current: storage.RunStatusFailed},
		FailedAt: formatTime(run.FailedAt),
		Reason:   reason,
	})

	return run, nil
}

func (s *Store) GetRun(ctx context.Context, runID string) (*storage.Run, error) {
	return s.driver.GetRun(ctx, runID)
}

func (s *Store) publish(ctx context.Context, transition Transition) {
	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, Channel, transition); err != nil {
		s.logger.Warn("failed to publish run transition", "event", transition.Event, "run_id", transition.RunID, "error", err)
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}

	return t.Format(time.RFC3339)
}
