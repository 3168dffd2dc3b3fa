package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jtarchie/discovery/ids"
	"github.com/jtarchie/discovery/orchestra"
	"github.com/jtarchie/discovery/schema"
	"github.com/jtarchie/discovery/storage"
	"github.com/jtarchie/discovery/taskrunner"
	"github.com/jtarchie/discovery/volume"
)

// Worker drains a Queue, compiling and invoking one Task Runner per
// envelope. A Worker runs one Task Runner at a time; Pool runs several in
// parallel to bound concurrency.
type Worker struct {
	queue      *Queue
	store      taskrunner.Store
	driver     orchestra.Driver
	uploader   *volume.Uploader
	volumeBase string
	envType    string
	logger     *slog.Logger
}

// NewWorker constructs a Worker. uploader may be nil to skip artifact
// upload.
func NewWorker(
	queue *Queue,
	store taskrunner.Store,
	driver orchestra.Driver,
	uploader *volume.Uploader,
	volumeBase string,
	envType string,
	logger *slog.Logger,
) *Worker {
	return &Worker{
		queue:      queue,
		store:      store,
		driver:     driver,
		uploader:   uploader,
		volumeBase: volumeBase,
		envType:    envType,
		logger:     logger,
	}
}

// Run consumes envelopes until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		envelope, ok := w.queue.Consume(ctx)
		if !ok {
			return
		}

		w.process(ctx, envelope)
	}
}

func (w *Worker) process(ctx context.Context, envelope Envelope) {
	raw, err := decodeRawTask(envelope.Schema)
	if err != nil {
		w.logger.Error("could not decode queued task schema", "error", err)

		return
	}

	task, err := schema.Compile(raw)
	if err != nil {
		w.logger.Error("could not compile queued task schema", "id", raw.ID, "error", err)

		return
	}

	runID := envelope.MessageID
	if runID == "" {
		runID = ids.NewRequestID()
	}

	runner := taskrunner.New(task, w.store, w.driver, w.uploader, w.volumeBase, w.envType, w.logger)

	_, err = runner.Invoke(ctx, taskrunner.Invocation{
		RunID:      runID,
		OwnerID:    envelope.OwnerID,
		ParentID:   envelope.ParentID,
		Parameters: envelope.Parameters,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			w.logger.Info("duplicate run id, treating as already processed", "run_id", runID)

			return
		}

		w.logger.Error("task run failed", "run_id", runID, "error", err)
	}
}

func decodeRawTask(document map[string]any) (schema.RawTask, error) {
	var raw schema.RawTask

	contents, err := json.Marshal(document)
	if err != nil {
		return raw, fmt.Errorf("could not marshal queued task schema: %w", err)
	}

	if err := json.Unmarshal(contents, &raw); err != nil {
		return raw, fmt.Errorf("could not decode queued task schema: %w", err)
	}

	return raw, nil
}
