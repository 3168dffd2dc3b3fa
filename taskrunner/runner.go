// Package taskrunner implements the Task Runner: the orchestrator that
// drives a compiled task through validation, input/output materialization,
// container execution, and artifact upload, reporting every transition to
// a run store.
package taskrunner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jtarchie/discovery/executor"
	"github.com/jtarchie/discovery/ids"
	"github.com/jtarchie/discovery/orchestra"
	"github.com/jtarchie/discovery/schema"
	"github.com/jtarchie/discovery/storage"
	"github.com/jtarchie/discovery/volume"
)

// Store is the run-state surface a Runner drives. eventstore.Store
// satisfies it; tests may supply a lighter double.
type Store interface {
	BeforeStart(ctx context.Context, runID, name, ownerID, parentID string, parameters storage.Payload) (*storage.Run, error)
	OnStart(ctx context.Context, runID string) (*storage.Run, error)
	OnComplete(ctx context.Context, runID string, result storage.Payload, files []storage.RunFile) (*storage.Run, error)
	OnError(ctx context.Context, runID string, reason, message string) (*storage.Run, error)
	GetRun(ctx context.Context, runID string) (*storage.Run, error)
}

// Invocation is the caller-supplied request to run a task once.
type Invocation struct {
	RunID      string
	OwnerID    string
	ParentID   string
	Parameters map[string]any
}

// Runner drives a single compiled task to completion against a driver, a
// run store, and an optional object-store uploader.
type Runner struct {
	task       *schema.Task
	store      Store
	driver     orchestra.Driver
	uploader   *volume.Uploader
	volumeBase string
	envType    string
	logger     *slog.Logger
}

// New constructs a Runner for task. uploader may be nil, in which case the
// upload step is skipped and no files are recorded. envType gates whether
// the volume is cleaned up after the run; cleanup runs unless envType is
// exactly "DEV".
func New(
	task *schema.Task,
	store Store,
	driver orchestra.Driver,
	uploader *volume.Uploader,
	volumeBase string,
	envType string,
	logger *slog.Logger,
) *Runner {
	return &Runner{
		task:       task,
		store:      store,
		driver:     driver,
		uploader:   uploader,
		volumeBase: volumeBase,
		envType:    envType,
		logger:     logger,
	}
}

type outputFile struct {
	path     string
	fileType schema.FileType
}

// Invoke runs inv.RunID's task once. If BeforeStart fails (for example a
// duplicate run id), its error is returned and nothing else is recorded. On
// any error after the run row is created, on_error is recorded and the error
// is returned; the volume is always cleaned up outside development mode,
// regardless of outcome.
func (r *Runner) Invoke(ctx context.Context, inv Invocation) (*storage.Run, error) {
	name := r.task.Name
	if name == "" {
		name = r.task.ID
	}

	if _, err := r.store.BeforeStart(ctx, inv.RunID, name, inv.OwnerID, inv.ParentID, storage.Payload(inv.Parameters)); err != nil {
		return nil, err
	}

	vol, err := volume.New(r.volumeBase, inv.RunID, r.logger)
	if err != nil {
		r.fail(ctx, inv.RunID, err)

		return nil, err
	}

	defer r.cleanup(inv.RunID, vol)

	command, outputs, err := r.prepare(vol, inv.Parameters)
	if err != nil {
		r.fail(ctx, inv.RunID, err)

		return nil, err
	}

	var finishErr error

	runErr := executor.Run(ctx, r.driver, orchestra.Task{
		ID:      inv.RunID,
		Image:   r.task.Image,
		Command: []string{"sh", "-c", command},
		Bind:    &orchestra.Bind{HostPath: vol.Host(), GuestPath: volume.GuestPath},
	}, func() error {
		_, err := r.store.OnStart(ctx, inv.RunID)

		return err
	}, func() error {
		finishErr = r.completed(ctx, inv.RunID, vol, outputs)

		return finishErr
	})

	if runErr != nil {
		r.fail(ctx, inv.RunID, runErr)

		return nil, runErr
	}

	return r.store.GetRun(ctx, inv.RunID)
}

func (r *Runner) cleanup(runID string, vol *volume.Volume) {
	if r.envType == "DEV" {
		return
	}

	if err := vol.Cleanup(); err != nil {
		r.logger.Warn("could not clean up run volume", "run_id", runID, "error", err)
	}
}

// prepare validates parameters, serializes every INPUT file placeholder,
// allocates a fresh name for every OUTPUT file placeholder, and returns the
// fully substituted command along with the set of output files to read
// back once the container exits.
func (r *Runner) prepare(vol *volume.Volume, parameters map[string]any) (string, map[string]outputFile, error) {
	if err := r.task.ValidateParameters(parameters); err != nil {
		return "", nil, err
	}

	values := map[string]string{schema.ReservedRunDir: volume.GuestPath}
	outputs := map[string]outputFile{}

	for placeholderName, placeholder := range r.task.CommandPlaceholders {
		switch {
		case placeholder.Role == schema.RoleInput && placeholder.IsFile:
			path, err := WriteFile(vol, placeholder.FileType, parameters[placeholderName])
			if err != nil {
				return "", nil, err
			}

			values[placeholderName] = volume.GuestPath + "/" + path
		case placeholder.Role == schema.RoleOutput && placeholder.IsFile:
			path := ids.NewOutputFilename(string(placeholder.FileType))
			values[placeholderName] = volume.GuestPath + "/" + path
			outputs[placeholderName] = outputFile{path: path, fileType: placeholder.FileType}
		default:
			values[placeholderName] = fmt.Sprintf("%v", parameters[placeholderName])
		}
	}

	return safeSubstitute(r.task.Command, values), outputs, nil
}

// completed reads back every expected output file, uploads every file left
// in the volume to the object store, and records the run as successful.
func (r *Runner) completed(ctx context.Context, runID string, vol *volume.Volume, outputs map[string]outputFile) error {
	result := storage.Payload{}

	for placeholderName, output := range outputs {
		value, err := ReadFile(vol, output.path, output.fileType)
		if err != nil {
			return err
		}

		result[placeholderName] = value
	}

	files := []storage.RunFile{}

	if r.uploader != nil {
		for _, descriptor := range r.uploader.UploadAll(ctx, vol) {
			files = append(files, storage.RunFile{Path: descriptor.Path, ContentType: descriptor.ContentType})
		}
	}

	_, err := r.store.OnComplete(ctx, runID, result, files)

	return err
}

func (r *Runner) fail(ctx context.Context, runID string, err error) {
	reason, message := classify(err)

	if _, onErrorErr := r.store.OnError(ctx, runID, reason, message); onErrorErr != nil {
		r.logger.Warn("could not record run failure", "run_id", runID, "error", onErrorErr)
	}
}

// classify maps an error from any of invoke's steps to the {reason,
// message} pair recorded on the run.
func classify(err error) (string, string) {
	var validationErr *schema.ValidationError
	if errors.As(err, &validationErr) {
		return "ValidationError", err.Error()
	}

	var containerFailed *executor.ContainerFailedError
	if errors.As(err, &containerFailed) {
		return "ContainerFailed", containerFailed.Stderr
	}

	if errors.Is(err, executor.ErrContainerCancelled) {
		return "ContainerCancelled", err.Error()
	}

	if errors.Is(err, volume.ErrIOFailure) {
		return "IOFailure", err.Error()
	}

	if errors.Is(err, schema.ErrUnsupportedFileType) {
		return "UnsupportedFileType", err.Error()
	}

	return "Error", err.Error()
}
