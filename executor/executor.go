// Package executor implements the Container Executor: launching an image
// with a command and a single volume mount, reporting start and completion,
// and capturing stdout/stderr for failure diagnostics.
package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jtarchie/discovery/orchestra"
)

// ErrContainerFailed is returned when the container exits non-zero.
// The exit code and captured stderr are available via ContainerFailedError.
var ErrContainerFailed = errors.New("container failed")

// ErrContainerCancelled is returned when the wait is cancelled before the
// container finishes.
var ErrContainerCancelled = errors.New("container cancelled")

// ContainerFailedError carries the exit code and stderr of a failed run.
type ContainerFailedError struct {
	ExitCode int
	Stderr   string
}

func (e *ContainerFailedError) Error() string {
	return fmt.Sprintf("%s: exit code %d: %s", ErrContainerFailed, e.ExitCode, e.Stderr)
}

func (e *ContainerFailedError) Unwrap() error {
	return ErrContainerFailed
}

// pollInterval bounds how often Run checks the container's status while
// waiting for it to exit.
const pollInterval = 100 * time.Millisecond

// Run pulls (implicitly, via the driver) and launches image with command
// bind-mounted at volume, invoking onStart exactly once after the
// container starts, and onFinish exactly once if the container exits zero.
// A non-zero exit returns ContainerFailedError without calling onFinish.
// The container is removed on return, success or failure.
func Run(
	ctx context.Context,
	driver orchestra.Driver,
	task orchestra.Task,
	onStart func() error,
	onFinish func() error,
) error {
	container, err := driver.RunContainer(ctx, task)
	if err != nil {
		return fmt.Errorf("could not start container: %w", err)
	}

	defer func() { _ = container.Cleanup(context.Background()) }()

	if onStart != nil {
		if err := onStart(); err != nil {
			return fmt.Errorf("on_start callback failed: %w", err)
		}
	}

	status, err := waitForExit(ctx, container)
	if err != nil {
		return err
	}

	if !status.IsDone() {
		return fmt.Errorf("%w: wait returned before the container finished", ErrContainerCancelled)
	}

	if status.ExitCode() != 0 {
		var stdout, stderr bytes.Buffer

		_ = container.Logs(context.Background(), &stdout, &stderr)

		return &ContainerFailedError{ExitCode: status.ExitCode(), Stderr: stderr.String()}
	}

	if onFinish != nil {
		return onFinish()
	}

	return nil
}

func waitForExit(ctx context.Context, container orchestra.Container) (orchestra.ContainerStatus, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrContainerCancelled, ctx.Err())
		default:
		}

		status, err := container.Status(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %w", ErrContainerCancelled, err)
			}

			return nil, fmt.Errorf("could not get container status: %w", err)
		}

		if status.IsDone() {
			return status, nil
		}

		time.Sleep(pollInterval)
	}
}
