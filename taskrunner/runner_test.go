package taskrunner_test

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/jtarchie/discovery/eventstore"
	"github.com/jtarchie/discovery/executor"
	"github.com/jtarchie/discovery/ids"
	"github.com/jtarchie/discovery/orchestra"
	_ "github.com/jtarchie/discovery/orchestra/native"
	"github.com/jtarchie/discovery/schema"
	"github.com/jtarchie/discovery/storage"
	_ "github.com/jtarchie/discovery/storage/sqlite"
	"github.com/jtarchie/discovery/taskrunner"
	. "github.com/onsi/gomega"
)

func newStore(t *testing.T) *eventstore.Store {
	t.Helper()

	assert := NewGomegaWithT(t)

	init, ok := storage.GetFromDSN("sqlite://ignored")
	assert.Expect(ok).To(BeTrue())

	buildFile, err := os.CreateTemp(t.TempDir(), "")
	assert.Expect(err).NotTo(HaveOccurred())
	defer func() { _ = buildFile.Close() }()

	driver, err := init(buildFile.Name(), "namespace", slog.Default())
	assert.Expect(err).NotTo(HaveOccurred())

	t.Cleanup(func() { _ = driver.Close() })

	return eventstore.NewStore(driver, nil, slog.Default())
}

func newDriver(t *testing.T) orchestra.Driver {
	t.Helper()

	assert := NewGomegaWithT(t)

	init, ok := orchestra.Get("native")
	assert.Expect(ok).To(BeTrue())

	driver, err := init("taskrunner-test", slog.Default())
	assert.Expect(err).NotTo(HaveOccurred())

	t.Cleanup(func() { _ = driver.Close() })

	return driver
}

func compileGreetingTask(t *testing.T, command string) *schema.Task {
	t.Helper()

	assert := NewGomegaWithT(t)

	task, err := schema.Compile(schema.RawTask{
		Version: "1.0",
		ID:      "greet",
		Name:    "greet",
		Image:   "alpine",
		Parameters: map[string]schema.Parameter{
			"greeting": {Description: "text to echo", Schema: map[string]any{"type": "string"}},
		},
		Command: command,
		Outputs: map[string]schema.Output{},
	})
	assert.Expect(err).NotTo(HaveOccurred())

	return task
}

func TestRunner_Invoke(t *testing.T) {
	t.Parallel()

	t.Run("records a successful run and substitutes a non-file parameter", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		task := compileGreetingTask(t, "echo $greeting")
		store := newStore(t)
		runner := taskrunner.New(task, store, newDriver(t), nil, t.TempDir(), "DEV", slog.Default())

		run, err := runner.Invoke(context.Background(), taskrunner.Invocation{
			RunID:      ids.NewRunID(),
			OwnerID:    "owner-1",
			Parameters: map[string]any{"greeting": "hello"},
		})
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(run.Status).To(Equal(storage.RunStatusSuccess))
	})

	t.Run("records a failed run when the container exits non-zero", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		task := compileGreetingTask(t, "exit 1")
		store := newStore(t)
		runner := taskrunner.New(task, store, newDriver(t), nil, t.TempDir(), "DEV", slog.Default())

		runID := ids.NewRunID()

		_, err := runner.Invoke(context.Background(), taskrunner.Invocation{
			RunID:      runID,
			OwnerID:    "owner-1",
			Parameters: map[string]any{"greeting": "hello"},
		})
		assert.Expect(err).To(HaveOccurred())

		var containerFailed *executor.ContainerFailedError
		assert.Expect(err).To(BeAssignableToTypeOf(containerFailed))

		run, getErr := store.GetRun(context.Background(), runID)
		assert.Expect(getErr).NotTo(HaveOccurred())
		assert.Expect(run.Status).To(Equal(storage.RunStatusFailed))
		assert.Expect(run.Errors).To(HaveLen(1))
		assert.Expect(run.Errors[0].Reason).To(Equal("ContainerFailed"))
	})

	t.Run("rejects invalid parameters before starting a container", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		task := compileGreetingTask(t, "echo $greeting")
		store := newStore(t)
		runner := taskrunner.New(task, store, newDriver(t), nil, t.TempDir(), "DEV", slog.Default())

		runID := ids.NewRunID()

		_, err := runner.Invoke(context.Background(), taskrunner.Invocation{
			RunID:      runID,
			OwnerID:    "owner-1",
			Parameters: map[string]any{},
		})
		assert.Expect(err).To(HaveOccurred())

		var validationErr *schema.ValidationError
		assert.Expect(err).To(BeAssignableToTypeOf(validationErr))

		run, getErr := store.GetRun(context.Background(), runID)
		assert.Expect(getErr).NotTo(HaveOccurred())
		assert.Expect(run.Status).To(Equal(storage.RunStatusFailed))
		assert.Expect(run.Errors[0].Reason).To(Equal("ValidationError"))
	})

	t.Run("a duplicate run id is reported without mutating the original", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		task := compileGreetingTask(t, "echo $greeting")
		store := newStore(t)
		runner := taskrunner.New(task, store, newDriver(t), nil, t.TempDir(), "DEV", slog.Default())

		runID := ids.NewRunID()
		params := map[string]any{"greeting": "hello"}

		_, err := runner.Invoke(context.Background(), taskrunner.Invocation{RunID: runID, OwnerID: "owner-1", Parameters: params})
		assert.Expect(err).NotTo(HaveOccurred())

		_, err = runner.Invoke(context.Background(), taskrunner.Invocation{RunID: runID, OwnerID: "owner-1", Parameters: params})
		assert.Expect(err).To(MatchError(storage.ErrDuplicate))

		run, getErr := store.GetRun(context.Background(), runID)
		assert.Expect(getErr).NotTo(HaveOccurred())
		assert.Expect(run.Status).To(Equal(storage.RunStatusSuccess))
		assert.Expect(run.Errors).To(BeEmpty())
	})
}
