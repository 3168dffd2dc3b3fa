package dispatch_test

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jtarchie/discovery/dispatch"
	"github.com/jtarchie/discovery/eventstore"
	"github.com/jtarchie/discovery/orchestra"
	_ "github.com/jtarchie/discovery/orchestra/native"
	"github.com/jtarchie/discovery/storage"
	_ "github.com/jtarchie/discovery/storage/sqlite"
	. "github.com/onsi/gomega"
)

func newTestStore(t *testing.T) (*eventstore.Store, storage.Driver) {
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

	return eventstore.NewStore(driver, nil, slog.Default()), driver
}

func newTestDriver(t *testing.T) orchestra.Driver {
	t.Helper()

	assert := NewGomegaWithT(t)

	init, ok := orchestra.Get("native")
	assert.Expect(ok).To(BeTrue())

	driver, err := init("dispatch-test", slog.Default())
	assert.Expect(err).NotTo(HaveOccurred())

	t.Cleanup(func() { _ = driver.Close() })

	return driver
}

func TestQueue(t *testing.T) {
	t.Parallel()

	t.Run("assigns a message id when the caller supplies none", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		queue := dispatch.NewQueue(1)
		id := queue.Enqueue(dispatch.Envelope{OwnerID: "owner-1"})
		assert.Expect(id).NotTo(BeEmpty())

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		envelope, ok := queue.Consume(ctx)
		assert.Expect(ok).To(BeTrue())
		assert.Expect(envelope.MessageID).To(Equal(id))
	})

	t.Run("preserves a caller-supplied message id", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		queue := dispatch.NewQueue(1)
		id := queue.Enqueue(dispatch.Envelope{MessageID: "fixed-id"})
		assert.Expect(id).To(Equal("fixed-id"))
	})
}

func TestWorker(t *testing.T) {
	t.Parallel()

	t.Run("compiles and invokes the queued task, recording a successful run", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		queue := dispatch.NewQueue(1)
		store, _ := newTestStore(t)
		worker := dispatch.NewWorker(queue, store, newTestDriver(t), nil, t.TempDir(), "DEV", slog.Default())

		id := queue.Enqueue(dispatch.Envelope{
			Schema: map[string]any{
				"version": "1.0",
				"id":      "echo-task",
				"image":   "alpine",
				"command": "echo $greeting",
				"parameters": map[string]any{
					"greeting": map[string]any{
						"description": "text to echo",
						"schema":      map[string]any{"type": "string"},
					},
				},
				"outputs": map[string]any{},
			},
			OwnerID:    "owner-1",
			Parameters: map[string]any{"greeting": "hello"},
		})

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		go worker.Run(ctx)

		assert.Eventually(func() storage.RunStatus {
			run, err := store.GetRun(context.Background(), id)
			if err != nil {
				return ""
			}

			return run.Status
		}, 2*time.Second, 10*time.Millisecond).Should(Equal(storage.RunStatusSuccess))
	})
}
