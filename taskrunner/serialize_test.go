package taskrunner_test

import (
	"log/slog"
	"testing"

	"github.com/jtarchie/discovery/schema"
	"github.com/jtarchie/discovery/taskrunner"
	"github.com/jtarchie/discovery/volume"
	. "github.com/onsi/gomega"
)

func newVolume(t *testing.T) *volume.Volume {
	t.Helper()

	assert := NewGomegaWithT(t)

	v, err := volume.New(t.TempDir(), "run-1", slog.Default())
	assert.Expect(err).NotTo(HaveOccurred())

	return v
}

func TestWriteReadFile(t *testing.T) {
	t.Parallel()

	t.Run("txt round-trips a string as a single line", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		path, err := taskrunner.WriteFile(v, schema.FileTypeTXT, "hello world")
		assert.Expect(err).NotTo(HaveOccurred())

		value, err := taskrunner.ReadFile(v, path, schema.FileTypeTXT)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(value).To(Equal([]string{"hello world"}))
	})

	t.Run("txt joins a list of strings with newlines", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		path, err := taskrunner.WriteFile(v, schema.FileTypeTXT, []any{"one", "two"})
		assert.Expect(err).NotTo(HaveOccurred())

		value, err := taskrunner.ReadFile(v, path, schema.FileTypeTXT)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(value).To(Equal([]string{"one", "two"}))
	})

	t.Run("txt rejects an unsupported value type", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		_, err := taskrunner.WriteFile(v, schema.FileTypeTXT, 42)
		assert.Expect(err).To(MatchError(schema.ErrUnsupportedFileType))
	})

	t.Run("json round-trips an object", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		path, err := taskrunner.WriteFile(v, schema.FileTypeJSON, map[string]any{"host": "10.0.0.1", "port": float64(22)})
		assert.Expect(err).NotTo(HaveOccurred())

		value, err := taskrunner.ReadFile(v, path, schema.FileTypeJSON)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(value).To(Equal(map[string]any{"host": "10.0.0.1", "port": float64(22)}))
	})

	t.Run("json rejects a non-object value", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		_, err := taskrunner.WriteFile(v, schema.FileTypeJSON, []any{"nope"})
		assert.Expect(err).To(MatchError(schema.ErrUnsupportedFileType))
	})

	t.Run("jsonl round-trips a list of objects", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		path, err := taskrunner.WriteFile(v, schema.FileTypeJSONL, []any{
			map[string]any{"port": float64(22)},
			map[string]any{"port": float64(80)},
		})
		assert.Expect(err).NotTo(HaveOccurred())

		value, err := taskrunner.ReadFile(v, path, schema.FileTypeJSONL)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(value).To(Equal([]map[string]any{
			{"port": float64(22)},
			{"port": float64(80)},
		}))
	})

	t.Run("csv round-trips a list of objects, filling missing keys as empty", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		path, err := taskrunner.WriteFile(v, schema.FileTypeCSV, []any{
			map[string]any{"host": "a", "port": "22"},
			map[string]any{"host": "b"},
		})
		assert.Expect(err).NotTo(HaveOccurred())

		value, err := taskrunner.ReadFile(v, path, schema.FileTypeCSV)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(value).To(Equal([]map[string]any{
			{"host": "a", "port": "22"},
			{"host": "b", "port": ""},
		}))
	})

	t.Run("csv accepts a single object as one row", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		path, err := taskrunner.WriteFile(v, schema.FileTypeCSV, map[string]any{"host": "a"})
		assert.Expect(err).NotTo(HaveOccurred())

		value, err := taskrunner.ReadFile(v, path, schema.FileTypeCSV)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(value).To(Equal([]map[string]any{{"host": "a"}}))
	})

	t.Run("rejects an unsupported file type", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)
		v := newVolume(t)

		_, err := taskrunner.WriteFile(v, schema.FileType("xml"), "nope")
		assert.Expect(err).To(MatchError(schema.ErrUnsupportedFileType))
	})
}
