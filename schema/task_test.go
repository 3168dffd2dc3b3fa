package schema_test

import (
	"testing"

	"github.com/jtarchie/discovery/schema"
	. "github.com/onsi/gomega"
)

func nmapTask() schema.RawTask {
	return schema.RawTask{
		ID:    "nmap-scan",
		Image: "nmap:1",
		Parameters: map[string]schema.Parameter{
			"target": {Description: "", Schema: map[string]any{"type": "string"}},
		},
		Command: "nmap $target",
		Outputs: map[string]schema.Output{},
	}
}

func TestCompile(t *testing.T) {
	t.Parallel()

	t.Run("compiles a task with a resolvable command placeholder", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		task, err := schema.Compile(nmapTask())
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(task.CommandPlaceholders).To(HaveKey("target"))
		assert.Expect(task.CommandPlaceholders["target"].Role).To(Equal(schema.RoleInput))
	})

	t.Run("rejects an id with uppercase or spaces", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := nmapTask()
		raw.ID = "Nmap Scan"

		_, err := schema.Compile(raw)
		assert.Expect(err).To(MatchError(schema.ErrInvalidSchema))
	})

	t.Run("fails with InvalidCommand when a placeholder is missing", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := nmapTask()
		raw.Command = "nmap $host"

		_, err := schema.Compile(raw)
		assert.Expect(err).To(MatchError(schema.ErrInvalidCommand))
	})

	t.Run("a task with RUN_DIR declared as a parameter still compiles", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := nmapTask()
		raw.Parameters["RUN_DIR"] = schema.Parameter{Schema: map[string]any{"type": "string"}}
		raw.Command = "nmap $target $RUN_DIR"

		task, err := schema.Compile(raw)
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(task.CommandPlaceholders).NotTo(HaveKey(schema.ReservedRunDir))
	})

	t.Run("fails InvalidCommand when a placeholder is in both parameters and outputs", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := nmapTask()
		raw.Outputs["target"] = schema.Output{Schema: map[string]any{"type": "string"}}

		_, err := schema.Compile(raw)
		assert.Expect(err).To(MatchError(schema.ErrInvalidCommand))
	})

	t.Run("unsupported schema type fails compilation", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := nmapTask()
		raw.Parameters["target"] = schema.Parameter{Schema: map[string]any{"type": "money"}}

		_, err := schema.Compile(raw)
		assert.Expect(err).To(MatchError(schema.ErrInvalidSchema))
	})
}

func TestValidateParameters(t *testing.T) {
	t.Parallel()

	t.Run("rejects a non-numeric value for an integer parameter", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := schema.RawTask{
			ID:      "count-task",
			Image:   "alpine:3",
			Command: "echo $n",
			Parameters: map[string]schema.Parameter{
				"n": {Schema: map[string]any{"type": "integer"}},
			},
			Outputs: map[string]schema.Output{},
		}

		task, err := schema.Compile(raw)
		assert.Expect(err).NotTo(HaveOccurred())

		err = task.ValidateParameters(map[string]any{"n": "not-a-number"})
		assert.Expect(err).To(HaveOccurred())

		var validationError *schema.ValidationError
		assert.Expect(err).To(BeAssignableToTypeOf(validationError))
	})

	t.Run("accepts a matching parameter set", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		task, err := schema.Compile(nmapTask())
		assert.Expect(err).NotTo(HaveOccurred())

		err = task.ValidateParameters(map[string]any{"target": "1.1.1.1"})
		assert.Expect(err).NotTo(HaveOccurred())
	})

	t.Run("a default parameter is not required", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		raw := schema.RawTask{
			ID:      "count-task",
			Image:   "alpine:3",
			Command: "echo $n",
			Parameters: map[string]schema.Parameter{
				"n": {Schema: map[string]any{"type": "integer"}, Default: 1},
			},
			Outputs: map[string]schema.Output{},
		}

		task, err := schema.Compile(raw)
		assert.Expect(err).NotTo(HaveOccurred())

		err = task.ValidateParameters(map[string]any{})
		assert.Expect(err).NotTo(HaveOccurred())
	})
}

func TestCompileWorkflow(t *testing.T) {
	t.Parallel()

	t.Run("compiles every run as a standalone task", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		workflow, err := schema.CompileWorkflow(schema.RawWorkflow{
			Name: "recon",
			Runs: []schema.RawTask{nmapTask()},
		})
		assert.Expect(err).NotTo(HaveOccurred())
		assert.Expect(workflow.Runs).To(HaveLen(1))
	})

	t.Run("propagates a task compile failure with its id", func(t *testing.T) {
		t.Parallel()

		assert := NewGomegaWithT(t)

		broken := nmapTask()
		broken.Command = "nmap $host"

		_, err := schema.CompileWorkflow(schema.RawWorkflow{
			Name: "recon",
			Runs: []schema.RawTask{broken},
		})
		assert.Expect(err).To(HaveOccurred())
		assert.Expect(err.Error()).To(ContainSubstring("nmap-scan"))
	})
}
