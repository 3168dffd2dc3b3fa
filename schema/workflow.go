package schema

import "fmt"

// RawWorkflow is a named sequence of task schemas sharing textual variables.
// Its runtime is out of scope: compiling a workflow only validates its
// shape, it never builds an execution plan.
type RawWorkflow struct {
	Version     string            `json:"version" yaml:"version"`
	Name        string            `json:"name" yaml:"name"`
	Description string            `json:"description,omitempty" yaml:"description,omitempty"`
	Runs        []RawTask         `json:"runs" yaml:"runs"`
	Variables   map[string]string `json:"variables,omitempty" yaml:"variables,omitempty"`
}

// Workflow is a compiled workflow: every entry of Runs has been compiled the
// same way a standalone task would be.
type Workflow struct {
	Version     string
	Name        string
	Description string
	Runs        []*Task
	Variables   map[string]string
}

// CompileWorkflow validates version and name, then compiles every entry of
// Runs as a standalone task. A failure on any entry is wrapped with the
// offending task's id.
func CompileWorkflow(raw RawWorkflow) (*Workflow, error) {
	version := raw.Version
	if version == "" {
		version = "1.0"
	}

	if version != "1.0" {
		return nil, fmt.Errorf("%w: unsupported workflow version %q", ErrInvalidSchema, version)
	}

	if raw.Name == "" {
		return nil, fmt.Errorf("%w: workflow name is required", ErrInvalidSchema)
	}

	runs := make([]*Task, 0, len(raw.Runs))

	for _, rawTask := range raw.Runs {
		task, err := Compile(rawTask)
		if err != nil {
			return nil, fmt.Errorf("task %q: %w", rawTask.ID, err)
		}

		runs = append(runs, task)
	}

	return &Workflow{
		Version:     version,
		Name:        raw.Name,
		Description: raw.Description,
		Runs:        runs,
		Variables:   raw.Variables,
	}, nil
}
