package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	goyaml "github.com/goccy/go-yaml"
	"github.com/jtarchie/discovery/schema"
)

// ErrValidationFailed is returned by SchemaValidate.Run when any input
// document fails to compile; main.go maps it to exit code 1.
var ErrValidationFailed = errors.New("validation failed")

// SchemaValidate compiles one file or every matching file under a
// directory as a task or workflow schema, reporting every failure before
// returning.
type SchemaValidate struct {
	File string `help:"Path to a single schema file"                      short:"f" xor:"input"`
	Dir  string `help:"Directory to scan for *.task.* / *.workflow.* files" short:"d" xor:"input"`
	Type string `help:"Schema kind: task, workflow, or auto"               default:"auto" enum:"task,workflow,auto" short:"t"`
}

func (c *SchemaValidate) Run(logger *slog.Logger) error {
	paths, err := c.resolvePaths()
	if err != nil {
		return err
	}

	failed := false

	for _, path := range paths {
		kind := c.Type
		if kind == "auto" {
			kind = detectKind(path)
		}

		if err := validateFile(path, kind); err != nil {
			logger.Error("schema invalid", "path", path, "error", err)

			failed = true

			continue
		}

		logger.Info("schema valid", "path", path)
	}

	if failed {
		return ErrValidationFailed
	}

	return nil
}

func (c *SchemaValidate) resolvePaths() ([]string, error) {
	if c.File != "" {
		return []string{c.File}, nil
	}

	taskMatches, err := doublestar.FilepathGlob(filepath.Join(c.Dir, "**/*.task.*"))
	if err != nil {
		return nil, fmt.Errorf("could not scan directory for task schemas: %w", err)
	}

	workflowMatches, err := doublestar.FilepathGlob(filepath.Join(c.Dir, "**/*.workflow.*"))
	if err != nil {
		return nil, fmt.Errorf("could not scan directory for workflow schemas: %w", err)
	}

	return append(taskMatches, workflowMatches...), nil
}

func detectKind(path string) string {
	base := filepath.Base(path)

	switch {
	case strings.Contains(base, ".workflow."):
		return "workflow"
	case strings.Contains(base, ".task."):
		return "task"
	default:
		return "task"
	}
}

func validateFile(path, kind string) error {
	contents, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("could not read file: %w", err)
	}

	document := map[string]any{}

	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".yaml" || ext == ".yml" {
		err = goyaml.Unmarshal(contents, &document)
	} else {
		err = json.Unmarshal(contents, &document)
	}

	if err != nil {
		return fmt.Errorf("could not parse document: %w", err)
	}

	encoded, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("could not re-encode document: %w", err)
	}

	switch kind {
	case "workflow":
		var raw schema.RawWorkflow
		if err := json.Unmarshal(encoded, &raw); err != nil {
			return fmt.Errorf("could not decode workflow: %w", err)
		}

		_, err = schema.CompileWorkflow(raw)

		return err
	default:
		var raw schema.RawTask
		if err := json.Unmarshal(encoded, &raw); err != nil {
			return fmt.Errorf("could not decode task: %w", err)
		}

		_, err = schema.Compile(raw)

		return err
	}
}
