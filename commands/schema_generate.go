package commands

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/jtarchie/discovery/schema"
)

// SchemaGenerate emits the meta-schemas for task and workflow documents,
// for editor integration and external validation.
type SchemaGenerate struct {
	OutputDir string `help:"Directory to write the generated schemas to" required:"" short:"O"`
}

func (c *SchemaGenerate) Run(logger *slog.Logger) error {
	if err := os.MkdirAll(c.OutputDir, 0o755); err != nil {
		return fmt.Errorf("could not create output directory: %w", err)
	}

	documents := map[string]map[string]any{
		"task.schema.json":     schema.TaskMetaSchema(),
		"workflow.schema.json": schema.WorkflowMetaSchema(),
	}

	for filename, document := range documents {
		contents, err := json.MarshalIndent(document, "", "  ")
		if err != nil {
			return fmt.Errorf("could not marshal %s: %w", filename, err)
		}

		path := filepath.Join(c.OutputDir, filename)

		if err := os.WriteFile(path, contents, 0o644); err != nil {
			return fmt.Errorf("could not write %s: %w", path, err)
		}

		logger.Info("generated schema", "path", path)
	}

	return nil
}
