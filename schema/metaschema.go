package schema

// TaskMetaSchema is the JSON Schema describing a valid task schema
// document (the shape RawTask decodes), for the discovery-schema CLI's
// generate subcommand and for external tooling/editors.
func TaskMetaSchema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "Task",
		"type":    "object",
		"required": []string{"id", "image", "command"},
		"properties": map[string]any{
			"version":     map[string]any{"type": "string", "default": "1.0"},
			"id":          map[string]any{"type": "string", "pattern": idPattern.String()},
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"image":       map[string]any{"type": "string"},
			"command":     map[string]any{"type": "string"},
			"parameters":  map[string]any{"type": "object", "additionalProperties": parameterOrOutputMetaSchema(true)},
			"outputs":     map[string]any{"type": "object", "additionalProperties": parameterOrOutputMetaSchema(false)},
		},
	}
}

// WorkflowMetaSchema is the JSON Schema describing a valid workflow schema
// document (the shape RawWorkflow decodes).
func WorkflowMetaSchema() map[string]any {
	return map[string]any{
		"$schema": "http://json-schema.org/draft-07/schema#",
		"title":   "Workflow",
		"type":    "object",
		"required": []string{"name", "runs"},
		"properties": map[string]any{
			"version":     map[string]any{"type": "string", "default": "1.0"},
			"name":        map[string]any{"type": "string"},
			"description": map[string]any{"type": "string"},
			"runs":        map[string]any{"type": "array", "items": TaskMetaSchema()},
			"variables":   map[string]any{"type": "object", "additionalProperties": map[string]any{"type": "string"}},
		},
	}
}

func parameterOrOutputMetaSchema(withDefault bool) map[string]any {
	properties := map[string]any{
		"description": map[string]any{"type": "string"},
		"schema":      map[string]any{"type": "object"},
		"is_file":     map[string]any{"type": "boolean"},
		"file_type":   map[string]any{"type": "string", "enum": []string{"txt", "json", "jsonl", "csv"}},
	}

	if withDefault {
		properties["default"] = map[string]any{}
	}

	return map[string]any{
		"type":       "object",
		"required":   []string{"description", "schema"},
		"properties": properties,
	}
}
