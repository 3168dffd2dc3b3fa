package schema

import (
	"fmt"
	"regexp"
)

// FileType is one of the supported serialization formats for file-backed
// parameters and outputs.
type FileType string

const (
	FileTypeTXT   FileType = "txt"
	FileTypeJSON  FileType = "json"
	FileTypeJSONL FileType = "jsonl"
	FileTypeCSV   FileType = "csv"
)

// ReservedRunDir is the command-template identifier always resolved to the
// guest volume path, regardless of whether it is also declared as a
// parameter or output.
const ReservedRunDir = "RUN_DIR"

// Parameter is one entry in a task schema's parameters mapping.
type Parameter struct {
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
	Default     any            `json:"default,omitempty"`
	IsFile      bool           `json:"is_file,omitempty"`
	FileType    FileType       `json:"file_type,omitempty"`
}

// Output is one entry in a task schema's outputs mapping.
type Output struct {
	Description string         `json:"description"`
	Schema      map[string]any `json:"schema"`
	IsFile      bool           `json:"is_file,omitempty"`
	FileType    FileType       `json:"file_type,omitempty"`
}

// PlaceholderRole distinguishes where a command placeholder's value comes
// from: the caller's parameters, or the container's produced outputs.
type PlaceholderRole string

const (
	RoleInput  PlaceholderRole = "INPUT"
	RoleOutput PlaceholderRole = "OUTPUT"
)

// Placeholder is a resolved command-template identifier.
type Placeholder struct {
	Role     PlaceholderRole
	IsFile   bool
	FileType FileType
}

// RawTask is the shape of a task schema as submitted (JSON or YAML-decoded),
// before compilation.
type RawTask struct {
	Version     string               `json:"version" yaml:"version"`
	ID          string               `json:"id" yaml:"id"`
	Name        string               `json:"name,omitempty" yaml:"name,omitempty"`
	Description string               `json:"description,omitempty" yaml:"description,omitempty"`
	Image       string               `json:"image" yaml:"image"`
	Parameters  map[string]Parameter `json:"parameters" yaml:"parameters"`
	Command     string               `json:"command" yaml:"command"`
	Outputs     map[string]Output    `json:"outputs" yaml:"outputs"`
}

// Task is a compiled task schema: validators for parameters and outputs, and
// command placeholders resolved to a role.
type Task struct {
	Version     string
	ID          string
	Name        string
	Description string
	Image       string
	Command     string
	Parameters  map[string]Parameter
	Outputs     map[string]Output

	ParametersValidator map[string]compiledParameter
	OutputsValidator    map[string]Validator
	CommandPlaceholders map[string]Placeholder
}

type compiledParameter struct {
	validator Validator
	required  bool
}

// idPattern is the registry's id constraint, matching spec §3: lowercase
// letters, digits, hyphen, dot, slash.
var idPattern = regexp.MustCompile(`^[a-z0-9-./]+$`)

// placeholderPattern matches both $NAME and ${NAME} forms.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// Compile validates and compiles a raw task schema into a Task.
func Compile(raw RawTask) (*Task, error) {
	version := raw.Version
	if version == "" {
		version = "1.0"
	}

	if version != "1.0" {
		return nil, fmt.Errorf("%w: unsupported task version %q", ErrInvalidSchema, version)
	}

	if !idPattern.MatchString(raw.ID) {
		return nil, fmt.Errorf("%w: id %q must match %s", ErrInvalidSchema, raw.ID, idPattern.String())
	}

	parametersValidator := make(map[string]compiledParameter, len(raw.Parameters))

	for name, parameter := range raw.Parameters {
		validator, err := compileFragment(parameter.Schema)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}

		parametersValidator[name] = compiledParameter{
			validator: validator,
			required:  parameter.Default == nil,
		}
	}

	outputsValidator := make(map[string]Validator, len(raw.Outputs))

	for name, output := range raw.Outputs {
		validator, err := compileFragment(output.Schema)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", name, err)
		}

		outputsValidator[name] = validator
	}

	placeholders, err := resolvePlaceholders(raw.Command, raw.Parameters, raw.Outputs)
	if err != nil {
		return nil, err
	}

	return &Task{
		Version:             version,
		ID:                  raw.ID,
		Name:                raw.Name,
		Description:         raw.Description,
		Image:               raw.Image,
		Command:             raw.Command,
		Parameters:          raw.Parameters,
		Outputs:             raw.Outputs,
		ParametersValidator: parametersValidator,
		OutputsValidator:    outputsValidator,
		CommandPlaceholders: placeholders,
	}, nil
}

func resolvePlaceholders(
	command string,
	parameters map[string]Parameter,
	outputs map[string]Output,
) (map[string]Placeholder, error) {
	identifiers := map[string]struct{}{}

	for _, match := range placeholderPattern.FindAllStringSubmatch(command, -1) {
		name := match[1]
		if name == "" {
			name = match[2]
		}

		identifiers[name] = struct{}{}
	}

	delete(identifiers, ReservedRunDir)

	placeholders := make(map[string]Placeholder, len(identifiers))
	missing := []string{}

	for name := range identifiers {
		parameter, isParameter := parameters[name]
		output, isOutput := outputs[name]

		switch {
		case isParameter && isOutput:
			missing = append(missing, name)
		case isParameter:
			placeholders[name] = Placeholder{Role: RoleInput, IsFile: parameter.IsFile, FileType: parameter.FileType}
		case isOutput:
			placeholders[name] = Placeholder{Role: RoleOutput, IsFile: output.IsFile, FileType: output.FileType}
		default:
			missing = append(missing, name)
		}
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing=%v", ErrInvalidCommand, missing)
	}

	return placeholders, nil
}

// ValidateParameters checks values against the compiled parameters
// validator, returning a ValidationError on any mismatch.
func (t *Task) ValidateParameters(values map[string]any) error {
	violations := []Violation{}

	for name, compiled := range t.ParametersValidator {
		value, present := values[name]
		if !present {
			if compiled.required {
				violations = append(violations, Violation{Loc: name, Msg: "field is required", Type: "missing"})
			}

			continue
		}

		compiled.validator.Check(name, value, &violations)
	}

	if len(violations) > 0 {
		return &ValidationError{Details: violations}
	}

	return nil
}
