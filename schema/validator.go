package schema

import (
	"fmt"
)

// ValidatorKind tags the shape of a compiled JSON-schema fragment.
type ValidatorKind string

const (
	KindString ValidatorKind = "string"
	KindInt    ValidatorKind = "integer"
	KindNumber ValidatorKind = "number"
	KindBool   ValidatorKind = "boolean"
	KindArray  ValidatorKind = "array"
	KindObject ValidatorKind = "object"
	KindNull   ValidatorKind = "null"
)

// Validator is a tagged-variant validator tree compiled from a raw JSON-schema
// fragment. No class generation: the tree is walked directly against an
// incoming value.
type Validator struct {
	Kind     ValidatorKind
	Enum     []string             // populated only for KindString with an "enum"
	Items    *Validator           // populated only for KindArray
	Fields   map[string]Validator // populated only for KindObject with "properties"
	Required map[string]bool      // populated only for KindObject: properties listed in "required"
	FreeForm bool                 // KindObject with no "properties": accept anything
	Pattern  string               // optional regex for KindString
}

// compileFragment walks a raw JSON-schema fragment (as decoded from
// JSON/YAML) and produces a Validator, or InvalidSchema if the type is
// missing or unrecognized.
func compileFragment(raw map[string]any) (Validator, error) {
	rawType, ok := raw["type"]
	if !ok {
		return Validator{}, fmt.Errorf("%w: type not specified in schema", ErrInvalidSchema)
	}

	typeName, ok := rawType.(string)
	if !ok {
		return Validator{}, fmt.Errorf("%w: type must be a string, got %T", ErrInvalidSchema, rawType)
	}

	switch typeName {
	case "string":
		validator := Validator{Kind: KindString}

		if pattern, ok := raw["pattern"].(string); ok {
			validator.Pattern = pattern
		}

		if rawEnum, ok := raw["enum"].([]any); ok {
			for _, value := range rawEnum {
				str, ok := value.(string)
				if !ok {
					return Validator{}, fmt.Errorf("%w: enum values must be strings", ErrInvalidSchema)
				}

				validator.Enum = append(validator.Enum, str)
			}
		}

		return validator, nil
	case "integer":
		return Validator{Kind: KindInt}, nil
	case "number":
		return Validator{Kind: KindNumber}, nil
	case "boolean":
		return Validator{Kind: KindBool}, nil
	case "null":
		return Validator{Kind: KindNull}, nil
	case "array":
		rawItems, ok := raw["items"].(map[string]any)
		if !ok {
			return Validator{}, fmt.Errorf("%w: array type must declare an items schema", ErrInvalidSchema)
		}

		items, err := compileFragment(rawItems)
		if err != nil {
			return Validator{}, err
		}

		return Validator{Kind: KindArray, Items: &items}, nil
	case "object":
		rawProperties, ok := raw["properties"].(map[string]any)
		if !ok {
			return Validator{Kind: KindObject, FreeForm: true}, nil
		}

		fields := make(map[string]Validator, len(rawProperties))

		for name, rawField := range rawProperties {
			fieldSchema, ok := rawField.(map[string]any)
			if !ok {
				return Validator{}, fmt.Errorf("%w: property %q schema must be an object", ErrInvalidSchema, name)
			}

			field, err := compileFragment(fieldSchema)
			if err != nil {
				return Validator{}, err
			}

			fields[name] = field
		}

		required := make(map[string]bool, len(fields))

		if rawRequired, ok := raw["required"].([]any); ok {
			for _, name := range rawRequired {
				str, ok := name.(string)
				if !ok {
					return Validator{}, fmt.Errorf("%w: required entries must be strings", ErrInvalidSchema)
				}

				required[str] = true
			}
		}

		return Validator{Kind: KindObject, Fields: fields, Required: required}, nil
	default:
		return Validator{}, fmt.Errorf("%w: unsupported type %q", ErrInvalidSchema, typeName)
	}
}

// Check validates value against the compiled validator tree, appending any
// mismatch to violations at the given loc.
func (v Validator) Check(loc string, value any, violations *[]Violation) {
	if value == nil {
		if v.Kind == KindNull {
			return
		}

		*violations = append(*violations, Violation{Loc: loc, Msg: "field is required", Type: "missing"})

		return
	}

	switch v.Kind {
	case KindString:
		str, ok := value.(string)
		if !ok {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be a string", Type: "type_error.string"})

			return
		}

		if len(v.Enum) > 0 && !containsString(v.Enum, str) {
			*violations = append(*violations, Violation{
				Loc: loc, Msg: fmt.Sprintf("must be one of %v", v.Enum), Type: "value_error.enum",
			})
		}
	case KindInt:
		if !isInteger(value) {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be an integer", Type: "type_error.integer"})
		}
	case KindNumber:
		if !isNumber(value) {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be a number", Type: "type_error.number"})
		}
	case KindBool:
		if _, ok := value.(bool); !ok {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be a boolean", Type: "type_error.boolean"})
		}
	case KindArray:
		items, ok := value.([]any)
		if !ok {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be an array", Type: "type_error.array"})

			return
		}

		for index, item := range items {
			v.Items.Check(fmt.Sprintf("%s[%d]", loc, index), item, violations)
		}
	case KindObject:
		object, ok := value.(map[string]any)
		if !ok {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be an object", Type: "type_error.object"})

			return
		}

		if v.FreeForm {
			return
		}

		for name, field := range v.Fields {
			fieldValue, present := object[name]
			if !present && !v.Required[name] {
				continue
			}

			field.Check(loc+"."+name, fieldValue, violations)
		}
	case KindNull:
		if value != nil {
			*violations = append(*violations, Violation{Loc: loc, Msg: "must be null", Type: "type_error.null"})
		}
	}
}

func containsString(haystack []string, needle string) bool {
	for _, candidate := range haystack {
		if candidate == needle {
			return true
		}
	}

	return false
}

func isInteger(value any) bool {
	switch typed := value.(type) {
	case int, int32, int64:
		return true
	case float64:
		return typed == float64(int64(typed))
	default:
		return false
	}
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return true
	default:
		return false
	}
}
