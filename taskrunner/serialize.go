package taskrunner

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/jtarchie/discovery/ids"
	"github.com/jtarchie/discovery/schema"
	"github.com/jtarchie/discovery/volume"
)

// WriteFile serializes value according to fileType (see the schema
// package's FileType constants) and writes it to a fresh file under vol,
// returning the file's path relative to the volume root.
//
// Every branch builds its content as a string before calling vol.Write, so
// there is no code path that hands a non-string buffer to the writer.
func WriteFile(vol *volume.Volume, fileType schema.FileType, value any) (string, error) {
	content, err := serialize(fileType, value)
	if err != nil {
		return "", err
	}

	path := ids.NewOutputFilename(string(fileType))

	if err := vol.Write(path, content); err != nil {
		return "", err
	}

	return path, nil
}

func serialize(fileType schema.FileType, value any) (string, error) {
	switch fileType {
	case schema.FileTypeTXT:
		return serializeTXT(value)
	case schema.FileTypeJSON:
		return serializeJSON(value)
	case schema.FileTypeJSONL:
		return serializeJSONL(value)
	case schema.FileTypeCSV:
		return serializeCSV(value)
	default:
		return "", fmt.Errorf("%w: %q", schema.ErrUnsupportedFileType, fileType)
	}
}

func serializeTXT(value any) (string, error) {
	switch typed := value.(type) {
	case string:
		return typed, nil
	case []string:
		return strings.Join(typed, "\n"), nil
	case []any:
		lines := make([]string, 0, len(typed))

		for _, item := range typed {
			line, ok := item.(string)
			if !ok {
				return "", fmt.Errorf("%w: txt list entries must be strings, got %T", schema.ErrUnsupportedFileType, item)
			}

			lines = append(lines, line)
		}

		return strings.Join(lines, "\n"), nil
	default:
		return "", fmt.Errorf("%w: unsupported value type %T for txt file", schema.ErrUnsupportedFileType, value)
	}
}

func serializeJSON(value any) (string, error) {
	object, ok := value.(map[string]any)
	if !ok {
		return "", fmt.Errorf("%w: unsupported value type %T for json file", schema.ErrUnsupportedFileType, value)
	}

	contents, err := json.Marshal(object)
	if err != nil {
		return "", fmt.Errorf("could not marshal json file: %w", err)
	}

	return string(contents), nil
}

func serializeJSONL(value any) (string, error) {
	rows, ok := value.([]any)
	if !ok {
		return "", fmt.Errorf("%w: unsupported value type %T for jsonl file", schema.ErrUnsupportedFileType, value)
	}

	var builder strings.Builder

	for _, row := range rows {
		object, ok := row.(map[string]any)
		if !ok {
			return "", fmt.Errorf("%w: jsonl entries must be objects, got %T", schema.ErrUnsupportedFileType, row)
		}

		contents, err := json.Marshal(object)
		if err != nil {
			return "", fmt.Errorf("could not marshal jsonl row: %w", err)
		}

		builder.Write(contents)
		builder.WriteByte('\n')
	}

	return builder.String(), nil
}

func serializeCSV(value any) (string, error) {
	var rows []map[string]any

	switch typed := value.(type) {
	case map[string]any:
		rows = []map[string]any{typed}
	case []any:
		for _, row := range typed {
			object, ok := row.(map[string]any)
			if !ok {
				return "", fmt.Errorf("%w: csv list entries must be objects, got %T", schema.ErrUnsupportedFileType, row)
			}

			rows = append(rows, object)
		}
	default:
		return "", fmt.Errorf("%w: unsupported value type %T for csv file", schema.ErrUnsupportedFileType, value)
	}

	if len(rows) == 0 {
		return "", fmt.Errorf("%w: csv list must have at least one row", schema.ErrUnsupportedFileType)
	}

	fieldnames := make([]string, 0, len(rows[0]))
	for key := range rows[0] {
		fieldnames = append(fieldnames, key)
	}

	sort.Strings(fieldnames)

	var buffer bytes.Buffer

	writer := csv.NewWriter(&buffer)

	if err := writer.Write(fieldnames); err != nil {
		return "", fmt.Errorf("could not write csv header: %w", err)
	}

	for _, row := range rows {
		record := make([]string, len(fieldnames))

		for i, field := range fieldnames {
			if value, ok := row[field]; ok {
				record[i] = fmt.Sprintf("%v", value)
			}
		}

		if err := writer.Write(record); err != nil {
			return "", fmt.Errorf("could not write csv row: %w", err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return "", fmt.Errorf("could not flush csv writer: %w", err)
	}

	return buffer.String(), nil
}

// ReadFile reads path from vol and decodes it according to fileType.
func ReadFile(vol *volume.Volume, path string, fileType schema.FileType) (any, error) {
	contents, err := vol.Read(path)
	if err != nil {
		return nil, err
	}

	switch fileType {
	case schema.FileTypeTXT:
		return splitLines(contents), nil
	case schema.FileTypeJSON:
		var object map[string]any
		if err := json.Unmarshal([]byte(contents), &object); err != nil {
			return nil, fmt.Errorf("could not parse json file %q: %w", path, err)
		}

		return object, nil
	case schema.FileTypeJSONL:
		return parseJSONL(path, contents)
	case schema.FileTypeCSV:
		return parseCSV(path, contents)
	default:
		return nil, fmt.Errorf("%w: %q", schema.ErrUnsupportedFileType, fileType)
	}
}

func splitLines(contents string) []string {
	if contents == "" {
		return []string{}
	}

	return strings.Split(contents, "\n")
}

func parseJSONL(path, contents string) ([]map[string]any, error) {
	rows := []map[string]any{}

	for _, line := range strings.Split(contents, "\n") {
		if line == "" {
			continue
		}

		var object map[string]any
		if err := json.Unmarshal([]byte(line), &object); err != nil {
			return nil, fmt.Errorf("could not parse jsonl line in %q: %w", path, err)
		}

		rows = append(rows, object)
	}

	return rows, nil
}

func parseCSV(path, contents string) ([]map[string]any, error) {
	reader := csv.NewReader(strings.NewReader(contents))

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("could not parse csv file %q: %w", path, err)
	}

	if len(records) == 0 {
		return []map[string]any{}, nil
	}

	header := records[0]
	rows := make([]map[string]any, 0, len(records)-1)

	for _, record := range records[1:] {
		row := make(map[string]any, len(header))

		for i, field := range header {
			if i < len(record) {
				row[field] = record[i]
			}
		}

		rows = append(rows, row)
	}

	return rows, nil
}
