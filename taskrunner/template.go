package taskrunner

import "regexp"

// placeholderPattern matches both $NAME and ${NAME} forms, mirroring the
// pattern the schema package uses to resolve command placeholders at
// compile time.
var placeholderPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// safeSubstitute replaces every $NAME/${NAME} identifier in command that
// has an entry in values, leaving any other occurrence verbatim. It mirrors
// Python's string.Template.safe_substitute rather than text/template,
// which would error on an identifier with no matching field.
func safeSubstitute(command string, values map[string]string) string {
	matches := placeholderPattern.FindAllStringSubmatchIndex(command, -1)
	if len(matches) == 0 {
		return command
	}

	var result []byte

	last := 0

	for _, match := range matches {
		start, end := match[0], match[1]

		var name string
		if match[2] >= 0 {
			name = command[match[2]:match[3]]
		} else {
			name = command[match[4]:match[5]]
		}

		result = append(result, command[last:start]...)

		if value, ok := values[name]; ok {
			result = append(result, value...)
		} else {
			result = append(result, command[start:end]...)
		}

		last = end
	}

	result = append(result, command[last:]...)

	return string(result)
}
