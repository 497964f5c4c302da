// Package util parses the line-oriented command format read by the CLI.
package util

import "strings"

// ArgSeparator splits the arguments of a command line.
const ArgSeparator = "|"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// CleanArg trims whitespace and surrounding quotes and unescapes doubled
// quotes, so `"{""tag"":""wght""}"` becomes `{"tag":"wght"}`.
func CleanArg(s string) string {
	return FixEscapeQuotes(TrimQuotes(strings.TrimSpace(s)))
}

// ParseCommandLine splits `:JUMP: 4` or `:FONT: Name|[...]` into the command
// and its cleaned arguments. Blank lines and lines starting with # return an
// empty command.
func ParseCommandLine(line string) (command string, args []string) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return "", nil
	}

	command, rest, found := strings.Cut(line, " ")
	command = strings.ToUpper(command)
	if !found {
		return command, nil
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return command, nil
	}
	for _, a := range strings.Split(rest, ArgSeparator) {
		args = append(args, CleanArg(a))
	}
	return command, args
}

// Arg returns args[i], or "" when there are fewer arguments.
func Arg(args []string, i int) string {
	if i < 0 || i >= len(args) {
		return ""
	}
	return args[i]
}
