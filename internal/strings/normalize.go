package strings

import "strings"

// DigitPlaceholder replaces digit runs in CollapseDigits.
const DigitPlaceholder = "N"

// NormalizeWhitespace collapses runs of whitespace into single spaces.
func NormalizeWhitespace(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, " ")
}

// NormalizeLower returns the input lowercased.
func NormalizeLower(value string) string {
	return strings.ToLower(value)
}

// NormalizeLowerTrimSpace trims surrounding whitespace and lowercases the input.
func NormalizeLowerTrimSpace(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

// CollapseDigits replaces every maximal run of ASCII digits with DigitPlaceholder.
func CollapseDigits(value string) string {
	var builder strings.Builder
	builder.Grow(len(value))
	inDigits := false
	for _, char := range value {
		if char >= '0' && char <= '9' {
			if !inDigits {
				builder.WriteString(DigitPlaceholder)
				inDigits = true
			}
			continue
		}
		inDigits = false
		builder.WriteRune(char)
	}
	return builder.String()
}

// NormalizeNewlines replaces CRLF and CR with LF.
func NormalizeNewlines(value string) string {
	if value == "" {
		return value
	}
	value = strings.ReplaceAll(value, "\r\n", "\n")
	return strings.ReplaceAll(value, "\r", "\n")
}

// TrimTrailingNewlines removes trailing CR/LF characters.
func TrimTrailingNewlines(value string) string {
	return strings.TrimRight(value, "\r\n")
}

// TrimTrailingSlash removes trailing '/' characters.
func TrimTrailingSlash(value string) string {
	return strings.TrimRight(value, "/")
}

// TrimSpace removes surrounding whitespace.
func TrimSpace(value string) string {
	return strings.TrimSpace(value)
}

// IsBlank reports whether value is empty after trimming whitespace.
func IsBlank(value string) bool {
	return strings.TrimSpace(value) == ""
}

// ContainsAnyFold reports whether value contains any of the needles, ignoring case.
func ContainsAnyFold(value string, needles ...string) bool {
	lowered := strings.ToLower(value)
	for _, needle := range needles {
		if needle == "" {
			continue
		}
		if strings.Contains(lowered, strings.ToLower(needle)) {
			return true
		}
	}
	return false
}
