package utils

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Length limits for configuration strings.
const (
	MaxNameLength        = 128
	MaxContextLength     = 256
	MaxContextDepth      = 8
	MaxDescriptionLength = 2048
)

var (
	// SnakeCasePattern matches selector and template names.
	SnakeCasePattern = regexp.MustCompile(`^[a-z][a-z0-9]*(_[a-z0-9]+)*$`)
	// IdentifierPattern matches page types and context segments.
	IdentifierPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)
	// SemverPattern matches MAJOR.MINOR.PATCH with optional pre-release and build.
	SemverPattern = regexp.MustCompile(`^v?\d+\.\d+\.\d+(-[0-9A-Za-z.-]+)?(\+[0-9A-Za-z.-]+)?$`)
)

// ValidateString validates a string field with length and content checks
func ValidateString(value, fieldName string, minLen, maxLen int, required bool) error {
	if required && strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s is required", fieldName)
	}

	if value == "" && !required {
		return nil
	}

	length := utf8.RuneCountInString(value)
	if length < minLen {
		return fmt.Errorf("%s must be at least %d characters", fieldName, minLen)
	}
	if length > maxLen {
		return fmt.Errorf("%s must not exceed %d characters", fieldName, maxLen)
	}

	if strings.Contains(value, "\x00") {
		return fmt.Errorf("%s contains invalid characters", fieldName)
	}

	return nil
}

// ValidateSelectorName checks that name is non-empty snake_case.
func ValidateSelectorName(name string) error {
	if err := ValidateString(name, "name", 1, MaxNameLength, true); err != nil {
		return err
	}
	if !SnakeCasePattern.MatchString(name) {
		return fmt.Errorf("name %q must be snake_case", name)
	}
	return nil
}

// ValidateContextPath checks a dot-delimited context such as "search.results".
func ValidateContextPath(context string) error {
	if err := ValidateString(context, "context", 1, MaxContextLength, true); err != nil {
		return err
	}
	segments := strings.Split(context, ".")
	if len(segments) > MaxContextDepth {
		return fmt.Errorf("context %q exceeds maximum depth %d", context, MaxContextDepth)
	}
	for _, seg := range segments {
		if !IdentifierPattern.MatchString(seg) {
			return fmt.Errorf("context %q has invalid segment %q", context, seg)
		}
	}
	return nil
}

// ContextAncestry returns context followed by each of its ancestors,
// most specific first: "a.b.c" -> ["a.b.c", "a.b", "a"].
func ContextAncestry(context string) []string {
	if context == "" {
		return nil
	}
	out := []string{context}
	for {
		i := strings.LastIndexByte(context, '.')
		if i < 0 {
			return out
		}
		context = context[:i]
		out = append(out, context)
	}
}
