package selector

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration is the base of the configuration error taxonomy.
var ErrConfiguration = errors.New("configuration error")

// LoadingError reports a missing, unreadable, empty or malformed file.
type LoadingError struct {
	Path   string
	Reason string
	Err    error
}

func (e *LoadingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Path, e.Reason)
}

func (e *LoadingError) Unwrap() error { return e.Err }

func (e *LoadingError) Is(target error) bool { return target == ErrConfiguration }

// Issue is a single validation finding.
type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (i Issue) String() string {
	if i.Field == "" {
		return i.Message
	}
	return i.Field + ": " + i.Message
}

// SchemaValidationError carries every rule violation found in a file.
type SchemaValidationError struct {
	Path     string
	Issues   []Issue
	Warnings []Issue
}

func (e *SchemaValidationError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "validate %s: %d issue(s)", e.Path, len(e.Issues))
	for _, issue := range e.Issues {
		sb.WriteString("\n  - ")
		sb.WriteString(issue.String())
	}
	return sb.String()
}

func (e *SchemaValidationError) Is(target error) bool { return target == ErrConfiguration }

// InheritanceError reports a circular parent reference. Cycle lists the
// paths in walk order and ends with the path that recurred.
type InheritanceError struct {
	Path  string
	Cycle []string
}

func (e *InheritanceError) Error() string {
	return fmt.Sprintf("inheritance cycle for %s: %s", e.Path, strings.Join(e.Cycle, " -> "))
}

func (e *InheritanceError) Is(target error) bool { return target == ErrConfiguration }

// FileAccessError reports permission problems and size or extension limits.
type FileAccessError struct {
	Path   string
	Reason string
	Err    error
}

func (e *FileAccessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("access %s: %s: %v", e.Path, e.Reason, e.Err)
	}
	return fmt.Sprintf("access %s: %s", e.Path, e.Reason)
}

func (e *FileAccessError) Unwrap() error { return e.Err }

func (e *FileAccessError) Is(target error) bool { return target == ErrConfiguration }

// NotFoundError is returned when a selector name resolves in no context.
type NotFoundError struct {
	Name    string
	Context string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("selector %q not found for context %q", e.Name, e.Context)
}

// DependencyError is returned when a referenced template is absent after
// inheritance resolution, or disagrees with the declared strategy type.
type DependencyError struct {
	Selector   string
	Template   string
	SourceFile string
	Reason     string
}

func (e *DependencyError) Error() string {
	return fmt.Sprintf("selector %q in %s: template %q: %s", e.Selector, e.SourceFile, e.Template, e.Reason)
}
