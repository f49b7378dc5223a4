package paths

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// Conventional buckets under a site root.
const (
	BucketMain    = "main"
	BucketFixture = "fixture"
	BucketMatch   = "match"
)

// Marker file names.
const (
	MarkerYAML = "_context.yaml"
	MarkerYML  = "_context.yml"
)

// Layout holds the naming conventions used by discovery and inheritance.
type Layout struct {
	// MarkerNames are the file names that carry directory defaults.
	MarkerNames []string
	// Patterns are doublestar patterns a configuration file must match.
	// Patterns without a slash are matched against the base name.
	Patterns []string
	// Extensions are the allowed file extensions, with the leading dot.
	Extensions []string
}

// DefaultLayout returns the standard layout.
func DefaultLayout() Layout {
	return Layout{
		MarkerNames: []string{MarkerYAML, MarkerYML},
		Patterns:    []string{"*.yaml", "*.yml"},
		Extensions:  []string{".yaml", ".yml"},
	}
}

// Buckets returns the conventional bucket names.
func Buckets() []string {
	return []string{BucketMain, BucketFixture, BucketMatch}
}

// IsMarker reports whether path names a directory marker file.
func (l Layout) IsMarker(path string) bool {
	return slices.Contains(l.MarkerNames, filepath.Base(path))
}

// AllowedExtension reports whether path carries an allowed extension.
func (l Layout) AllowedExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return slices.Contains(l.Extensions, ext)
}

// Match reports whether path, lying below root, is a configuration file
// under this layout.
func (l Layout) Match(root, path string) bool {
	if !l.AllowedExtension(path) || !Within(root, path) {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range l.Patterns {
		if !strings.Contains(pattern, "/") {
			pattern = "**/" + pattern
		}
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
	}
	return false
}

// BucketOf returns the conventional bucket path lives in under root, or ""
// when path sits outside the buckets.
func BucketOf(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	first := strings.SplitN(filepath.ToSlash(rel), "/", 2)[0]
	if slices.Contains(Buckets(), first) {
		return first
	}
	return ""
}

// Within reports whether path is root itself or lies below it.
func Within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

// RootOf returns the deepest root containing path.
func RootOf(roots []string, path string) (string, bool) {
	best := ""
	for _, root := range roots {
		if Within(root, path) && len(root) > len(best) {
			best = root
		}
	}
	return best, best != ""
}

// Normalize returns an absolute, cleaned path.
func Normalize(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	return filepath.Clean(abs), nil
}

// ResolveRelative resolves ref relative to the directory of from. Absolute
// refs are returned cleaned.
func ResolveRelative(from, ref string) string {
	if filepath.IsAbs(ref) {
		return filepath.Clean(ref)
	}
	return filepath.Clean(filepath.Join(filepath.Dir(from), ref))
}

// LayoutFor returns the default layout restricted to extensions. An empty
// list keeps the defaults.
func LayoutFor(extensions []string) Layout {
	l := DefaultLayout()
	if len(extensions) == 0 {
		return l
	}
	l.Extensions = make([]string, 0, len(extensions))
	l.Patterns = make([]string, 0, len(extensions))
	for _, ext := range extensions {
		ext = strings.ToLower(ext)
		l.Extensions = append(l.Extensions, ext)
		l.Patterns = append(l.Patterns, "*"+ext)
	}
	return l
}
