package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/GriffinCanCode/selectorkit/internal/domain/selector"
)

const loginYAML = `
metadata:
  version: "1.0.0"
  last_updated: "2024-05-01T10:00:00Z"
  description: Login page
context_defaults:
  page_type: auth
  wait_strategy: network_idle
  timeout: 5000
strategy_templates:
  by_text:
    type: text_anchor
    parameters:
      text: Submit
selectors:
  login_button:
    description: Primary login button
    context: auth.login
    strategies:
      - type: css_selector
        parameters:
          selector: "button#login"
        priority: 1
      - template: by_text
        parameters:
          text: Log in
        priority: 2
    confidence:
      threshold: 0.6
`

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestLoader(t *testing.T) *FileLoader {
	return New(Options{Logger: zaptest.NewLogger(t)})
}

func TestLoadValidFile(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "main", "login.yaml"), loginYAML)

	cfg, err := newTestLoader(t).Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path)
	assert.Equal(t, "1.0.0", cfg.Metadata.Version)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), cfg.Metadata.LastUpdated.UTC())
	assert.Equal(t, 5000, *cfg.ContextDefaults.Timeout)
	assert.Equal(t, selector.WaitNetworkIdle, *cfg.ContextDefaults.WaitStrategy)
	assert.NotEmpty(t, cfg.Hash)
	assert.False(t, cfg.ModTime.IsZero())
	assert.False(t, cfg.IsMarker)

	sel := cfg.Selectors["login_button"]
	require.NotNil(t, sel)
	assert.Equal(t, "login_button", sel.Name)
	assert.Equal(t, "auth.login", sel.Context)
	require.Len(t, sel.Strategies, 2)

	assert.Equal(t, selector.KindInline, sel.Strategies[0].Kind)
	assert.Equal(t, selector.CSSSelector, sel.Strategies[0].Type)
	assert.Equal(t, "button#login", sel.Strategies[0].Parameters["selector"])

	assert.True(t, sel.Strategies[1].IsTemplateRef())
	assert.Equal(t, "by_text", sel.Strategies[1].Template)
	assert.Equal(t, "Log in", sel.Strategies[1].Parameters["text"])

	threshold, ok := sel.Threshold()
	assert.True(t, ok)
	assert.InDelta(t, 0.6, threshold, 1e-9)

	assert.Equal(t, selector.TextAnchor, cfg.Templates["by_text"].Type)
}

func TestLoadUnchangedFileIsIdentical(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "login.yaml"), loginYAML)
	l := newTestLoader(t)

	first, err := l.Load(path)
	require.NoError(t, err)
	second, err := l.Load(path)
	require.NoError(t, err)

	assert.Equal(t, first.Hash, second.Hash)
	assert.Equal(t, first, second)
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
		check   func(t *testing.T, err error)
	}{
		{
			name:    "empty",
			file:    "empty.yaml",
			content: "   \n",
			check:   requireLoadingError,
		},
		{
			name:    "only comments",
			file:    "comments.yaml",
			content: "# nothing here\n",
			check:   requireLoadingError,
		},
		{
			name:    "malformed",
			file:    "broken.yaml",
			content: "selectors: [unclosed\n",
			check:   requireLoadingError,
		},
		{
			name:    "duplicate keys",
			file:    "dupe.yaml",
			content: "metadata:\n  version: 1.0.0\nmetadata:\n  version: 2.0.0\n",
			check:   requireLoadingError,
		},
		{
			name:    "binary",
			file:    "image.yaml",
			content: "\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00",
			check:   requireLoadingError,
		},
		{
			name:    "not utf-8",
			file:    "latin1.yaml",
			content: "metadata:\n  description: caf\xe9 cr\xe8me br\xfbl\xe9e\n",
			check:   requireLoadingError,
		},
		{
			name:    "shape mismatch",
			file:    "shape.yaml",
			content: "selectors:\n  a:\n    strategies: not-a-list\n",
			check:   requireSchemaError,
		},
		{
			name:    "schema violations",
			file:    "schema.yaml",
			content: "metadata:\n  version: nope\n  description: x\nselectors:\n  a:\n    description: d\n    context: c\n",
			check: func(t *testing.T, err error) {
				var se *selector.SchemaValidationError
				require.True(t, errors.As(err, &se), "%v", err)
				assert.GreaterOrEqual(t, len(se.Issues), 2)
			},
		},
		{
			name:    "bad extension",
			file:    "selectors.json",
			content: "{}",
			check:   requireAccessError,
		},
	}

	l := newTestLoader(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, filepath.Join(dir, tt.file), tt.content)
			cfg, err := l.Load(path)
			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.True(t, errors.Is(err, selector.ErrConfiguration))
			tt.check(t, err)
		})
	}
}

func requireLoadingError(t *testing.T, err error) {
	var le *selector.LoadingError
	require.True(t, errors.As(err, &le), "want LoadingError, got %T: %v", err, err)
}

func requireSchemaError(t *testing.T, err error) {
	var se *selector.SchemaValidationError
	require.True(t, errors.As(err, &se), "want SchemaValidationError, got %T: %v", err, err)
}

func requireAccessError(t *testing.T, err error) {
	var fe *selector.FileAccessError
	require.True(t, errors.As(err, &fe), "want FileAccessError, got %T: %v", err, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := newTestLoader(t).Load(filepath.Join(t.TempDir(), "nope.yaml"))

	requireLoadingError(t, err)
}

func TestLoadSizeLimit(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "big.yaml"), loginYAML)

	_, err := New(Options{MaxFileSize: 16}).Load(path)

	requireAccessError(t, err)
}

func TestLoadStrictRejectsUnknownKeys(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "extra.yaml"), loginYAML+"unexpected_key: true\n")

	_, err := New(Options{}).Load(path)
	require.NoError(t, err)

	_, err = New(Options{Strict: true}).Load(path)
	requireSchemaError(t, err)
}

func TestLoadMarkerWithoutMetadata(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, filepath.Join(dir, "_context.yaml"), "context_defaults:\n  timeout: 10000\n")

	cfg, err := newTestLoader(t).Load(path)
	require.NoError(t, err)

	assert.True(t, cfg.IsMarker)
	assert.Equal(t, 10000, *cfg.ContextDefaults.Timeout)
}

func TestLoadCarriesWarnings(t *testing.T) {
	dir := t.TempDir()
	content := strings.Replace(loginYAML, `selector: "button#login"`, `selector: "div[[["`, 1)
	path := writeFile(t, filepath.Join(dir, "warn.yaml"), content)

	cfg, err := newTestLoader(t).Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Warnings, 1)
	assert.Equal(t, "compile", cfg.Warnings[0].Code)
}

func TestParentRef(t *testing.T) {
	dir := t.TempDir()
	child := writeFile(t, filepath.Join(dir, "main", "child.yaml"), "inherits: ../base/parent.yaml\n"+loginYAML)
	plain := writeFile(t, filepath.Join(dir, "main", "plain.yaml"), loginYAML)
	l := newTestLoader(t)

	parent, err := l.ParentRef(child)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "base", "parent.yaml"), parent)

	parent, err = l.ParentRef(plain)
	require.NoError(t, err)
	assert.Empty(t, parent)

	cfg, err := l.Load(child)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "base", "parent.yaml"), cfg.Parent)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main", "a.yaml"), loginYAML)
	writeFile(t, filepath.Join(dir, "main", "deep", "b.yml"), loginYAML)
	writeFile(t, filepath.Join(dir, "fixture", "_context.yaml"), "context_defaults:\n  timeout: 1\n")
	writeFile(t, filepath.Join(dir, "match", "notes.txt"), "ignored")
	writeFile(t, filepath.Join(dir, ".git", "c.yaml"), loginYAML)

	files, err := newTestLoader(t).Discover(context.Background(), []string{dir, filepath.Join(dir, "main")})
	require.NoError(t, err)

	var got []string
	for _, f := range files {
		rel, _ := filepath.Rel(dir, f.Path)
		got = append(got, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"fixture/_context.yaml", "main/a.yaml", "main/deep/b.yml"}, got)
	assert.Equal(t, filepath.Join(dir, "main"), files[1].Root)
}

func TestDiscoverMissingRoot(t *testing.T) {
	_, err := newTestLoader(t).Discover(context.Background(), []string{filepath.Join(t.TempDir(), "missing")})

	requireLoadingError(t, err)
}

func TestLoadTreeIsolatesFailures(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a", "b", "c", "d"} {
		writeFile(t, filepath.Join(dir, "main", name+".yaml"), loginYAML)
	}
	writeFile(t, filepath.Join(dir, "main", "bad.yaml"), "selectors: [")

	batch, err := New(Options{Concurrency: 2, Logger: zaptest.NewLogger(t)}).LoadTree(context.Background(), []string{dir})
	require.NoError(t, err)

	assert.Equal(t, 5, batch.Files)
	assert.Len(t, batch.Configs, 4)
	require.Len(t, batch.Failures, 1)
	assert.Equal(t, filepath.Join(dir, "main", "bad.yaml"), batch.Failures[0].Path)
	assert.Len(t, batch.Paths(), 4)
}

func TestLoadTreeCancelled(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.yaml"), loginYAML)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestLoader(t).LoadTree(ctx, []string{dir})
	assert.ErrorIs(t, err, context.Canceled)
}
