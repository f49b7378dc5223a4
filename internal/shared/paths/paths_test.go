package paths

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLayoutMatch(t *testing.T) {
	layout := DefaultLayout()
	root := filepath.FromSlash("/sites/shop")

	tests := []struct {
		path string
		want bool
	}{
		{"/sites/shop/main/login.yaml", true},
		{"/sites/shop/fixture/deep/nested/cart.yml", true},
		{"/sites/shop/top.yaml", true},
		{"/sites/shop/main/_context.yaml", true},
		{"/sites/shop/main/readme.md", false},
		{"/sites/shop/main/login.yaml.bak", false},
		{"/sites/other/main/login.yaml", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, layout.Match(root, filepath.FromSlash(tt.path)), tt.path)
	}
}

func TestLayoutMatchCustomPattern(t *testing.T) {
	layout := DefaultLayout()
	layout.Patterns = []string{"main/**/*.yaml"}
	root := filepath.FromSlash("/sites/shop")

	assert.True(t, layout.Match(root, filepath.FromSlash("/sites/shop/main/a/b.yaml")))
	assert.False(t, layout.Match(root, filepath.FromSlash("/sites/shop/match/b.yaml")))
}

func TestIsMarker(t *testing.T) {
	layout := DefaultLayout()

	assert.True(t, layout.IsMarker("/a/b/_context.yaml"))
	assert.True(t, layout.IsMarker("/a/b/_context.yml"))
	assert.False(t, layout.IsMarker("/a/b/context.yaml"))
}

func TestBucketOf(t *testing.T) {
	root := filepath.FromSlash("/sites/shop")

	assert.Equal(t, BucketMain, BucketOf(root, filepath.FromSlash("/sites/shop/main/x.yaml")))
	assert.Equal(t, BucketMatch, BucketOf(root, filepath.FromSlash("/sites/shop/match/a/x.yaml")))
	assert.Equal(t, "", BucketOf(root, filepath.FromSlash("/sites/shop/x.yaml")))
	assert.Equal(t, "", BucketOf(root, filepath.FromSlash("/elsewhere/main/x.yaml")))
}

func TestWithinAndRootOf(t *testing.T) {
	roots := []string{filepath.FromSlash("/sites"), filepath.FromSlash("/sites/shop")}

	assert.True(t, Within(roots[0], filepath.FromSlash("/sites/shop/main")))
	assert.False(t, Within(roots[1], filepath.FromSlash("/sites/shopping/main")))
	assert.False(t, Within(roots[1], filepath.FromSlash("/sites")))

	root, ok := RootOf(roots, filepath.FromSlash("/sites/shop/main/a.yaml"))
	assert.True(t, ok)
	assert.Equal(t, roots[1], root)

	_, ok = RootOf(roots, filepath.FromSlash("/tmp/a.yaml"))
	assert.False(t, ok)
}

func TestResolveRelative(t *testing.T) {
	from := filepath.FromSlash("/sites/shop/main/login.yaml")

	assert.Equal(t, filepath.FromSlash("/sites/shop/_context.yaml"), ResolveRelative(from, "../_context.yaml"))
	assert.Equal(t, filepath.FromSlash("/abs/base.yaml"), ResolveRelative(from, filepath.FromSlash("/abs/base.yaml")))
}

func TestLayoutFor(t *testing.T) {
	assert.Equal(t, DefaultLayout(), LayoutFor(nil))

	l := LayoutFor([]string{".YAML"})
	assert.Equal(t, []string{".yaml"}, l.Extensions)
	assert.Equal(t, []string{"*.yaml"}, l.Patterns)
	assert.Equal(t, DefaultLayout().MarkerNames, l.MarkerNames)
	assert.False(t, l.AllowedExtension("x.yml"))
}
