package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasher(t *testing.T) {
	b3 := DefaultHasher()
	sha := NewHasher(SHA256)

	assert.Equal(t, BLAKE3, b3.Algorithm())
	assert.Len(t, b3.HashString("abc"), 64)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sha.HashString("abc"))
	assert.NotEqual(t, b3.HashString("abc"), sha.HashString("abc"))
	assert.Equal(t, b3.HashString("abc"), b3.Hash([]byte("abc")))
}

func TestHashJSONIgnoresKeyOrder(t *testing.T) {
	h := DefaultHasher()
	a, err := h.HashJSON(map[string]int{"a": 1, "b": 2})
	require.NoError(t, err)
	b, err := h.HashJSON(map[string]int{"b": 2, "a": 1})
	require.NoError(t, err)
	assert.Equal(t, a, b)

	_, err = h.HashJSON(make(chan int))
	assert.Error(t, err)
}

func TestHashFieldsIgnoresOrder(t *testing.T) {
	h := DefaultHasher()
	assert.Equal(t, h.HashFields("x", "y"), h.HashFields("y", "x"))
	assert.NotEqual(t, h.HashFields("x", "y"), h.HashFields("x", "z"))
}

func TestShort(t *testing.T) {
	assert.Equal(t, "abc", Short("abc"))
	assert.Equal(t, "0123456789ab", Short("0123456789abcdef"))
}

func TestValidateSelectorName(t *testing.T) {
	tests := []struct {
		name    string
		wantErr bool
	}{
		{"login_button", false},
		{"q2", false},
		{"", true},
		{"LoginButton", true},
		{"login__button", true},
		{"_login", true},
		{strings.Repeat("a", MaxNameLength+1), true},
	}
	for _, tt := range tests {
		err := ValidateSelectorName(tt.name)
		if tt.wantErr {
			assert.Error(t, err, tt.name)
		} else {
			assert.NoError(t, err, tt.name)
		}
	}
}

func TestValidateContextPath(t *testing.T) {
	assert.NoError(t, ValidateContextPath("search.results"))
	assert.NoError(t, ValidateContextPath("auth"))
	assert.Error(t, ValidateContextPath(""))
	assert.Error(t, ValidateContextPath("search..results"))
	assert.Error(t, ValidateContextPath("Search"))
	assert.Error(t, ValidateContextPath("a.b.c.d.e.f.g.h.i"))
}

func TestValidateString(t *testing.T) {
	assert.NoError(t, ValidateString("", "description", 1, 10, false))
	assert.Error(t, ValidateString("  ", "description", 1, 10, true))
	assert.Error(t, ValidateString("bad\x00", "description", 1, 10, true))
	assert.Error(t, ValidateString("far too long", "description", 1, 5, true))
}

func TestContextAncestry(t *testing.T) {
	assert.Equal(t, []string{"a.b.c", "a.b", "a"}, ContextAncestry("a.b.c"))
	assert.Equal(t, []string{"a"}, ContextAncestry("a"))
	assert.Nil(t, ContextAncestry(""))
}

func TestSemverPattern(t *testing.T) {
	assert.True(t, SemverPattern.MatchString("1.0.0"))
	assert.True(t, SemverPattern.MatchString("v2.1.3-rc.1+build.5"))
	assert.False(t, SemverPattern.MatchString("1.0"))
}
