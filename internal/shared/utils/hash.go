package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/zeebo/blake3"
)

// HashAlgorithm represents the hashing algorithm to use
type HashAlgorithm string

const (
	BLAKE3 HashAlgorithm = "blake3"
	SHA256 HashAlgorithm = "sha256"
)

// Hasher computes content fingerprints for configuration files and chains.
type Hasher struct {
	algorithm HashAlgorithm
}

// NewHasher creates a new hasher with the specified algorithm
func NewHasher(algorithm HashAlgorithm) *Hasher {
	return &Hasher{
		algorithm: algorithm,
	}
}

// DefaultHasher returns a hasher with the default algorithm
func DefaultHasher() *Hasher {
	return NewHasher(BLAKE3)
}

// Algorithm returns the configured algorithm.
func (h *Hasher) Algorithm() HashAlgorithm {
	return h.algorithm
}

// Hash computes a hash of the input data
func (h *Hasher) Hash(data []byte) string {
	switch h.algorithm {
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:])
	default:
		sum := sha256.Sum256(data)
		return hex.EncodeToString(sum[:])
	}
}

// HashString computes a hash of a string
func (h *Hasher) HashString(s string) string {
	return h.Hash([]byte(s))
}

// HashJSON computes a hash of a JSON-serializable value.
// Map keys are sorted, so equal values always hash equal.
func (h *Hasher) HashJSON(v any) (string, error) {
	data, err := sonic.ConfigStd.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return h.Hash(data), nil
}

// HashFields computes a hash from multiple fields, independent of their order.
func (h *Hasher) HashFields(fields ...string) string {
	sorted := make([]string, len(fields))
	copy(sorted, fields)
	sort.Strings(sorted)

	return h.HashString(strings.Join(sorted, "|"))
}

// Short returns the first 12 characters of a hash for log output.
func Short(hash string) string {
	if len(hash) < 12 {
		return hash
	}
	return hash[:12]
}
