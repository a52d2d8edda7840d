// Package uuid provides ID generation helpers.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator creates UUID v7 strings, optionally prefixed (e.g. "biz_").
type Generator struct {
	prefix string
}

// New creates a Generator without a prefix.
func New() *Generator {
	return &Generator{}
}

// NewPrefixed creates a Generator whose IDs start with prefix.
func NewPrefixed(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID returns a prefixed UUID7 string.
func (g Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return g.prefix + id.String(), nil
}

// NewShortID returns the prefix plus the first n hex characters of a random
// UUID. It is used for human-facing fallback ids such as "task-1a2b3c".
func (g Generator) NewShortID(n int) string {
	raw := uuid.NewString()
	hex := make([]byte, 0, len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '-' {
			hex = append(hex, raw[i])
		}
	}
	if n <= 0 || n > len(hex) {
		n = len(hex)
	}
	return g.prefix + string(hex[:n])
}
