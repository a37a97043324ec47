// Package uuid provides job id generation.
package uuid

import (
	"fmt"

	"github.com/google/uuid"
)

// DefaultPrefix marks ids issued for scan jobs.
const DefaultPrefix = "scan_"

// Generator creates prefixed UUIDv7 strings. UUIDv7 sorts by creation time,
// so job ids list in the order they were created.
type Generator struct {
	prefix string
}

// New creates a Generator using DefaultPrefix.
func New() *Generator {
	return &Generator{prefix: DefaultPrefix}
}

// NewWithPrefix creates a Generator with a custom prefix. An empty prefix
// yields bare UUIDs.
func NewWithPrefix(prefix string) *Generator {
	return &Generator{prefix: prefix}
}

// NewID returns a fresh id.
func (g *Generator) NewID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generate uuid7: %w", err)
	}
	return g.prefix + id.String(), nil
}
