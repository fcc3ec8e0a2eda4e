// Package idgen generates identifiers: short nanoid-based dependency ids and
// time-ordered UUIDv7 request ids.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
	nanoid "github.com/matoous/go-nanoid/v2"
)

// DependencyPrefix is prepended to every dependency id.
const DependencyPrefix = "dep-"

// Alphabet is the character set used for the random portion of an id.
const Alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// DefaultLength is the number of random characters after the prefix.
const DefaultLength = 10

// Generator produces prefixed random ids.
type Generator struct {
	Prefix string
	Length int
}

// New returns a Generator for the given prefix and the default length.
func New(prefix string) *Generator {
	return &Generator{Prefix: prefix, Length: DefaultLength}
}

// Generate returns a new id.
func (g *Generator) Generate() (string, error) {
	n := g.Length
	if n <= 0 {
		n = DefaultLength
	}
	id, err := nanoid.Generate(Alphabet, n)
	if err != nil {
		return "", fmt.Errorf("idgen: %w", err)
	}
	return g.Prefix + id, nil
}

// Dependency returns a new dependency id such as "dep-V1StGXR8Z5".
func Dependency() (string, error) {
	return New(DependencyPrefix).Generate()
}

// RequestID returns a UUIDv7, falling back to a random v4 if the clock
// source fails.
func RequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
