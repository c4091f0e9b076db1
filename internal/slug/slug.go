// Package slug mints and validates job identifiers. A slug names the storage
// namespace of exactly one job and never changes once the job exists.
package slug

import (
	"regexp"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"inmoveo/internal/pkg/errors"
)

const (
	MinLen = 3
	MaxLen = 64

	suffixAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	suffixLen      = 4
	timeLayout     = "20060102-150405"
)

var pattern = regexp.MustCompile(`^[a-z0-9-]{3,64}$`)

// Validate returns raw unchanged when it matches ^[a-z0-9-]{3,64}$.
func Validate(raw string) (string, error) {
	if !pattern.MatchString(raw) {
		return "", errors.InvalidSlug(raw, MinLen, MaxLen)
	}
	return raw, nil
}

// Generator mints slugs of the form YYYYMMDD-HHMMSS-xxxx (UTC).
type Generator struct {
	Now func() time.Time
}

// Generate mints a slug. Uniqueness is probabilistic: second resolution plus
// 36^4 random suffixes.
func (g Generator) Generate() string {
	now := time.Now
	if g.Now != nil {
		now = g.Now
	}
	return now().UTC().Format(timeLayout) + "-" + gonanoid.MustGenerate(suffixAlphabet, suffixLen)
}

// Generate mints a slug using the wall clock.
func Generate() string {
	return Generator{}.Generate()
}
