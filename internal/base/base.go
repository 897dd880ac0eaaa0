// internal/base/base.go
//
// Package base holds the primitives shared by every store: the service error
// taxonomy, display-name normalization, and opaque ID generation.
package base

import (
	"encoding/hex"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// NormalizeName collapses runs of whitespace to single spaces, trims the
// result, and requires 1-64 characters. field names the input in the error
// message ("host_name", "player_name", ...).
func NormalizeName(value, field string) (string, error) {
	cleaned := strings.Join(strings.Fields(value), " ")
	if n := utf8.RuneCountInString(cleaned); n < 1 || n > 64 {
		return "", Validationf("%s must be 1-64 characters", field)
	}
	return cleaned, nil
}

// NewID returns a short opaque identifier like "game_3fa85f64". IDs are
// immutable once assigned and carry no meaning beyond uniqueness.
func NewID(prefix string) string {
	u := uuid.New()
	return prefix + "_" + hex.EncodeToString(u[:4])
}
