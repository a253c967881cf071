// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a fresh random identifier for activity records.
func NewID() string {
	return uuid.New().String()
}

// NormalizeID trims and lower-cases an identifier and checks it parses as a UUID.
func NormalizeID(id string) (string, error) {
	id = strings.ToLower(strings.TrimSpace(id))
	if id == "" {
		return "", NewDomainError("shared", "NormalizeID", ErrInvalidID, "identifier is required")
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", WrapError("shared", "NormalizeID", ErrInvalidID, "identifier is not a valid UUID", err)
	}
	return id, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Rating Value Object (feedback)
// ═══════════════════════════════════════════════════════════════════════════

// Rating represents a feedback rating value (1-5 stars).
type Rating int

const (
	MinRating Rating = 1
	MaxRating Rating = 5
)

// IsValid checks if the rating is within valid range.
func (r Rating) IsValid() bool {
	return r >= MinRating && r <= MaxRating
}

// Int returns the underlying int value.
func (r Rating) Int() int {
	return int(r)
}

// NewRating creates a new Rating with validation.
func NewRating(value int) (Rating, error) {
	if value < int(MinRating) || value > int(MaxRating) {
		return 0, ErrInvalidRating
	}
	return Rating(value), nil
}
