// Package uuid mints and validates the record identifiers used across the
// board: task ids, activity entry ids and websocket connection ids.
package uuid

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"

	"github.com/ashmit2704/taskboard/internal/models"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New mints a record identifier.
func New() models.UUID {
	return models.UUID(uuid.New().String())
}

// NewString mints an identifier for non-record uses (connection ids).
func NewString() string {
	return uuid.New().String()
}

// IsValid checks if a string is a valid UUID v4.
// Enforces strict format with dashes and correct variant bits.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// Validate returns an error if the string is not a valid UUID v4.
func Validate(s string) error {
	if !IsValid(s) {
		return fmt.Errorf("invalid UUID v4 format: %q", s)
	}
	return nil
}
