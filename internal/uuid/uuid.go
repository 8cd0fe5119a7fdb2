// Package uuid generates the client-side identifiers records carry before
// the remote service assigns its own.
package uuid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

var prefixRegex = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewLocalID returns a local identifier of the form <prefix>_<uuidv4>,
// e.g. "workout_0b6f...". The prefix names the record kind.
func NewLocalID(prefix string) string {
	return prefix + "_" + New()
}

// splitLocalID separates a local identifier into its kind prefix and UUID.
func splitLocalID(localID string) (prefix, id string, err error) {
	i := strings.LastIndexByte(localID, '_')
	if i <= 0 {
		return "", "", fmt.Errorf("invalid local id %q: missing prefix", localID)
	}
	prefix, id = localID[:i], localID[i+1:]
	if !prefixRegex.MatchString(prefix) {
		return "", "", fmt.Errorf("invalid local id %q: bad prefix", localID)
	}
	if err := Validate(id); err != nil {
		return "", "", fmt.Errorf("invalid local id %q: %w", localID, err)
	}
	return prefix, id, nil
}

// IsLocalID reports whether s is a well-formed local identifier.
func IsLocalID(s string) bool {
	_, _, err := splitLocalID(s)
	return err == nil
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
