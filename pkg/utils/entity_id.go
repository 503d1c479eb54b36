// Package utils provides common utility functions for moodpulse.
package utils

import (
	"regexp"
	"strings"
)

var entityIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_.-]*$`)

// NormalizeEntityID normalizes a configured entity id to its canonical form.
// It handles uppercasing and whitespace.
func NormalizeEntityID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// IsValidEntityID reports whether id is canonical and safe to use as a file
// or directory name.
func IsValidEntityID(id string) bool {
	return len(id) <= 64 && entityIDPattern.MatchString(id) && !strings.Contains(id, "..")
}
