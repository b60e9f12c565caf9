package entities

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxEntityIDLength bounds entity ids so every backend can use them as keys.
const MaxEntityIDLength = 256

// validEntityIDRegex allows slash-separated segments such as "folder/job-name".
var validEntityIDRegex = regexp.MustCompile(`^[A-Za-z0-9_.@ +-]+(/[A-Za-z0-9_.@ +-]+)*$`)

// ValidateEntityID checks that id names a configuration entity.
// Ids are slash-separated names; "." and ".." segments are rejected.
func ValidateEntityID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: entity id is required", ErrValidation)
	}
	if len(id) > MaxEntityIDLength {
		return fmt.Errorf("%w: entity id longer than %d characters", ErrValidation, MaxEntityIDLength)
	}
	if !validEntityIDRegex.MatchString(id) {
		return fmt.Errorf("%w: invalid entity id %q", ErrValidation, id)
	}
	for _, segment := range strings.Split(id, "/") {
		if segment == "." || segment == ".." || strings.TrimSpace(segment) == "" {
			return fmt.Errorf("%w: invalid entity id segment in %q", ErrValidation, id)
		}
	}
	return nil
}
