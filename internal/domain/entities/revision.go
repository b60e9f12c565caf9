// Package entities contains core domain data structures.
package entities

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// OperationKind indicates what happened to a configuration.
type OperationKind string

const (
	OperationCreated OperationKind = "CREATED"
	OperationChanged OperationKind = "CHANGED"
	OperationDeleted OperationKind = "DELETED"
	OperationRenamed OperationKind = "RENAMED"
)

// OperationKinds lists every valid operation kind.
var OperationKinds = []OperationKind{
	OperationCreated,
	OperationChanged,
	OperationDeleted,
	OperationRenamed,
}

// IsValid reports whether k is one of the known operation kinds.
func (k OperationKind) IsValid() bool {
	for _, known := range OperationKinds {
		if k == known {
			return true
		}
	}
	return false
}

// ParseOperationKind parses an operation kind case-insensitively.
func ParseOperationKind(s string) (OperationKind, error) {
	k := OperationKind(strings.ToUpper(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: unknown operation %q", ErrValidation, s)
	}
	return k, nil
}

// Revision is one recorded point-in-time state of a configuration entity.
// It never changes once written.
type Revision struct {
	EntityID  string        `json:"entity_id" yaml:"entity_id"`
	Timestamp string        `json:"timestamp" yaml:"timestamp"`
	Operation OperationKind `json:"operation" yaml:"operation"`
	Author    string        `json:"author,omitempty" yaml:"author,omitempty"`
	Checksum  string        `json:"checksum" yaml:"checksum"`
	Size      int64         `json:"size" yaml:"size"`
}

// Time returns the parsed timestamp, or the zero time if it is malformed.
func (r Revision) Time() time.Time {
	t, err := ParseTimestamp(r.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Validate checks the fields a store relies on.
func (r Revision) Validate() error {
	if err := ValidateEntityID(r.EntityID); err != nil {
		return err
	}
	if _, err := ParseTimestamp(r.Timestamp); err != nil {
		return err
	}
	if !r.Operation.IsValid() {
		return fmt.Errorf("%w: unknown operation %q", ErrValidation, r.Operation)
	}
	return nil
}

// Snapshot is the raw configuration content of a revision.
type Snapshot struct {
	Revision Revision `json:"revision"`
	Content  string   `json:"content"`
}

// Checksum returns the hex SHA-256 of content.
func Checksum(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewRevision builds a revision for content, filling in checksum and size.
func NewRevision(entityID, timestamp string, op OperationKind, author, content string) *Revision {
	return &Revision{
		EntityID:  entityID,
		Timestamp: timestamp,
		Operation: op,
		Author:    author,
		Checksum:  Checksum(content),
		Size:      int64(len(content)),
	}
}
