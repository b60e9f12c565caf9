package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/infrastructure/parsers"
)

// ImportOptions controls import behavior.
type ImportOptions struct {
	DryRun  bool   // Validate and read files without recording
	BaseDir string // Relative manifest paths resolve against this directory
}

// ImportError represents an error for a specific manifest entry.
type ImportError struct {
	Line    int    // Line number (1-indexed, 0 if unknown)
	Field   string // Which field has the error
	Value   string // The invalid value
	Message string // Human-readable error message
}

func (e ImportError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []ImportError
	// Recorded lists the revisions written, in manifest order.
	Recorded []entities.Revision
}

// ContentLoader reads a snapshot file named by a manifest entry.
type ContentLoader func(path string) (string, error)

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// ImportService records batches of snapshots listed in a manifest.
type ImportService struct {
	history *HistoryService
	load    ContentLoader
}

// NewImportService creates a new import service. A nil loader reads from disk.
func NewImportService(history *HistoryService, load ContentLoader) *ImportService {
	if load == nil {
		load = readFile
	}
	return &ImportService{
		history: history,
		load:    load,
	}
}

type pendingEntry struct {
	raw       parsers.RawEntry
	operation entities.OperationKind
	content   string
}

// Import validates every entry, then records the valid ones in manifest order.
// Entries that fail validation are reported in the result and do not stop the batch.
func (s *ImportService) Import(ctx context.Context, raw []parsers.RawEntry, opts ImportOptions) (*ImportResult, error) {
	result := &ImportResult{}

	pending, importErrors := s.prepare(raw, opts.BaseDir)
	result.Errors = importErrors

	if len(pending) == 0 {
		return result, nil
	}

	if opts.DryRun {
		result.Imported = len(pending)
		return result, nil
	}

	for i := range pending {
		p := &pending[i]
		res, err := s.history.Record(ctx, RecordRequest{
			EntityID:  p.raw.EntityID,
			Content:   p.content,
			Operation: p.operation,
			Author:    p.raw.Author,
		})
		if err != nil {
			return result, fmt.Errorf("recording %s (line %d): %w", p.raw.EntityID, p.raw.LineNum, err)
		}
		if res.Skipped {
			result.Skipped++
			continue
		}
		result.Imported++
		result.Recorded = append(result.Recorded, *res.Revision)
	}

	return result, nil
}

// prepare validates entries and loads their content.
func (s *ImportService) prepare(raw []parsers.RawEntry, baseDir string) ([]pendingEntry, []ImportError) {
	pending := make([]pendingEntry, 0, len(raw))
	var importErrors []ImportError

	for i := range raw {
		entry := raw[i]
		if entry.LineNum == 0 {
			entry.LineNum = i + 1
		}

		op, importErr := validateRawEntry(&entry)
		if importErr != nil {
			importErrors = append(importErrors, *importErr)
			continue
		}

		path := entry.File
		if baseDir != "" && !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}
		content, err := s.load(path)
		if err != nil {
			importErrors = append(importErrors, ImportError{
				Line:    entry.LineNum,
				Field:   "file",
				Value:   entry.File,
				Message: fmt.Sprintf("reading %s: %v", entry.File, err),
			})
			continue
		}

		pending = append(pending, pendingEntry{raw: entry, operation: op, content: content})
	}

	return pending, importErrors
}

// validateRawEntry checks a single entry. A missing operation means CHANGED.
func validateRawEntry(raw *parsers.RawEntry) (entities.OperationKind, *ImportError) {
	if strings.TrimSpace(raw.EntityID) == "" {
		return "", &ImportError{Line: raw.LineNum, Field: "entity_id", Message: "missing required field: entity_id"}
	}
	if err := entities.ValidateEntityID(raw.EntityID); err != nil {
		return "", &ImportError{
			Line:    raw.LineNum,
			Field:   "entity_id",
			Value:   raw.EntityID,
			Message: fmt.Sprintf("invalid entity_id %q", raw.EntityID),
		}
	}
	if strings.TrimSpace(raw.File) == "" {
		return "", &ImportError{Line: raw.LineNum, Field: "file", Message: "missing required field: file"}
	}

	if strings.TrimSpace(raw.Operation) == "" {
		return entities.OperationChanged, nil
	}
	op, err := entities.ParseOperationKind(raw.Operation)
	if err != nil {
		return "", &ImportError{
			Line:    raw.LineNum,
			Field:   "operation",
			Value:   raw.Operation,
			Message: fmt.Sprintf("invalid operation %q (valid: CREATED, CHANGED, DELETED, RENAMED)", raw.Operation),
		}
	}
	return op, nil
}
