package handlers

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ersonp/confighistory/internal/domain/entities"
	"github.com/ersonp/confighistory/internal/domain/services"
	"github.com/ersonp/confighistory/internal/infrastructure/parsers"
)

// ImportHandler handles recording snapshot batches from manifest files.
type ImportHandler struct {
	service  *services.ImportService
	observer Observer
}

// NewImportHandler creates a new import handler. observer may be nil.
func NewImportHandler(service *services.ImportService, observer Observer) *ImportHandler {
	if observer == nil {
		observer = nopObserver{}
	}
	return &ImportHandler{
		service:  service,
		observer: observer,
	}
}

// ImportOptions controls import behavior.
type ImportOptions struct {
	Format string // "json", "csv", "yaml", or "auto"
	DryRun bool   // Validate without recording
}

// ImportResult contains the result of an import operation.
type ImportResult struct {
	Imported int
	Skipped  int
	Errors   []services.ImportError
	Recorded []entities.Revision
}

// Handle records the snapshots listed in a manifest. Relative file paths in
// the manifest resolve against the manifest's directory.
func (h *ImportHandler) Handle(ctx context.Context, filePath string, opts ImportOptions) (*ImportResult, error) {
	// Get parser
	var parser parsers.Parser
	if opts.Format == "" || opts.Format == "auto" {
		parser = parsers.ForFile(filePath)
	} else {
		parser = parsers.ForFormat(opts.Format)
	}

	if parser == nil {
		return nil, fmt.Errorf("unsupported format for file: %s", filePath)
	}

	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("opening file: %w", err)
	}
	defer file.Close()

	rawEntries, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("parsing file: %w", err)
	}

	if len(rawEntries) == 0 {
		return &ImportResult{}, nil
	}

	serviceOpts := services.ImportOptions{
		DryRun:  opts.DryRun,
		BaseDir: filepath.Dir(filePath),
	}

	serviceResult, err := h.service.Import(ctx, rawEntries, serviceOpts)
	if serviceResult != nil {
		for i := range serviceResult.Recorded {
			h.observer.RevisionRecorded(serviceResult.Recorded[i].Operation)
		}
	}
	if err != nil {
		return nil, err
	}

	return &ImportResult{
		Imported: serviceResult.Imported,
		Skipped:  serviceResult.Skipped,
		Errors:   serviceResult.Errors,
		Recorded: serviceResult.Recorded,
	}, nil
}
