package parsers

import (
	"encoding/json"
	"fmt"
	"io"
)

// JSONParser parses a JSON array of entries.
type JSONParser struct{}

// Parse reads JSON from the reader and returns parsed entries.
func (p *JSONParser) Parse(r io.Reader) ([]RawEntry, error) {
	var entries []RawEntry

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&entries); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}

	// Set line numbers (array index + 1, 1-indexed)
	for i := range entries {
		entries[i].LineNum = i + 1
	}

	return entries, nil
}
