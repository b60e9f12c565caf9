package parsers

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// YAMLParser parses a YAML sequence of entries.
type YAMLParser struct{}

// Parse reads YAML from the reader. Each entry's LineNum is its line in the document.
func (p *YAMLParser) Parse(r io.Reader) ([]RawEntry, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return []RawEntry{}, nil
		}
		return nil, fmt.Errorf("parsing YAML: %w", err)
	}

	if len(doc.Content) == 0 {
		return []RawEntry{}, nil
	}
	seq := doc.Content[0]
	if seq.Kind != yaml.SequenceNode {
		return nil, fmt.Errorf("parsing YAML: line %d: expected a list of entries", seq.Line)
	}

	entries := make([]RawEntry, 0, len(seq.Content))
	for _, node := range seq.Content {
		var entry RawEntry
		if err := node.Decode(&entry); err != nil {
			return nil, fmt.Errorf("parsing YAML: line %d: %w", node.Line, err)
		}
		entry.LineNum = node.Line
		entries = append(entries, entry)
	}
	return entries, nil
}
