// Package parsers reads import manifests: lists of snapshot files to record
// as revisions, in JSON, CSV or YAML.
package parsers

import (
	"io"
	"path/filepath"
	"strings"
)

// RawEntry is one manifest row before validation.
type RawEntry struct {
	EntityID  string `json:"entity_id" yaml:"entity_id"`
	File      string `json:"file" yaml:"file"`
	Operation string `json:"operation,omitempty" yaml:"operation,omitempty"`
	Author    string `json:"author,omitempty" yaml:"author,omitempty"`
	LineNum   int    `json:"-" yaml:"-"` // Position in the manifest (set by parser)
}

// Parser reads manifest entries from r.
type Parser interface {
	Parse(r io.Reader) ([]RawEntry, error)
}

// ForFormat returns the parser for format: "json", "csv" or "yaml".
func ForFormat(format string) Parser {
	switch strings.ToLower(format) {
	case "json":
		return &JSONParser{}
	case "csv":
		return &CSVParser{}
	case "yaml", "yml":
		return &YAMLParser{}
	default:
		return nil
	}
}

// ForFile returns the parser matching the file extension.
func ForFile(filename string) Parser {
	return ForFormat(strings.TrimPrefix(filepath.Ext(filename), "."))
}
