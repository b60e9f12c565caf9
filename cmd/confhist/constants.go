package main

// Defaults for CLI commands.
const (
	DefaultSideBySideWidth = 60
	MinSideBySideWidth     = 10
)

// Valid output formats.
var (
	validListFormats = []string{"table", "json", "csv"}
	validShowTypes   = []string{"xml", "plain"}
)
