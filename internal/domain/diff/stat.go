package diff

import (
	"fmt"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"

	"github.com/ersonp/confighistory/internal/domain/entities"
)

// Stats summarizes a unified diff.
type Stats struct {
	Hunks   int `json:"hunks"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
	// Changed counts deleted/added line pairs as reported by go-diff.
	Changed int `json:"changed"`
}

// Stat parses a rendered unified diff and counts its changes.
func Stat(unified string) (Stats, error) {
	if !strings.Contains(unified, "\n@@ ") && !strings.HasPrefix(unified, "@@ ") {
		return Stats{}, nil
	}

	fd, err := godiff.ParseFileDiff([]byte(unified))
	if err != nil {
		return Stats{}, fmt.Errorf("%w: parsing unified diff: %v", entities.ErrFormat, err)
	}

	stats := Stats{Hunks: len(fd.Hunks)}
	for _, hunk := range fd.Hunks {
		for _, line := range strings.Split(string(hunk.Body), "\n") {
			switch {
			case strings.HasPrefix(line, "+"):
				stats.Added++
			case strings.HasPrefix(line, "-"):
				stats.Deleted++
			}
		}
	}
	stats.Changed = int(fd.Stat().Changed)
	return stats, nil
}
