// Package sink writes generated programs to the user's output directory.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/japaniel/cncbits/pkg/paths"
)

// Sink receives named program text.
type Sink interface {
	// Write stores text under filename, replacing any previous content, and
	// returns the location written to.
	Write(filename, text string) (string, error)
}

// FileSink writes into the provider's output directory.
type FileSink struct {
	paths paths.Provider
}

// NewFileSink returns a FileSink that resolves its directory from p on every write.
func NewFileSink(p paths.Provider) *FileSink {
	return &FileSink{paths: p}
}

func (s *FileSink) Write(filename, text string) (string, error) {
	if filename == "" || filename != filepath.Base(filename) || strings.ContainsAny(filename, `/\`) {
		return "", fmt.Errorf("invalid output filename %q", filename)
	}
	dir, err := paths.EnsureDir(s.paths.OutputDir)
	if err != nil {
		return "", err
	}

	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}
