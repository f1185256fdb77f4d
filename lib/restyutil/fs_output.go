package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// FilesystemOutput writes debug artifacts (HTTP messages, fetched HTML) into a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates the directory if needed, existing files are kept.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Dir() string {
	return o.directory
}

var unsafeFilenameChars = regexp.MustCompile(`[^\w.\-]+`)

// SafeFilename turns arbitrary text (names, titles, domains) into something usable as a
// file name.
func SafeFilename(parts ...string) string {
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = unsafeFilenameChars.ReplaceAllString(strings.TrimSpace(p), "_")
		p = strings.Trim(p, "_")
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	name := strings.Join(cleaned, "_")
	if len(name) > 180 {
		name = name[:180]
	}
	return name
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id), []byte(contents), 0600)
	if err != nil {
		slog.Warn("failed to write debug output file", "id", id, "err", err)
	}
}
