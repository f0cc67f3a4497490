package autovers

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"
)

// DefaultBaselineFile is the conventional baseline file name.
const DefaultBaselineFile = ".version"

// Baseline is a file holding the last persisted version.
type Baseline struct {
	fs        billy.Filesystem
	path      string
	fallbacks []string
}

// NewBaseline returns a baseline stored at path in fs. Reads also try the
// fallback paths, in order, when path does not exist; writes always go to path.
func NewBaseline(fs billy.Filesystem, path string, fallbacks ...string) *Baseline {
	return &Baseline{fs: fs, path: path, fallbacks: fallbacks}
}

// Path returns the path the baseline is written to.
func (b *Baseline) Path() string {
	return b.path
}

// Read returns the trimmed file content and the path it was read from.
func (b *Baseline) Read() (string, string, error) {
	for _, candidate := range append([]string{b.path}, b.fallbacks...) {
		content, err := b.read(candidate)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return "", candidate, err
		}
		return content, candidate, nil
	}
	return "", b.path, fmt.Errorf("%w: %s", ErrBaselineNotFound, b.path)
}

func (b *Baseline) read(path string) (string, error) {
	f, err := b.fs.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Write replaces the baseline content, creating parent directories first.
func (b *Baseline) Write(content string) error {
	if dir := filepath.Dir(b.path); dir != "." && dir != "" {
		if err := b.fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: creating %s: %w", ErrPersist, dir, err)
		}
	}
	if err := util.WriteFile(b.fs, b.path, []byte(content+"\n"), 0o644); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPersist, b.path, err)
	}
	return nil
}
