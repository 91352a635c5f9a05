package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Filesystem writes uploads under a root directory.
type Filesystem struct {
	root string
}

func NewFilesystem(root string) (*Filesystem, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &Filesystem{root: root}, nil
}

func (f *Filesystem) Put(_ context.Context, key, _ string, body []byte) error {
	target := filepath.Join(f.root, filepath.FromSlash(key))
	rel, err := filepath.Rel(f.root, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return fmt.Errorf("archive key %q escapes root", key)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
		return fmt.Errorf("create archive dir: %w", err)
	}
	if err := os.WriteFile(target, body, 0o640); err != nil {
		return fmt.Errorf("write archive: %w", err)
	}
	return nil
}
