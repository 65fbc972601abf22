package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// DirRejector quarantines documents by moving them into a rejection folder.
// A sibling .reason.txt file records why the item was rejected. Items in the
// folder are terminal; re-processing them is an out-of-band decision.
type DirRejector struct {
	dir string
}

// NewDirRejector creates a rejector writing into dir, creating it on demand.
func NewDirRejector(dir string) (*DirRejector, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating rejection folder: %w", err)
	}
	return &DirRejector{dir: dir}, nil
}

// Move relocates the file at ref into the rejection folder and writes the
// reason alongside it. If ref does not name an existing file (the source was
// not file-backed), only the reason file is written.
func (d *DirRejector) Move(_ context.Context, ref string, reason string) error {
	base := filepath.Base(ref)
	target := filepath.Join(d.dir, base)

	if _, err := os.Stat(ref); err == nil {
		if err := os.Rename(ref, target); err != nil {
			return fmt.Errorf("moving rejected file %s: %w", ref, err)
		}
	}

	reasonPath := target + ".reason.txt"
	if err := os.WriteFile(reasonPath, []byte(reason+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing rejection reason for %s: %w", ref, err)
	}
	return nil
}
