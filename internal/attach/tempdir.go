package attach

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/helpchat/internal/logger"
)

// TempDirAllocator materializes image previews as files under a local
// directory and serves them by path. It is the default allocator for
// the gateway; tests substitute a counting fake.
type TempDirAllocator struct {
	Dir string
}

func NewTempDirAllocator(dir string) (*TempDirAllocator, error) {
	if dir == "" {
		dir = filepath.Join(os.TempDir(), "helpchat-previews")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("attach: create preview dir: %w", err)
	}
	return &TempDirAllocator{Dir: dir}, nil
}

func (a *TempDirAllocator) Allocate(f File) (string, func(), error) {
	path := filepath.Join(a.Dir, uuid.New().String()+filepath.Ext(f.Name))
	if err := os.WriteFile(path, f.Data, 0o644); err != nil {
		return "", nil, fmt.Errorf("attach: write preview: %w", err)
	}
	release := func() {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			logger.Errorf("attach: remove preview %s: %v", path, err)
		}
	}
	return "file://" + path, release, nil
}
