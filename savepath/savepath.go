// Package savepath creates the private directory a mount stages pieces
// beneath, per design §6: $HOME/btfs/btfs-XXXXXX, or /tmp/btfs/btfs-XXXXXX
// if $HOME is unset.
package savepath

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MinFreeBytes is the floor below which Create refuses to stage a
// download: enough for a few pieces to land before the engine's own
// backpressure kicks in, not a hard guarantee against running out.
const MinFreeBytes = 64 * 1024 * 1024

// Create makes the parent "btfs" directory (tolerating "already
// exists") and a fresh btfs-XXXXXX subdirectory beneath it, returning
// the subdirectory's path.
func Create() (string, error) {
	parent := parentDir()

	if err := os.MkdirAll(parent, 0755); err != nil && !errors.Is(err, os.ErrExist) {
		return "", fmt.Errorf("savepath: create parent %s: %w", parent, err)
	}

	if err := checkFreeSpace(parent); err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp(parent, "btfs-")
	if err != nil {
		return "", fmt.Errorf("savepath: create staging dir: %w", err)
	}
	return dir, nil
}

func parentDir() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, "btfs")
	}
	return filepath.Join("/tmp", "btfs")
}

// checkFreeSpace is a best-effort preflight, not a reservation: the
// free-space figure is stale by the time any byte is written.
func checkFreeSpace(path string) error {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return nil
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < MinFreeBytes {
		return fmt.Errorf("savepath: only %d bytes free under %s, need at least %d", free, path, MinFreeBytes)
	}
	return nil
}
