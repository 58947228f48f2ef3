//go:build fuse

// Package fuse wires core.Core to billziss-gh/cgofuse's FileSystemInterface:
// the C6 Mount Glue. Build with -tags=fuse; without the tag, fuse/stub.go
// provides a stub Handler, whose Mount returns an error, so the rest of
// the module still builds on machines without libfuse installed.
package fuse

import (
	"errors"
	"fmt"
	"os"

	"github.com/billziss-gh/cgofuse/fuse"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/AlexanderBugara/btfs/core"
	"github.com/AlexanderBugara/btfs/fs"
)

// FS implements fuse.FileSystemInterface over a *core.Core. It embeds
// FileSystemBase so op-table entries this package doesn't need
// (Write, Create, Chmod, ...) return ENOSYS automatically.
type FS struct {
	fuse.FileSystemBase

	core *core.Core
	log  zerolog.Logger
}

func newFS(c *core.Core) *FS {
	return &FS{core: c, log: log.Logger.With().Str("component", "fuse").Logger()}
}

func (f *FS) Init() {
	f.log.Info().Msg("mounted")
}

func (f *FS) Destroy() {
	f.core.Close()
	f.log.Info().Msg("unmounted")
}

func (f *FS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	mode, size, err := f.core.Getattr(path)
	if err != nil {
		return errno(err)
	}
	stat.Mode = toStatMode(mode)
	stat.Size = size
	stat.Nlink = 1
	return 0
}

func (f *FS) Opendir(path string) (int, uint64) {
	if _, err := f.core.Readdir(path); err != nil {
		return errno(err), 0
	}
	return 0, 0
}

func (f *FS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	names, err := f.core.Readdir(path)
	if err != nil {
		return errno(err)
	}

	fill(".", nil, 0)
	fill("..", nil, 0)
	for _, n := range names {
		fill(n, nil, 0)
	}
	return 0
}

func (f *FS) Open(path string, flags int) (int, uint64) {
	writable := flags&(fuse.O_WRONLY|fuse.O_RDWR) != 0
	file, err := f.core.Open(path, writable)
	if err != nil {
		return errno(err), 0
	}
	return 0, uint64(file.Index)
}

// Read uses fh as the file handle returned by Open, which carries the
// torrent's file index; no path re-resolution is needed on the hot path.
func (f *FS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	if len(buff) == 0 {
		return 0
	}
	return f.core.Read(int(fh), ofst, len(buff), buff)
}

func errno(err error) int {
	switch {
	case errors.Is(err, fs.ErrNoEntry):
		return -fuse.ENOENT
	case errors.Is(err, fs.ErrNotDir):
		return -fuse.ENOTDIR
	case errors.Is(err, fs.ErrIsDir):
		return -fuse.EISDIR
	case errors.Is(err, os.ErrPermission):
		return -fuse.EACCES
	default:
		return -fuse.EIO
	}
}

func toStatMode(mode uint32) uint32 {
	perm := mode & 0777
	if os.FileMode(mode).IsDir() {
		return fuse.S_IFDIR | perm
	}
	return fuse.S_IFREG | perm
}

// Handler owns the FUSE host and its mount point. Mount blocks running
// the FUSE event loop until Unmount is called (typically from a signal
// handler on another goroutine).
type Handler struct {
	host       *fuse.FileSystemHost
	mountpoint string
	allowOther bool
	log        zerolog.Logger
}

func NewHandler(c *core.Core, mountpoint string, allowOther bool) *Handler {
	host := fuse.NewFileSystemHost(newFS(c))
	host.SetCapReaddirPlus(false)
	return &Handler{
		host:       host,
		mountpoint: mountpoint,
		allowOther: allowOther,
		log:        log.Logger.With().Str("component", "fuse").Logger(),
	}
}

func (h *Handler) Mount() error {
	var args []string
	if h.allowOther {
		args = append(args, "-o", "allow_other")
	}
	h.log.Info().Str("mountpoint", h.mountpoint).Msg("mounting")
	if !h.host.Mount(h.mountpoint, args) {
		return fmt.Errorf("fuse: mount failed at %s", h.mountpoint)
	}
	return nil
}

func (h *Handler) Unmount() {
	h.host.Unmount()
}
