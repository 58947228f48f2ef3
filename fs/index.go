// Package fs builds a read-only POSIX directory tree out of a torrent's
// flat file list. It corresponds to the Torrent Directory Index
// described in the design: getattr/readdir/open answer purely from the
// in-memory tree built once metadata is known.
//
// Index is not internally synchronized. Callers that mutate shared
// state around it (the core package) are expected to hold their own
// lock for the Index's lifetime, the same way the teacher's storage
// type relied on the surrounding filesystem's lock.
package fs

import (
	"errors"
	"os"
	"sort"
	"strings"
)

var (
	// ErrNoEntry is returned when a path has no corresponding file or directory.
	ErrNoEntry = errors.New("fs: no such file or directory")
	// ErrNotDir is returned when Readdir is called on a file path.
	ErrNotDir = errors.New("fs: not a directory")
	// ErrIsDir is returned when a file-only operation targets a directory.
	ErrIsDir = errors.New("fs: is a directory")
)

// File is one entry in the torrent's file list.
type File struct {
	Path  string // POSIX path, leading "/"
	Size  int64
	Index int // stable file index used to address the file in the engine
}

// Index is the immutable directory tree built from a torrent's file list.
type Index struct {
	files map[string]File
	dirs  map[string]map[string]struct{} // directory path -> child name set
}

// Build constructs an Index from a torrent's flat file list. Each file's
// path is split on "/" (empty segments dropped); every non-final segment
// becomes a directory, and the full path is mapped to its File.
func Build(files []File) *Index {
	ix := &Index{
		files: make(map[string]File, len(files)),
		dirs:  make(map[string]map[string]struct{}),
	}
	ix.ensureDir("/")

	for _, f := range files {
		segs := splitPath(f.Path)
		if len(segs) == 0 {
			continue
		}

		parent := "/"
		for i := 0; i < len(segs)-1; i++ {
			ix.ensureDir(parent)
			child := segs[i]
			ix.addChild(parent, child)
			parent = join(parent, child)
			ix.ensureDir(parent)
		}

		name := segs[len(segs)-1]
		ix.ensureDir(parent)
		ix.addChild(parent, name)

		full := join(parent, name)
		ix.files[full] = File{Path: full, Size: f.Size, Index: f.Index}
	}

	return ix
}

func (ix *Index) ensureDir(path string) {
	if _, ok := ix.dirs[path]; !ok {
		ix.dirs[path] = make(map[string]struct{})
	}
}

func (ix *Index) addChild(dir, name string) {
	ix.ensureDir(dir)
	ix.dirs[dir][name] = struct{}{}
}

// Getattr returns the mode and size for path, or ErrNoEntry.
func (ix *Index) Getattr(path string) (mode os.FileMode, size int64, err error) {
	path = clean(path)
	if _, ok := ix.dirs[path]; ok {
		return os.ModeDir | 0755, 0, nil
	}
	if f, ok := ix.files[path]; ok {
		return 0444, f.Size, nil
	}
	return 0, 0, ErrNoEntry
}

// Readdir returns the immediate children of path (without "." and "..").
func (ix *Index) Readdir(path string) ([]string, error) {
	path = clean(path)
	children, ok := ix.dirs[path]
	if !ok {
		if _, isFile := ix.files[path]; isFile {
			return nil, ErrNotDir
		}
		return nil, ErrNoEntry
	}

	out := make([]string, 0, len(children))
	for name := range children {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

// Open validates that path names a regular file opened read-only.
// writable must be false; anything else is an access-denied condition
// the caller should translate accordingly.
func (ix *Index) Open(path string, writable bool) (File, error) {
	path = clean(path)
	if _, isDir := ix.dirs[path]; isDir {
		return File{}, ErrIsDir
	}
	f, ok := ix.files[path]
	if !ok {
		return File{}, ErrNoEntry
	}
	if writable {
		return File{}, os.ErrPermission
	}
	return f, nil
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func join(dir, name string) string {
	if dir == "/" {
		return "/" + name
	}
	return dir + "/" + name
}

func clean(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	if p == "" {
		return "/"
	}
	return p
}
