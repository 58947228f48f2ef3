package fs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildSingleFile(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ix := Build([]File{{Path: "/movie.mkv", Size: 65536, Index: 0}})

	mode, size, err := ix.Getattr("/movie.mkv")
	require.NoError(err)
	require.False(mode.IsDir())
	require.EqualValues(65536, size)

	children, err := ix.Readdir("/")
	require.NoError(err)
	require.Equal([]string{"movie.mkv"}, children)
}

func TestDirectoryClosure(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ix := Build([]File{{Path: "a/b/c.bin", Size: 10, Index: 0}})

	root, err := ix.Readdir("/")
	require.NoError(err)
	require.Contains(root, "a")

	a, err := ix.Readdir("/a")
	require.NoError(err)
	require.Contains(a, "b")

	b, err := ix.Readdir("/a/b")
	require.NoError(err)
	require.Contains(b, "c.bin")

	mode, size, err := ix.Getattr("/a/b/c.bin")
	require.NoError(err)
	require.False(mode.IsDir())
	require.EqualValues(10, size)
}

func TestGetattrRootAlwaysDirectory(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ix := Build(nil)
	mode, size, err := ix.Getattr("/")
	require.NoError(err)
	require.True(mode.IsDir())
	require.Zero(size)
}

func TestReaddirErrors(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ix := Build([]File{{Path: "/a/b.bin", Size: 1, Index: 0}})

	_, err := ix.Readdir("/a/b.bin")
	require.ErrorIs(err, ErrNotDir)

	_, err = ix.Readdir("/missing")
	require.ErrorIs(err, ErrNoEntry)
}

func TestOpenDenial(t *testing.T) {
	t.Parallel()
	require := require.New(t)

	ix := Build([]File{{Path: "/a/b.bin", Size: 1, Index: 0}})

	_, err := ix.Open("/a", false)
	require.ErrorIs(err, ErrIsDir)

	_, err = ix.Open("/a/b.bin", true)
	require.ErrorIs(err, os.ErrPermission)

	_, err = ix.Open("/missing", false)
	require.ErrorIs(err, ErrNoEntry)
}
