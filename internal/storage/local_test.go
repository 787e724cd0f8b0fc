package storage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newLocal(t *testing.T) *LocalDisk {
	t.Helper()
	d, err := NewLocalDisk(filepath.Join(t.TempDir(), "uploads"), "/static/uploads/")
	require.NoError(t, err)
	return d
}

func TestLocalDisk_PutReadPath(t *testing.T) {
	d := newLocal(t)

	ref, err := d.Put("k_leaf.jpg", []byte("img"))
	require.NoError(t, err)
	require.Equal(t, Ref("/static/uploads/k_leaf.jpg"), ref)

	p, err := d.Path(ref)
	require.NoError(t, err)
	require.Equal(t, filepath.Join(d.Dir(), "k_leaf.jpg"), p)

	data, err := d.Read(ref)
	require.NoError(t, err)
	require.Equal(t, []byte("img"), data)

	entries, err := os.ReadDir(d.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "no partial files left behind")
}

func TestLocalDisk_PathRejectsForeignRefs(t *testing.T) {
	d := newLocal(t)
	for _, ref := range []Ref{
		"https://store/x.jpg",
		"/elsewhere/x.jpg",
		"/static/uploads/",
		"/static/uploads/../secret",
		"/static/uploads/a/b.jpg",
	} {
		_, err := d.Path(ref)
		require.ErrorIs(t, err, ErrNotLocal, string(ref))
	}
}

func TestLocalDisk_TempCopy(t *testing.T) {
	d := newLocal(t)

	p, release, err := d.TempCopy("abc_leaf.jpg", []byte("bytes"))
	require.NoError(t, err)
	require.Equal(t, "tmp_abc_leaf.jpg", filepath.Base(p))
	require.FileExists(t, p)

	release()
	require.NoFileExists(t, p)
}
