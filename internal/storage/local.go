package storage

import (
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

var ErrNotLocal = errors.New("reference is not served from local disk")

// LocalDisk stores images in a directory served under a public web prefix.
type LocalDisk struct {
	dir    string
	prefix string
}

func NewLocalDisk(dir, publicPrefix string) (*LocalDisk, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	if publicPrefix == "" {
		publicPrefix = "/static/uploads"
	}
	return &LocalDisk{dir: dir, prefix: "/" + strings.Trim(publicPrefix, "/")}, nil
}

func (d *LocalDisk) Dir() string { return d.dir }

func (d *LocalDisk) Prefix() string { return d.prefix }

// Put writes data under key. The file appears complete or not at all.
func (d *LocalDisk) Put(key string, data []byte) (Ref, error) {
	if err := writeAtomic(filepath.Join(d.dir, key), data); err != nil {
		return "", err
	}
	return Ref(path.Join(d.prefix, key)), nil
}

// Path maps a local reference to its file on disk.
func (d *LocalDisk) Path(ref Ref) (string, error) {
	s := string(ref)
	if ref.Remote() || !strings.HasPrefix(s, d.prefix+"/") {
		return "", ErrNotLocal
	}
	key := strings.TrimPrefix(s, d.prefix+"/")
	if key == "" || strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", ErrNotLocal
	}
	return filepath.Join(d.dir, key), nil
}

func (d *LocalDisk) Read(ref Ref) ([]byte, error) {
	p, err := d.Path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, fmt.Errorf("read local image: %w", err)
	}
	return data, nil
}

// TempCopy writes data to a scratch file next to the uploads. The returned
// release func removes it.
func (d *LocalDisk) TempCopy(key string, data []byte) (string, func(), error) {
	p := filepath.Join(d.dir, "tmp_"+key)
	if err := writeAtomic(p, data); err != nil {
		return "", func() {}, err
	}
	return p, func() { _ = os.Remove(p) }, nil
}

func writeAtomic(dst string, data []byte) error {
	f, err := os.CreateTemp(filepath.Dir(dst), ".partial-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmp := f.Name()
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
