// Package store provides goserde.ProgramStore implementations.
package store

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
)

// Dir stores one file per program under a directory, sharded by the first
// two digest characters. Writes go to a temporary file that is renamed into
// place, so readers never observe partial entries.
type Dir struct {
	root string
}

// NewDir creates root if needed and returns a store over it.
func NewDir(root string) (*Dir, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrap(err, "store: create directory")
	}
	return &Dir{root: root}, nil
}

// Root returns the store directory.
func (d *Dir) Root() string { return d.root }

func (d *Dir) path(digest string) (string, error) {
	if len(digest) < 3 || strings.ContainsAny(digest, `/\.`) {
		return "", errors.Newf("store: invalid digest %q", digest)
	}
	return filepath.Join(d.root, digest[:2], digest+".json"), nil
}

func (d *Dir) Load(digest string) ([]byte, bool, error) {
	p, err := d.path(digest)
	if err != nil {
		return nil, false, err
	}
	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "store: read")
	}
	return data, true, nil
}

func (d *Dir) Save(digest string, data []byte) error {
	p, err := d.path(digest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrap(err, "store: create shard")
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return errors.Wrap(err, "store: create temp")
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "store: write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "store: close")
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		_ = os.Remove(tmp.Name())
		return errors.Wrap(err, "store: rename")
	}
	return nil
}

// Len counts stored entries.
func (d *Dir) Len() (int, error) {
	n := 0
	err := filepath.WalkDir(d.root, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
		return nil
	})
	return n, err
}
