package file

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// Store is a datalake.Store rooted at a local directory.
type Store struct {
	root string
}

// NewStore returns a Store writing under root, which is created if needed.
func NewStore(root string) (*Store, error) {
	if root == "" {
		return nil, errors.New("store root must not be empty")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", root)
	}
	return &Store{root: root}, nil
}

func (s *Store) path(key string) string {
	return filepath.Join(s.root, filepath.FromSlash(key))
}

// Exists reports whether dir exists and holds anything.
func (s *Store) Exists(ctx context.Context, dir string) (bool, error) {
	f, err := os.Open(s.path(dir))
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "opening")
	}
	defer f.Close()
	names, err := f.Readdirnames(1)
	if err == io.EOF {
		return false, nil
	} else if err != nil {
		return false, errors.Wrap(err, "reading dir")
	}
	return len(names) > 0, nil
}

// RemoveAll removes dir and everything under it.
func (s *Store) RemoveAll(ctx context.Context, dir string) error {
	return errors.Wrapf(os.RemoveAll(s.path(dir)), "removing %s", dir)
}

// Put writes body to key, creating parent directories. The file is written
// under a temporary name and renamed into place.
func (s *Store) Put(ctx context.Context, key string, body io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return errors.Wrapf(err, "creating dir for %s", key)
	}
	tmp := filepath.Join(filepath.Dir(p), "."+filepath.Base(p)+".tmp")
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating %s", key)
	}
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if _, err = io.Copy(f, body); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", key)
	}
	if err = f.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", key)
	}
	return errors.Wrapf(os.Rename(tmp, p), "renaming %s", key)
}

// Root returns the directory the store writes under.
func (s *Store) Root() string {
	return s.root
}
