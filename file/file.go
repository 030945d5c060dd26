package file

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fernandafs/P2P-ProjectNapster/communication"
)

const partialSuffix = ".part"

// File is a regular file found directly inside a share folder.
type File struct {
	Name string
	Size int64
}

// Store is a peer's share folder. Reads may run concurrently; every download
// writes to its own temporary file and only becomes visible on Commit.
type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, err
	}
	return &Store{dir: abs}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

// List returns the regular files of the folder sorted by name, leaving out
// sub-directories and in-flight downloads.
func (s *Store) List() ([]File, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, err
	}

	var files []File
	for _, e := range entries {
		if !e.Type().IsRegular() || isPartial(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, err
		}
		files = append(files, File{Name: e.Name(), Size: info.Size()})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Open opens name for reading and reports its size. A missing file, an
// in-flight download, or a name that is not a plain file in the folder is
// communication.ErrResourceNotFound.
func (s *Store) Open(name string) (io.ReadCloser, int64, error) {
	if err := communication.ValidateFileName(name); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", communication.ErrResourceNotFound, err)
	}
	if isPartial(name) {
		return nil, 0, fmt.Errorf("%w: %s is still being written", communication.ErrResourceNotFound, name)
	}

	f, err := os.Open(s.path(name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, 0, fmt.Errorf("%w: %s", communication.ErrResourceNotFound, name)
		}
		return nil, 0, err
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		_ = f.Close()
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", communication.ErrResourceNotFound, name)
	}
	return f, info.Size(), nil
}

// Create starts writing name. Nothing appears under name until Commit.
func (s *Store) Create(name string) (*Writer, error) {
	if err := communication.ValidateFileName(name); err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(s.dir, "."+name+".*"+partialSuffix)
	if err != nil {
		return nil, err
	}
	return &Writer{f: f, target: s.path(name)}, nil
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func isPartial(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, partialSuffix)
}

// Writer is an exclusive, not yet visible download target.
type Writer struct {
	f      *os.File
	target string
	done   bool
}

func (w *Writer) Write(p []byte) (int, error) {
	return w.f.Write(p)
}

// Commit flushes the data and moves it into place, replacing any older copy.
func (w *Writer) Commit() error {
	if w.done {
		return os.ErrClosed
	}
	w.done = true

	if err := w.f.Sync(); err != nil {
		_ = w.f.Close()
		_ = os.Remove(w.f.Name())
		return err
	}
	if err := w.f.Close(); err != nil {
		_ = os.Remove(w.f.Name())
		return err
	}
	if err := os.Rename(w.f.Name(), w.target); err != nil {
		_ = os.Remove(w.f.Name())
		return err
	}
	return nil
}

// Abort discards everything written so far. It is a no-op after Commit.
func (w *Writer) Abort() error {
	if w.done {
		return nil
	}
	w.done = true

	_ = w.f.Close()
	return os.Remove(w.f.Name())
}
