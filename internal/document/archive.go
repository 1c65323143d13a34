package document

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/Younus004/wisdom/internal/apperr"

	"github.com/spf13/afero"
)

// Stored describes a file kept by an Archive.
type Stored struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Created bool   `json:"created"`
}

// Archive keeps rendered documents in one directory. Names are derived from
// entity ids, so a document is addressable without any stored reference.
type Archive struct {
	fs  afero.Fs
	dir string
}

func NewArchive(fs afero.Fs, dir string) (*Archive, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create document dir %s: %w", dir, err)
	}
	return &Archive{fs: fs, dir: dir}, nil
}

func (a *Archive) Path(name string) string {
	return filepath.Join(a.dir, name)
}

func (a *Archive) Exists(name string) (bool, error) {
	if err := checkName(name); err != nil {
		return false, err
	}
	return afero.Exists(a.fs, a.Path(name))
}

// Ensure renders name only when it is absent. The file appears under its
// final name only once rendering has fully succeeded.
func (a *Archive) Ensure(name string, render func(io.Writer) error) (Stored, error) {
	stored := Stored{Name: name, Path: a.Path(name)}

	exists, err := a.Exists(name)
	if err != nil {
		return Stored{}, err
	}
	if exists {
		return stored, nil
	}

	tmp, err := afero.TempFile(a.fs, a.dir, "."+name+".*.tmp")
	if err != nil {
		return Stored{}, fmt.Errorf("create temp file for %s: %w", name, err)
	}
	tmpName := tmp.Name()

	if err := render(tmp); err != nil {
		tmp.Close()
		a.fs.Remove(tmpName)
		return Stored{}, err
	}
	if err := tmp.Close(); err != nil {
		a.fs.Remove(tmpName)
		return Stored{}, fmt.Errorf("write %s: %w", name, err)
	}
	if err := a.fs.Rename(tmpName, stored.Path); err != nil {
		a.fs.Remove(tmpName)
		return Stored{}, fmt.Errorf("store %s: %w", name, err)
	}

	stored.Created = true
	return stored, nil
}

func (a *Archive) Open(name string) (afero.File, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	f, err := a.fs.Open(a.Path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("document %s: %w", name, apperr.ErrNotFound)
	}
	return f, err
}

func checkName(name string) error {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return apperr.Invalid("name", fmt.Sprintf("invalid document name %q", name))
	}
	return nil
}
