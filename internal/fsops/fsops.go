package fsops

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"filedrop/internal/fsutil"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrNotADirectory = errors.New("not a directory")
	ErrIsADirectory  = errors.New("is a directory")
	ErrAlreadyExists = errors.New("already exists")
	// ErrNameRequired and ErrInvalidName are client input errors.
	ErrNameRequired = errors.New("name required")
	ErrInvalidName  = errors.New("invalid name")
)

// Entry is one child of a listed directory.
type Entry struct {
	Name     string
	IsDir    bool
	Size     int64
	Modified time.Time
}

// Ops performs listing, download and folder creation on paths that were
// already resolved against the share root.
type Ops struct {
	res *fsutil.Resolver
}

func New(res *fsutil.Resolver) *Ops {
	return &Ops{res: res}
}

// List returns the immediate, non-hidden children of dir.
func (o *Ops) List(dir string) ([]Entry, error) {
	st, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !st.IsDir() {
		return nil, ErrNotADirectory
	}
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir: %w", err)
	}
	out := make([]Entry, 0, len(ents))
	for _, e := range ents {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		// follow symlinks like a plain stat would; dangling links keep their own info
		info, err := os.Stat(filepath.Join(dir, name))
		if err != nil {
			if info, err = e.Info(); err != nil {
				continue
			}
		}
		it := Entry{
			Name:     fsutil.SanitizeName(name),
			IsDir:    info.IsDir(),
			Modified: info.ModTime(),
		}
		if !it.IsDir {
			it.Size = info.Size()
		}
		out = append(out, it)
	}
	return out, nil
}

// OpenFile opens p for download. The caller closes the file.
func (o *Ops) OpenFile(p string) (*os.File, os.FileInfo, error) {
	st, err := os.Stat(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, ErrNotFound
		}
		return nil, nil, err
	}
	if st.IsDir() {
		return nil, nil, ErrIsADirectory
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, nil, fmt.Errorf("open: %w", err)
	}
	return f, st, nil
}

// CreateFolder creates name (which may contain several segments) under
// parent and returns the new directory's path.
func (o *Ops) CreateFolder(parent, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", ErrNameRequired
	}
	dir, ok := o.res.Within(parent, name)
	if !ok || dir == filepath.Clean(parent) {
		return "", ErrInvalidName
	}
	if _, err := os.Lstat(dir); err == nil {
		return "", ErrAlreadyExists
	} else if !errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Errorf("stat %s: %w", name, err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", name, err)
	}
	return dir, nil
}
