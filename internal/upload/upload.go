package upload

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"

	"filedrop/internal/fsutil"
)

// Folder uploads arrive as one multipart part per file. The browser keeps
// the folder layout only in each part's filename ("photos/2024/a.jpg"), so
// this package rebuilds the directories from those names.

var (
	// ErrTargetDir means the upload destination itself could not be created.
	ErrTargetDir = errors.New("cannot create target directory")
	// ErrNoValidFiles means a non-empty upload saved nothing.
	ErrNoValidFiles = errors.New("no valid files found in upload")

	errEmptyName = errors.New("empty file name")
	errEscape    = errors.New("path escapes share root")
)

// Part is one uploaded file.
type Part struct {
	// Name is the declared filename, possibly with directory segments.
	Name string
	Open func() (io.ReadCloser, error)
}

// Outcome records what happened to one part.
type Outcome struct {
	Name string
	Path string // absolute destination, empty when rejected early
	Size int64
	Err  error
}

type Result struct {
	Saved    int
	Outcomes []Outcome
}

// Failed returns the outcomes that did not save.
func (r Result) Failed() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Err != nil {
			out = append(out, o)
		}
	}
	return out
}

type Reconstructor struct {
	res *fsutil.Resolver
}

func NewReconstructor(res *fsutil.Resolver) *Reconstructor {
	return &Reconstructor{res: res}
}

// Receive writes parts under target, recreating their directory segments.
// Each part is best effort: a failure is logged and recorded in the result
// and the remaining parts are still processed. Only a target directory that
// cannot be created fails the whole call.
func (rc *Reconstructor) Receive(ctx context.Context, target string, parts []Part) (Result, error) {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrTargetDir, err)
	}
	res := Result{Outcomes: make([]Outcome, 0, len(parts))}
	for _, p := range parts {
		if err := ctx.Err(); err != nil {
			log.Printf("upload: stopped after %d of %d parts: %v", len(res.Outcomes), len(parts), err)
			break
		}
		o := rc.receivePart(target, p)
		if o.Err != nil {
			log.Printf("upload: skip %q: %v", p.Name, o.Err)
		} else {
			res.Saved++
		}
		res.Outcomes = append(res.Outcomes, o)
	}
	return res, nil
}

func (rc *Reconstructor) receivePart(target string, p Part) Outcome {
	o := Outcome{Name: p.Name}
	dirs, base := fsutil.SplitUploadName(p.Name)
	if base == "" || base == ".." {
		o.Err = errEmptyName
		return o
	}
	dir := target
	if len(dirs) > 0 {
		sub, ok := rc.res.Within(target, path.Join(dirs...))
		if !ok {
			o.Err = errEscape
			return o
		}
		if err := os.MkdirAll(sub, 0o755); err != nil {
			o.Err = fmt.Errorf("create folder: %w", err)
			return o
		}
		dir = sub
	}
	dst, ok := rc.res.Within(dir, base)
	if !ok || filepath.Dir(dst) != filepath.Clean(dir) {
		o.Err = errEscape
		return o
	}
	o.Path = dst

	src, err := p.Open()
	if err != nil {
		o.Err = fmt.Errorf("open part: %w", err)
		return o
	}
	defer src.Close()
	n, err := fsutil.WriteFileAtomic(dst, src)
	if err != nil {
		o.Err = fmt.Errorf("write: %w", err)
		return o
	}
	o.Size = n
	return o
}
