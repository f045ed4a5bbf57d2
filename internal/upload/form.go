package upload

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"strings"
)

const (
	// FieldPath carries the target folder, relative to the share root.
	FieldPath = "path"
	// FieldFiles is repeated once per uploaded file.
	FieldFiles = "files"

	maxFieldBytes = 64 << 10
)

// Form is a parsed upload request. File parts are spooled to disk so the
// target path may appear anywhere in the body.
type Form struct {
	Path  string
	Parts []Part

	spooled []string
}

// ReadForm consumes mr. Spool files are created in spoolDir (os.TempDir when
// empty); call RemoveAll once the parts have been received.
func ReadForm(mr *multipart.Reader, spoolDir string) (*Form, error) {
	f := &Form{}
	seenPath := false
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return f, nil
		}
		if err != nil {
			f.RemoveAll()
			return nil, fmt.Errorf("next part: %w", err)
		}
		switch p.FormName() {
		case FieldPath:
			b, err := io.ReadAll(io.LimitReader(p, maxFieldBytes))
			if err != nil {
				f.RemoveAll()
				return nil, fmt.Errorf("read %s field: %w", FieldPath, err)
			}
			if !seenPath {
				f.Path = strings.TrimSpace(string(b))
				seenPath = true
			}
		case FieldFiles:
			name := rawFileName(p)
			if name == "" {
				_, _ = io.Copy(io.Discard, p)
				break
			}
			tmp, err := spool(p, spoolDir)
			if err != nil {
				f.RemoveAll()
				return nil, err
			}
			f.spooled = append(f.spooled, tmp)
			f.Parts = append(f.Parts, Part{Name: name, Open: openFile(tmp)})
		default:
			_, _ = io.Copy(io.Discard, p)
		}
		_ = p.Close()
	}
}

// RemoveAll deletes the spooled part files.
func (f *Form) RemoveAll() {
	for _, p := range f.spooled {
		_ = os.Remove(p)
	}
	f.spooled = nil
}

// rawFileName returns the filename parameter as sent. multipart.Part.FileName
// applies filepath.Base, which would drop the folder segments we need.
func rawFileName(p *multipart.Part) string {
	_, params, err := mime.ParseMediaType(p.Header.Get("Content-Disposition"))
	if err != nil {
		return p.FileName()
	}
	return params["filename"]
}

func spool(r io.Reader, dir string) (string, error) {
	tmp, err := os.CreateTemp(dir, "filedrop-part-*")
	if err != nil {
		return "", fmt.Errorf("spool: %w", err)
	}
	_, err = io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("spool: %w", err)
	}
	return tmp.Name(), nil
}

func openFile(p string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return os.Open(p)
	}
}
