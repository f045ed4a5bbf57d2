package fsutil

import (
	"io"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// WriteFileAtomic streams r into dst. The data lands in a dot-prefixed temp
// file next to dst first (so listings never show it) and is renamed over dst,
// replacing any existing file.
func WriteFileAtomic(dst string, r io.Reader) (int64, error) {
	tmp := filepath.Join(filepath.Dir(dst), ".filedrop-"+uuid.NewString()+".tmp")
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp)
		return n, err
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return n, err
	}
	return n, nil
}
