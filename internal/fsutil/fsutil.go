package fsutil

import (
	"path"
	"path/filepath"
	"strings"
)

// Resolver confines client supplied paths to a single root directory.
type Resolver struct {
	root string
}

// NewResolver returns a Resolver for root, which is made absolute and clean.
func NewResolver(root string) (*Resolver, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	return &Resolver{root: filepath.Clean(abs)}, nil
}

func (r *Resolver) Root() string { return r.root }

// Resolve maps an untrusted relative path onto the root. It never fails:
// anything that would land outside the root resolves to the root itself.
func (r *Resolver) Resolve(rel string) string {
	if strings.ContainsRune(rel, 0) {
		return r.root
	}
	p := path.Clean(strings.ReplaceAll(rel, "\\", "/"))
	p = strings.TrimLeft(p, "/")
	p = strings.TrimPrefix(p, "./")
	if p == "." || p == ".." || strings.HasPrefix(p, "../") {
		p = ""
	}
	if p == "" {
		return r.root
	}
	abs := filepath.Join(r.root, filepath.FromSlash(p))
	if !r.contains(abs) {
		return r.root
	}
	return abs
}

// Within joins rel onto base, an already resolved directory, and reports
// whether the result is still inside the root. Unlike Resolve it does not
// clamp: callers get ok=false and are expected to refuse the request.
func (r *Resolver) Within(base, rel string) (string, bool) {
	if strings.ContainsRune(rel, 0) || !r.contains(base) {
		return "", false
	}
	rel = strings.ReplaceAll(rel, "\\", "/")
	abs := filepath.Join(base, filepath.FromSlash(rel))
	if !r.contains(abs) {
		return "", false
	}
	return abs, true
}

// Rel returns abs relative to the root in slash form, "" for the root.
func (r *Resolver) Rel(abs string) string {
	rel, err := filepath.Rel(r.root, abs)
	if err != nil || rel == "." {
		return ""
	}
	return filepath.ToSlash(rel)
}

func (r *Resolver) contains(abs string) bool {
	abs = filepath.Clean(abs)
	if abs == r.root {
		return true
	}
	prefix := r.root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(abs, prefix)
}
