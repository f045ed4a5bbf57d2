package fsutil

import "strings"

// PlaceholderName replaces names that sanitize down to nothing.
const PlaceholderName = "unnamed_file"

// SanitizeName keeps the printable ASCII subset of name.
func SanitizeName(name string) string {
	var b strings.Builder
	b.Grow(len(name))
	for i := 0; i < len(name); i++ {
		if c := name[i]; c >= 0x20 && c <= 0x7e {
			b.WriteByte(c)
		}
	}
	if b.Len() == 0 {
		return PlaceholderName
	}
	return b.String()
}

// SplitUploadName splits a declared upload filename such as "a/b/c.txt" or
// `a\b\c.txt` into its directory segments and final name. Empty and "."
// segments are dropped; ".." segments are kept so the caller can refuse them.
func SplitUploadName(name string) (dirs []string, base string) {
	name = strings.ReplaceAll(name, "\\", "/")
	segs := strings.Split(name, "/")
	kept := segs[:0]
	for _, s := range segs {
		if s == "" || s == "." {
			continue
		}
		kept = append(kept, s)
	}
	if len(kept) == 0 {
		return nil, ""
	}
	return kept[:len(kept)-1], kept[len(kept)-1]
}
