package httpserver

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	// decoders
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"filedrop/internal/fsops"
)

const (
	defaultThumbSize = 256
	maxThumbSize     = 1024
	thumbQuality     = 82
)

// handleThumb renders a JPEG preview for jpg/png/gif/webp files.
func (s *Server) handleThumb(w http.ResponseWriter, r *http.Request) {
	abs := s.res.Resolve(r.URL.Query().Get("path"))
	if !isImageExt(strings.ToLower(filepath.Ext(abs))) {
		http.NotFound(w, r)
		return
	}
	size := defaultThumbSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "bad size", http.StatusBadRequest)
			return
		}
		size = min(n, maxThumbSize)
	}

	f, _, err := s.ops.OpenFile(abs)
	if err != nil {
		if errors.Is(err, fsops.ErrNotFound) || errors.Is(err, fsops.ErrIsADirectory) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, "Server error", err)
		return
	}
	defer f.Close()

	b, err := makeThumb(f, size)
	if err != nil {
		// undecodable images are not a server fault
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/jpeg")
	w.Header().Set("Content-Length", strconv.Itoa(len(b)))
	_, _ = w.Write(b)
}

var errEmptyImage = errors.New("image has no pixels")

// makeThumb decodes r and re-encodes it as a JPEG whose longer side is at
// most limit pixels. Smaller images keep their size.
func makeThumb(r io.Reader, limit int) ([]byte, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return nil, err
	}
	bounds := src.Bounds()
	if bounds.Empty() {
		return nil, errEmptyImage
	}
	if limit <= 0 {
		limit = defaultThumbSize
	}
	tw, th := fitWithin(bounds.Dx(), bounds.Dy(), limit)

	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: thumbQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func fitWithin(w, h, limit int) (int, int) {
	long := max(w, h)
	if long <= limit {
		return w, h
	}
	scale := float64(limit) / float64(long)
	return max(1, int(float64(w)*scale)), max(1, int(float64(h)*scale))
}
