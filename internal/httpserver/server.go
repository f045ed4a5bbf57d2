package httpserver

import (
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/net/webdav"

	"filedrop/internal/config"
	"filedrop/internal/fsops"
	"filedrop/internal/fsutil"
	"filedrop/internal/upload"
)

const maxCreateFolderBody = 1 << 20

type Options struct {
	Config config.Config
}

type Server struct {
	cfg     config.Config
	res     *fsutil.Resolver
	ops     *fsops.Ops
	uploads *upload.Reconstructor

	webFS fs.FS
}

//go:embed web/index.html
var embeddedWeb embed.FS

// New prepares a server for opts.Config, which must already be normalized.
// The root directory is created if it does not exist.
func New(opts Options) (*Server, error) {
	if err := os.MkdirAll(opts.Config.Root, 0o755); err != nil {
		return nil, fmt.Errorf("create root: %w", err)
	}
	res, err := fsutil.NewResolver(opts.Config.Root)
	if err != nil {
		return nil, err
	}
	sub, err := fs.Sub(embeddedWeb, "web")
	if err != nil {
		return nil, err
	}
	return &Server{
		cfg:     opts.Config,
		res:     res,
		ops:     fsops.New(res),
		uploads: upload.NewReconstructor(res),
		webFS:   sub,
	}, nil
}

func (s *Server) Root() string { return s.res.Root() }

// Handler returns the full handler chain: headers, access log and panic
// recovery around the routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	mux.HandleFunc("GET /{$}", s.handleIndex)

	mux.HandleFunc("GET /list", s.handleList)
	mux.HandleFunc("GET /download", s.handleDownload)
	mux.HandleFunc("POST /upload", s.handleUpload)
	mux.HandleFunc("POST /create_folder", s.handleCreateFolder)

	if s.cfg.ThumbnailsEnabled() {
		mux.HandleFunc("GET /thumb", s.handleThumb)
	}

	if s.cfg.WebDAV {
		mux.Handle("/dav/", &webdav.Handler{
			Prefix:     "/dav",
			FileSystem: webdav.Dir(s.res.Root()),
			LockSystem: webdav.NewMemLS(),
			Logger: func(r *http.Request, err error) {
				if err != nil {
					log.Printf("webdav %s %s: %v", r.Method, r.URL.Path, err)
				}
			},
		})
	}

	return s.withHeaders(logRequests(recoverPanics(mux)))
}

// --- handlers ---

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	b, err := fs.ReadFile(s.webFS, "index.html")
	if err != nil {
		writeError(w, http.StatusInternalServerError, "missing ui", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(b)
}

type listItem struct {
	Name     string  `json:"name"`
	IsDir    bool    `json:"is_dir"`
	Size     int64   `json:"size"`
	Modified float64 `json:"modified"` // seconds since epoch
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	dir := s.res.Resolve(r.URL.Query().Get("path"))
	entries, err := s.ops.List(dir)
	switch {
	case errors.Is(err, fsops.ErrNotFound):
		writeError(w, http.StatusNotFound, "Directory not found", nil)
		return
	case errors.Is(err, fsops.ErrNotADirectory):
		writeError(w, http.StatusBadRequest, "Path is not a directory", nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Server error", err)
		return
	}
	items := make([]listItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, listItem{
			Name:     e.Name,
			IsDir:    e.IsDir,
			Size:     e.Size,
			Modified: float64(e.Modified.UnixNano()) / 1e9,
		})
	}
	writeJSON(w, map[string]any{"files": items})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	p := s.res.Resolve(r.URL.Query().Get("path"))
	f, st, err := s.ops.OpenFile(p)
	switch {
	case errors.Is(err, fsops.ErrNotFound):
		writeError(w, http.StatusNotFound, "File not found", nil)
		return
	case errors.Is(err, fsops.ErrIsADirectory):
		writeError(w, http.StatusBadRequest, "Cannot download a directory", nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Server error", err)
		return
	}
	defer f.Close()

	name := filepath.Base(p)
	w.Header().Set("Content-Type", contentTypeForName(name))
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, st.ModTime(), f)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	}
	mr, err := r.MultipartReader()
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart data", nil)
		return
	}
	form, err := upload.ReadForm(mr, "")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "Upload too large", nil)
			return
		}
		log.Printf("upload: read form: %v", err)
		writeError(w, http.StatusBadRequest, "Invalid multipart data", nil)
		return
	}
	defer form.RemoveAll()

	target := s.res.Resolve(form.Path)
	result, err := s.uploads.Receive(r.Context(), target, form.Parts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Cannot create directory", err)
		return
	}
	if result.Saved == 0 {
		writeError(w, http.StatusBadRequest, "No valid files found in upload", nil)
		return
	}
	log.Printf("upload: saved %d/%d files under /%s", result.Saved, len(form.Parts), s.res.Rel(target))
	writeText(w, http.StatusOK, fmt.Sprintf("Upload successful: %d files saved", result.Saved))
}

type createFolderRequest struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

func (s *Server) handleCreateFolder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxCreateFolderBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Cannot read request body", nil)
		return
	}
	if len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No content provided", nil)
		return
	}
	var req createFolderRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON data", nil)
		return
	}
	parent := s.res.Resolve(strings.TrimSpace(req.Path))
	dir, err := s.ops.CreateFolder(parent, req.Name)
	switch {
	case errors.Is(err, fsops.ErrNameRequired):
		writeError(w, http.StatusBadRequest, "Folder name is required", nil)
		return
	case errors.Is(err, fsops.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "Invalid folder name", nil)
		return
	case errors.Is(err, fsops.ErrAlreadyExists):
		writeError(w, http.StatusBadRequest, "Folder already exists", nil)
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "Cannot create folder", err)
		return
	}
	log.Printf("created folder /%s", s.res.Rel(dir))
	writeText(w, http.StatusOK, "Folder created successfully")
}

// --- helpers ---

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeText(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, msg)
}

// writeError answers with a plain text message. Server side errors are
// logged with their cause; the client only sees msg.
func writeError(w http.ResponseWriter, status int, msg string, cause error) {
	if status >= http.StatusInternalServerError {
		log.Printf("server error: %s: %v", msg, cause)
	}
	http.Error(w, msg, status)
}
