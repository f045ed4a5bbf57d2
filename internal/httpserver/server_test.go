package httpserver

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"filedrop/internal/config"
)

func newTestServer(t *testing.T, mutate ...func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := config.Config{Root: filepath.Join(t.TempDir(), "share")}
	for _, m := range mutate {
		m(&cfg)
	}
	require.NoError(t, cfg.Normalize())
	srv, err := New(Options{Config: cfg})
	require.NoError(t, err)
	return srv, srv.Handler()
}

func do(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	return do(h, httptest.NewRequest(http.MethodGet, target, nil))
}

type uploadFile struct {
	name, content string
}

func uploadRequest(t *testing.T, target string, files ...uploadFile) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("path", target))
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		h.Set("Content-Type", "application/octet-stream")
		w, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = io.WriteString(w, f.content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, "/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func createFolder(h http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/create_folder", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return do(h, req)
}

type listResponse struct {
	Files []struct {
		Name     string  `json:"name"`
		IsDir    bool    `json:"is_dir"`
		Size     int64   `json:"size"`
		Modified float64 `json:"modified"`
	} `json:"files"`
}

func TestHeadersOnEveryResponse(t *testing.T) {
	_, h := newTestServer(t)
	for _, rec := range []*httptest.ResponseRecorder{
		get(h, "/healthz"),
		get(h, "/list?path=missing"),
		get(h, "/no-such-route"),
	} {
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
		assert.Equal(t, "GET, POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
		assert.Contains(t, rec.Header().Get("Cache-Control"), "no-store")
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	}
}

func TestOptionsPreflight(t *testing.T) {
	_, h := newTestServer(t)
	for _, target := range []string{"/", "/upload", "/anything/else"} {
		rec := do(h, httptest.NewRequest(http.MethodOptions, target, nil))
		assert.Equal(t, http.StatusOK, rec.Code, target)
		assert.Empty(t, rec.Body.String(), target)
		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	}
}

func TestIndexServesUI(t *testing.T) {
	_, h := newTestServer(t)
	rec := get(h, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "/create_folder")
}

func TestListRoot(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "a.txt"), []byte("abc"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), ".hidden"), []byte("x"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(srv.Root(), "docs"), 0o755))

	rec := get(h, "/list")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var body listResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Files, 2)
	got := map[string]bool{}
	for _, f := range body.Files {
		got[f.Name] = f.IsDir
		assert.Greater(t, f.Modified, float64(0))
		if f.Name == "a.txt" {
			assert.EqualValues(t, 3, f.Size)
		} else {
			assert.Zero(t, f.Size)
		}
	}
	assert.Equal(t, map[string]bool{"a.txt": false, "docs": true}, got)
}

func TestListJSONFieldNames(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "f"), nil, 0o644))
	rec := get(h, "/list?path=")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string][]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Len(t, raw["files"], 1)
	for _, k := range []string{"name", "is_dir", "size", "modified"} {
		assert.Contains(t, raw["files"][0], k)
	}
}

func TestListErrors(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "file.txt"), []byte("x"), 0o644))

	rec := get(h, "/list?path=nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "Directory not found")

	rec = get(h, "/list?path=file.txt")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Path is not a directory")
}

func TestListTraversalShowsRoot(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "inside.txt"), nil, 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(filepath.Dir(srv.Root()), "outside.txt"), nil, 0o644))

	for _, p := range []string{"..", "../", "a/../../", `..\..`} {
		rec := get(h, "/list?path="+url.QueryEscape(p))
		require.Equal(t, http.StatusOK, rec.Code, p)
		assert.Contains(t, rec.Body.String(), "inside.txt", p)
		assert.NotContains(t, rec.Body.String(), "outside.txt", p)
	}
}

func TestUploadThenDownloadRoundTrip(t *testing.T) {
	srv, h := newTestServer(t)

	rec := do(h, uploadRequest(t, "", uploadFile{"dir/x.bin", "hello"}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Upload successful: 1 files saved", rec.Body.String())
	assert.FileExists(t, filepath.Join(srv.Root(), "dir", "x.bin"))

	rec = get(h, "/download?path="+url.QueryEscape("dir/x.bin"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hello", rec.Body.String())
	assert.Equal(t, `attachment; filename="x.bin"`, rec.Header().Get("Content-Disposition"))
	assert.Equal(t, "application/octet-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "5", rec.Header().Get("Content-Length"))
}

func TestUploadFolderTree(t *testing.T) {
	srv, h := newTestServer(t)
	rec := do(h, uploadRequest(t, "target",
		uploadFile{"a/b/c.txt", "c"},
		uploadFile{"a/d.txt", "d"},
		uploadFile{"e.txt", "e"},
	))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Upload successful: 3 files saved", rec.Body.String())
	for _, p := range []string{"a/b/c.txt", "a/d.txt", "e.txt"} {
		assert.FileExists(t, filepath.Join(srv.Root(), "target", filepath.FromSlash(p)))
	}
}

func TestUploadNoValidFiles(t *testing.T) {
	_, h := newTestServer(t)

	rec := do(h, uploadRequest(t, ""))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "No valid files found in upload")

	rec = do(h, uploadRequest(t, "", uploadFile{"../../escape.txt", "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUploadPartialFailureStillSucceeds(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "clash"), []byte("file"), 0o644))

	rec := do(h, uploadRequest(t, "", uploadFile{"clash/x.txt", "x"}, uploadFile{"fine.txt", "y"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Upload successful: 1 files saved", rec.Body.String())
}

func TestUploadTargetIsFile(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "file"), []byte("x"), 0o644))

	rec := do(h, uploadRequest(t, "file", uploadFile{"a.txt", "a"}))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot create directory")
}

func TestUploadRejectsNonMultipart(t *testing.T) {
	_, h := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json")
	assert.Equal(t, http.StatusBadRequest, do(h, req).Code)
}

func TestUploadTooLarge(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.MaxUploadBytes = 512 })
	rec := do(h, uploadRequest(t, "", uploadFile{"big.bin", strings.Repeat("z", 4096)}))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestDownloadErrors(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.Mkdir(filepath.Join(srv.Root(), "dir"), 0o755))

	rec := get(h, "/download?path=missing.txt")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "File not found")

	rec = get(h, "/download?path=dir")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Cannot download a directory")

	// traversal resolves to the root, which is a directory
	rec = get(h, "/download?path="+url.QueryEscape("../../etc/passwd"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDownloadContentType(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "photo.JPG"), []byte("jpg"), 0o644))
	rec := get(h, "/download?path=photo.JPG")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
}

func TestDownloadRange(t *testing.T) {
	srv, h := newTestServer(t)
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "r.txt"), []byte("0123456789"), 0o644))
	req := httptest.NewRequest(http.MethodGet, "/download?path=r.txt", nil)
	req.Header.Set("Range", "bytes=2-4")
	rec := do(h, req)
	assert.Equal(t, http.StatusPartialContent, rec.Code)
	assert.Equal(t, "234", rec.Body.String())
}

func TestCreateFolder(t *testing.T) {
	srv, h := newTestServer(t)

	rec := createFolder(h, `{"name":"test","path":""}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Folder created successfully", rec.Body.String())
	assert.DirExists(t, filepath.Join(srv.Root(), "test"))

	rec = createFolder(h, `{"name":"test","path":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Folder already exists")

	rec = createFolder(h, `{"name":"inner","path":"test/deeper"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.DirExists(t, filepath.Join(srv.Root(), "test", "deeper", "inner"))
}

func TestCreateFolderBadInput(t *testing.T) {
	_, h := newTestServer(t)
	cases := []struct {
		body string
		msg  string
	}{
		{``, "No content provided"},
		{`{not json`, "Invalid JSON data"},
		{`{"name":"","path":"x"}`, "Folder name is required"},
		{`{"name":"   ","path":"../.."}`, "Folder name is required"},
		{`{"path":"x"}`, "Folder name is required"},
		{`{"name":"../../out","path":""}`, "Invalid folder name"},
	}
	for _, tc := range cases {
		rec := createFolder(h, tc.body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, tc.body)
		assert.Contains(t, rec.Body.String(), tc.msg, tc.body)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusMethodNotAllowed, get(h, "/upload").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(h, httptest.NewRequest(http.MethodPost, "/list", nil)).Code)
}

func TestThumb(t *testing.T) {
	srv, h := newTestServer(t)
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := 0; x < 400; x++ {
		img.Set(x, x%200, color.RGBA{R: 255, A: 255})
	}
	f, err := os.Create(filepath.Join(srv.Root(), "pic.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "broken.png"), []byte("not a png"), 0o644))

	rec := get(h, "/thumb?size=100&path=pic.png")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	thumb, _, err := image.Decode(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, 100, thumb.Bounds().Dx())
	assert.Equal(t, 50, thumb.Bounds().Dy())

	assert.Equal(t, http.StatusNotFound, get(h, "/thumb?path=broken.png").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/thumb?path=missing.png").Code)
	assert.Equal(t, http.StatusNotFound, get(h, "/thumb?path=notes.txt").Code)
	assert.Equal(t, http.StatusBadRequest, get(h, "/thumb?size=abc&path=pic.png").Code)
}

func TestFitWithin(t *testing.T) {
	cases := []struct{ w, h, limit, tw, th int }{
		{200, 100, 100, 100, 50},
		{100, 200, 100, 50, 100},
		{50, 20, 100, 50, 20},
		{1000, 1, 100, 100, 1},
		{300, 300, 256, 256, 256},
	}
	for _, tc := range cases {
		tw, th := fitWithin(tc.w, tc.h, tc.limit)
		assert.Equal(t, tc.tw, tw, "%dx%d in %d", tc.w, tc.h, tc.limit)
		assert.Equal(t, tc.th, th, "%dx%d in %d", tc.w, tc.h, tc.limit)
	}
}

func TestThumbDisabled(t *testing.T) {
	off := false
	_, h := newTestServer(t, func(c *config.Config) { c.Thumbnails = &off })
	assert.Equal(t, http.StatusNotFound, get(h, "/thumb?path=x.png").Code)
}

func TestWebDAV(t *testing.T) {
	srv, h := newTestServer(t, func(c *config.Config) { c.WebDAV = true })
	require.NoError(t, os.WriteFile(filepath.Join(srv.Root(), "dav.txt"), []byte("via dav"), 0o644))

	rec := get(h, "/dav/dav.txt")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "via dav", rec.Body.String())

	req := httptest.NewRequest(http.MethodPut, "/dav/put.txt", strings.NewReader("put body"))
	rec = do(h, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
	b, err := os.ReadFile(filepath.Join(srv.Root(), "put.txt"))
	require.NoError(t, err)
	assert.Equal(t, "put body", string(b))

	rec = do(h, httptest.NewRequest(http.MethodOptions, "/dav/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("DAV"))
}

func TestWebDAVDisabledByDefault(t *testing.T) {
	_, h := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, get(h, "/dav/").Code)
}

func TestRecoverPanics(t *testing.T) {
	h := recoverPanics(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := get(h, "/")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestContentTypeForName(t *testing.T) {
	assert.Equal(t, "application/pdf", contentTypeForName("a.PDF"))
	assert.Equal(t, "text/plain", contentTypeForName("notes.txt"))
	assert.Equal(t, defaultContentType, contentTypeForName("noext"))
	assert.Equal(t, defaultContentType, contentTypeForName("weird.qqq"))
}
