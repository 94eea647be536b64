// Package assets serves the widget build artifacts over plain HTTP.
//
// The gateway is deliberately dumb: files under one base directory,
// long-lived cache headers, permissive CORS, and a fixed extension to
// content-type table. Its one security property is path containment:
// every requested path is resolved (dot-dot collapse and symlinks)
// before being checked against the base directory, so traversal
// attempts answer 404 rather than leaking file contents.
package assets

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/koopa0/widgetd/internal/log"
)

// contentTypes maps known asset extensions to their content type.
// Unknown extensions fall back to application/octet-stream.
var contentTypes = map[string]string{
	".js":    "text/javascript; charset=utf-8",
	".mjs":   "text/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".html":  "text/html; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".ico":   "image/x-icon",
	".woff2": "font/woff2",
}

// cacheControl suits hashed asset filenames: content never changes
// under a given name.
const cacheControl = "public, max-age=31536000, immutable"

// Handler serves files from one base directory. Mount it behind
// http.StripPrefix so the request path is relative to the directory.
type Handler struct {
	dir    string
	logger log.Logger
}

// NewHandler creates an asset handler rooted at dir. The directory is
// resolved to an absolute path once so the containment check compares
// like with like.
func NewHandler(dir string, logger log.Logger) (*Handler, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		abs = resolved
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Handler{dir: abs, logger: logger}, nil
}

// ServeHTTP answers GET with the file bytes, OPTIONS with a CORS
// preflight response, and everything else with 405. All failures to
// find or contain the path are a uniform 404.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	setCORS(w)

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	path, ok := h.resolve(strings.TrimPrefix(r.URL.Path, "/"))
	if !ok {
		http.NotFound(w, r)
		return
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		http.NotFound(w, r)
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		// Raced removal or permissions; never crash the server.
		if errors.Is(err, fs.ErrNotExist) {
			http.NotFound(w, r)
			return
		}
		h.logger.Error("reading asset", "path", path, "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType(path))
	w.Header().Set("Cache-Control", cacheControl)
	_, _ = w.Write(data)
}

// resolve maps a request path to an absolute file path inside the
// base directory. The containment check runs on the fully resolved
// path (Clean, Abs, EvalSymlinks), not the raw request string;
// checking before resolution would leave traversal open.
func (h *Handler) resolve(rel string) (string, bool) {
	abs, err := filepath.Abs(filepath.Join(h.dir, filepath.FromSlash(rel)))
	if err != nil {
		return "", false
	}
	if !h.contains(abs) {
		return "", false
	}

	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", false
	}
	if !h.contains(resolved) {
		return "", false
	}
	return resolved, true
}

// contains reports whether path equals the base directory or lives
// under it, separator-aware so "/srv/assets-evil" never matches
// "/srv/assets".
func (h *Handler) contains(path string) bool {
	return path == h.dir || strings.HasPrefix(path, h.dir+string(filepath.Separator))
}

func contentType(path string) string {
	if ct, ok := contentTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return ct
	}
	return "application/octet-stream"
}

// setCORS enables cross-origin loading for the asset path family; the
// rendering surface fetches these from a different origin.
func setCORS(w http.ResponseWriter) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
}
