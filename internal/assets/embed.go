// Package assets serves the embedded dashboard UI via go:embed.
// The dashboard is a single static page (config list, editor form, and an
// SSE stream tester) with no build pipeline; files are served directly
// from the binary with content-type and cache headers.
package assets

import (
	"embed"
	"io/fs"
	"log/slog"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed all:static
var staticFS embed.FS

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".html":
		return "text/html; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// Handler returns an http.Handler serving the embedded dashboard.
// "/" serves index.html; everything else is looked up in the static tree.
// Assets are unhashed, so everything is served no-cache.
func Handler(logger *slog.Logger) http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "no-cache")

		if r.URL.Path != "/" && !fileExists(sub, strings.TrimPrefix(r.URL.Path, "/")) {
			logger.Debug("asset not found", "path", r.URL.Path)
			http.NotFound(w, r)
			return
		}

		fileServer.ServeHTTP(w, r)
	})
}

// fileExists reports whether a path is present in the embedded tree.
func fileExists(fsys fs.FS, name string) bool {
	f, err := fsys.Open(name)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}
