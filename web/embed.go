// Package web serves the embedded interview page.
package web

import (
	"embed"
	"io/fs"
	"net/http"
	"path"
	"strings"
)

//go:embed all:dist
var distFS embed.FS

// reservedPrefixes belong to the JSON and WebSocket surfaces. Unknown paths
// under them answer 404 rather than the page.
var reservedPrefixes = []string{"/api/", "/ws/"}

type spa struct {
	files  fs.FS
	static http.Handler
}

// SPAHandler serves files from dist/ and falls back to index.html for any
// other client route, such as /history/<assessment_id>.
func SPAHandler() http.Handler {
	files, err := fs.Sub(distFS, "dist")
	if err != nil {
		panic("web: dist missing from embed: " + err.Error())
	}
	return &spa{files: files, static: http.FileServer(http.FS(files))}
}

func (s *spa) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	for _, p := range reservedPrefixes {
		if strings.HasPrefix(r.URL.Path, p) {
			http.NotFound(w, r)
			return
		}
	}

	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" || name == "index.html" || !s.exists(name) {
		// index.html always revalidates.
		w.Header().Set("Cache-Control", "no-cache")
		r2 := r.Clone(r.Context())
		r2.URL.Path = "/"
		s.static.ServeHTTP(w, r2)
		return
	}

	if strings.HasPrefix(name, "assets/") {
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
	}
	s.static.ServeHTTP(w, r)
}

func (s *spa) exists(name string) bool {
	info, err := fs.Stat(s.files, name)
	return err == nil && !info.IsDir()
}
