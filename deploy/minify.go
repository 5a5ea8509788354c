package deploy

import (
	"log/slog"
	"path"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"
	"github.com/tdewolff/minify/v2/json"
	"github.com/tdewolff/minify/v2/svg"
)

// minifyTypes maps extensions to the media types registered on the minifier.
var minifyTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".svg":  "image/svg+xml",
}

// Minifier shrinks web assets before upload.
type Minifier struct {
	m *minify.M
}

// NewMinifier registers the HTML, CSS, JS, JSON and SVG minifiers.
func NewMinifier() *Minifier {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFunc("application/javascript", js.Minify)
	m.AddFunc("application/json", json.Minify)
	m.AddFunc("image/svg+xml", svg.Minify)
	return &Minifier{m: m}
}

// Bytes returns the minified form of data, or data unchanged when the type
// is not minifiable or the minifier fails.
func (mf *Minifier) Bytes(name string, data []byte) []byte {
	mediatype, ok := minifyTypes[strings.ToLower(path.Ext(name))]
	if !ok || len(data) == 0 {
		return data
	}
	out, err := mf.m.Bytes(mediatype, data)
	if err != nil {
		slog.Warn("deploy: minify failed, using original", "file", name, "error", err)
		return data
	}
	return out
}
