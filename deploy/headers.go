package deploy

import (
	"mime"
	"path"
	"strings"
)

// EntryPoint is the page served at the site root. It is never cached.
const EntryPoint = "index.html"

const (
	cacheEntry  = "no-cache"
	cacheAssets = "public, max-age=3600"
)

// webTypes pins the types browsers care about, independent of the host's
// mime database.
var webTypes = map[string]string{
	".html":        "text/html; charset=utf-8",
	".htm":         "text/html; charset=utf-8",
	".css":         "text/css; charset=utf-8",
	".js":          "text/javascript; charset=utf-8",
	".mjs":         "text/javascript; charset=utf-8",
	".json":        "application/json",
	".map":         "application/json",
	".svg":         "image/svg+xml",
	".png":         "image/png",
	".jpg":         "image/jpeg",
	".jpeg":        "image/jpeg",
	".gif":         "image/gif",
	".webp":        "image/webp",
	".avif":        "image/avif",
	".ico":         "image/x-icon",
	".txt":         "text/plain; charset=utf-8",
	".md":          "text/markdown; charset=utf-8",
	".xml":         "application/xml",
	".woff":        "font/woff",
	".woff2":       "font/woff2",
	".ttf":         "font/ttf",
	".otf":         "font/otf",
	".webmanifest": "application/manifest+json",
}

// ContentType returns the MIME type for a blob name.
func ContentType(name string) string {
	ext := strings.ToLower(path.Ext(name))
	if ext == "" {
		return "application/octet-stream"
	}
	if ct, ok := webTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// CacheControl returns the Cache-Control value for a blob name.
func CacheControl(name string) string {
	if name == EntryPoint {
		return cacheEntry
	}
	return cacheAssets
}

// HeadersFor returns the upload headers for a blob name.
func HeadersFor(name string) Headers {
	return Headers{ContentType: ContentType(name), CacheControl: CacheControl(name)}
}
