// Package shield provides the HTTP middleware shared by siteforge routes:
// security headers, JSON body limits, request tracing, rate limiting and HEAD
// method handling.
//
// Usage:
//
//	r := chi.NewRouter()
//	for _, mw := range shield.DefaultAPIStack(8 << 20) {
//	    r.Use(mw)
//	}
//
// Routes that serve generated pages (the preview) use PreviewHeaders instead
// of the API stack: those pages pull scripts from CDNs and are framed by the
// editor.
package shield

import "net/http"

type contextKey string

// LoggerKey is the context key for the per-request structured logger.
const LoggerKey contextKey = "shield_logger"

// DefaultAPIStack returns the middleware stack for JSON API routes.
// Order: HeadToGet → SecurityHeaders → MaxJSONBody → TraceID.
func DefaultAPIStack(maxBody int64) []func(http.Handler) http.Handler {
	return []func(http.Handler) http.Handler{
		HeadToGet,
		SecurityHeaders(DefaultHeaders()),
		MaxJSONBody(maxBody),
		TraceID,
	}
}
