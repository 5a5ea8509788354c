package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hazyhaar/siteforge/bundle"
	"github.com/hazyhaar/siteforge/deploy"
	"github.com/hazyhaar/siteforge/genparse"
	"github.com/hazyhaar/siteforge/kit"
	"github.com/hazyhaar/siteforge/project"
	"github.com/hazyhaar/siteforge/shield"
	"github.com/hazyhaar/siteforge/sitegen"
)

// routerDeps is everything the router mounts. Preview, MCP and Frontend are
// optional.
type routerDeps struct {
	Service     *sitegen.Service
	Preview     http.Handler
	MCP         http.Handler
	Frontend    http.Handler
	RateLimiter *shield.RateLimiter
	MaxBody     int64
}

func newRouter(d routerDeps) http.Handler {
	h := &handlers{svc: d.Service, ep: d.Service.Endpoints()}

	r := chi.NewRouter()
	r.Use(shield.HeadToGet)

	// API routes: strict headers, trace id, body cap, rate limits.
	r.Group(func(r chi.Router) {
		for _, mw := range shield.DefaultAPIStack(d.MaxBody) {
			r.Use(mw)
		}
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Middleware)
		}

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, 200, map[string]string{"status": "ok"})
		})
		r.With(untimed).Post("/intent", h.intent)
		r.With(untimed).Post("/generate-code", h.generate)
		r.With(untimed).Get("/download", h.download)
		r.Post("/save-edits", h.saveEdits)
		r.With(untimed).Post("/deploy", h.deploy)
		r.Get("/files", h.listFiles)
		r.Get("/files/*", h.readFile)
		r.Get("/outline/*", h.outline)
		if d.MCP != nil {
			r.With(untimed).Handle("/mcp", d.MCP)
		}
	})

	// Generated pages and the editor load CDN scripts: relaxed headers.
	r.Group(func(r chi.Router) {
		r.Use(shield.SecurityHeaders(shield.PreviewHeaders()))
		if d.Preview != nil {
			r.Get("/preview", func(w http.ResponseWriter, r *http.Request) {
				http.Redirect(w, r, "/preview/", http.StatusMovedPermanently)
			})
			r.Handle("/preview/*", http.StripPrefix("/preview", d.Preview))
		}
		if d.Frontend != nil {
			r.Handle("/*", d.Frontend)
		}
	})
	return r
}

// untimed lifts the server write deadline. Model calls, deployments and
// archive streams are not time-bounded at the transport.
func untimed(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil && !errors.Is(err, http.ErrNotSupported) {
			shield.GetLogger(r.Context()).Warn("clear write deadline", "error", err)
		}
		next.ServeHTTP(w, r)
	})
}

type handlers struct {
	svc *sitegen.Service
	ep  sitegen.Endpoints
}

// work detaches the request context: a client that disconnects does not
// abort a model call, a materialization or a deployment halfway.
func work(r *http.Request) context.Context {
	ctx := context.WithoutCancel(r.Context())
	ctx = kit.WithActor(ctx, shield.ExtractIP(r))
	return kit.WithRequestID(ctx, kit.GetTraceID(ctx))
}

func (h *handlers) intent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TamilText string `json:"tamilText"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]any{"success": false, "error": "Tamil text is required"})
		return
	}
	resp, err := h.ep.Intent(work(r), &sitegen.IntentRequest{Text: req.TamilText})
	if err != nil {
		if errors.Is(err, sitegen.ErrInvalidInput) {
			writeJSON(w, 400, map[string]any{"success": false, "error": "Tamil text is required"})
			return
		}
		shield.GetLogger(r.Context()).Error("intent detection failed", "error", err)
		writeJSON(w, 500, map[string]any{"success": false, "error": "Failed to detect intent"})
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "intent": resp.(*sitegen.IntentResult).Intent})
}

func (h *handlers) generate(w http.ResponseWriter, r *http.Request) {
	var req sitegen.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]any{"success": false, "error": "Intent is required to generate code."})
		return
	}
	resp, err := h.ep.Generate(work(r), &req)
	if err != nil {
		if errors.Is(err, sitegen.ErrInvalidInput) {
			writeJSON(w, 400, map[string]any{"success": false, "error": "Intent is required to generate code."})
			return
		}
		logger := shield.GetLogger(r.Context())
		if errors.Is(err, genparse.ErrNoFiles) {
			logger.Error("code generation produced no files", "error", err)
		} else {
			logger.Error("code generation failed", "error", err)
		}
		writeJSON(w, 500, map[string]any{"success": false, "error": "Failed to generate project code"})
		return
	}
	gen := resp.(*sitegen.Generation)
	body := map[string]any{
		"success": true,
		"message": "Code generated and saved",
		"id":      gen.ID,
		"files":   gen.Files,
	}
	if len(gen.Missing) > 0 {
		body["missing"] = gen.Missing
	}
	writeJSON(w, 200, body)
}

func (h *handlers) download(w http.ResponseWriter, r *http.Request) {
	archive, err := h.svc.Archive(r.Context())
	if err != nil {
		shield.GetLogger(r.Context()).Error("archive snapshot failed", "error", err)
		writeJSON(w, 500, map[string]string{"error": "Could not create archive"})
		return
	}
	w.Header().Set("Content-Type", bundle.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+bundle.Filename+`"`)
	w.WriteHeader(200)
	// Headers are gone: a failure from here on can only be logged.
	if err := archive.Stream(r.Context(), w); err != nil {
		shield.GetLogger(r.Context()).Error("archive stream failed", "error", err, "files", archive.Files())
	}
}

func (h *handlers) saveEdits(w http.ResponseWriter, r *http.Request) {
	var req sitegen.EditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, 400, map[string]string{"message": "Filename and content required"})
		return
	}
	_, err := h.ep.Save(work(r), &req)
	switch {
	case err == nil:
		writeJSON(w, 200, map[string]string{"message": "✅ Edits saved successfully!"})
	case errors.Is(err, sitegen.ErrInvalidInput) && (req.Filename == "" || req.Content == ""):
		writeJSON(w, 400, map[string]string{"message": "Filename and content required"})
	case sitegen.IsClientError(err):
		writeJSON(w, 400, map[string]string{"message": "Invalid filename", "error": err.Error()})
	default:
		shield.GetLogger(r.Context()).Error("save edits failed", "error", err, "file", req.Filename)
		writeJSON(w, 500, map[string]string{"message": "❌ Failed to save edits"})
	}
}

func (h *handlers) deploy(w http.ResponseWriter, r *http.Request) {
	resp, err := h.ep.Deploy(work(r), &sitegen.DeployRequest{})
	if err != nil {
		shield.GetLogger(r.Context()).Error("deploy failed", "error", err)
		writeJSON(w, 500, map[string]any{
			"success": false,
			"message": "❌ Failed to deploy site",
			"error":   err.Error(),
		})
		return
	}
	dep := resp.(*sitegen.Deployment)
	writeJSON(w, 200, map[string]any{
		"success":  true,
		"message":  "✅ Website deployed successfully!",
		"url":      dep.URL,
		"id":       dep.ID,
		"uploaded": len(dep.Uploaded),
		"deleted":  len(dep.Deleted),
		"skipped":  len(dep.Skipped),
	})
}

func (h *handlers) listFiles(w http.ResponseWriter, r *http.Request) {
	resp, err := h.ep.Files(r.Context(), &sitegen.FilesRequest{})
	if err != nil {
		shield.GetLogger(r.Context()).Error("list files failed", "error", err)
		writeJSON(w, 500, map[string]any{"success": false, "error": "Could not list files"})
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "files": resp.(*sitegen.FilesResult).Files})
}

func (h *handlers) readFile(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	resp, err := h.ep.Read(r.Context(), &sitegen.ReadRequest{Name: name})
	if err != nil {
		writeFileError(w, r, err, name)
		return
	}
	w.Header().Set("Content-Type", deploy.ContentType(name))
	w.WriteHeader(200)
	w.Write([]byte(resp.(*sitegen.FileContent).Content))
}

func (h *handlers) outline(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "*")
	resp, err := h.ep.Outline(r.Context(), &sitegen.OutlineRequest{Name: name})
	if err != nil {
		writeFileError(w, r, err, name)
		return
	}
	writeJSON(w, 200, map[string]any{"success": true, "markdown": resp.(*sitegen.OutlineResult).Markdown})
}

func writeFileError(w http.ResponseWriter, r *http.Request, err error, name string) {
	switch {
	case errors.Is(err, project.ErrNotFound):
		writeJSON(w, 404, map[string]any{"success": false, "error": "file not found"})
	case sitegen.IsClientError(err):
		writeJSON(w, 400, map[string]any{"success": false, "error": err.Error()})
	default:
		shield.GetLogger(r.Context()).Error("read file failed", "error", err, "file", name)
		writeJSON(w, 500, map[string]any{"success": false, "error": "could not read file"})
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
