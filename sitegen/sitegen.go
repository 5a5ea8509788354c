// CLAUDE:SUMMARY Service orchestrating intent detection, site generation, edits, archive, deploy and outline over llm, genparse, project and deploy.
// Package sitegen turns a natural-language request into a materialized
// multi-file website and publishes it.
//
// Flow: intent text → llm.Model → raw text → genparse.Parse →
// project.Workspace.Materialize → { archive | edit | deploy | outline }.
package sitegen

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/siteforge/audit"
	"github.com/hazyhaar/siteforge/bundle"
	"github.com/hazyhaar/siteforge/deploy"
	"github.com/hazyhaar/siteforge/genparse"
	"github.com/hazyhaar/siteforge/idgen"
	"github.com/hazyhaar/siteforge/llm"
	"github.com/hazyhaar/siteforge/project"
)

// Config tunes the model calls.
type Config struct {
	IntentModel     string  `yaml:"intent_model"`
	CodeModel       string  `yaml:"code_model"`
	Temperature     float64 `yaml:"temperature"`
	IntentMaxTokens int     `yaml:"intent_max_tokens"`
	CodeMaxTokens   int     `yaml:"code_max_tokens"`
}

func (c *Config) defaults() {
	if c.IntentModel == "" {
		c.IntentModel = "gpt-4o-mini"
	}
	if c.CodeModel == "" {
		c.CodeModel = "gpt-4o"
	}
	if c.Temperature == 0 {
		c.Temperature = 0.4
	}
	if c.IntentMaxTokens <= 0 {
		c.IntentMaxTokens = 500
	}
	if c.CodeMaxTokens <= 0 {
		c.CodeMaxTokens = 3000
	}
}

// Generation is the outcome of a successful Generate.
type Generation struct {
	ID     string   `json:"id"`
	Intent string   `json:"intent"`
	Files  []string `json:"files"`
	// Missing lists local references in HTML pages that no generated file
	// satisfies. Informational only.
	Missing    []string `json:"missing,omitempty"`
	Rejected   []string `json:"rejected,omitempty"`
	DurationMs int64    `json:"duration_ms"`
}

// Deployment is the outcome of a successful Deploy.
type Deployment struct {
	ID string `json:"id"`
	*deploy.Result
}

// EditRequest replaces the content of one file.
type EditRequest struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// AuditSummary keeps edited contents out of the audit trail.
func (r EditRequest) AuditSummary() any {
	return map[string]any{"filename": r.Filename, "bytes": len(r.Content)}
}

// Service is the sitegen orchestrator.
type Service struct {
	model     llm.Model
	ws        *project.Workspace
	syncer    *deploy.Syncer
	audit     audit.Logger
	logger    *slog.Logger
	cfg       Config
	newID     func() string
	sanitizer *bluemonday.Policy
	markdown  *converter.Converter
}

// ServiceOption configures a Service during creation.
type ServiceOption func(*Service)

// WithAudit sets the audit logger for model calls and mutations.
func WithAudit(a audit.Logger) ServiceOption {
	return func(svc *Service) { svc.audit = a }
}

// WithSyncer enables Deploy.
func WithSyncer(s *deploy.Syncer) ServiceOption {
	return func(svc *Service) { svc.syncer = s }
}

// WithIDGenerator overrides the generation ID generator.
func WithIDGenerator(gen func() string) ServiceOption {
	return func(svc *Service) { svc.newID = gen }
}

// New creates a Service.
func New(model llm.Model, ws *project.Workspace, cfg *Config, logger *slog.Logger, opts ...ServiceOption) *Service {
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	svc := &Service{
		model:     model,
		ws:        ws,
		audit:     audit.Nop{},
		logger:    logger,
		cfg:       *cfg,
		newID:     idgen.Generation,
		sanitizer: bluemonday.StrictPolicy(),
		markdown: converter.NewConverter(converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
			table.NewTablePlugin(),
		)),
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// Workspace returns the project workspace.
func (svc *Service) Workspace() *project.Workspace { return svc.ws }

func blank(s string) bool { return strings.TrimSpace(s) == "" }

// markupRe spots an answer formatted as HTML: a closing tag, a self-closing
// tag or a line break. An opening tag alone ("a <nav> bar") is prose.
var markupRe = regexp.MustCompile(`(?i)</[a-z][\w-]*\s*>|<[a-z][\w-]*[^<>]*/>|<br\s*>`)

// DetectIntent asks the model to turn free text (spoken Tamil, typically)
// into an English description of the wanted website. When the answer is
// formatted as HTML the markup is stripped; otherwise tag names mentioned in
// the description are kept as written.
func (svc *Service) DetectIntent(ctx context.Context, text string) (string, error) {
	if blank(text) {
		return "", fmt.Errorf("%w: text is required", ErrInvalidInput)
	}

	out, err := svc.model.Complete(ctx, llm.Prompt{
		System:      intentSystemPrompt,
		User:        intentUserPrompt(text),
		Temperature: svc.cfg.Temperature,
		MaxTokens:   svc.cfg.IntentMaxTokens,
		Model:       svc.cfg.IntentModel,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	if markupRe.MatchString(out) {
		out = svc.sanitizer.Sanitize(out)
	}
	intent := strings.TrimSpace(html.UnescapeString(out))
	if intent == "" {
		return "", fmt.Errorf("%w: %w", ErrUpstream, llm.ErrEmptyResponse)
	}
	svc.logger.Info("sitegen: intent detected", "input_chars", len(text), "intent_chars", len(intent))
	return intent, nil
}

// Generate asks the model for a complete site, parses the answer into files
// and replaces the project with them.
func (svc *Service) Generate(ctx context.Context, intent string) (*Generation, error) {
	if blank(intent) {
		return nil, fmt.Errorf("%w: intent is required", ErrInvalidInput)
	}
	start := time.Now()

	raw, err := svc.model.Complete(ctx, llm.Prompt{
		System:      codeSystemPrompt,
		User:        codeUserPrompt(intent),
		Temperature: svc.cfg.Temperature,
		MaxTokens:   svc.cfg.CodeMaxTokens,
		Model:       svc.cfg.CodeModel,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	svc.logger.Debug("sitegen: model output", "chars", len(raw), "output", raw)

	batch, err := genparse.Parse(raw)
	if err != nil {
		svc.logger.Warn("sitegen: no files in model output", "chars", len(raw))
		return nil, err
	}
	if len(batch.Rejected) > 0 {
		svc.logger.Warn("sitegen: rejected file names", "names", batch.Rejected)
	}

	files := make([]project.File, 0, batch.Len())
	for _, f := range batch.Files {
		files = append(files, project.File{Name: f.Name, Content: []byte(f.Content)})
	}
	snap, err := svc.ws.Materialize(ctx, files)
	if err != nil {
		return nil, err
	}

	gen := &Generation{
		ID:         svc.newID(),
		Intent:     intent,
		Files:      batch.Names(),
		Missing:    project.MissingReferences(snap),
		Rejected:   batch.Rejected,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if len(gen.Missing) > 0 {
		svc.logger.Warn("sitegen: unresolved references", "id", gen.ID, "missing", gen.Missing)
	}
	svc.logger.Info("sitegen: generated", "id", gen.ID, "files", gen.Files, "duration_ms", gen.DurationMs)
	return gen, nil
}

// Files lists the current snapshot, sorted.
func (svc *Service) Files(ctx context.Context) ([]string, error) {
	return svc.ws.List(ctx)
}

// ReadFile returns one file of the current snapshot.
func (svc *Service) ReadFile(ctx context.Context, name string) ([]byte, error) {
	return svc.ws.Read(ctx, name)
}

// SaveEdit overwrites one file. The file must exist or be a new file at the
// project root. Empty content counts as missing.
func (svc *Service) SaveEdit(ctx context.Context, req EditRequest) error {
	if req.Filename == "" || req.Content == "" {
		return fmt.Errorf("%w: filename and content required", ErrInvalidInput)
	}
	name, err := project.ValidateName(req.Filename)
	if err != nil {
		return err
	}
	if strings.Contains(name, "/") && !svc.ws.Exists(ctx, name) {
		return fmt.Errorf("%w: new files must be created at the project root: %s", ErrInvalidInput, name)
	}
	return svc.ws.Write(ctx, name, []byte(req.Content))
}

// Archive is a snapshot ready to be streamed as a zip.
type Archive struct {
	snap *project.Snapshot
}

// Files returns the number of archived files.
func (a *Archive) Files() int { return a.snap.Len() }

// Stream writes the zip to w.
func (a *Archive) Stream(ctx context.Context, w io.Writer) error {
	return bundle.Write(ctx, w, a.snap)
}

// Archive reads the current snapshot. Reading happens before any byte is
// written so callers can still report a storage failure cleanly.
func (svc *Service) Archive(ctx context.Context) (*Archive, error) {
	snap, err := svc.ws.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return &Archive{snap: snap}, nil
}

// Deploy publishes the current snapshot.
func (svc *Service) Deploy(ctx context.Context) (*Deployment, error) {
	if svc.syncer == nil {
		return nil, fmt.Errorf("%w: no deployment target configured", deploy.ErrDeploy)
	}
	snap, err := svc.ws.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	res, err := svc.syncer.Sync(ctx, snap)
	if err != nil {
		return nil, err
	}
	return &Deployment{ID: idgen.Deployment(), Result: res}, nil
}

// Outline renders an HTML file of the snapshot as Markdown.
func (svc *Service) Outline(ctx context.Context, name string) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".htm":
	default:
		return "", fmt.Errorf("%w: %s", ErrNotHTML, name)
	}
	data, err := svc.ws.Read(ctx, name)
	if err != nil {
		return "", err
	}
	md, err := svc.markdown.ConvertString(string(data))
	if err != nil {
		return "", fmt.Errorf("sitegen: convert %s: %w", name, err)
	}
	return strings.TrimSpace(md), nil
}

// IsClientError reports whether err was caused by the request rather than
// by the service or its dependencies.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, project.ErrInvalidName) ||
		errors.Is(err, ErrNotHTML)
}
