package sitegen

import (
	"context"

	"github.com/hazyhaar/siteforge/audit"
	"github.com/hazyhaar/siteforge/kit"
)

// Transport-neutral requests and responses shared by the HTTP routes and
// the MCP tools.
type (
	IntentRequest struct {
		Text string `json:"text"`
	}
	IntentResult struct {
		Intent string `json:"intent"`
	}
	GenerateRequest struct {
		Intent string `json:"intent"`
	}
	FilesRequest struct{}
	FilesResult  struct {
		Files []string `json:"files"`
	}
	ReadRequest struct {
		Name string `json:"name"`
	}
	FileContent struct {
		Name    string `json:"name"`
		Content string `json:"content"`
	}
	SaveResult struct {
		Filename string `json:"filename"`
		Bytes    int    `json:"bytes"`
	}
	DeployRequest  struct{}
	OutlineRequest struct {
		Name string `json:"name"`
	}
	OutlineResult struct {
		Name     string `json:"name"`
		Markdown string `json:"markdown"`
	}
)

// Endpoints exposes every operation as a kit.Endpoint. Model calls and
// mutations are wrapped in the audit middleware, so each call produces one
// audit entry whichever transport carried it.
type Endpoints struct {
	Intent   kit.Endpoint
	Generate kit.Endpoint
	Files    kit.Endpoint
	Read     kit.Endpoint
	Save     kit.Endpoint
	Deploy   kit.Endpoint
	Outline  kit.Endpoint
}

// Endpoints builds the endpoint set.
func (svc *Service) Endpoints() Endpoints {
	audited := func(action string, e kit.Endpoint) kit.Endpoint {
		return audit.Middleware(svc.audit, action)(e)
	}
	return Endpoints{
		Intent: audited("sitegen.intent", func(ctx context.Context, r any) (any, error) {
			intent, err := svc.DetectIntent(ctx, r.(*IntentRequest).Text)
			if err != nil {
				return nil, err
			}
			return &IntentResult{Intent: intent}, nil
		}),
		Generate: audited("sitegen.generate", func(ctx context.Context, r any) (any, error) {
			return svc.Generate(ctx, r.(*GenerateRequest).Intent)
		}),
		Files: func(ctx context.Context, _ any) (any, error) {
			files, err := svc.Files(ctx)
			if err != nil {
				return nil, err
			}
			return &FilesResult{Files: files}, nil
		},
		Read: func(ctx context.Context, r any) (any, error) {
			name := r.(*ReadRequest).Name
			data, err := svc.ReadFile(ctx, name)
			if err != nil {
				return nil, err
			}
			return &FileContent{Name: name, Content: string(data)}, nil
		},
		Save: audited("sitegen.save", func(ctx context.Context, r any) (any, error) {
			req := r.(*EditRequest)
			if err := svc.SaveEdit(ctx, *req); err != nil {
				return nil, err
			}
			return &SaveResult{Filename: req.Filename, Bytes: len(req.Content)}, nil
		}),
		Deploy: audited("sitegen.deploy", func(ctx context.Context, _ any) (any, error) {
			return svc.Deploy(ctx)
		}),
		Outline: func(ctx context.Context, r any) (any, error) {
			name := r.(*OutlineRequest).Name
			md, err := svc.Outline(ctx, name)
			if err != nil {
				return nil, err
			}
			return &OutlineResult{Name: name, Markdown: md}, nil
		},
	}
}
