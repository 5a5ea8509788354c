package sitegen

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/siteforge/kit"
)

// RegisterMCP registers the sitegen tools on an MCP server.
func (svc *Service) RegisterMCP(srv *mcp.Server) {
	ep := svc.Endpoints()
	str := func(desc string) map[string]any {
		return map[string]any{"type": "string", "description": desc}
	}

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_intent",
		Description: "Turn free text (spoken Tamil, typically) into an English description of the website the user wants",
		InputSchema: kit.InputSchema(map[string]any{
			"text": str("What the user said"),
		}, []string{"text"}),
	}, ep.Intent, decode[IntentRequest](true))

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_generate",
		Description: "Generate a complete multi-file website from an intent. Replaces the current project",
		InputSchema: kit.InputSchema(map[string]any{
			"intent": str("Description of the website"),
		}, []string{"intent"}),
	}, ep.Generate, decode[GenerateRequest](true))

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_files",
		Description: "List the files of the current project",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, ep.Files, decode[FilesRequest](false))

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_read",
		Description: "Read one file of the current project",
		InputSchema: kit.InputSchema(map[string]any{
			"name": str("File name, e.g. index.html"),
		}, []string{"name"}),
	}, ep.Read, decode[ReadRequest](false))

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_save",
		Description: "Overwrite one file of the current project, or add a new file at the project root",
		InputSchema: kit.InputSchema(map[string]any{
			"filename": str("File name, e.g. style.css"),
			"content":  str("Full new content of the file"),
		}, []string{"filename", "content"}),
	}, ep.Save, decode[EditRequest](true))

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_deploy",
		Description: "Publish the current project to the static website container",
		InputSchema: kit.InputSchema(map[string]any{}, nil),
	}, ep.Deploy, decode[DeployRequest](true))

	kit.RegisterMCPTool(srv, &mcp.Tool{
		Name:        "sitegen_outline",
		Description: "Render an HTML page of the current project as Markdown",
		InputSchema: kit.InputSchema(map[string]any{
			"name": str("HTML file name, e.g. index.html"),
		}, []string{"name"}),
	}, ep.Outline, decode[OutlineRequest](false))
}

// decode unmarshals tool arguments into *T and tags the call with the MCP
// actor. With detach, the call no longer follows the client's cancellation:
// model calls, generations, edits and deployments run to completion once
// started, as they do over HTTP.
func decode[T any](detach bool) func(*mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
	inner := kit.DecodeJSON[T]()
	return func(r *mcp.CallToolRequest) (*kit.MCPDecodeResult, error) {
		res, err := inner(r)
		if err != nil {
			return nil, err
		}
		res.EnrichCtx = func(ctx context.Context) context.Context {
			if detach {
				ctx = context.WithoutCancel(ctx)
			}
			if kit.GetActor(ctx) == "" {
				ctx = kit.WithActor(ctx, "mcp")
			}
			return ctx
		}
		return res, nil
	}
}
