package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// Parser is implemented by *pipeline.Pipeline.
type Parser interface {
	Parse(ctx context.Context, path string, o types.ParseOptions) (*types.ParseResult, error)
	Preview(ctx context.Context, path string, o types.ParseOptions) types.PreviewResult
}

// RegisterMCP installs the pdf_parse, pdf_documents and pdf_preview tools.
func RegisterMCP(srv *mcp.Server, p Parser) {
	registerParseTool(srv, p)
	registerDocumentsTool(srv, p)
	registerPreviewTool(srv, p)
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func optionProperties() map[string]any {
	return map[string]any{
		"path":          map[string]any{"type": "string", "description": "Path of the PDF file"},
		"chunkSize":     map[string]any{"type": "integer", "description": "Characters per chunk (default 1000)"},
		"chunkOverlap":  map[string]any{"type": "integer", "description": "Characters shared by adjacent chunks (default 200)"},
		"useOcr":        map[string]any{"type": "boolean", "description": "OCR pages without a usable text layer"},
		"forceOcr":      map[string]any{"type": "boolean", "description": "OCR every page"},
		"extractTables": map[string]any{"type": "boolean", "description": "Detect tables"},
		"tableFlavour":  map[string]any{"type": "string", "enum": []string{"lattice", "stream", "both"}},
		"pages":         map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
	}
}

type toolReq struct {
	Path string `json:"path"`
	types.ParseOptions
	PerPage bool `json:"perPage"`
}

// registerTool decodes arguments into toolReq, runs fn and wraps the JSON
// encoded response, reporting every failure as a tool error.
func registerTool(srv *mcp.Server, tool *mcp.Tool, fn func(ctx context.Context, r *toolReq) (any, error)) {
	srv.AddTool(tool, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var r toolReq
		if len(req.Params.Arguments) > 0 {
			if err := json.Unmarshal(req.Params.Arguments, &r); err != nil {
				var res mcp.CallToolResult
				res.SetError(fmt.Errorf("invalid arguments: %w", err))
				return &res, nil
			}
		}
		if r.Path == "" {
			var res mcp.CallToolResult
			res.SetError(errors.New("invalid arguments: path is required"))
			return &res, nil
		}

		resp, err := fn(ctx, &r)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	})
}

func registerParseTool(srv *mcp.Server, p Parser) {
	props := optionProperties()
	props["metadataOnly"] = map[string]any{"type": "boolean", "description": "Return document metadata only"}
	tool := &mcp.Tool{
		Name:        "pdf_parse",
		Description: "Extract text, chunks, metadata and optionally tables from a PDF, with OCR fallback for scanned pages.",
		InputSchema: inputSchema(props, []string{"path"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *toolReq) (any, error) {
		return p.Parse(ctx, r.Path, r.ParseOptions)
	})
}

func registerDocumentsTool(srv *mcp.Server, p Parser) {
	props := optionProperties()
	props["perPage"] = map[string]any{"type": "boolean", "description": "One document per page instead of per chunk"}
	tool := &mcp.Tool{
		Name:        "pdf_documents",
		Description: "Parse a PDF into retrieval documents (content plus source, chunk and page metadata).",
		InputSchema: inputSchema(props, []string{"path"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *toolReq) (any, error) {
		res, err := p.Parse(ctx, r.Path, r.ParseOptions)
		if err != nil {
			return nil, err
		}
		docs := Documents(res, r.Path)
		if r.PerPage {
			docs = PageDocuments(res, r.Path)
		}
		return map[string]any{"documents": docs, "warnings": res.Warnings}, nil
	})
}

func registerPreviewTool(srv *mcp.Server, p Parser) {
	tool := &mcp.Tool{
		Name:        "pdf_preview",
		Description: "Report which pages of a PDF lack a usable text layer and would need OCR.",
		InputSchema: inputSchema(map[string]any{
			"path":  map[string]any{"type": "string", "description": "Path of the PDF file"},
			"pages": map[string]any{"type": "array", "items": map[string]any{"type": "integer"}},
		}, []string{"path"}),
	}
	registerTool(srv, tool, func(ctx context.Context, r *toolReq) (any, error) {
		return p.Preview(ctx, r.Path, r.ParseOptions), nil
	})
}
