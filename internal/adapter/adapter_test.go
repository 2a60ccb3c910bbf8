package adapter

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

var testImpl = &mcp.Implementation{Name: "pdfparse-test", Version: "0.1.0"}

type fakeParser struct {
	res  *types.ParseResult
	err  error
	last types.ParseOptions
}

func (f *fakeParser) Parse(_ context.Context, _ string, o types.ParseOptions) (*types.ParseResult, error) {
	f.last = o
	return f.res, f.err
}

func (f *fakeParser) Preview(context.Context, string, types.ParseOptions) types.PreviewResult {
	return types.PreviewResult{Success: true, TotalPages: 2, NeedsOCR: true, OCRPages: []int{2}}
}

func sampleResult() *types.ParseResult {
	return &types.ParseResult{
		Text: "alpha beta",
		Chunks: []types.Chunk{
			{Index: 0, Offset: 0, Length: 6, Content: "alpha "},
			{Index: 1, Offset: 4, Length: 6, Content: "a beta"},
		},
		NumChunks: 2,
		Metadata:  types.Metadata{Title: "Sample", PageCount: 2},
		Pages: []types.Page{
			{Index: 1, ResolvedText: "alpha"},
			{Index: 2, ResolvedText: ""},
		},
	}
}

func TestDocuments(t *testing.T) {
	docs := Documents(sampleResult(), "s3://bucket/a.pdf")
	if len(docs) != 2 {
		t.Fatalf("docs = %d", len(docs))
	}
	d := docs[1]
	if d.Content != "a beta" || d.Metadata["offset"] != 4 || d.Metadata["title"] != "Sample" || d.Metadata["source"] != "s3://bucket/a.pdf" {
		t.Errorf("doc = %+v", d)
	}
	again := Documents(sampleResult(), "s3://bucket/a.pdf")
	if again[1].ID != d.ID || docs[0].ID == d.ID {
		t.Errorf("ids not stable and distinct: %s %s %s", docs[0].ID, d.ID, again[1].ID)
	}
	if Documents(nil, "x") != nil {
		t.Error("nil result should give no documents")
	}
}

func TestPageDocumentsSkipsBlank(t *testing.T) {
	docs := PageDocuments(sampleResult(), "a.pdf")
	if len(docs) != 1 || docs[0].Metadata["page"] != 1 {
		t.Fatalf("docs = %+v", docs)
	}
}

func mcpSession(t *testing.T, p Parser) *mcp.ClientSession {
	t.Helper()
	srv := mcp.NewServer(testImpl, nil)
	RegisterMCP(srv, p)

	serverT, clientT := mcp.NewInMemoryTransports()
	ctx := context.Background()
	go func() { _ = srv.Run(ctx, serverT) }()

	client := mcp.NewClient(testImpl, nil)
	session, err := client.Connect(ctx, clientT, nil)
	if err != nil {
		t.Fatalf("client connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, s *mcp.ClientSession, name string, args any) *mcp.CallToolResult {
	t.Helper()
	res, err := s.CallTool(context.Background(), &mcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	return res
}

func text(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	tc, ok := res.Content[0].(*mcp.TextContent)
	if !ok {
		t.Fatalf("expected TextContent, got %T", res.Content[0])
	}
	return tc.Text
}

func TestMCPParse(t *testing.T) {
	fp := &fakeParser{res: sampleResult()}
	s := mcpSession(t, fp)

	res := callTool(t, s, "pdf_parse", map[string]any{"path": "a.pdf", "chunkSize": 6, "chunkOverlap": 2, "useOcr": true})
	if res.IsError {
		t.Fatalf("tool error: %s", text(t, res))
	}
	var out types.ParseResult
	if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if out.NumChunks != 2 || out.Metadata.Title != "Sample" {
		t.Errorf("result = %+v", out)
	}
	if fp.last.ChunkSize != 6 || fp.last.ChunkOverlap != 2 || !fp.last.UseOCR {
		t.Errorf("options not forwarded: %+v", fp.last)
	}
}

func TestMCPDocumentsPerPage(t *testing.T) {
	s := mcpSession(t, &fakeParser{res: sampleResult()})
	res := callTool(t, s, "pdf_documents", map[string]any{"path": "a.pdf", "perPage": true})
	var out struct {
		Documents []Document `json:"documents"`
	}
	if err := json.Unmarshal([]byte(text(t, res)), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Documents) != 1 || out.Documents[0].Content != "alpha" {
		t.Errorf("documents = %+v", out.Documents)
	}
}

func TestMCPErrors(t *testing.T) {
	s := mcpSession(t, &fakeParser{err: errors.New("document unreadable: a.pdf")})
	if res := callTool(t, s, "pdf_parse", map[string]any{"path": "a.pdf"}); !res.IsError {
		t.Error("parse failure should be a tool error")
	}
	if res := callTool(t, s, "pdf_parse", map[string]any{}); !res.IsError {
		t.Error("missing path should be a tool error")
	}
}

func TestMCPPreview(t *testing.T) {
	s := mcpSession(t, &fakeParser{})
	var out types.PreviewResult
	if err := json.Unmarshal([]byte(text(t, callTool(t, s, "pdf_preview", map[string]any{"path": "a.pdf"}))), &out); err != nil {
		t.Fatal(err)
	}
	if !out.NeedsOCR || len(out.OCRPages) != 1 {
		t.Errorf("preview = %+v", out)
	}
}
