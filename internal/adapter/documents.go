// Package adapter exposes parse results as retrieval documents and serves the
// pipeline as MCP tools.
package adapter

import (
	"strconv"

	"github.com/google/uuid"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

// Document is one retrievable unit: a chunk or a page with flat metadata.
type Document struct {
	ID       string         `json:"id"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

// docID is stable for a given source and key so re-ingesting replaces.
func docID(source, key string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(source+"#"+key)).String()
}

func baseMetadata(res *types.ParseResult, source string) map[string]any {
	m := map[string]any{
		"source":     source,
		"page_count": res.Metadata.PageCount,
	}
	if res.Metadata.Title != "" {
		m["title"] = res.Metadata.Title
	}
	if res.Metadata.Author != "" {
		m["author"] = res.Metadata.Author
	}
	return m
}

// Documents returns one document per chunk of the resolved text.
func Documents(res *types.ParseResult, source string) []Document {
	if res == nil {
		return nil
	}
	docs := make([]Document, 0, len(res.Chunks))
	for _, c := range res.Chunks {
		m := baseMetadata(res, source)
		m["chunk_index"] = c.Index
		m["offset"] = c.Offset
		m["length"] = c.Length
		docs = append(docs, Document{
			ID:       docID(source, "chunk-"+strconv.Itoa(c.Index)),
			Content:  c.Content,
			Metadata: m,
		})
	}
	return docs
}

// PageDocuments returns one document per page; blank pages are skipped.
func PageDocuments(res *types.ParseResult, source string) []Document {
	if res == nil {
		return nil
	}
	docs := make([]Document, 0, len(res.Pages))
	for _, p := range res.Pages {
		if p.ResolvedText == "" {
			continue
		}
		m := baseMetadata(res, source)
		m["page"] = p.Index
		m["ocr_used"] = p.OCRUsed
		m["quality"] = p.Quality
		docs = append(docs, Document{
			ID:       docID(source, "page-"+strconv.Itoa(p.Index)),
			Content:  p.ResolvedText,
			Metadata: m,
		})
	}
	return docs
}
