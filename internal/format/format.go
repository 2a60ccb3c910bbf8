package format

import (
	"regexp"
	"strings"
)

const DefaultSeparator = "\n"

var (
	newlineRuns = regexp.MustCompile(`\n+`)
	spaceRuns   = regexp.MustCompile(` +`)
	lineEdges   = regexp.MustCompile(`(?m)^ +| +$`)
)

// Join concatenates page texts in order with exactly one separator between
// consecutive pages.
func Join(pages []string, sep string) string {
	if sep == "" {
		sep = DefaultSeparator
	}
	return strings.Join(pages, sep)
}

// Clean normalises line endings, collapses newline and space runs, strips
// spaces at line edges and trims.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = spaceRuns.ReplaceAllString(s, " ")
	s = lineEdges.ReplaceAllString(s, "")
	s = newlineRuns.ReplaceAllString(s, "\n")
	return strings.TrimSpace(s)
}

// JoinClean cleans every page, drops the ones left empty and joins the rest.
// The separator is inserted verbatim, so it may contain newlines.
func JoinClean(pages []string, sep string) string {
	kept := make([]string, 0, len(pages))
	for _, p := range pages {
		if c := Clean(p); c != "" {
			kept = append(kept, c)
		}
	}
	return Join(kept, sep)
}
