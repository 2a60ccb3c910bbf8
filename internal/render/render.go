// Package render turns extracted tables into HTML fragments for display.
package render

import (
	"fmt"
	"html"
	"regexp"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

var policy = newPolicy()

func newPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("div", "table", "thead", "tbody", "tr", "th", "td", "caption")
	p.AllowAttrs("class").Matching(regexp.MustCompile(`^[a-z0-9 -]*$`)).OnElements("div", "table", "thead", "tr", "th", "td", "caption")
	p.AllowAttrs("data-table-id").Matching(regexp.MustCompile(`^[0-9]+-[0-9]+$`)).OnElements("table")
	return p
}

var (
	positive = map[string]bool{"yes": true, "true": true, "active": true, "enabled": true, "pass": true}
	negative = map[string]bool{"no": true, "false": true, "inactive": true, "disabled": true, "fail": true}
)

func cellClass(cell string) string {
	num := strings.NewReplacer(",", "", "$", "", "%", "").Replace(cell)
	if _, err := strconv.ParseFloat(num, 64); err == nil && num != "" {
		switch {
		case strings.Contains(cell, "$"):
			return "num currency"
		case strings.Contains(cell, "%"):
			return "num percent"
		}
		return "num"
	}
	l := strings.ToLower(cell)
	switch {
	case positive[l]:
		return "positive"
	case negative[l]:
		return "negative"
	case len(cell) > 50:
		return "wrap"
	}
	return "text"
}

// Table renders one table. The first row becomes the header row.
func Table(t types.Table) string {
	if len(t.Rows) == 0 {
		return `<div class="alert">No data available for this table</div>`
	}
	var b strings.Builder
	b.WriteString(`<div class="table-responsive">`)
	fmt.Fprintf(&b, `<table class="table" data-table-id="%s">`, html.EscapeString(t.ID))
	fmt.Fprintf(&b, `<caption>Page %d, table %s (%s)</caption>`, t.Page, html.EscapeString(t.ID), t.Strategy)

	b.WriteString(`<thead><tr>`)
	for i, h := range t.Rows[0] {
		h = strings.TrimSpace(h)
		if h == "" {
			h = "Column " + strconv.Itoa(i+1)
		}
		fmt.Fprintf(&b, `<th>%s</th>`, html.EscapeString(h))
	}
	b.WriteString(`</tr></thead><tbody>`)
	for i, row := range t.Rows[1:] {
		if i%2 == 0 {
			b.WriteString(`<tr class="even">`)
		} else {
			b.WriteString(`<tr>`)
		}
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			fmt.Fprintf(&b, `<td class="%s">%s</td>`, cellClass(cell), html.EscapeString(cell))
		}
		b.WriteString(`</tr>`)
	}
	b.WriteString(`</tbody></table></div>`)
	return policy.Sanitize(b.String())
}

// Tables renders every table, one fragment after another.
func Tables(ts []types.Table) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = Table(t)
	}
	return strings.Join(parts, "\n")
}
