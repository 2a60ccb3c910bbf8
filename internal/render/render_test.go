package render

import (
	"strings"
	"testing"

	"github.com/toricodesthings/pdf-parse-service/internal/types"
)

func TestCellClass(t *testing.T) {
	cases := map[string]string{
		"1,200":    "num",
		"$4.99":    "num currency",
		"12%":      "num percent",
		"Yes":      "positive",
		"disabled": "negative",
		"apple":    "text",
		"":         "text",
	}
	cases[strings.Repeat("long ", 12)] = "wrap"
	for in, want := range cases {
		if got := cellClass(in); got != want {
			t.Errorf("cellClass(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestTableEscapes(t *testing.T) {
	out := Table(types.Table{
		ID:       "1-1",
		Page:     1,
		Strategy: types.Lattice,
		Rows:     [][]string{{"Item", ""}, {"<script>alert(1)</script>", "$3"}},
	})
	if strings.Contains(out, "<script>") {
		t.Fatalf("unescaped markup in %s", out)
	}
	for _, want := range []string{`data-table-id="1-1"`, "<th>Column 2</th>", `<td class="num currency">$3</td>`, "&lt;script&gt;"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestTableEmpty(t *testing.T) {
	if out := Table(types.Table{ID: "2-1"}); !strings.Contains(out, "No data") {
		t.Errorf("out = %s", out)
	}
}
