package pdf

import (
	"regexp"
	"strings"
)

var cellGapRe = regexp.MustCompile(`\s{3,}`)

// Table is a detected tabular region rendered as a header line, a dash
// rule, then pipe-separated data rows.
type Table struct {
	Page    int
	Content string
}

// DetectTables scans raw page lines for runs of two or more consecutive
// lines that split into multiple cells on wide gaps. Each run becomes one
// table; single multi-cell lines are left to the body pass.
func DetectTables(pages []PageText) []Table {
	var tables []Table
	for _, pg := range pages {
		var rows [][]string
		flush := func() {
			if len(rows) >= 2 {
				tables = append(tables, Table{Page: pg.Number, Content: renderRows(rows)})
			}
			rows = nil
		}
		for _, raw := range pg.Lines {
			cells := splitCells(raw)
			if len(cells) >= 2 {
				rows = append(rows, cells)
				continue
			}
			flush()
		}
		flush()
	}
	return tables
}

func splitCells(line string) []string {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return nil
	}
	parts := cellGapRe.Split(trimmed, -1)
	cells := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			cells = append(cells, p)
		}
	}
	return cells
}

// renderRows treats the first row as the header and rules it off so a
// downstream reader can tell column names from data.
func renderRows(rows [][]string) string {
	var sb strings.Builder
	header := strings.Join(rows[0], " | ")
	sb.WriteString(header)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat("-", len(header)))
	for _, row := range rows[1:] {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(row, " | "))
	}
	return sb.String()
}
