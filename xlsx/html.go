package xlsx

import (
	"fmt"
	"html"
	"strings"
)

// DebugHTML adds data-cell attributes with the source reference to every cell.
var DebugHTML = false

// PreviewOptions controls RenderSheetHTML.
type PreviewOptions struct {
	// HeaderRow is the 0-based physical index of the header row; rows above it
	// are dropped and the row itself is emitted as <th> cells.
	HeaderRow int
	// MaxRows caps the number of data rows emitted; 0 means no cap.
	MaxRows int
	// RowClass, if set, returns an extra CSS class for a data row.
	RowClass func(Row) string
}

// RenderSheetHTML renders a plain preview table for one sheet.
func RenderSheetHTML(s Sheet, opts PreviewOptions) string {
	var builder strings.Builder

	builder.WriteString(`<style>
`)
	builder.WriteString(`.table { border-collapse: collapse; margin-bottom: 2em; }
`)
	builder.WriteString(`.table td, .table th { border: 1px solid #333; padding: 4px 8px; white-space: nowrap; }
`)
	builder.WriteString(`.table tr.qualified td { background-color: #e3f6e3; }
`)
	builder.WriteString(`</style>
`)

	builder.WriteString(fmt.Sprintf(`<div class="sheet" data-name="%s">
`, html.EscapeString(s.Name)))
	builder.WriteString(`<table class="table">
`)

	emitted := 0
	for _, row := range s.Rows {
		idx := row.Index()
		if idx < opts.HeaderRow || row.Hidden {
			continue
		}
		header := idx == opts.HeaderRow
		if !header {
			if row.IsBlank() {
				continue
			}
			if opts.MaxRows > 0 && emitted >= opts.MaxRows {
				break
			}
			emitted++
		}

		class := ""
		if !header && opts.RowClass != nil {
			if c := opts.RowClass(row); c != "" {
				class = fmt.Sprintf(" class=\"%s\"", html.EscapeString(c))
			}
		}
		builder.WriteString(fmt.Sprintf("  <tr%s>\n", class))

		tag := "td"
		if header {
			tag = "th"
		}
		for colIdx := 0; colIdx < len(row.Cells); colIdx++ {
			cell := row.Cells[colIdx]
			if cell == nil {
				builder.WriteString(fmt.Sprintf("    <%s></%s>\n", tag, tag))
				continue
			}
			attr := ""
			if cell.ColSpan > 1 {
				attr += fmt.Sprintf(" colspan=\"%d\"", cell.ColSpan)
			}
			if DebugHTML {
				attr += fmt.Sprintf(" data-cell=\"%s\"", cell.Ref)
			}
			escaped := html.EscapeString(cell.Value)
			escaped = strings.ReplaceAll(escaped, "\n", "<br>")
			builder.WriteString(fmt.Sprintf("    <%s%s>%s</%s>\n", tag, attr, escaped, tag))

			// skip columns covered by this cell's colspan
			if cell.ColSpan > 1 {
				colIdx += cell.ColSpan - 1
			}
		}
		builder.WriteString("  </tr>\n")
	}
	builder.WriteString("</table>\n</div>\n")
	return builder.String()
}
