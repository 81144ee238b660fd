package xlsx

import "fmt"

// Intermediate representation for workbooks.

// Only cell values and positions are kept: enough to find a header row, map
// its columns and read the rows below it, and to render a plain preview.

// Cell is the IR for a single cell (or merged master).
type Cell struct {
	Ref     string // e.g. "B3"
	Col     int    // 0-based column index
	Value   string // already formatted value
	ColSpan int    // 1 if not merged
	RowSpan int    // 1 if not merged
}

func (c Cell) String() string {
	return fmt.Sprintf("Ref: %s, Value: %q, ColSpan: %d, RowSpan: %d", c.Ref, c.Value, c.ColSpan, c.RowSpan)
}

// Row represents one physical row in a sheet.
type Row struct {
	Number int // 1-based, as shown by spreadsheet software
	Hidden bool
	Cells  []*Cell // length == ColCount of parent sheet; may contain nil for blank cells
}

// Index is the 0-based physical row index.
func (r Row) Index() int { return r.Number - 1 }

// Value returns the formatted value at col, or "" for a blank or absent cell.
func (r Row) Value(col int) string {
	if col < 0 || col >= len(r.Cells) || r.Cells[col] == nil {
		return ""
	}
	return r.Cells[col].Value
}

// IsBlank reports whether every cell in the row is empty.
func (r Row) IsBlank() bool {
	for _, c := range r.Cells {
		if c != nil && c.Value != "" {
			return false
		}
	}
	return true
}

func (r Row) String() string {
	return fmt.Sprintf("Number: %d, Hidden: %t, Cells: %d", r.Number, r.Hidden, len(r.Cells))
}

// Sheet is the intermediate representation of a worksheet. Rows that are
// absent from the file are absent here too; Rows is in physical order.
type Sheet struct {
	Name     string
	ColCount int
	Rows     []Row
}

// RowAt returns the row with the given 0-based physical index.
func (s Sheet) RowAt(index int) (Row, bool) {
	for _, r := range s.Rows {
		if r.Index() == index {
			return r, true
		}
	}
	return Row{}, false
}

func (s Sheet) String() string {
	return fmt.Sprintf("Name: %s, ColCount: %d, Rows: %d", s.Name, s.ColCount, len(s.Rows))
}

// WorkbookModel is the top-level IR containing all sheets.
type WorkbookModel struct {
	Sheets []Sheet
}

// First returns the first worksheet, the one a roster is read from.
func (m WorkbookModel) First() (Sheet, bool) {
	if len(m.Sheets) == 0 {
		return Sheet{}, false
	}
	return m.Sheets[0], true
}

// normalize pads every row to the sheet's column count.
func (s *Sheet) normalize() {
	for i := range s.Rows {
		if len(s.Rows[i].Cells) < s.ColCount {
			cells := make([]*Cell, s.ColCount)
			copy(cells, s.Rows[i].Cells)
			s.Rows[i].Cells = cells
		}
	}
}
