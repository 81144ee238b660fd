package xlsx

import (
	"fmt"
	"io"

	"github.com/extrame/xls"
	"github.com/unidoc/unioffice/spreadsheet/reference"
)

// ParseLegacyWorkbookModel reads a BIFF (.xls) workbook into the same
// intermediate representation as ParseWorkbookModel. Merges are not
// reported by the legacy reader, so every cell has a span of 1.
func ParseLegacyWorkbookModel(r io.ReadSeeker) (model WorkbookModel, err error) {
	// the BIFF reader panics on some truncated streams
	defer func() {
		if p := recover(); p != nil {
			model, err = WorkbookModel{}, fmt.Errorf("read xls: %v", p)
		}
	}()

	wb, err := xls.OpenReader(r, "utf-8")
	if err != nil {
		return WorkbookModel{}, err
	}

	for i := 0; i < wb.NumSheets(); i++ {
		ws := wb.GetSheet(i)
		if ws == nil {
			continue
		}
		s := Sheet{Name: ws.Name}
		for ri := 0; ri <= int(ws.MaxRow); ri++ {
			row := ws.Row(ri)
			if row == nil {
				continue
			}
			rr := Row{Number: ri + 1}
			last := row.LastCol()
			if last > 0 {
				rr.Cells = make([]*Cell, last)
			}
			for ci := row.FirstCol(); ci < last; ci++ {
				v := row.Col(ci)
				if v == "" {
					continue
				}
				rr.Cells[ci] = &Cell{
					Ref:     fmt.Sprintf("%s%d", reference.IndexToColumn(uint32(ci)), rr.Number),
					Col:     ci,
					Value:   v,
					ColSpan: 1,
					RowSpan: 1,
				}
			}
			if last > s.ColCount {
				s.ColCount = last
			}
			s.Rows = append(s.Rows, rr)
		}
		s.normalize()
		model.Sheets = append(model.Sheets, s)
	}
	return model, nil
}
