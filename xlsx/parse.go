package xlsx

import (
	"fmt"
	"io"

	"github.com/unidoc/unioffice/spreadsheet"
	"github.com/unidoc/unioffice/spreadsheet/reference"
)

type span struct{ rowSpan, colSpan int }

// ParseWorkbookModel reads an XLSX from r/size and returns the intermediate representation.
func ParseWorkbookModel(r io.ReaderAt, size int64) (WorkbookModel, error) {
	r, size, err := normalizePackage(r, size)
	if err != nil {
		return WorkbookModel{}, err
	}
	wb, err := spreadsheet.Read(r, size)
	if err != nil {
		return WorkbookModel{}, err
	}

	var model WorkbookModel

	for _, sheet := range wb.Sheets() {
		s := Sheet{Name: sheet.Name()}

		// --- process merges ---
		mergeMaster := make(map[[2]int]span)
		skipCells := make(map[[2]int]bool)
		if sheet.X().MergeCells != nil {
			for _, mc := range sheet.X().MergeCells.MergeCell {
				from, to, err := reference.ParseRangeReference(mc.RefAttr)
				if err != nil {
					continue
				}
				fromRow := int(from.RowIdx - 1)
				fromCol := int(from.ColumnIdx)
				toRow := int(to.RowIdx - 1)
				toCol := int(to.ColumnIdx)
				mergeMaster[[2]int{fromRow, fromCol}] = span{toRow - fromRow + 1, toCol - fromCol + 1}

				for r := fromRow; r <= toRow; r++ {
					for c := fromCol; c <= toCol; c++ {
						if r == fromRow && c == fromCol {
							continue
						}
						skipCells[[2]int{r, c}] = true
					}
				}
			}
		}

		// --- build rows ---
		for _, row := range sheet.Rows() {
			rr := Row{
				Number: int(row.RowNumber()),
				Hidden: row.IsHidden(),
			}
			rowIdx := rr.Index()

			for _, cell := range row.Cells() {
				colName, err := cell.Column()
				if err != nil {
					continue
				}
				colIdx := int(reference.ColumnToIndex(colName))
				if skipCells[[2]int{rowIdx, colIdx}] {
					continue
				}

				c := &Cell{
					Ref:     fmt.Sprintf("%s%d", colName, rr.Number),
					Col:     colIdx,
					Value:   cell.GetFormattedValue(),
					ColSpan: 1,
					RowSpan: 1,
				}
				if info, ok := mergeMaster[[2]int{rowIdx, colIdx}]; ok {
					c.RowSpan = info.rowSpan
					c.ColSpan = info.colSpan
				}

				// cells are sparse: a row holding only column D has one cell at index 3
				if colIdx >= len(rr.Cells) {
					grown := make([]*Cell, colIdx+1)
					copy(grown, rr.Cells)
					rr.Cells = grown
				}
				rr.Cells[colIdx] = c
				if colIdx+1 > s.ColCount {
					s.ColCount = colIdx + 1
				}
			}
			s.Rows = append(s.Rows, rr)
		}

		s.normalize()
		model.Sheets = append(model.Sheets, s)
	}

	return model, nil
}
