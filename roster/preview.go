package roster

import (
	"fmt"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/xlsx"
)

// PreviewHTML renders the roster sheet from the header row down, marking
// qualified rows, so an operator can check the upload before generating.
func PreviewHTML(model xlsx.WorkbookModel, maxRows int) (string, error) {
	sheet, ok := model.First()
	if !ok {
		return "", fmt.Errorf("%w: workbook has no sheets", certgen.ErrMalformedInput)
	}
	cols, err := FindColumns(sheet)
	if err != nil {
		return "", err
	}
	return xlsx.RenderSheetHTML(sheet, xlsx.PreviewOptions{
		HeaderRow: HeaderRow,
		MaxRows:   maxRows,
		RowClass: func(r xlsx.Row) string {
			if certgen.IsQualified(r.Value(cols.Status)) {
				return "qualified"
			}
			return ""
		},
	}), nil
}
