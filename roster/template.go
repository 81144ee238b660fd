package roster

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/aerissecure/certgen"
)

// TemplateTitle is written into the title row of a blank roster.
const TemplateTitle = "Level 1 Results"

// WriteTemplate writes a blank roster workbook: a title row, then the header
// row with the required columns. It is the layout Read expects.
func WriteTemplate(w io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := f.SetCellValue(sheet, "A1", TemplateTitle); err != nil {
		return fmt.Errorf("write title: %w", err)
	}
	if err := f.MergeCell(sheet, "A1", "B1"); err != nil {
		return fmt.Errorf("merge title: %w", err)
	}
	header := []interface{}{NameColumn, StatusColumn}
	if err := f.SetSheetRow(sheet, "A2", &header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", "B", 28); err != nil {
		return fmt.Errorf("set widths: %w", err)
	}

	// restrict the status column to the two meaningful values
	dv := excelize.NewDataValidation(true)
	dv.Sqref = "B3:B1000"
	if err := dv.SetDropList([]string{certgen.QualifiedStatus, "Not " + certgen.QualifiedStatus}); err != nil {
		return fmt.Errorf("status validation: %w", err)
	}
	if err := f.AddDataValidation(sheet, dv); err != nil {
		return fmt.Errorf("status validation: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write roster template: %w", err)
	}
	return nil
}
