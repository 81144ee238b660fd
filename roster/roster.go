// Package roster turns an uploaded results workbook into student records.
//
// The workbook's first physical row is a free-form title; the real header is
// the second row (index 1). Header cells are matched after trimming, and only
// the first worksheet is read.
package roster

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/xlsx"
)

const (
	// HeaderRow is the 0-based physical index of the header row.
	HeaderRow = 1
	// NameColumn holds the student's full name.
	NameColumn = "Name"
	// StatusColumn holds the outcome; see certgen.QualifiedStatus.
	StatusColumn = "Qualified for Level 2"
)

// Columns are the 0-based indexes of the required columns within a sheet.
type Columns struct {
	Name   int
	Status int
}

// Read parses an .xlsx roster.
func Read(r io.ReaderAt, size int64) ([]certgen.StudentRecord, error) {
	model, err := xlsx.ParseWorkbookModel(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certgen.ErrMalformedInput, err)
	}
	return FromModel(model)
}

// ReadLegacy parses a legacy .xls roster.
func ReadLegacy(r io.ReadSeeker) ([]certgen.StudentRecord, error) {
	model, err := xlsx.ParseLegacyWorkbookModel(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certgen.ErrMalformedInput, err)
	}
	return FromModel(model)
}

// ReadBytes parses an uploaded roster, choosing the reader from name's extension.
func ReadBytes(name string, data []byte) ([]certgen.StudentRecord, error) {
	switch xlsx.FormatOf(name) {
	case xlsx.FormatXLSX:
		return Read(bytes.NewReader(data), int64(len(data)))
	case xlsx.FormatXLS:
		return ReadLegacy(bytes.NewReader(data))
	}
	return nil, fmt.Errorf("%w: %q is not an Excel workbook", certgen.ErrMalformedInput, filepath.Base(name))
}

// ReadFile parses the roster at path.
func ReadFile(path string) ([]certgen.StudentRecord, error) {
	model, err := xlsx.ParseFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certgen.ErrMalformedInput, err)
	}
	return FromModel(model)
}

// FromModel extracts records from the first sheet of an already parsed workbook.
func FromModel(model xlsx.WorkbookModel) ([]certgen.StudentRecord, error) {
	sheet, ok := model.First()
	if !ok {
		return nil, fmt.Errorf("%w: workbook has no sheets", certgen.ErrMalformedInput)
	}
	cols, err := FindColumns(sheet)
	if err != nil {
		return nil, err
	}

	var records []certgen.StudentRecord
	for _, row := range sheet.Rows {
		if row.Index() <= HeaderRow {
			continue
		}
		rec := certgen.NewStudentRecord(row.Value(cols.Name), row.Value(cols.Status))
		if rec.Name == "" {
			// blank or name-less rows are not students
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// FindColumns locates the required columns in the header row.
func FindColumns(sheet xlsx.Sheet) (Columns, error) {
	header, ok := sheet.RowAt(HeaderRow)
	if !ok {
		return Columns{}, fmt.Errorf("%w: header row %d is empty", certgen.ErrMalformedInput, HeaderRow+1)
	}

	cols := Columns{Name: -1, Status: -1}
	for i := range header.Cells {
		switch strings.TrimSpace(header.Value(i)) {
		case NameColumn:
			if cols.Name < 0 {
				cols.Name = i
			}
		case StatusColumn:
			if cols.Status < 0 {
				cols.Status = i
			}
		}
	}

	var missing []string
	if cols.Name < 0 {
		missing = append(missing, NameColumn)
	}
	if cols.Status < 0 {
		missing = append(missing, StatusColumn)
	}
	if len(missing) > 0 {
		return Columns{}, fmt.Errorf("%w: missing column(s) %q in row %d", certgen.ErrMalformedInput, missing, HeaderRow+1)
	}
	return cols, nil
}

// Summary counts the outcomes in a roster.
type Summary struct {
	Appeared     int
	Qualified    int
	NotQualified int
}

// Summarize counts qualified and not-qualified records.
func Summarize(records []certgen.StudentRecord) Summary {
	s := Summary{Appeared: len(records)}
	for _, r := range records {
		if r.Qualified {
			s.Qualified++
		}
	}
	s.NotQualified = s.Appeared - s.Qualified
	return s
}
