// Package xlsx reads Excel workbooks (.xlsx through unioffice, legacy .xls
// through extrame/xls) into a small value-only intermediate representation.
package xlsx

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrUnsupportedFormat is returned for file names that are not Excel workbooks.
var ErrUnsupportedFormat = errors.New("unsupported workbook format")

// Format identifies the container format of a workbook.
type Format int

const (
	FormatUnknown Format = iota
	FormatXLSX
	FormatXLS
)

// FormatOf guesses the format from a file name.
func FormatOf(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".xls":
		return FormatXLS
	}
	return FormatUnknown
}

func (f Format) String() string {
	switch f {
	case FormatXLSX:
		return "xlsx"
	case FormatXLS:
		return "xls"
	}
	return "unknown"
}

// ParseFile opens path and parses it according to its extension.
func ParseFile(path string) (WorkbookModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return WorkbookModel{}, err
	}
	return ParseBytes(filepath.Base(path), data)
}

// ParseBytes parses an in-memory workbook; name is only used to pick the format.
func ParseBytes(name string, data []byte) (WorkbookModel, error) {
	r := bytes.NewReader(data)
	switch FormatOf(name) {
	case FormatXLSX:
		return ParseWorkbookModel(r, int64(len(data)))
	case FormatXLS:
		return ParseLegacyWorkbookModel(r)
	}
	return WorkbookModel{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}
