package xlsx

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// buildWorkbook writes rows into the first sheet starting at A1. Nil values
// are left as absent cells.
func buildWorkbook(t *testing.T, rows [][]any, merges ...[2]string) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for r, row := range rows {
		for c, v := range row {
			if v == nil {
				continue
			}
			ref, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", ref, v))
		}
	}
	for _, m := range merges {
		require.NoError(t, f.MergeCell("Sheet1", m[0], m[1]))
	}
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

func TestParseWorkbookModel(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Level 1 Results"},
		{" Name ", "Qualified for Level 2"},
		{"Alice Smith", "Qualified"},
		{"Bob Lee", nil, nil, "note"},
	}, [2]string{"A1", "C1"})

	model, err := ParseWorkbookModel(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	require.Len(t, model.Sheets, 1)

	sheet, ok := model.First()
	require.True(t, ok)
	assert.Equal(t, "Sheet1", sheet.Name)
	assert.Equal(t, 4, sheet.ColCount)
	require.Len(t, sheet.Rows, 4)

	title, ok := sheet.RowAt(0)
	require.True(t, ok)
	require.NotNil(t, title.Cells[0])
	assert.Equal(t, 3, title.Cells[0].ColSpan)
	assert.Equal(t, "A1", title.Cells[0].Ref)

	header, ok := sheet.RowAt(1)
	require.True(t, ok)
	assert.Equal(t, 2, header.Number)
	assert.Equal(t, " Name ", header.Value(0))
	assert.Equal(t, "Qualified for Level 2", header.Value(1))

	bob, ok := sheet.RowAt(3)
	require.True(t, ok)
	assert.Len(t, bob.Cells, 4)
	assert.Equal(t, "Bob Lee", bob.Value(0))
	assert.Equal(t, "", bob.Value(1))
	assert.Equal(t, "note", bob.Value(3))
	assert.Equal(t, "", bob.Value(99))
	assert.False(t, bob.IsBlank())

	_, ok = sheet.RowAt(10)
	assert.False(t, ok)
}

// rewritePart returns a copy of the package in data with one string replaced
// inside the named part.
func rewritePart(t *testing.T, data []byte, part, old, repl string) []byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		if f.Name == part {
			require.Contains(t, string(body), old)
			body = []byte(strings.ReplaceAll(string(body), old, repl))
		}
		w, err := zw.Create(f.Name)
		require.NoError(t, err)
		_, err = w.Write(body)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseWorkbookModelTargetStyles(t *testing.T) {
	// excelize points at the shared strings with a package-absolute target
	absolute := buildWorkbook(t, [][]any{
		{"Level 1 Results"},
		{"Name", "Qualified for Level 2"},
		{"Alice Smith", "Qualified"},
	})
	relative := rewritePart(t, absolute, "xl/_rels/workbook.xml.rels",
		`Target="/xl/sharedStrings.xml"`, `Target="sharedStrings.xml"`)

	for name, data := range map[string][]byte{"absolute": absolute, "relative": relative} {
		t.Run(name, func(t *testing.T) {
			model, err := ParseWorkbookModel(bytes.NewReader(data), int64(len(data)))
			require.NoError(t, err)
			sheet, ok := model.First()
			require.True(t, ok)

			header, ok := sheet.RowAt(1)
			require.True(t, ok)
			assert.Equal(t, "Name", header.Value(0))
			assert.Equal(t, "Qualified for Level 2", header.Value(1))

			alice, ok := sheet.RowAt(2)
			require.True(t, ok)
			assert.Equal(t, "Alice Smith", alice.Value(0))
			assert.Equal(t, "Qualified", alice.Value(1))
		})
	}
}

func TestRelativizeRels(t *testing.T) {
	rels := `<Relationships xmlns="x">` +
		`<Relationship Id="rId1" Type="t" Target="/xl/sharedStrings.xml"/>` +
		`<Relationship Id="rId2" Type="t" Target='/xl/worksheets/sheet1.xml'/>` +
		`<Relationship Id="rId3" Type="t" Target="styles.xml"/>` +
		`<Relationship Id="rId4" Type="t" Target="/local/doc.html" TargetMode="External"/>` +
		`</Relationships>`

	out, changed := relativizeRels("xl/_rels/workbook.xml.rels", []byte(rels))
	require.True(t, changed)
	assert.Contains(t, string(out), `Target="sharedStrings.xml"`)
	assert.Contains(t, string(out), `Target='worksheets/sheet1.xml'`)
	assert.Contains(t, string(out), `Target="styles.xml"`)
	assert.Contains(t, string(out), `Target="/local/doc.html"`)

	_, changed = relativizeRels("xl/_rels/workbook.xml.rels", []byte(`<Relationship Target="styles.xml"/>`))
	assert.False(t, changed)
}

func TestRelativeTarget(t *testing.T) {
	cases := []struct{ rels, target, want string }{
		{"_rels/.rels", "/xl/workbook.xml", "xl/workbook.xml"},
		{"xl/_rels/workbook.xml.rels", "/xl/sharedStrings.xml", "sharedStrings.xml"},
		{"xl/worksheets/_rels/sheet1.xml.rels", "/xl/drawings/drawing1.xml", "../../xl/drawings/drawing1.xml"},
		{"xl/worksheets/_rels/sheet1.xml.rels", "/xl/worksheets/../comments1.xml", "../../xl/comments1.xml"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, relativeTarget(relsBase(c.rels), c.target), c.rels+" "+c.target)
	}
}

func TestParseWorkbookModelRejectsGarbage(t *testing.T) {
	data := []byte("definitely not a zip container")
	_, err := ParseWorkbookModel(bytes.NewReader(data), int64(len(data)))
	assert.Error(t, err)
}

func TestParseBytesDispatch(t *testing.T) {
	data := buildWorkbook(t, [][]any{{"a"}, {"b"}})

	model, err := ParseBytes("roster.XLSX", data)
	require.NoError(t, err)
	assert.Len(t, model.Sheets, 1)

	_, err = ParseBytes("roster.csv", data)
	assert.True(t, errors.Is(err, ErrUnsupportedFormat))
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, FormatXLSX, FormatOf("a.xlsx"))
	assert.Equal(t, FormatXLSX, FormatOf("a.xlsm"))
	assert.Equal(t, FormatXLS, FormatOf("/tmp/a.XLS"))
	assert.Equal(t, FormatUnknown, FormatOf("a.pdf"))
	assert.Equal(t, "xls", FormatXLS.String())
}

func TestRenderSheetHTML(t *testing.T) {
	data := buildWorkbook(t, [][]any{
		{"Title row"},
		{"Name", "Qualified for Level 2"},
		{"<Alice>", "Qualified"},
		{"Bob", ""},
		{"Carol", "Qualified"},
	})
	model, err := ParseBytes("r.xlsx", data)
	require.NoError(t, err)
	sheet, _ := model.First()

	out := RenderSheetHTML(sheet, PreviewOptions{
		HeaderRow: 1,
		MaxRows:   2,
		RowClass: func(r Row) string {
			if r.Value(1) == "Qualified" {
				return "qualified"
			}
			return ""
		},
	})

	assert.NotContains(t, out, "Title row")
	assert.Contains(t, out, "<th>Name</th>")
	assert.Contains(t, out, "&lt;Alice&gt;")
	assert.Contains(t, out, `<tr class="qualified">`)
	assert.Contains(t, out, "Bob")
	assert.NotContains(t, out, "Carol")
	assert.Equal(t, 1, strings.Count(out, `class="qualified"`))
}
