// Package certgentest builds in-memory fixtures (rosters, templates, fonts)
// for tests of the certificate pipeline.
package certgentest

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/image/font/gofont/goregular"
)

// Page sizes of the default template, in points.
var (
	NotQualifiedSize = gofpdf.SizeType{Wd: 800, Ht: 600}
	QualifiedSize    = gofpdf.SizeType{Wd: 700, Ht: 500}
)

// Font returns a TrueType font usable in place of the certificate font.
func Font() []byte {
	return goregular.TTF
}

// Template builds a PDF with one page per size, each carrying a label so
// pages can be told apart. With no sizes it builds the default two pages.
func Template(t testing.TB, sizes ...gofpdf.SizeType) []byte {
	t.Helper()
	if len(sizes) == 0 {
		sizes = []gofpdf.SizeType{NotQualifiedSize, QualifiedSize}
	}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: sizes[0]})
	pdf.SetAutoPageBreak(false, 0)
	pdf.SetFont("Helvetica", "B", 20)
	for i, size := range sizes {
		pdf.AddPageFormat("P", size)
		pdf.SetDrawColor(120, 90, 10)
		pdf.Rect(10, 10, size.Wd-20, size.Ht-20, "D")
		pdf.Text(40, 60, fmt.Sprintf("Certificate page %d", i+1))
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

// Roster writes rows into the first sheet of a new workbook starting at A1.
// Nil values are left as absent cells.
func Roster(t testing.TB, rows [][]any) []byte {
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
	var buf bytes.Buffer
	require.NoError(t, f.Write(&buf))
	return buf.Bytes()
}

// Students wraps name/status pairs in a roster with a title row and the
// expected header row.
func Students(t testing.TB, pairs ...[2]string) []byte {
	t.Helper()
	rows := [][]any{
		{"Level 1 Results"},
		{"Name", "Qualified for Level 2"},
	}
	for _, p := range pairs {
		rows = append(rows, []any{p[0], p[1]})
	}
	return Roster(t, rows)
}

// WriteFile stores data under dir and returns the full path.
func WriteFile(t testing.TB, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

// Assets writes a default template and font into dir and returns their paths.
func Assets(t testing.TB, dir string) (templatePath, fontPath string) {
	t.Helper()
	templatePath = WriteFile(t, dir, "template.pdf", Template(t))
	fontPath = WriteFile(t, dir, filepath.Join("fonts", "font.ttf"), Font())
	return templatePath, fontPath
}

// Streams returns the body of every stream object in a PDF, inflated when
// it is Flate encoded and as stored otherwise.
func Streams(pdf []byte) [][]byte {
	var out [][]byte
	rest := pdf
	for {
		i := bytes.Index(rest, []byte("stream\n"))
		if i < 0 {
			return out
		}
		if i >= 3 && string(rest[i-3:i]) == "end" {
			rest = rest[i+len("stream\n"):]
			continue
		}
		body := rest[i+len("stream\n"):]
		if end := bytes.Index(body, []byte("endstream")); end >= 0 {
			body = body[:end]
		}
		if zr, err := zlib.NewReader(bytes.NewReader(body)); err == nil {
			if inflated, err := io.ReadAll(zr); err == nil {
				body = inflated
			}
		}
		out = append(out, body)
		rest = rest[i+len("stream\n"):]
	}
}

var (
	templateDraw = regexp.MustCompile(`q (\S+) 0 0 (\S+) (\S+) (\S+) cm /GOFPDITPL\d+ Do`)
	formBBox     = regexp.MustCompile(`/BBox \[(\S+) (\S+) (\S+) (\S+)\]`)
)

// TemplateTransform returns the scale and translation (sx, sy, tx, ty) a
// page applies when it draws its imported template page.
func TemplateTransform(t testing.TB, pdf []byte) []float64 {
	t.Helper()
	for _, s := range Streams(pdf) {
		if m := templateDraw.FindSubmatch(s); m != nil {
			return floats(t, m[1:])
		}
	}
	t.Fatal("no imported template is drawn")
	return nil
}

// TemplateBBox returns the bounding box of the imported template form.
func TemplateBBox(t testing.TB, pdf []byte) []float64 {
	t.Helper()
	m := formBBox.FindSubmatch(pdf)
	require.NotNil(t, m, "no form XObject")
	return floats(t, m[1:])
}

func floats(t testing.TB, raw [][]byte) []float64 {
	t.Helper()
	out := make([]float64, len(raw))
	for i, b := range raw {
		f, err := strconv.ParseFloat(string(b), 64)
		require.NoError(t, err)
		out[i] = f
	}
	return out
}
