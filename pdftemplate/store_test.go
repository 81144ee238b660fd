package pdftemplate

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/certgentest"
)

func TestLoadVariants(t *testing.T) {
	dir := t.TempDir()
	path := certgentest.WriteFile(t, dir, "template.pdf", certgentest.Template(t))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2, s.PageCount())

	q := s.PageFor(true)
	assert.Equal(t, Variant{Qualified: true, Page: 1, Width: 700, Height: 500, BaselineY: 401}, q)

	nq := s.PageFor(false)
	assert.Equal(t, Variant{Qualified: false, Page: 0, Width: 800, Height: 600, BaselineY: 383}, nq)
	assert.Contains(t, nq.String(), "Page: 1")
}

func TestLoadExtraPagesAreIgnored(t *testing.T) {
	data := certgentest.Template(t,
		gofpdf.SizeType{Wd: 500, Ht: 400},
		gofpdf.SizeType{Wd: 400, Ht: 300},
		gofpdf.SizeType{Wd: 900, Ht: 900},
	)
	s, err := LoadBytes(data)
	require.NoError(t, err)
	assert.Equal(t, 3, s.PageCount())
	assert.Equal(t, 400.0, s.PageFor(true).Width)
	assert.Equal(t, 500.0, s.PageFor(false).Width)
}

func TestLoadQualifiedPageLargerThanFirst(t *testing.T) {
	_, err := LoadBytes(certgentest.Template(t,
		gofpdf.SizeType{Wd: 400, Ht: 300},
		gofpdf.SizeType{Wd: 400, Ht: 350},
	))
	require.Error(t, err)
	assert.True(t, errors.Is(err, certgen.ErrTemplateLoad))
	assert.Contains(t, err.Error(), "page 2")
}

func TestBoxHolds(t *testing.T) {
	frame := Box{URX: 800, URY: 600}
	assert.True(t, frame.Holds(frame))
	assert.True(t, frame.Holds(Box{URX: 700, URY: 500}))
	assert.False(t, frame.Holds(Box{URX: 801, URY: 600}))
	assert.False(t, frame.Holds(Box{LLX: 10, URX: 700, URY: 500}))
	assert.Equal(t, Size{Width: 790, Height: 600}, Box{LLX: 10, URX: 800, URY: 600}.Size())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, certgen.ErrTemplateNotFound))
	assert.False(t, errors.Is(err, certgen.ErrTemplateLoad))
}

func TestLoadSinglePage(t *testing.T) {
	_, err := LoadBytes(certgentest.Template(t, gofpdf.SizeType{Wd: 400, Ht: 300}))
	require.Error(t, err)
	assert.True(t, errors.Is(err, certgen.ErrTemplateLoad))
	assert.Contains(t, err.Error(), "found 1")
}

func TestLoadCorrupt(t *testing.T) {
	path := certgentest.WriteFile(t, t.TempDir(), "template.pdf", []byte("%PDF-1.4 truncated"))
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, certgen.ErrTemplateLoad))
}

func TestNewDocumentMatchesVariant(t *testing.T) {
	s, err := LoadBytes(certgentest.Template(t))
	require.NoError(t, err)

	for _, qualified := range []bool{false, true} {
		v := s.PageFor(qualified)
		doc, err := s.NewDocument(v)
		require.NoError(t, err)

		w, h := doc.GetPageSize()
		assert.Equal(t, v.Width, w)
		assert.Equal(t, v.Height, h)

		var buf bytes.Buffer
		require.NoError(t, doc.Output(&buf))
		sizes, err := PageSizes(buf.Bytes())
		require.NoError(t, err)
		require.Len(t, sizes, 1)
		assert.Equal(t, Size{Width: v.Width, Height: v.Height}, sizes[0])
	}
}

func TestNewDocumentDrawsTemplateUnscaled(t *testing.T) {
	s, err := LoadBytes(certgentest.Template(t))
	require.NoError(t, err)

	for _, qualified := range []bool{false, true} {
		v := s.PageFor(qualified)
		doc, err := s.NewDocument(v)
		require.NoError(t, err)
		var buf bytes.Buffer
		require.NoError(t, doc.Output(&buf))
		out := buf.Bytes()

		assert.InDeltaSlice(t, []float64{1, 1, 0, 0}, certgentest.TemplateTransform(t, out), 1e-4, v.String())

		bbox := certgentest.TemplateBBox(t, out)
		assert.GreaterOrEqual(t, bbox[2]-bbox[0], v.Width, v.String())
		assert.GreaterOrEqual(t, bbox[3]-bbox[1], v.Height, v.String())

		label := fmt.Sprintf("Certificate page %d", v.Page+1)
		found := false
		for _, stream := range certgentest.Streams(out) {
			found = found || bytes.Contains(stream, []byte(label))
		}
		assert.True(t, found, "%s missing from output", label)
	}
}

func TestNewDocumentsAreIndependent(t *testing.T) {
	s, err := LoadBytes(certgentest.Template(t))
	require.NoError(t, err)
	v := s.PageFor(true)

	a, err := s.NewDocument(v)
	require.NoError(t, err)
	b, err := s.NewDocument(v)
	require.NoError(t, err)

	a.SetFont("Helvetica", "", 12)
	a.Text(10, 10, "only on a")

	var bufA, bufB bytes.Buffer
	require.NoError(t, a.Output(&bufA))
	require.NoError(t, b.Output(&bufB))
	assert.NotEqual(t, bufA.Len(), bufB.Len())
}

func TestPageSizesGarbage(t *testing.T) {
	_, err := PageSizes([]byte("nope"))
	assert.Error(t, err)
	_, err = PageBoxes([]byte("nope"))
	assert.Error(t, err)
}
