package render

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/certgentest"
	"github.com/aerissecure/certgen/fontasset"
	"github.com/aerissecure/certgen/pdftemplate"
)

func newRenderer(t *testing.T) *Renderer {
	t.Helper()
	r, _ := newRendererWithStore(t)
	return r
}

func newRendererWithStore(t *testing.T) (*Renderer, *pdftemplate.Store) {
	t.Helper()
	store, err := pdftemplate.LoadBytes(certgentest.Template(t))
	require.NoError(t, err)
	font, err := fontasset.Parse(certgentest.Font(), "")
	require.NoError(t, err)
	r, err := New(store, font)
	require.NoError(t, err)
	return r, store
}

func TestCenterX(t *testing.T) {
	cases := []struct{ page, text, want float64 }{
		{800, 200, 300},
		{700, 0, 350},
		{700, 700, 0},
		{595.28, 100.5, 247.39},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, CenterX(c.page, c.text), 1e-9)
	}
}

func TestLayoutScenario(t *testing.T) {
	r := newRenderer(t)

	alice, err := r.Layout(certgen.StudentRecord{Name: "Alice Smith", Qualified: true})
	require.NoError(t, err)
	assert.Equal(t, pdftemplate.PageQualified, alice.Variant.Page)
	assert.Equal(t, 401.0, alice.Y)

	bob, err := r.Layout(certgen.StudentRecord{Name: "Bob Lee"})
	require.NoError(t, err)
	assert.Equal(t, pdftemplate.PageNotQualified, bob.Variant.Page)
	assert.Equal(t, 383.0, bob.Y)
}

func TestLayoutCentersText(t *testing.T) {
	r := newRenderer(t)
	for _, rec := range []certgen.StudentRecord{
		{Name: "A", Qualified: true},
		{Name: "Alice Smith", Qualified: true},
		{Name: "Maximiliana Featherstonehaugh-Wolfeschlegel", Qualified: false},
	} {
		p, err := r.Layout(rec)
		require.NoError(t, err)
		require.Greater(t, p.TextWidth, 0.0)
		require.LessOrEqual(t, p.TextWidth, p.Variant.Width)
		assert.InDelta(t, (p.Variant.Width-p.TextWidth)/2, p.X, 1e-9, rec.Name)
	}

	short, err := r.Layout(certgen.StudentRecord{Name: "Al"})
	require.NoError(t, err)
	long, err := r.Layout(certgen.StudentRecord{Name: "Alexandra"})
	require.NoError(t, err)
	assert.Greater(t, long.TextWidth, short.TextWidth)
	assert.Less(t, long.X, short.X)
}

func TestRenderKeepsTemplateSize(t *testing.T) {
	r, store := newRendererWithStore(t)
	for _, rec := range []certgen.StudentRecord{
		{Name: "Alice Smith", Qualified: true},
		{Name: "Bob Lee", Qualified: false},
	} {
		cert, err := r.Render(rec)
		require.NoError(t, err)
		assert.Equal(t, rec.Name, cert.StudentName)
		assert.Equal(t, rec.Qualified, cert.Qualified)
		require.True(t, bytes.HasPrefix(cert.Bytes, []byte("%PDF-")))

		sizes, err := pdftemplate.PageSizes(cert.Bytes)
		require.NoError(t, err)
		require.Len(t, sizes, 1)
		v := store.PageFor(rec.Qualified)
		assert.Equal(t, pdftemplate.Size{Width: v.Width, Height: v.Height}, sizes[0])
		assert.InDeltaSlice(t, []float64{1, 1, 0, 0}, certgentest.TemplateTransform(t, cert.Bytes), 1e-4, rec.Name)

		p, err := r.Layout(rec)
		require.NoError(t, err)
		// PDF space puts the origin at the bottom-left corner
		td := []byte(fmt.Sprintf("BT %.2f %.2f Td", p.X, v.Height-p.Y))
		found := false
		for _, stream := range certgentest.Streams(cert.Bytes) {
			found = found || bytes.Contains(stream, td)
		}
		assert.True(t, found, "%s: no %q", rec.Name, td)
	}
}

func TestRenderUnicodeName(t *testing.T) {
	r := newRenderer(t)
	cert, err := r.Render(certgen.StudentRecord{Name: "Zoë Ångström", Qualified: true})
	require.NoError(t, err)
	assert.NotEmpty(t, cert.Bytes)
}

func TestNewRequiresAssets(t *testing.T) {
	store, err := pdftemplate.LoadBytes(certgentest.Template(t))
	require.NoError(t, err)

	_, err = New(store, nil)
	assert.True(t, errors.Is(err, certgen.ErrFontLoad))

	_, err = New(nil, &fontasset.Font{Bytes: certgentest.Font()})
	assert.True(t, errors.Is(err, certgen.ErrTemplateLoad))
}
