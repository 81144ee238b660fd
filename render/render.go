// Package render stamps a student's name onto a certificate template page.
package render

import (
	"bytes"
	"fmt"

	"github.com/jung-kurt/gofpdf"
	"go.uber.org/zap"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/fontasset"
	"github.com/aerissecure/certgen/pdftemplate"
)

// FontSize is the point size names are set in.
const FontSize = 23.0

// Placement is where a name lands on its page. X and Y are the start of the
// text baseline, measured from the page's top-left corner.
type Placement struct {
	Variant   pdftemplate.Variant
	TextWidth float64
	X         float64
	Y         float64
}

func (p Placement) String() string {
	return fmt.Sprintf("Page: %d, X: %.2f, Y: %.2f, TextWidth: %.2f", p.Variant.Page+1, p.X, p.Y, p.TextWidth)
}

// CenterX returns the x offset that centers text of width textWidth on a page
// of width pageWidth.
func CenterX(pageWidth, textWidth float64) float64 {
	return (pageWidth - textWidth) / 2
}

// Renderer produces certificates from one template and one font.
type Renderer struct {
	store  *pdftemplate.Store
	font   *fontasset.Font
	logger *zap.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger used for per-certificate debug output.
func WithLogger(l *zap.Logger) Option {
	return func(r *Renderer) {
		if l != nil {
			r.logger = l
		}
	}
}

// New returns a Renderer. Both assets are required.
func New(store *pdftemplate.Store, font *fontasset.Font, opts ...Option) (*Renderer, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: no template", certgen.ErrTemplateLoad)
	}
	if font == nil || len(font.Bytes) == 0 {
		return nil, fmt.Errorf("%w: no font", certgen.ErrFontLoad)
	}
	r := &Renderer{store: store, font: font, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Layout computes where rec's name would be drawn without producing a PDF.
func (r *Renderer) Layout(rec certgen.StudentRecord) (Placement, error) {
	v := r.store.PageFor(rec.Qualified)
	doc, err := r.newPage(v)
	if err != nil {
		return Placement{}, err
	}
	return r.place(doc, v, rec.Name), nil
}

// Render produces the certificate for rec.
func (r *Renderer) Render(rec certgen.StudentRecord) (certgen.RenderedCertificate, error) {
	v := r.store.PageFor(rec.Qualified)
	doc, err := r.newPage(v)
	if err != nil {
		return certgen.RenderedCertificate{}, &certgen.RecordError{Name: rec.Name, Err: err}
	}

	p := r.place(doc, v, rec.Name)
	doc.SetTextColor(0, 0, 0)
	doc.Text(p.X, p.Y, rec.Name)

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return certgen.RenderedCertificate{}, &certgen.RecordError{
			Name: rec.Name,
			Err:  fmt.Errorf("%w: %v", certgen.ErrRender, err),
		}
	}

	r.logger.Debug("rendered certificate",
		zap.String("name", rec.Name),
		zap.Bool("qualified", rec.Qualified),
		zap.Stringer("placement", p),
		zap.Int("bytes", buf.Len()),
	)
	return certgen.RenderedCertificate{
		StudentName: rec.Name,
		Qualified:   rec.Qualified,
		Bytes:       buf.Bytes(),
	}, nil
}

// newPage duplicates the template page and selects the name font on it.
func (r *Renderer) newPage(v pdftemplate.Variant) (*gofpdf.Fpdf, error) {
	doc, err := r.store.NewDocument(v)
	if err != nil {
		return nil, err
	}
	doc.AddUTF8FontFromBytes(r.font.Name, "", r.font.Bytes)
	doc.SetFont(r.font.Name, "", FontSize)
	if err := doc.Error(); err != nil {
		return nil, fmt.Errorf("%w: %v", certgen.ErrFontLoad, err)
	}
	return doc, nil
}

func (r *Renderer) place(doc *gofpdf.Fpdf, v pdftemplate.Variant, name string) Placement {
	w := doc.GetStringWidth(name)
	return Placement{
		Variant:   v,
		TextWidth: w,
		X:         CenterX(v.Width, w),
		Y:         v.BaselineY,
	}
}
