// Package pdftemplate holds the two-page certificate template and hands out
// fresh single-page documents built from either page.
package pdftemplate

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/jung-kurt/gofpdf"
	fpdi "github.com/jung-kurt/gofpdf/contrib/gofpdi"
	"github.com/phpdave11/gofpdi"

	"github.com/aerissecure/certgen"
)

// PageBox is the page boundary used both to size variants and to import pages.
const PageBox = "/MediaBox"

// Template page indexes (0-based) and the baselines tuned to their artwork.
// Baselines are measured down from the top edge of the page.
const (
	PageNotQualified     = 0
	PageQualified        = 1
	BaselineNotQualified = 383.0
	BaselineQualified    = 401.0
)

// Variant is one of the two certificate layouts.
type Variant struct {
	Qualified bool
	Page      int     // 0-based page index in the template
	Width     float64 // pt
	Height    float64 // pt
	BaselineY float64 // pt from the top edge
}

func (v Variant) String() string {
	return fmt.Sprintf("Page: %d, Qualified: %t, Size: %.2fx%.2f, BaselineY: %.0f", v.Page+1, v.Qualified, v.Width, v.Height, v.BaselineY)
}

// Store is a loaded template. It is read-only after loading; documents made
// from it never share state, so one Store can serve a whole batch.
type Store struct {
	data     []byte
	pages    int
	frame    Box
	variants [2]Variant
}

// Load reads the template at path.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", certgen.ErrTemplateNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", certgen.ErrTemplateLoad, err)
	}
	s, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// LoadBytes parses an in-memory template. It must have at least two pages,
// and both certificate pages must share the first page's origin and fit
// inside its box: gofpdi frames every imported page with the first page's
// box, so a larger page would be clipped.
func LoadBytes(data []byte) (*Store, error) {
	boxes, err := PageBoxes(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certgen.ErrTemplateLoad, err)
	}
	if len(boxes) < 2 {
		return nil, fmt.Errorf("%w: need 2 pages, found %d", certgen.ErrTemplateLoad, len(boxes))
	}

	s := &Store{data: data, pages: len(boxes), frame: boxes[0]}
	for i, baseline := range [2]float64{BaselineNotQualified, BaselineQualified} {
		if !s.frame.Holds(boxes[i]) {
			return nil, fmt.Errorf("%w: page %d %s does not fit page 1 %s", certgen.ErrTemplateLoad, i+1, boxes[i], s.frame)
		}
		s.variants[i] = Variant{
			Qualified: i == PageQualified,
			Page:      i,
			Width:     boxes[i].Width(),
			Height:    boxes[i].Height(),
			BaselineY: baseline,
		}
	}
	return s, nil
}

// Size is a page size in points.
type Size struct {
	Width, Height float64
}

// Box is a page boundary in PDF user space.
type Box struct {
	LLX, LLY, URX, URY float64
}

func (b Box) Width() float64  { return b.URX - b.LLX }
func (b Box) Height() float64 { return b.URY - b.LLY }
func (b Box) Size() Size      { return Size{Width: b.Width(), Height: b.Height()} }

// Holds reports whether o starts at b's origin and lies entirely inside b.
func (b Box) Holds(o Box) bool {
	return o.LLX == b.LLX && o.LLY == b.LLY && o.URX <= b.URX && o.URY <= b.URY
}

func (b Box) String() string {
	return fmt.Sprintf("[%.2f %.2f %.2f %.2f]", b.LLX, b.LLY, b.URX, b.URY)
}

// PageBoxes reports the PageBox of every page of a PDF, in page order.
// The importer panics on malformed input; that is returned as an error.
func PageBoxes(data []byte) (boxes []Box, err error) {
	defer func() {
		if p := recover(); p != nil {
			boxes, err = nil, fmt.Errorf("%v", p)
		}
	}()
	imp := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(data))
	imp.SetSourceStream(&rs)

	n := imp.GetNumPages()
	all := imp.GetPageSizes()
	for page := 1; page <= n; page++ {
		box, ok := all[page][PageBox]
		if !ok || box["w"] <= 0 || box["h"] <= 0 {
			return nil, fmt.Errorf("page %d has no usable %s", page, PageBox)
		}
		boxes = append(boxes, Box{LLX: box["llx"], LLY: box["lly"], URX: box["urx"], URY: box["ury"]})
	}
	return boxes, nil
}

// PageSizes reports the PageBox size of every page of a PDF, in page order.
func PageSizes(data []byte) ([]Size, error) {
	boxes, err := PageBoxes(data)
	if err != nil {
		return nil, err
	}
	sizes := make([]Size, len(boxes))
	for i, b := range boxes {
		sizes[i] = b.Size()
	}
	return sizes, nil
}

// PageCount is the number of pages in the template.
func (s *Store) PageCount() int { return s.pages }

// PageFor selects the layout for an outcome: page 2 when qualified, else page 1.
func (s *Store) PageFor(qualified bool) Variant {
	if qualified {
		return s.variants[PageQualified]
	}
	return s.variants[PageNotQualified]
}

// NewDocument returns a new single-page document the size of v with the
// template page drawn over the whole page. Each call parses the template
// independently, so the result is exclusively owned by the caller.
func (s *Store) NewDocument(v Variant) (pdf *gofpdf.Fpdf, err error) {
	defer func() {
		if p := recover(); p != nil {
			pdf, err = nil, fmt.Errorf("%w: import page %d: %v", certgen.ErrTemplateLoad, v.Page+1, p)
		}
	}()

	size := gofpdf.SizeType{Wd: v.Width, Ht: v.Height}
	pdf = gofpdf.NewCustom(&gofpdf.InitType{OrientationStr: "P", UnitStr: "pt", Size: size})
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	imp := fpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(s.data))
	tpl := imp.ImportPageFromStream(pdf, &rs, v.Page+1, PageBox)
	// The imported form is framed by page 1's box whatever page it holds.
	// Drawing it at that size with its bottom edge on the page's bottom edge
	// yields an identity transform, so the artwork keeps its own coordinates.
	fw, fh := s.frame.Width(), s.frame.Height()
	imp.UseImportedTemplate(pdf, tpl, 0, v.Height-fh, fw, fh)

	if err := pdf.Error(); err != nil {
		return nil, fmt.Errorf("%w: import page %d: %v", certgen.ErrTemplateLoad, v.Page+1, err)
	}
	return pdf, nil
}
