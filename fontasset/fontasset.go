// Package fontasset loads the TrueType font used to stamp names.
package fontasset

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/image/font/sfnt"

	"github.com/aerissecure/certgen"
)

// DefaultName is the logical name the certificate font is registered under.
const DefaultName = "DancingScript"

// Font is a parsed, validated font file.
type Font struct {
	Name   string // logical name used when registering with a PDF document
	Family string // family name from the font's name table, if present
	Bytes  []byte
	glyphs int
}

// Load reads and validates the font at path.
func Load(path, name string) (*Font, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s does not exist", certgen.ErrFontLoad, path)
		}
		return nil, fmt.Errorf("%w: %v", certgen.ErrFontLoad, err)
	}
	return Parse(data, name)
}

// Parse validates an in-memory TrueType font.
func Parse(data []byte, name string) (*Font, error) {
	if name == "" {
		name = DefaultName
	}
	f, err := sfnt.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", certgen.ErrFontLoad, err)
	}
	if f.NumGlyphs() == 0 {
		return nil, fmt.Errorf("%w: font has no glyphs", certgen.ErrFontLoad)
	}

	font := &Font{Name: name, Bytes: data, glyphs: f.NumGlyphs()}
	var buf sfnt.Buffer
	if family, err := f.Name(&buf, sfnt.NameIDFamily); err == nil {
		font.Family = family
	}
	return font, nil
}

func (f *Font) String() string {
	return fmt.Sprintf("Name: %s, Family: %q, Glyphs: %d, Bytes: %d", f.Name, f.Family, f.glyphs, len(f.Bytes))
}
