package certgen

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Callers match them with errors.Is; the concrete cause is wrapped.
var (
	// ErrMalformedInput: the roster is unreadable or lacks a required column.
	ErrMalformedInput = errors.New("malformed roster")
	// ErrTemplateNotFound: the certificate template file does not exist.
	ErrTemplateNotFound = errors.New("certificate template not found")
	// ErrTemplateLoad: the template is not a PDF with at least two pages.
	ErrTemplateLoad = errors.New("certificate template could not be loaded")
	// ErrFontLoad: the font asset is missing or not a usable TrueType font.
	ErrFontLoad = errors.New("font asset could not be loaded")
	// ErrRender: a single certificate could not be produced.
	ErrRender = errors.New("certificate could not be rendered")
)

// RecordError ties a failure to the student whose certificate failed.
type RecordError struct {
	Name string
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("%s: %v", e.Name, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }

// IsAssetError reports whether err is a deployment fault (template or font)
// rather than a problem with the roster or a single record.
func IsAssetError(err error) bool {
	return errors.Is(err, ErrTemplateNotFound) ||
		errors.Is(err, ErrTemplateLoad) ||
		errors.Is(err, ErrFontLoad)
}

func trimSpace(s string) string {
	return strings.TrimSpace(s)
}
