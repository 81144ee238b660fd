// Package pack collects rendered certificates under safe file names and
// writes them out as a zip archive or as labeled folders.
package pack

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aerissecure/certgen"
)

// ArchiveName is the default name of the bundled archive.
const ArchiveName = "certificates.zip"

// FallbackName stands in for names that sanitize to nothing.
const FallbackName = "certificate"

// Naming selects how certificate files are named. A collection uses one
// naming for every file it holds.
type Naming int

const (
	// Interactive names files {name}_certificate.pdf, for downloads.
	Interactive Naming = iota
	// Folder names files {name}.pdf, for the labeled output folders.
	Folder
)

// ParseNaming accepts "interactive" (or "archive") and "folder".
func ParseNaming(s string) (Naming, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "interactive", "archive", "download":
		return Interactive, nil
	case "folder", "folders":
		return Folder, nil
	}
	return 0, fmt.Errorf("unknown naming mode %q (want interactive or folder)", s)
}

func (n Naming) String() string {
	if n == Folder {
		return "folder"
	}
	return "interactive"
}

// FileName builds the file name for an already sanitized base name.
func (n Naming) FileName(base string) string {
	if n == Folder {
		return base + ".pdf"
	}
	return base + "_certificate.pdf"
}

// File is one certificate under its final name.
type File struct {
	Name        string // file or archive entry name
	Group       string // certgen.GroupQualified or certgen.GroupNotQualified
	Certificate certgen.RenderedCertificate
}

// Path is the file's location relative to a folder output root.
func (f File) Path() string {
	return filepath.Join(f.Group, f.Name)
}

// Collection is an ordered set of certificates keyed by file name.
type Collection struct {
	naming   Naming
	files    []File
	taken    map[string]struct{}
	modified time.Time
}

// NewCollection returns an empty collection using naming n.
func NewCollection(n Naming) *Collection {
	return &Collection{
		naming:   n,
		taken:    make(map[string]struct{}),
		modified: time.Now(),
	}
}

// Add stores cert and returns it under its final name. Names that collide
// after sanitizing, ignoring case, get a numeric suffix: "Ann", "Ann_2", ...
func (c *Collection) Add(cert certgen.RenderedCertificate) File {
	base := Sanitize(cert.StudentName)
	if strings.TrimSpace(base) == "" {
		base = FallbackName
	}
	name := c.naming.FileName(base)
	for i := 2; c.isTaken(name); i++ {
		name = c.naming.FileName(fmt.Sprintf("%s_%d", base, i))
	}
	c.taken[strings.ToLower(name)] = struct{}{}

	f := File{Name: name, Group: cert.Group(), Certificate: cert}
	c.files = append(c.files, f)
	return f
}

func (c *Collection) isTaken(name string) bool {
	_, ok := c.taken[strings.ToLower(name)]
	return ok
}

// Len is the number of certificates held.
func (c *Collection) Len() int { return len(c.files) }

// Files returns the certificates in insertion order, both groups merged.
func (c *Collection) Files() []File {
	out := make([]File, len(c.files))
	copy(out, c.files)
	return out
}

// Group returns the certificates of one group in insertion order.
func (c *Collection) Group(group string) []File {
	var out []File
	for _, f := range c.files {
		if f.Group == group {
			out = append(out, f)
		}
	}
	return out
}

// WriteArchive writes every certificate as one entry of a zip archive and
// returns the number of bytes written.
func (c *Collection) WriteArchive(w io.Writer) (int64, error) {
	cw := &countWriter{w: w}
	zw := zip.NewWriter(cw)
	for _, f := range c.files {
		hdr := &zip.FileHeader{
			Name:     f.Name,
			Method:   zip.Deflate,
			Modified: c.modified,
		}
		entry, err := zw.CreateHeader(hdr)
		if err != nil {
			return cw.n, fmt.Errorf("archive %s: %w", f.Name, err)
		}
		if _, err := entry.Write(f.Certificate.Bytes); err != nil {
			return cw.n, fmt.Errorf("archive %s: %w", f.Name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return cw.n, fmt.Errorf("close archive: %w", err)
	}
	return cw.n, nil
}

// WriteArchiveFile writes the archive to path.
func (c *Collection) WriteArchiveFile(path string) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	out, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := c.WriteArchive(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// WriteFolders writes each certificate into dir/Qualified or
// dir/Not_Qualified, one group after the other, and returns the written
// paths. Both folders are created even when a group is empty.
func (c *Collection) WriteFolders(dir string) ([]string, error) {
	paths := make([]string, 0, len(c.files))
	for _, group := range []string{certgen.GroupQualified, certgen.GroupNotQualified} {
		if err := os.MkdirAll(filepath.Join(dir, group), 0o755); err != nil {
			return paths, err
		}
		for _, f := range c.Group(group) {
			path := filepath.Join(dir, f.Path())
			if err := os.WriteFile(path, f.Certificate.Bytes, 0o644); err != nil {
				return paths, fmt.Errorf("write %s: %w", path, err)
			}
			paths = append(paths, path)
		}
	}
	return paths, nil
}
