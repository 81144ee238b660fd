package xlsx

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
)

var (
	relElement = regexp.MustCompile(`<Relationship\b[^>]*>`)
	absTarget  = regexp.MustCompile(`\bTarget=("/[^"]*"|'/[^']*')`)
)

// normalizePackage rewrites absolute relationship targets such as
// "/xl/sharedStrings.xml" into paths relative to the part that owns the
// relationships file. unioffice only resolves relative targets and silently
// skips the rest, which loses the shared-string table of workbooks written by
// excelize and openpyxl. Packages without absolute targets come back as is.
func normalizePackage(r io.ReaderAt, size int64) (io.ReaderAt, int64, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, 0, err
	}

	rewritten := make(map[string][]byte)
	for _, f := range zr.File {
		if !strings.HasSuffix(f.Name, ".rels") {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", f.Name, err)
		}
		if out, changed := relativizeRels(f.Name, data); changed {
			rewritten[f.Name] = out
		}
	}
	if len(rewritten) == 0 {
		return r, size, nil
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range zr.File {
		data, ok := rewritten[f.Name]
		if !ok {
			if err := zw.Copy(f); err != nil {
				return nil, 0, err
			}
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: f.Name, Method: zip.Deflate, Modified: f.Modified})
		if err != nil {
			return nil, 0, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, 0, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, 0, err
	}
	return bytes.NewReader(buf.Bytes()), int64(buf.Len()), nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

// relativizeRels rewrites the absolute internal targets of one relationships
// part. External relationships (hyperlinks) are left alone.
func relativizeRels(relsName string, data []byte) ([]byte, bool) {
	base := relsBase(relsName)
	changed := false
	out := relElement.ReplaceAllFunc(data, func(el []byte) []byte {
		if bytes.Contains(el, []byte(`TargetMode="External"`)) || bytes.Contains(el, []byte(`TargetMode='External'`)) {
			return el
		}
		return absTarget.ReplaceAllFunc(el, func(attr []byte) []byte {
			quoted := string(attr[len("Target="):])
			q, target := quoted[:1], quoted[1:len(quoted)-1]
			changed = true
			return []byte("Target=" + q + relativeTarget(base, target) + q)
		})
	})
	return out, changed
}

// relsBase returns the directory targets in relsName are relative to:
// "xl/_rels/workbook.xml.rels" -> "xl", "_rels/.rels" -> "".
func relsBase(relsName string) string {
	dir := path.Dir(path.Dir(relsName))
	if dir == "." {
		return ""
	}
	return dir
}

// relativeTarget expresses the package-absolute target relative to base.
func relativeTarget(base, target string) string {
	target = strings.TrimPrefix(path.Clean(target), "/")
	if base == "" {
		return target
	}
	if strings.HasPrefix(target, base+"/") {
		return strings.TrimPrefix(target, base+"/")
	}
	return strings.Repeat("../", strings.Count(base, "/")+1) + target
}
