// Package batch runs the certificate pipeline end to end: asset checks,
// roster reading, rendering and packaging.
package batch

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/fontasset"
	"github.com/aerissecure/certgen/pack"
	"github.com/aerissecure/certgen/pdftemplate"
	"github.com/aerissecure/certgen/render"
	"github.com/aerissecure/certgen/roster"
)

// Policy decides what a record failure does to the rest of the batch.
type Policy int

const (
	// FailFast aborts on the first failure and produces nothing.
	FailFast Policy = iota
	// Isolate records the failure and keeps going.
	Isolate
)

// ParsePolicy accepts "fail-fast" and "isolate".
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-fast", "failfast", "abort":
		return FailFast, nil
	case "isolate", "continue":
		return Isolate, nil
	}
	return 0, fmt.Errorf("unknown error policy %q (want fail-fast or isolate)", s)
}

func (p Policy) String() string {
	if p == Isolate {
		return "isolate"
	}
	return "fail-fast"
}

// Renderer turns one record into a certificate. *render.Renderer is the
// production implementation.
type Renderer interface {
	Render(rec certgen.StudentRecord) (certgen.RenderedCertificate, error)
}

// Options tune a batch.
type Options struct {
	Policy Policy
	Naming pack.Naming
	Logger *zap.Logger
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// Result is the outcome of a batch.
type Result struct {
	Certificates *pack.Collection
	Summary      roster.Summary // of the records read, rendered or not
	Failures     []*certgen.RecordError
	Elapsed      time.Duration
}

// Issued is the number of certificates produced.
func (r *Result) Issued() int {
	if r == nil || r.Certificates == nil {
		return 0
	}
	return r.Certificates.Len()
}

// Err combines the recorded failures, or returns nil when there were none.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}
	var err error
	for _, f := range r.Failures {
		err = multierr.Append(err, f)
	}
	return err
}

// Generate renders every record in order. Under FailFast the first failure
// is returned with a nil Result. Under Isolate the Result always comes back
// and the returned error, if any, combines the per-record failures.
func Generate(records []certgen.StudentRecord, r Renderer, opts Options) (*Result, error) {
	log := opts.logger()
	start := time.Now()
	res := &Result{
		Certificates: pack.NewCollection(opts.Naming),
		Summary:      roster.Summarize(records),
	}

	for i, rec := range records {
		cert, err := r.Render(rec)
		if err != nil {
			var recErr *certgen.RecordError
			if !errors.As(err, &recErr) {
				recErr = &certgen.RecordError{Name: rec.Name, Err: err}
			}
			if opts.Policy == FailFast {
				log.Error("certificate failed, aborting batch",
					zap.Int("row", i), zap.String("name", rec.Name), zap.Error(err))
				return nil, recErr
			}
			log.Warn("certificate failed", zap.Int("row", i), zap.String("name", rec.Name), zap.Error(err))
			res.Failures = append(res.Failures, recErr)
			continue
		}
		f := res.Certificates.Add(cert)
		log.Debug("certificate added", zap.String("name", rec.Name), zap.String("file", f.Name), zap.String("group", f.Group))
	}

	res.Elapsed = time.Since(start)
	log.Info("batch rendered",
		zap.Int("appeared", res.Summary.Appeared),
		zap.Int("qualified", res.Summary.Qualified),
		zap.Int("not_qualified", res.Summary.NotQualified),
		zap.Int("issued", res.Issued()),
		zap.Int("failed", len(res.Failures)),
		zap.Duration("elapsed", res.Elapsed),
	)
	return res, res.Err()
}

// Prepare loads the template, then the font, and checks that the font can be
// registered on both template pages. It fails before any roster is read.
func Prepare(templatePath, fontPath, fontName string, opts ...render.Option) (*render.Renderer, error) {
	store, err := pdftemplate.Load(templatePath)
	if err != nil {
		return nil, err
	}
	font, err := fontasset.Load(fontPath, fontName)
	if err != nil {
		return nil, err
	}
	r, err := render.New(store, font, opts...)
	if err != nil {
		return nil, err
	}
	for _, qualified := range []bool{false, true} {
		if _, err := r.Layout(certgen.StudentRecord{Name: "Specimen", Qualified: qualified}); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Job describes one command-line style run.
type Job struct {
	TemplatePath string
	FontPath     string
	FontName     string
	RosterPath   string

	// OutputDir receives the labeled folders and, with Archive set, the
	// archive. Empty means the template's name without its extension.
	OutputDir string
	Folders   bool
	Archive   bool

	Options
}

// DefaultOutputDir is the template path with its extension removed.
func DefaultOutputDir(templatePath string) string {
	return strings.TrimSuffix(templatePath, filepath.Ext(templatePath))
}

// Run executes job. Nothing is written unless assets and roster are good, and
// under FailFast nothing is written unless every record rendered.
func Run(job Job) (*Result, error) {
	log := job.logger()

	r, err := Prepare(job.TemplatePath, job.FontPath, job.FontName, render.WithLogger(log))
	if err != nil {
		return nil, err
	}
	records, err := roster.ReadFile(job.RosterPath)
	if err != nil {
		return nil, err
	}
	log.Info("roster read", zap.String("path", job.RosterPath), zap.Int("records", len(records)))

	res, genErr := Generate(records, r, job.Options)
	if res == nil {
		return nil, genErr
	}

	dir := job.OutputDir
	if dir == "" {
		dir = DefaultOutputDir(job.TemplatePath)
	}
	if job.Folders {
		paths, err := res.Certificates.WriteFolders(dir)
		if err != nil {
			return res, fmt.Errorf("write folders: %w", err)
		}
		log.Info("certificates written", zap.String("dir", dir), zap.Int("files", len(paths)))
	}
	if job.Archive {
		path := filepath.Join(dir, pack.ArchiveName)
		n, err := res.Certificates.WriteArchiveFile(path)
		if err != nil {
			return res, fmt.Errorf("write archive: %w", err)
		}
		log.Info("archive written", zap.String("path", path), zap.Int64("bytes", n))
	}
	return res, genErr
}
