package web

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/aerissecure/certgen"
	"github.com/aerissecure/certgen/auth"
	"github.com/aerissecure/certgen/batch"
	"github.com/aerissecure/certgen/pack"
	"github.com/aerissecure/certgen/roster"
	"github.com/aerissecure/certgen/stats"
	"github.com/aerissecure/certgen/xlsx"
)

// RosterField is the multipart field carrying the uploaded workbook.
const RosterField = "roster"

type indexData struct {
	Identity string
	Domain   string
	Error    string
}

func (s *Server) index() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := indexData{Domain: s.gate.Domain(), Error: r.URL.Query().Get("error")}
		if id, ok := s.sessionIdentity(r); ok {
			data.Identity = id
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := pages.ExecuteTemplate(w, "index", data); err != nil {
			s.logger.Error("render index", zap.Error(err))
		}
	}
}

func (s *Server) healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		io.WriteString(w, "ok\n")
	}
}

type loginResponse struct {
	Identity string `json:"identity"`
	Token    string `json:"token"`
}

func (s *Server) login() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "invalid form", http.StatusBadRequest)
			return
		}
		id, err := s.gate.Check(r.PostFormValue("email"), r.PostFormValue("passphrase"))
		if err != nil {
			s.logger.Warn("sign-in rejected", zap.Error(err))
			status := http.StatusUnauthorized
			if errors.Is(err, auth.ErrBadEmail) {
				status = http.StatusBadRequest
			}
			if wantsJSON(r) {
				http.Error(w, err.Error(), status)
				return
			}
			http.Redirect(w, r, "/?error="+url.QueryEscape(err.Error()), http.StatusSeeOther)
			return
		}

		token, err := s.gate.Issue(id)
		if err != nil {
			s.logger.Error("issue session", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		http.SetCookie(w, &http.Cookie{
			Name:     SessionCookie,
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteStrictMode,
			Secure:   r.TLS != nil,
		})
		s.logger.Info("signed in", zap.String("identity", id))

		if wantsJSON(r) {
			writeJSON(w, http.StatusOK, loginResponse{Identity: id, Token: token})
			return
		}
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) logout() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: "", Path: "/", MaxAge: -1, HttpOnly: true})
		http.Redirect(w, r, "/", http.StatusSeeOther)
	}
}

func (s *Server) rosterTemplate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		if err := roster.WriteTemplate(&buf); err != nil {
			s.logger.Error("roster template", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="roster.xlsx"`)
		w.Write(buf.Bytes())
	}
}

func (s *Server) preview() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name, data, ok := s.readUpload(w, r)
		if !ok {
			return
		}
		model, err := xlsx.ParseBytes(name, data)
		if err != nil {
			s.fail(w, fmt.Errorf("%w: %v", certgen.ErrMalformedInput, err))
			return
		}
		table, err := roster.PreviewHTML(model, s.settings.PreviewRows)
		if err != nil {
			s.fail(w, err)
			return
		}
		records, err := roster.FromModel(model)
		if err != nil {
			s.fail(w, err)
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		err = pages.ExecuteTemplate(w, "preview", struct {
			File    string
			Summary roster.Summary
			Table   template.HTML
		}{name, roster.Summarize(records), template.HTML(table)})
		if err != nil {
			s.logger.Error("render preview", zap.Error(err))
		}
	}
}

func (s *Server) certificates() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := Identity(r.Context())
		log := s.logger.With(zap.String("identity", identity))

		// every request loads its own template so batches never share documents
		renderer, err := s.prepare(log)
		if err != nil {
			s.fail(w, err)
			return
		}
		name, data, ok := s.readUpload(w, r)
		if !ok {
			return
		}
		records, err := roster.ReadBytes(name, data)
		if err != nil {
			s.fail(w, err)
			return
		}

		res, genErr := batch.Generate(records, renderer, batch.Options{
			Policy: s.settings.Policy,
			Naming: pack.Interactive,
			Logger: log,
		})
		if res == nil {
			s.fail(w, genErr)
			return
		}
		if res.Issued() == 0 && len(res.Failures) > 0 {
			s.record(identity, res)
			log.Error("no certificate produced", zap.Error(genErr))
			http.Error(w, "no certificates produced: "+genErr.Error(), http.StatusUnprocessableEntity)
			return
		}

		var buf bytes.Buffer
		if _, err := res.Certificates.WriteArchive(&buf); err != nil {
			s.fail(w, err)
			return
		}
		s.record(identity, res)

		w.Header().Set("Content-Type", "application/zip")
		w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", pack.ArchiveName))
		w.Header().Set("X-Certificates-Issued", fmt.Sprint(res.Issued()))
		if n := len(res.Failures); n > 0 {
			w.Header().Set("X-Certificates-Failed", fmt.Sprint(n))
		}
		w.Write(buf.Bytes())
	}
}

func (s *Server) record(identity string, res *batch.Result) {
	if s.ledger == nil {
		return
	}
	_, err := s.ledger.Record(stats.Run{
		Identity:     identity,
		Appeared:     res.Summary.Appeared,
		Qualified:    res.Summary.Qualified,
		NotQualified: res.Summary.NotQualified,
		Issued:       res.Issued(),
		Failed:       len(res.Failures),
	})
	if err != nil {
		// the certificates are still good; only the tally is lost
		s.logger.Error("record stats", zap.Error(err))
	}
}

type statsResponse struct {
	Counters stats.Counters `json:"counters"`
	Recent   []stats.Run    `json:"recent"`
}

func (s *Server) showStats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.ledger == nil {
			http.Error(w, "statistics are disabled", http.StatusNotFound)
			return
		}
		c, err := s.ledger.Counters()
		if err != nil {
			s.logger.Error("read counters", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		runs, err := s.ledger.Runs(20)
		if err != nil {
			s.logger.Error("read runs", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, statsResponse{Counters: c, Recent: runs})
	}
}

// uploadMemory is how much of a multipart upload is held in memory; larger
// parts go to temporary files.
const uploadMemory = 1 << 20

// readUpload returns the uploaded roster. On failure it has already written
// the response.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, bool) {
	limit := s.settings.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		s.logger.Warn("parse upload", zap.Error(err))
		http.Error(w, fmt.Sprintf("file too large (max %dMB) or invalid form", limit>>20), http.StatusBadRequest)
		return "", nil, false
	}
	defer r.MultipartForm.RemoveAll()
	file, header, err := r.FormFile(RosterField)
	if err != nil {
		http.Error(w, "roster file is required", http.StatusBadRequest)
		return "", nil, false
	}
	defer file.Close()

	if xlsx.FormatOf(header.Filename) == xlsx.FormatUnknown {
		http.Error(w, "only .xlsx and .xls files are allowed", http.StatusBadRequest)
		return "", nil, false
	}
	data, err := io.ReadAll(file)
	if err != nil {
		http.Error(w, "could not read upload", http.StatusBadRequest)
		return "", nil, false
	}
	return header.Filename, data, true
}

// fail maps pipeline errors to responses the operator can act on.
func (s *Server) fail(w http.ResponseWriter, err error) {
	var recErr *certgen.RecordError
	switch {
	case errors.Is(err, certgen.ErrMalformedInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case certgen.IsAssetError(err):
		s.logger.Error("certificate assets unavailable", zap.Error(err))
		http.Error(w, "certificate assets unavailable: "+err.Error(), http.StatusServiceUnavailable)
	case errors.As(err, &recErr):
		s.logger.Error("certificate failed", zap.Error(err))
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
	default:
		s.logger.Error("request failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
