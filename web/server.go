// Package web serves the certificate generator to a browser: sign in, upload
// a roster, preview it and download the certificates as one archive.
package web

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/aerissecure/certgen/auth"
	"github.com/aerissecure/certgen/batch"
	"github.com/aerissecure/certgen/render"
	"github.com/aerissecure/certgen/stats"
)

// SessionCookie carries the signed session token.
const SessionCookie = "certgen_session"

// Settings are the per-server knobs, usually filled from config.Config.
type Settings struct {
	TemplatePath string
	FontPath     string
	FontName     string

	Policy         batch.Policy
	MaxUploadBytes int64
	PreviewRows    int

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

// Server is the HTTP front end.
type Server struct {
	settings Settings
	gate     *auth.Gate
	ledger   *stats.Ledger
	logger   *zap.Logger
	router   *mux.Router

	// prepare loads the assets for one request's batch.
	prepare func(log *zap.Logger) (batch.Renderer, error)
}

// New builds a Server. ledger may be nil to disable statistics.
func New(settings Settings, gate *auth.Gate, ledger *stats.Ledger, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if settings.MaxUploadBytes <= 0 {
		settings.MaxUploadBytes = 10 << 20
	}
	if settings.ShutdownTimeout <= 0 {
		settings.ShutdownTimeout = 10 * time.Second
	}
	s := &Server{
		settings: settings,
		gate:     gate,
		ledger:   ledger,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.prepare = s.loadRenderer
	s.routes()
	return s
}

func (s *Server) loadRenderer(log *zap.Logger) (batch.Renderer, error) {
	r, err := batch.Prepare(s.settings.TemplatePath, s.settings.FontPath, s.settings.FontName, render.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	s.router.HandleFunc("/", s.index()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.healthz()).Methods(http.MethodGet)
	s.router.HandleFunc("/login", s.login()).Methods(http.MethodPost)
	s.router.HandleFunc("/logout", s.logout()).Methods(http.MethodPost)
	s.router.HandleFunc("/roster-template", s.rosterTemplate()).Methods(http.MethodGet)

	private := s.router.NewRoute().Subrouter()
	private.Use(s.requireSession)
	private.HandleFunc("/preview", s.preview()).Methods(http.MethodPost)
	private.HandleFunc("/certificates", s.certificates()).Methods(http.MethodPost)
	private.HandleFunc("/stats", s.showStats()).Methods(http.MethodGet)
}

// ServeHTTP makes Server an http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on ln until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      s,
		ReadTimeout:  s.settings.ReadTimeout,
		WriteTimeout: s.settings.WriteTimeout,
		ErrorLog:     zap.NewStdLog(s.logger),
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.Serve(ln)
	}()
	s.logger.Info("listening", zap.String("addr", ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.settings.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("server stopped")
	return nil
}

// ListenAndServe listens on addr and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

type identityKey struct{}

// Identity returns the signed-in identity stored on the request context.
func Identity(ctx context.Context) string {
	id, _ := ctx.Value(identityKey{}).(string)
	return id
}

func (s *Server) sessionIdentity(r *http.Request) (string, bool) {
	var token string
	if c, err := r.Cookie(SessionCookie); err == nil {
		token = c.Value
	}
	if h := r.Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		token = h[7:]
	}
	if token == "" {
		return "", false
	}
	id, err := s.gate.Verify(token)
	if err != nil {
		return "", false
	}
	return id, true
}

func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.sessionIdentity(r)
		if !ok {
			http.Error(w, "sign in required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rec *statusRecorder) WriteHeader(code int) {
	rec.status = code
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(p []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}
	n, err := rec.ResponseWriter.Write(p)
	rec.bytes += n
	return n, err
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		if rec.status == 0 {
			rec.status = http.StatusOK
		}
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Int("bytes", rec.bytes),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}
