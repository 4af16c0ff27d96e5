package http

import (
	"context"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"scontrini/internal/auth"
	"scontrini/internal/blob"
	"scontrini/internal/cache"
	"scontrini/internal/core"
	applog "scontrini/internal/log"
	appweb "scontrini/web"
)

// ExpenseStore is the write/read surface the handlers talk to. The
// expense service implements it; tests use fakes.
type ExpenseStore interface {
	ListExpenses(ctx context.Context) ([]core.Expense, error)
	GetExpense(ctx context.Context, id int64) (core.Expense, error)
	CreateExpense(ctx context.Context, in core.CreateExpense) (core.Expense, error)
	UpdateExpense(ctx context.Context, id int64, patch core.UpdateExpense) (core.Expense, error)
	DeleteExpense(ctx context.Context, id int64) (core.Expense, error)
}

type Server struct {
	http.Server

	store     ExpenseStore
	signer    blob.Signer
	presenter *blob.Presenter

	rateLimiter  *rateLimiter
	cacheManager *cache.Manager
	shutdownOnce sync.Once
}

// NewServer configures routes and middleware, returning a ready-to-run
// server. provider may be nil, in which case the API runs without
// authentication (local development only). frontendURL is where auth
// flows send the browser afterwards; empty means the app root.
func NewServer(addr string, store ExpenseStore, signer blob.Signer, provider auth.Provider, frontendURL string) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:    addr,
			Handler: mux,
		},
		store:        store,
		signer:       signer,
		presenter:    blob.NewPresenter(signer),
		rateLimiter:  newRateLimiter(),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.presenter.URLCache())
	s.cacheManager.StartCleanup(10 * time.Minute)

	requireAuth := auth.RequireAuth(provider)

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.Handle("GET /api/expenses", s.guard(requireAuth(s.handleListExpenses)))
	mux.Handle("GET /api/expenses/{id}", s.guard(requireAuth(s.handleGetExpense)))
	mux.Handle("POST /api/expenses", s.guard(requireAuth(s.handleCreateExpense)))
	mux.Handle("PUT /api/expenses/{id}", s.guard(requireAuth(s.handleReplaceExpense)))
	mux.Handle("PATCH /api/expenses/{id}", s.guard(requireAuth(s.handlePatchExpense)))
	mux.Handle("DELETE /api/expenses/{id}", s.guard(requireAuth(s.handleDeleteExpense)))

	mux.Handle("POST /api/upload/sign", s.guard(requireAuth(s.handleSignUpload)))

	if provider != nil {
		authHandlers := auth.NewHandlers(provider, frontendURL)
		mux.Handle("GET /api/auth/login", s.guard(authHandlers.Login))
		mux.Handle("GET /api/auth/callback", s.guard(authHandlers.Callback))
		mux.Handle("GET /api/auth/logout", s.guard(authHandlers.Logout))
		mux.Handle("GET /api/auth/me", s.guard(authHandlers.Me))
	}

	s.mountStatic(mux)

	return s
}

// mountStatic serves the embedded SPA bundle: real files under /static,
// index.html for everything that is not an API route.
func (s *Server) mountStatic(mux *http.ServeMux) {
	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		slog.Warn("Failed to mount embedded static FS", "error", err)
		return
	}

	static := http.FileServer(http.FS(sub))
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600, immutable")
		static.ServeHTTP(w, r)
	})))

	index, err := fs.ReadFile(sub, "index.html")
	if err != nil {
		slog.Warn("Embedded index.html missing, SPA fallback disabled", "error", err)
		return
	}

	// SPA fallback: any non-API GET gets the index page so client-side
	// routing works on deep links.
	mux.Handle("GET /", s.guard(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(index)
	}))
}

// guard wraps a handler with security headers, rate limiting and request
// logging.
func (s *Server) guard(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		clientIP := extractClientIP(r)
		requestID := generateRequestID()

		ctx := applog.WithRequestID(r.Context(), requestID)
		r = r.WithContext(ctx)

		slog.InfoContext(ctx, "Request started",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"client_ip", clientIP,
			"user_agent", r.Header.Get("User-Agent"))

		// Rate limit writes only; listings are cheap and cached.
		if isWrite(r.Method) && !s.rateLimiter.allow(clientIP) {
			slog.WarnContext(ctx, "Rate limit exceeded",
				"client_ip", clientIP, "method", r.Method, "path", r.URL.Path)
			w.Header().Set("Retry-After", "60")
			respondError(w, http.StatusTooManyRequests, "rate limit exceeded, try again later")
			return
		}

		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next(rw, r)

		slog.InfoContext(ctx, "Request completed",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status_code", rw.statusCode,
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", clientIP)
	})
}

func isWrite(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// responseWriter captures the status code for request logging.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	if _, err := s.store.ListExpenses(ctx); err != nil {
		slog.ErrorContext(ctx, "Readiness check failed", "error", err)
		respondError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// Shutdown stops the HTTP server and the background cleanup goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
