package http

import (
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"meterlog/internal/auth"
	"meterlog/internal/cache"
	"meterlog/internal/core"
	"meterlog/internal/middleware/ratelimit"
	"meterlog/internal/middleware/security"
	"meterlog/internal/middleware/trace"
	"meterlog/internal/services"
	appweb "meterlog/web"
)

// Options carry the tunables the handlers need beyond their dependencies.
type Options struct {
	WaterChartFloor       float64
	ElectricityChartFloor float64
}

type Server struct {
	http.Server
	templates *template.Template
	billsvc   *services.BillService
	sessions  *auth.Provider
	floors    map[core.BillKind]float64

	limiter  *ratelimit.Limiter
	tracer   *trace.Middleware
	headers  *security.HeadersMiddleware
	resolver *security.Resolver

	// Bill lists are cached per user and kind so a dashboard render does
	// not hit storage twice.
	listCache    *cache.LRUCache[[]core.Bill]
	cacheManager *cache.Manager

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run server.
func NewServer(addr string, billsvc *services.BillService, sessions *auth.Provider, opts Options) *Server {
	mux := http.NewServeMux()
	resolver := security.NewResolver()

	if opts.WaterChartFloor <= 0 {
		opts.WaterChartFloor = core.Water.DefaultChartFloor()
	}
	if opts.ElectricityChartFloor <= 0 {
		opts.ElectricityChartFloor = core.Electricity.DefaultChartFloor()
	}

	s := &Server{
		Server: http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		billsvc:  billsvc,
		sessions: sessions,
		floors: map[core.BillKind]float64{
			core.Water:       opts.WaterChartFloor,
			core.Electricity: opts.ElectricityChartFloor,
		},
		limiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		tracer:       trace.NewMiddleware(resolver.ClientIP),
		headers:      security.NewHeadersMiddleware(security.DefaultHeadersConfig()),
		resolver:     resolver,
		listCache:    cache.NewLRUCache[[]core.Bill](200, 5*time.Minute),
		cacheManager: cache.NewManager(),
	}

	s.cacheManager.Register(s.listCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		slog.Warn("Failed parsing templates", "error", err)
	}
	s.templates = t

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		slog.Warn("Failed to mount embedded static FS", "error", err)
	}

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", handleReady)

	mux.Handle("GET /{$}", s.public(s.handleIndex))
	mux.Handle("GET /login", s.public(s.redirectIfAuthed(s.handleLoginPage)))
	mux.Handle("POST /login", s.public(s.handleLogin))
	mux.Handle("GET /register", s.public(s.redirectIfAuthed(s.handleRegisterPage)))
	mux.Handle("POST /register", s.public(s.handleRegister))
	mux.Handle("POST /logout", s.public(s.handleLogout))

	mux.Handle("GET /dashboard", s.private(s.handleDashboard))
	mux.Handle("GET /bills/{kind}", s.private(s.handleBillsPage))
	mux.Handle("GET /bills/{kind}/new", s.private(s.handleNewBillForm))
	mux.Handle("GET /bills/{kind}/{id}/edit", s.private(s.handleEditBillForm))
	mux.Handle("POST /bills/{kind}", s.private(s.handleCreateBill))
	mux.Handle("POST /bills/{kind}/{id}", s.private(s.handleUpdateBill))
	mux.Handle("POST /bills/{kind}/{id}/delete", s.private(s.handleDeleteBill))

	return s
}

// public applies the base middleware chain: tracing, security headers and
// rate limiting on mutating requests.
func (s *Server) public(next http.HandlerFunc) http.Handler {
	return s.tracer.Middleware(s.headers.Middleware(s.limitPosts(next)))
}

// private additionally requires an authenticated session.
func (s *Server) private(next http.HandlerFunc) http.Handler {
	return s.public(s.requireSession(next))
}

func (s *Server) limitPosts(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			clientIP := s.resolver.ClientIP(r)
			if !s.limiter.Allow(clientIP) {
				slog.WarnContext(r.Context(), "Rate limit exceeded",
					"client_ip", clientIP, "path", r.URL.Path)
				w.Header().Set("Retry-After", "60")
				http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				return
			}
		}
		next(w, r)
	}
}

// Shutdown stops the background goroutines along with the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func handleReady(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if _, state := s.sessionFromRequest(r); state == auth.Authenticated {
		http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data any) {
	if s.templates == nil {
		slog.ErrorContext(r.Context(), "Templates not loaded", "template", name)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	if err := s.templates.ExecuteTemplate(w, name, data); err != nil {
		slog.ErrorContext(r.Context(), "Template execution failed",
			"error", err, "template", name)
	}
}

// listCacheKey scopes cached bill lists to one user and kind.
func listCacheKey(userID string, kind core.BillKind) string {
	return fmt.Sprintf("bills:%s:%s", userID, kind.String())
}

func (s *Server) invalidateBills(userID string, kind core.BillKind) {
	s.listCache.Delete(listCacheKey(userID, kind))
}
