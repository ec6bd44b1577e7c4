package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"kwitansi/internal/backend"
	"kwitansi/internal/cache"
	"kwitansi/internal/core"
	applog "kwitansi/internal/log"
	"kwitansi/internal/middleware/ratelimit"
	"kwitansi/internal/middleware/security"
	"kwitansi/internal/middleware/trace"
	"kwitansi/internal/session"
	appweb "kwitansi/web"
)

// Server is the admin console: HTML pages, HTMX partials and probes over
// one data backend.
type Server struct {
	http.Server

	logger     *applog.Logger
	structured *applog.StructuredLogger
	templates  *template.Template

	backend  backend.Backend
	sessions session.Store
	now      func() time.Time

	secureCookies bool

	// Dashboard series and email lookups are shared by every signed in user.
	dailyCache    *cache.LRUCache[[]core.DailyPayment]
	monthlyCache  *cache.LRUCache[int]
	customerCache *cache.LRUCache[core.Customer]
	cacheManager  *cache.Manager

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware

	appMetrics   *appMetrics
	shutdownOnce sync.Once
}

type appMetrics struct {
	uptime           time.Time
	receiptsCreated  atomic.Int64
	receiptsUpdated  atomic.Int64
	receiptsPaid     atomic.Int64
	customersCreated atomic.Int64
	logins           atomic.Int64
	failedLogins     atomic.Int64
}

// Option customizes a Server.
type Option func(*Server)

// WithLogger replaces the default "http" component logger.
func WithLogger(l *applog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRateLimit configures the limiter applied to state changing requests.
func WithRateLimit(cfg ratelimit.Config) Option {
	return func(s *Server) {
		s.rateLimiter.Stop()
		s.rateLimiter = ratelimit.NewLimiter(cfg)
	}
}

// WithClock sets the clock used for today's date and dashboard defaults.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithSecureCookies marks the session cookie Secure.
func WithSecureCookies(secure bool) Option {
	return func(s *Server) { s.secureCookies = secure }
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(addr string, be backend.Backend, sessions session.Store, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		logger:           applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP),
		backend:          be,
		sessions:         sessions,
		now:              time.Now,
		dailyCache:       cache.NewLRUCache[[]core.DailyPayment](100, time.Minute),
		monthlyCache:     cache.NewLRUCache[int](100, time.Minute),
		customerCache:    cache.NewLRUCache[core.Customer](500, 5*time.Minute),
		cacheManager:     cache.NewManager(),
		rateLimiter:      ratelimit.NewLimiter(ratelimit.DefaultConfig()),
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	for _, opt := range opts {
		opt(s)
	}

	s.structured = applog.NewStructuredLogger(s.logger)
	s.traceMiddleware = trace.NewMiddleware(s.securityDetector.ExtractClientIP, s.structured)

	s.cacheManager.Register(s.dailyCache)
	s.cacheManager.Register(s.monthlyCache)
	s.cacheManager.Register(s.customerCache)
	s.cacheManager.StartCleanup(5 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.WithComponent(applog.ComponentTemplate).Error("Failed parsing templates", "error", err)
	} else {
		s.templates = t
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", "error", err)
	}

	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, s.handleRateLimited)

	var handler http.Handler = mux
	handler = s.withSession(handler)
	handler = limit(handler)
	handler = s.securityDetector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = applog.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = applog.Middleware(s.logger)(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /login", s.handleLoginPage)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /logout", s.handleLogout)

	mux.HandleFunc("GET /{$}", s.requireLogin(s.handleDashboard))
	mux.HandleFunc("GET /ui/dashboard", s.requireLogin(s.handleDashboardCharts))
	mux.HandleFunc("GET /ui/dashboard/daily", s.requireLogin(s.handleDashboardDaily))
	mux.HandleFunc("GET /ui/dashboard/monthly", s.requireLogin(s.handleDashboardMonthly))

	mux.HandleFunc("GET /customers", s.requireLogin(s.handleCustomers))
	mux.HandleFunc("GET /ui/customers/table", s.requireLogin(s.handleCustomersTable))
	mux.HandleFunc("GET /ui/customers/lookup", s.requireLogin(s.handleCustomerLookup))
	mux.HandleFunc("GET /customers/new", s.requireLogin(s.handleNewCustomer))
	mux.HandleFunc("POST /customers", s.requireLogin(s.handleCreateCustomer))
	mux.HandleFunc("GET /customers/{id}", s.requireLogin(s.handleCustomerDetail))

	mux.HandleFunc("GET /receipts", s.requireLogin(s.handleReceipts))
	mux.HandleFunc("GET /ui/receipts/table", s.requireLogin(s.handleReceiptsTable))
	mux.HandleFunc("POST /ui/receipts/items", s.requireLoginOrToken(s.handleReceiptItems))
	mux.HandleFunc("GET /receipts/new", s.requireLogin(s.handleNewReceipt))
	mux.HandleFunc("POST /receipts", s.requireLogin(s.handleCreateReceipt))
	mux.HandleFunc("GET /receipts/edit/{id}", s.requireLoginOrToken(s.handleEditReceipt))
	mux.HandleFunc("POST /receipts/edit/{id}", s.requireLoginOrToken(s.handleUpdateReceipt))
	mux.HandleFunc("POST /receipts/{id}/paid", s.requireLoginOrToken(s.handleMarkPaid))
	mux.HandleFunc("GET /receipts/{id}", s.requireLoginOrToken(s.handleReceiptDetail))
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldPath, r.URL.Path)
	if isHTMX(r) {
		NewHTMXResponse().
			Status(http.StatusTooManyRequests).
			Notify(NotificationError, "Terlalu banyak permintaan, coba lagi sebentar.").
			Write(w)
		return
	}
	http.Error(w, "Terlalu banyak permintaan, coba lagi sebentar.", http.StatusTooManyRequests)
}

// invalidateReceiptCaches drops everything derived from receipts after a
// write through this console.
func (s *Server) invalidateReceiptCaches(email string) {
	s.dailyCache.Purge()
	s.monthlyCache.Purge()
	if email != "" {
		s.customerCache.Delete(customerCacheKey(email))
	}
}

// Shutdown stops background cleanup goroutines and shuts the HTTP server down.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		if e := s.Server.Shutdown(ctx); e != nil && !errors.Is(e, http.ErrServerClosed) {
			err = fmt.Errorf("http shutdown: %w", e)
		}
	})
	return err
}

// render executes a named template, logging and failing with 500 on error.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	if s.templates == nil {
		s.logger.WithComponent(applog.ComponentTemplate).ErrorContext(r.Context(), "Templates not loaded",
			applog.FieldPath, r.URL.Path,
			"error_type", applog.ErrorTypeConfiguration)
		http.Error(w, "templates not loaded", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			applog.FieldError, err, "template", name)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
