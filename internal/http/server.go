package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"tkpay/internal/cache"
	"tkpay/internal/core"
	"tkpay/internal/invoice"
	applog "tkpay/internal/log"
	"tkpay/internal/middleware/ratelimit"
	"tkpay/internal/middleware/security"
	"tkpay/internal/middleware/trace"
	"tkpay/internal/services"
	appweb "tkpay/web"
)

// StateService is the part of the state manager the web layer drives.
type StateService interface {
	AddTransaction(ctx context.Context, name string, amount decimal.Decimal) (core.Transaction, error)
	DeleteTransaction(ctx context.Context, id string) (bool, error)
	ClearCurrentTransactions(ctx context.Context) error
	AddRecipient(ctx context.Context, name string) error
	SaveCurrentTransactions(ctx context.Context) (string, error)
	LoadTransactionsFromHistory(ctx context.Context, dateKey string) error
	DeleteHistoryEntry(ctx context.Context, dateKey string) error
	ClearAllData(ctx context.Context) error
	Transactions() []core.Transaction
	Snapshot() services.State
	RemoteAvailable() bool
}

// Options configures NewServer. Zero values fall back to defaults.
type Options struct {
	Addr   string
	State  StateService
	Logger *applog.Logger

	InvoiceCacheSize   int
	InvoiceCacheTTL    time.Duration
	RateLimitPerMinute int

	// CacheManager sweeps the invoice cache; nil starts a private one.
	CacheManager *cache.Manager

	// Location renders entry times; nil means time.Local.
	Location *time.Location
	Now      func() time.Time
}

type appMetrics struct {
	uptime            time.Time
	transactionsAdded atomic.Int64
	snapshotsSaved    atomic.Int64
	invoicesRendered  atomic.Int64
	remoteFailures    atomic.Int64
}

type Server struct {
	http.Server
	templates *template.Template
	state     StateService
	logger    *applog.Logger
	loc       *time.Location
	now       func() time.Time

	renderer     *invoice.Renderer
	invoiceCache *cache.LRUCache[[]byte]
	cacheManager *cache.Manager
	ownsManager  bool

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	// remoteWarned is set once the unavailable-remote banner has been shown.
	remoteWarned atomic.Bool

	icons     map[int][]byte
	iconsOnce sync.Once
	iconsErr  error

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.Discard()
	}
	if opts.InvoiceCacheSize <= 0 {
		opts.InvoiceCacheSize = 50
	}
	if opts.InvoiceCacheTTL <= 0 {
		opts.InvoiceCacheTTL = 10 * time.Minute
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              opts.Addr,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      30 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
		state:            opts.State,
		logger:           logger.WithComponent(applog.ComponentHTTP),
		loc:              loc,
		now:              now,
		invoiceCache:     cache.NewLRUCache[[]byte](opts.InvoiceCacheSize, opts.InvoiceCacheTTL),
		cacheManager:     opts.CacheManager,
		securityDetector: security.NewDetector(),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}
	s.renderer = invoice.NewRenderer(s.invoiceCache)
	s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	s.traceMiddleware = trace.NewMiddleware(logger, s.securityDetector.ExtractClientIP)

	if s.cacheManager == nil {
		s.cacheManager = cache.NewManager(logger.WithComponent(applog.ComponentCache).Logger)
		s.ownsManager = true
	}
	s.cacheManager.Register(s.invoiceCache)
	s.cacheManager.StartCleanup(5 * time.Minute)

	// Parse embedded templates at startup.
	t, err := template.ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Error("Failed parsing templates",
			applog.FieldError, err,
			applog.FieldComponent, applog.ComponentTemplate)
	} else {
		s.templates = t
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", applog.FieldError, err)
	}

	// PWA shell
	mux.HandleFunc("/manifest.webmanifest", s.handleManifest)
	mux.Handle("/service-worker.js", security.NoStoreMiddleware(http.HandlerFunc(s.handleServiceWorker)))
	mux.HandleFunc("/icon-192.png", s.handleIcon(192))
	mux.HandleFunc("/icon-512.png", s.handleIcon(512))

	// Ops
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// Pages and partials
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/ui/transactions", s.handleTransactionsPartial)
	mux.HandleFunc("/ui/history", s.handleHistoryPartial)
	mux.HandleFunc("/ui/recipients", s.handleRecipientsPartial)

	// Mutations
	mux.HandleFunc("/transactions", s.handleAddTransaction)
	mux.HandleFunc("/transactions/delete", s.handleDeleteTransaction)
	mux.HandleFunc("/recipients", s.handleAddRecipient)
	mux.HandleFunc("/save", s.handleSave)
	mux.HandleFunc("/history/load", s.handleLoadHistory)
	mux.HandleFunc("/history/delete", s.handleDeleteHistory)
	mux.HandleFunc("/clear", s.handleClearAll)

	// Exports
	mux.HandleFunc("/invoice", s.handleInvoice)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limit := s.rateLimiter.Middleware(s.securityDetector.ExtractClientIP, ratelimit.Mutating, s.onRateLimited)

	var handler http.Handler = mux
	handler = limit(handler)
	handler = s.securityDetector.Middleware(true)(handler)
	handler = headers.Middleware(handler)
	handler = s.traceMiddleware.Middleware(handler)
	s.Handler = handler

	return s
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ExtractClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "Too many requests. Please wait a moment.").
		TriggerErrorNotification("Too many requests. Please wait a moment.").
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	// Ensure shutdown logic runs only once
	s.shutdownOnce.Do(func() {
		if s.ownsManager {
			s.cacheManager.Stop()
		}
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
