// Package http serves the expense query engine as a JSON API.
package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"ledger/internal/cache"
	"ledger/internal/core"
	"ledger/internal/log"
	"ledger/internal/middleware/ratelimit"
	"ledger/internal/middleware/security"
	"ledger/internal/middleware/trace"
	"ledger/internal/store"
)

// UserHeader names the acting user of an API request.
const UserHeader = "X-Ledger-User"

// Queries is the part of the query service the API needs.
type Queries interface {
	ResolveActor(ctx context.Context, username string) (core.Actor, error)
	List(ctx context.Context, actor core.Actor, filterText string) ([]core.ExpenseRow, error)
	Analytics(ctx context.Context, actor core.Actor, filterText string) (core.Analytics, error)
	Activities(ctx context.Context, actor core.Actor, username string, limit int) ([]core.Activity, error)
}

type Config struct {
	Addr              string
	RequestsPerMinute int
	// ActorCacheTTL bounds how long a resolved role is reused. Zero
	// disables the cache.
	ActorCacheTTL time.Duration
}

type Server struct {
	http.Server
	queries Queries
	pinger  store.Pinger
	logger  *log.Logger

	tracer  *trace.Middleware
	limiter *ratelimit.Limiter
	ips     *security.IPExtractor
	actors  *cache.LRU[string, core.Actor]
	caches  *cache.Manager

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware and returns a server ready for
// ListenAndServe.
func NewServer(cfg Config, queries Queries, pinger store.Pinger, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentHTTP)

	s := &Server{
		queries: queries,
		pinger:  pinger,
		logger:  logger,
		ips:     security.NewIPExtractor(),
		limiter: ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: cfg.RequestsPerMinute}),
		caches:  cache.NewManager(logger),
	}
	s.tracer = trace.NewMiddleware(logger, s.ips.ClientIP)

	if cfg.ActorCacheTTL > 0 {
		s.actors = cache.NewLRU[string, core.Actor](1000, cfg.ActorCacheTTL)
		s.caches.Register(s.actors)
		s.caches.StartCleanup(10 * time.Minute)
	}

	api := func(h http.HandlerFunc) http.Handler {
		return s.limiter.Middleware(s.rateKeys, s.handleRateLimited)(h)
	}

	mux := http.NewServeMux()
	mux.Handle("GET /api/expenses", api(s.handleExpenses))
	mux.Handle("GET /api/analytics", api(s.handleAnalytics))
	mux.Handle("GET /api/activities", api(s.handleActivities))
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	s.Server = http.Server{
		Addr:              cfg.Addr,
		Handler:           s.tracer.Middleware(headers.Middleware(mux)),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// rateKeys buckets requests by client address and, when named, by acting
// user too. The user header is unauthenticated, so rotating it never gets
// a caller past the address bucket.
func (s *Server) rateKeys(r *http.Request) []string {
	keys := []string{"ip:" + s.ips.ClientIP(r)}
	if u := strings.TrimSpace(r.Header.Get(UserHeader)); u != "" {
		keys = append(keys, "user:"+u)
	}
	return keys
}

// Shutdown stops background goroutines and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.caches.Stop()
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}
