// Package http exposes the JSON API: wallets, transactions, transfers,
// recurring rules, taxonomy and monthly summaries.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"moneta/internal/cache"
	"moneta/internal/core"
	"moneta/internal/ledger"
	"moneta/internal/middleware/ratelimit"
	"moneta/internal/middleware/trace"
	"moneta/internal/scheduler"
	"moneta/internal/storage"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Server struct {
	http.Server

	repo      *storage.Repository
	ledger    *ledger.Ledger
	transfers *ledger.TransferEngine
	scheduler *scheduler.Scheduler

	summaryCache *cache.LRUCache[core.WalletSummary]
	cacheManager *cache.Manager
	rateLimiter  *ratelimit.Limiter
	shutdownOnce sync.Once
}

// Options tunes server behavior beyond wiring.
type Options struct {
	SummaryCacheSize int
	SummaryCacheTTL  time.Duration
}

func defaultOptions(o Options) Options {
	if o.SummaryCacheSize <= 0 {
		o.SummaryCacheSize = 256
	}
	if o.SummaryCacheTTL <= 0 {
		o.SummaryCacheTTL = 5 * time.Minute
	}
	return o
}

// NewServer configures routes and middleware, returning a ready-to-run server.
func NewServer(addr string, repo *storage.Repository, opts Options) *Server {
	opts = defaultOptions(opts)

	l := ledger.New(repo)
	s := &Server{
		repo:         repo,
		ledger:       l,
		transfers:    ledger.NewTransferEngine(repo),
		scheduler:    scheduler.New(repo, l),
		summaryCache: cache.NewLRUCache[core.WalletSummary](opts.SummaryCacheSize, opts.SummaryCacheTTL),
		cacheManager: cache.NewManager(),
		rateLimiter:  ratelimit.NewLimiter(ratelimit.DefaultConfig()),
	}
	s.cacheManager.Register(s.summaryCache)
	s.cacheManager.StartCleanup(10 * time.Minute)

	s.Server = http.Server{
		Addr:    addr,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	tracer := trace.NewMiddleware(clientIP)
	r.Use(chimw.Recoverer)
	r.Use(tracer.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))
	r.Use(s.rateLimiter.Middleware(clientIP, nil))

	r.Get("/healthz", handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Route("/wallets", func(r chi.Router) {
			r.Get("/", s.handleListWallets)
			r.Post("/", s.handleCreateWallet)
			r.Get("/{id}", s.handleGetWallet)
			r.Delete("/{id}", s.handleDeleteWallet)
			r.Get("/{id}/summary", s.handleWalletSummary)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", s.handleListTransactions)
			r.Post("/", s.handleCreateTransaction)
			r.Get("/{id}", s.handleGetTransaction)
			r.Put("/{id}", s.handleUpdateTransaction)
			r.Delete("/{id}", s.handleDeleteTransaction)
		})

		r.Route("/transfers", func(r chi.Router) {
			r.Get("/", s.handleListTransfers)
			r.Post("/", s.handleCreateTransfer)
			r.Get("/{id}", s.handleGetTransfer)
		})

		r.Route("/recurring", func(r chi.Router) {
			r.Get("/", s.handleListRules)
			r.Post("/", s.handleCreateRule)
			r.Delete("/{id}", s.handleDeleteRule)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Get("/", s.handleListCategories)
			r.Post("/", s.handleCreateCategory)
		})

		r.Route("/parties", func(r chi.Router) {
			r.Get("/", s.handleListParties)
			r.Post("/", s.handleCreateParty)
		})
	})

	return r
}

// Shutdown stops the HTTP server and the background cleanup routines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// clientIP extracts the client address, honoring common proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
