// Package api exposes the banking core over HTTP. Authentication lives in
// a gateway upstream: this layer reads the verified-identity headers the
// gateway injects and rejects requests that arrive without them.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"banking-core/pkg/accounts"
	"banking-core/pkg/bank"
	"banking-core/pkg/cache"
	"banking-core/pkg/ledger"
	"banking-core/pkg/loan"
	"banking-core/pkg/logging"
	"banking-core/pkg/store"
)

// Headers set by the upstream auth gateway.
const (
	HeaderUser = "X-Auth-User"
	HeaderRole = "X-Auth-Role"
)

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	// Address to listen on (e.g. ":8080")
	Address string

	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// HistoryTTL is how long cached transaction history stays valid.
	HistoryTTL time.Duration

	// HistoryLimit caps the number of records returned per history read.
	HistoryLimit int
}

// DefaultServerConfig returns a default configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Address:      ":8080",
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		HistoryTTL:   2 * time.Minute,
		HistoryLimit: 50,
	}
}

// Server wires the core services behind a gorilla/mux router.
type Server struct {
	config   ServerConfig
	accounts *accounts.Service
	engine   *ledger.Engine
	loans    *loan.Service
	store    store.Store
	history  cache.HistoryCache
	sf       singleflight.Group
	logger   *logging.Logger
	server   *http.Server
}

// NewServer builds the router. metricsHandler serves /metrics and may be
// nil to disable the endpoint; history may be nil for no caching.
func NewServer(
	config ServerConfig,
	accountSvc *accounts.Service,
	engine *ledger.Engine,
	loanSvc *loan.Service,
	st store.Store,
	history cache.HistoryCache,
	metricsHandler http.Handler,
	logger *logging.Logger,
) *Server {
	if logger == nil {
		logger = logging.Nop()
	}
	if history == nil {
		history = cache.Noop{}
	}

	s := &Server{
		config:   config,
		accounts: accountSvc,
		engine:   engine,
		loans:    loanSvc,
		store:    st,
		history:  history,
		logger:   logger.Named("api"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	if metricsHandler != nil {
		r.Handle("/metrics", metricsHandler).Methods(http.MethodGet)
	}

	r.HandleFunc("/accounts", s.handleOpenAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts", s.handleListAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{number}", s.handleGetAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{number}/transactions", s.handleListTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transfers", s.handleTransfer).Methods(http.MethodPost)
	r.HandleFunc("/loans", s.handleApplyLoan).Methods(http.MethodPost)
	r.HandleFunc("/loans", s.handleListLoans).Methods(http.MethodGet)
	r.HandleFunc("/loans/{id}/review", s.handleReviewLoan).Methods(http.MethodPost)

	s.server = &http.Server{
		Addr:         config.Address,
		Handler:      r,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	}

	return s
}

// Handler returns the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start begins serving in a goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("http server listening", zap.String("address", s.config.Address))
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// identityFrom extracts the gateway-verified caller identity. The role
// defaults to customer when the gateway omits it.
func identityFrom(r *http.Request) (bank.Identity, bool) {
	user := r.Header.Get(HeaderUser)
	if user == "" {
		return bank.Identity{}, false
	}
	role := bank.Role(r.Header.Get(HeaderRole))
	if role == "" {
		role = bank.RoleCustomer
	}
	return bank.Identity{Email: user, Role: role}, true
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}
