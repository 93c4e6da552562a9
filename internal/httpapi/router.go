// Package httpapi exposes the Admin, Lifecycle, and Read HTTP surfaces
// named in §10.4/§6, grounded on the teacher's cmd/gateway: a hand-rolled
// net/http + gorilla/mux router (the teacher reaches for gorilla/mux over
// gin for its own gateway despite gin being available in the dependency
// set) with a JWT/bearer-token/wallet-signature auth chain and structured
// per-request logging.
package httpapi

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/solward/flywheel/internal/admin"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/ratelimit"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/tradingsdk"
	"github.com/solward/flywheel/pkg/logger"
)

// Config wires every dependency the HTTP surface needs.
type Config struct {
	Store       storage.Store
	Admin       *admin.Plane
	Cache       *marketcache.Cache
	ClaimSDK    tradingsdk.ClaimPlatform
	Auth        AuthConfig
	AllowedCORS []string
	Registry    prometheus.Registerer
}

// Server bundles the router and its dependencies.
type Server struct {
	router *mux.Router
	store  storage.Store
	admin  *admin.Plane
	cache  *marketcache.Cache
	claims tradingsdk.ClaimPlatform
	auth   *authenticator
	log    *logger.Logger
}

// New builds a Server with every route registered.
func New(cfg Config) *Server {
	s := &Server{
		router: mux.NewRouter(),
		store:  cfg.Store,
		admin:  cfg.Admin,
		cache:  cfg.Cache,
		claims: cfg.ClaimSDK,
		auth:   newAuthenticator(cfg.Auth),
		log:    logger.NewDefault("http-api"),
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "flywheel_http_requests_total",
		Help: "HTTP requests by method, path, and status.",
	}, []string{"method", "path", "status"})
	if cfg.Registry != nil {
		cfg.Registry.MustRegister(requests)
	}

	s.router.Use(loggingMiddleware(s.log))
	s.router.Use(corsMiddleware(cfg.AllowedCORS))
	s.router.Use(metricsMiddleware(requests))
	s.router.Use(rateLimitMiddleware(ratelimit.NewKeyed(ratelimit.DefaultConfig())))
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/healthz", s.handleHealthz).Methods(http.MethodGet)

	s.router.HandleFunc("/auth/wallet/challenge", s.handleWalletChallenge).Methods(http.MethodPost)
	s.router.HandleFunc("/auth/wallet/verify", s.handleWalletVerify).Methods(http.MethodPost)

	authed := s.router.NewRoute().Subrouter()
	authed.Use(s.auth.Middleware)

	readRoutes := authed.PathPrefix("/tokens").Subrouter()
	readRoutes.HandleFunc("", s.handleListTokens).Methods(http.MethodGet)
	readRoutes.HandleFunc("/{mint}", s.handleGetToken).Methods(http.MethodGet)
	readRoutes.HandleFunc("/{mint}/claimable", s.handleGetClaimable).Methods(http.MethodGet)

	lifecycleRoutes := authed.PathPrefix("/lifecycle").Subrouter()
	lifecycleRoutes.HandleFunc("/pending-activations", s.handleCreatePendingActivation).Methods(http.MethodPost)
	lifecycleRoutes.HandleFunc("/pending-activations/{id}", s.handleCancelPendingActivation).Methods(http.MethodDelete)
	lifecycleRoutes.HandleFunc("/tokens/{id}/reactivate", s.handleReactivateToken).Methods(http.MethodPost)

	adminRoutes := authed.PathPrefix("/admin").Subrouter()
	adminRoutes.Use(auditMiddleware(s.log))
	adminRoutes.HandleFunc("/config", s.handleUpdateConfig).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/jobs", s.handleListJobs).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/jobs/{job}/trigger", s.handleTriggerJob).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/jobs/{job}/enabled", s.handleSetJobEnabled).Methods(http.MethodPost)
	adminRoutes.HandleFunc("/wheel", s.handleWheel).Methods(http.MethodGet)
	adminRoutes.HandleFunc("/tokens/{id}/config", s.handleUpsertTokenConfig).Methods(http.MethodPost)

	return s
}

// ServeHTTP satisfies http.Handler so Server can be passed directly to http.Server.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) { s.router.ServeHTTP(w, r) }

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok","time":"` + time.Now().UTC().Format(time.RFC3339) + `"}`))
}
