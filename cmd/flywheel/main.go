// Command flywheel is the process entrypoint: it loads configuration, wires
// every engine named in the design, starts them in dependency order, and
// drains them on SIGINT/SIGTERM. Exit code 0 is a clean shutdown, 1 a
// configuration failure, 2 a fatal runtime failure after a drain attempt.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solward/flywheel/internal/admin"
	"github.com/solward/flywheel/internal/bot"
	"github.com/solward/flywheel/internal/chain"
	"github.com/solward/flywheel/internal/claimengine"
	"github.com/solward/flywheel/internal/config"
	core "github.com/solward/flywheel/internal/core"
	"github.com/solward/flywheel/internal/cycle"
	"github.com/solward/flywheel/internal/depositmonitor"
	"github.com/solward/flywheel/internal/errsink"
	"github.com/solward/flywheel/internal/httpapi"
	"github.com/solward/flywheel/internal/marketcache"
	"github.com/solward/flywheel/internal/scheduler"
	"github.com/solward/flywheel/internal/signer"
	"github.com/solward/flywheel/internal/storage"
	"github.com/solward/flywheel/internal/storage/memory"
	"github.com/solward/flywheel/internal/storage/postgres"
	"github.com/solward/flywheel/internal/strategy"
	"github.com/solward/flywheel/internal/system"
	"github.com/solward/flywheel/internal/tokenlock"
	"github.com/solward/flywheel/internal/tradingsdk"
	"github.com/solward/flywheel/pkg/logger"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		// logger needs cfg to configure; fall back to a bare default here.
		logger.NewDefault("bootstrap").WithError(err).Error("configuration failed")
		return 1
	}

	log := logger.New(cfg.Logging)
	log.WithFields(map[string]interface{}{"env": cfg.Env, "chain": cfg.Chain.ChainName}).Info("starting flywheel")

	store, err := openStore(cfg)
	if err != nil {
		log.WithError(err).Error("failed to open store")
		return 1
	}

	registry := prometheus.NewRegistry()
	sink := errsink.New(10 * time.Minute)

	rpc := chain.NewHTTPRPCDriver("primary", cfg.Chain.RPCURL, "", "", chainID(cfg))

	var remoteSigner signer.RemoteSigner
	if cfg.Signer.BaseURL != "" {
		remoteSigner = signer.NewHTTPRemoteSigner(cfg.Signer.BaseURL, cfg.Signer.AppID, cfg.Signer.APIKey, "")
	}
	var localSigner signer.LocalSigner
	if cfg.Signer.LocalKeyHex != "" {
		localSigner = signer.NewEd25519LocalSigner()
	}
	gateway := signer.New(rpc, remoteSigner, localSigner, registry, core.NoopTracer)

	sources := []marketcache.PriceSource{marketcache.NewHTTPPriceSource("primary", cfg.Chain.RPCURL)}
	cache := marketcache.New(rpc, sources)
	walletSource := tokenWalletSource(store)
	refresher := marketcache.NewRefresher(cache, rpc, chainID(cfg), walletSource, 30*time.Second)

	tradingClient := tradingsdk.NewHTTPClient(cfg.Trading.BaseURL, cfg.Trading.APIKey)

	strategies := strategy.DefaultRegistry()
	machine := cycle.New(store, cache, gateway, tradingClient, chainID(cfg), strategies)

	locks := tokenlock.New()

	sched := scheduler.New(scheduler.Config{
		Store:              store,
		Machine:            machine,
		Locks:              locks,
		Sink:               sink,
		Period:             cfg.Jobs.SchedulerPeriod,
		MaxTradesPerMinute: cfg.Jobs.MaxTradesPerMinute,
		InterTokenDelay:    cfg.Jobs.InterTokenDelay,
		Registry:           registry,
	})

	wallets := claimengine.NewStoreDirectory(store, cfg.Signer.AppID)
	claims := claimengine.New(claimengine.Config{
		Store:    store,
		Platform: tradingClient,
		Gateway:  gateway,
		Wallets:  wallets,
		Locks:    locks,
		Sink:     sink,
		ChainID:  chainID(cfg),
		Period:   cfg.Jobs.ClaimJobPeriod,
	})

	notifier := bot.NewLoggingNotifier()
	monitor := depositmonitor.New(depositmonitor.Config{
		Store:    store,
		Cache:    cache,
		ChainID:  chainID(cfg),
		Notifier: notifier,
		Period:   cfg.Jobs.DepositMonitorPeriod,
	})

	plane := admin.New(store, sched, claims, monitor)

	httpServer := httpapi.New(httpapi.Config{
		Store:    store,
		Admin:    plane,
		Cache:    cache,
		ClaimSDK: tradingClient,
		Auth: httpapi.AuthConfig{
			BearerTokens: cfg.HTTP.BearerTokens(),
			JWTSecret:    []byte(cfg.HTTP.JWTSecret),
			JWTExpiry:    cfg.HTTP.JWTExpiry,
		},
		AllowedCORS: cfg.HTTP.CORSOrigins(),
		Registry:    registry,
	})

	services := []system.Service{refresher, sched, claims, monitor}
	if !cfg.Jobs.DepositMonitorEnabled {
		services = dropService(services, monitor)
	}
	if !cfg.Jobs.MultiUserFlywheelEnabled {
		services = dropService(services, sched)
	}
	if !cfg.Jobs.FastClaimEnabled {
		services = dropService(services, claims)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	for _, svc := range services {
		if err := svc.Start(ctx); err != nil {
			log.WithError(err).WithField("service", svc.Name()).Error("failed to start service")
			return 2
		}
		log.WithField("service", svc.Name()).Info("service started")
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Host + ":" + httpPort(cfg),
		Handler:           httpServer,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	exitCode := 0
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serveErr:
		if err != nil {
			log.WithError(err).Error("http server failed")
			exitCode = 2
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("http server shutdown error")
		exitCode = 2
	}

	for i := len(services) - 1; i >= 0; i-- {
		svc := services[i]
		if err := svc.Stop(shutdownCtx); err != nil {
			log.WithError(err).WithField("service", svc.Name()).Error("service failed to drain")
			exitCode = 2
			continue
		}
		log.WithField("service", svc.Name()).Info("service stopped")
	}

	log.Info("flywheel shut down")
	return exitCode
}

func chainID(cfg *config.Config) chain.ChainID {
	switch cfg.Chain.ChainName {
	case "neo-n3":
		return chain.ChainNeoN3
	case "neo-x":
		return chain.ChainNeoX
	case "ethereum":
		return chain.ChainEthereum
	default:
		return chain.ChainSolana
	}
}

func httpPort(cfg *config.Config) string {
	if cfg.HTTP.Port <= 0 {
		return "8080"
	}
	return strconv.Itoa(cfg.HTTP.Port)
}

func openStore(cfg *config.Config) (storage.Store, error) {
	if cfg.Database.DSN == "" {
		return memory.New(), nil
	}
	return postgres.Open(cfg.Database.DSN, postgres.Options{
		MaxOpenConns:   cfg.Database.MaxOpenConns,
		MaxIdleConns:   cfg.Database.MaxIdleConns,
		MigrateOnStart: cfg.Database.MigrateOnStart,
	})
}

func tokenWalletSource(store storage.Store) marketcache.WalletSource {
	return func(ctx context.Context) ([]string, error) {
		tokens, err := store.ListTokens(ctx)
		if err != nil {
			return nil, err
		}
		wallets := make([]string, 0, len(tokens)*2)
		for _, t := range tokens {
			wallets = append(wallets, t.DevWallet, t.OpsWallet)
		}
		return wallets, nil
	}
}

func dropService(services []system.Service, target system.Service) []system.Service {
	out := make([]system.Service, 0, len(services))
	for _, s := range services {
		if s == target {
			continue
		}
		out = append(out, s)
	}
	return out
}
