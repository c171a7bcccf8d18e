// cmd/integrations-service/main.go
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/catalog"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/hubapi"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/policy"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/store"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/internal/usage"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/config"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/connectors"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/db"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/logger"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/middleware"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/secrets"
	"github.com/kobe-finance/voice-orchestrate-hub-sub000/pkg/tenants"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()
	ctx := context.Background()

	pool, err := db.Connect(ctx, cfg, log)
	if err != nil {
		log.Fatalw("postgres", "err", err)
	}

	var (
		prov tenants.Provider
		st   store.Store
	)
	if pool != nil {
		if err := tenants.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("tenant schema", "err", err)
		}
		if err := tenants.SeedFromEnv(ctx, pool, cfg.TenantSeedJSON); err != nil {
			log.Warnw("seed", "err", err)
		}
		if err := store.EnsureSchema(ctx, pool); err != nil {
			log.Fatalw("store schema", "err", err)
		}
		prov = tenants.NewPostgresProvider(pool, log)
		st = store.NewPostgres(pool, log)
	} else {
		prov = tenants.NewMemoryProviderFromSeed(cfg.TenantSeedJSON, log)
		st = store.NewMemory()
	}

	rdb, err := db.ConnectRedis(ctx, cfg, log)
	if err != nil {
		log.Fatalw("redis", "err", err)
	}
	var counter usage.Counter
	if rdb != nil {
		counter = usage.NewRedis(rdb)
	} else {
		counter = usage.NewMemory()
	}

	cat, err := loadCatalog(cfg.CatalogPath)
	if err != nil {
		log.Fatalw("catalog", "path", cfg.CatalogPath, "err", err)
	}
	reg := connectors.NewRegistry()
	reg.RegisterFactory(connectors.KindHTTP, connectors.HTTPFactory(nil))
	if err := cat.Register(reg); err != nil {
		log.Fatalw("register providers", "err", err)
	}

	guard, err := policy.NewGuard(ctx, cfg.DispatchPolicyPath, log)
	if err != nil {
		log.Fatalw("dispatch policy", "path", cfg.DispatchPolicyPath, "err", err)
	}

	sealer, err := secrets.NewSealer(cfg.EncryptionKey)
	if err != nil {
		log.Fatalw("sealer", "err", err)
	}
	if !sealer.Enabled() {
		if cfg.IsProd() {
			log.Fatalw("ENCRYPTION_KEY is required in prod")
		}
		log.Warnw("ENCRYPTION_KEY not set, credentials are stored unsealed")
	}

	app, err := hubapi.New(hubapi.Deps{
		Config:          cfg,
		Log:             log,
		Catalog:         cat,
		Store:           st,
		Sealer:          sealer,
		Connectors:      reg,
		Guard:           guard,
		Usage:           counter,
		Tenants:         prov,
		Keys:            middleware.RemoteKeys(6 * time.Hour),
		ProviderTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		log.Fatalw("app", "err", err)
	}

	r := chi.NewRouter()
	if !cfg.IsProd() {
		r.Use(devCORS)
	}
	r.Mount("/", app.Handler())

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		log.Infow("integrations-service listening", "addr", cfg.HTTPAddr, "env", cfg.Env, "providers", reg.Names())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdown)
	if pool != nil {
		pool.Close()
	}
	log.Infow("integrations-service stopped")
}

func loadCatalog(path string) (*catalog.Catalog, error) {
	if path == "" {
		return catalog.Default()
	}
	return catalog.Load(path)
}

// devCORS lets local dashboards call the service with credentials.
func devCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if origin := r.Header.Get("Origin"); origin != "" {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Vary", "Origin")
		} else {
			w.Header().Set("Access-Control-Allow-Origin", "*")
		}
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type, X-Tenant-ID, X-User-ID, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", "86400")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
