// Package app boots the server: it loads configuration, opens the database,
// constructs every component and serves the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/blogforge/blogforge/internal/archive"
	"github.com/blogforge/blogforge/internal/config"
	"github.com/blogforge/blogforge/internal/db"
	"github.com/blogforge/blogforge/internal/http/api"
	"github.com/blogforge/blogforge/internal/identity"
	"github.com/blogforge/blogforge/internal/ledger"
	"github.com/blogforge/blogforge/internal/openai"
	"github.com/blogforge/blogforge/internal/orchestrator"
	"github.com/blogforge/blogforge/internal/payment"
	"github.com/blogforge/blogforge/internal/pricing"
	"github.com/blogforge/blogforge/internal/ratelimit"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RunServer boots the API server and blocks until ctx is cancelled or the
// listener fails.
func RunServer(ctx context.Context, appCfg config.AppConfig, port int) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	if strings.TrimSpace(cfg.Upstream.APIKey) == "" {
		return config.ErrMissingUpstreamKey
	}
	if strings.TrimSpace(cfg.JWT.Secret) == "" {
		return errors.New("missing jwt secret (set `jwt.secret` or env JWT_SECRET)")
	}

	conn, errOpen := db.Open(cfg.DSN())
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	credits := ledger.New(conn)
	store := archive.NewArchive(conn)
	accountant := pricing.NewAccountant(cfg.Pricing)
	upstream := openai.NewClient(cfg.Upstream)
	orch := orchestrator.New(upstream, credits, store, accountant, cfg.Generate)
	bridge := payment.NewBridge(conn, credits, cfg.Payment)
	resolver := identity.NewResolver(conn, cfg.JWT.Secret)
	limiter := ratelimit.NewManager(
		ratelimit.StaticProvider(ratelimit.SettingsFromConfig(cfg.Generate, cfg.Redis)),
		nil, nil)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	api.RegisterRoutes(engine, api.Dependencies{
		DB:           conn,
		Resolver:     resolver,
		Ledger:       credits,
		Orchestrator: orch,
		Archive:      store,
		Bridge:       bridge,
		Limiter:      limiter,
		JWT:          cfg.JWT,
		Generate:     cfg.Generate,
	})

	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s", addr)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}

// Migrate opens the database and runs migrations without starting the server.
func Migrate(_ context.Context, appCfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(appCfg.ConfigPath)
	cfg, errLoad := config.Load(configPath)
	if errLoad != nil {
		return errLoad
	}
	conn, errOpen := db.Open(cfg.DSN())
	if errOpen != nil {
		return errOpen
	}
	return db.Migrate(conn)
}
