package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	_ "golang.org/x/crypto/x509roots/fallback" // Embed CA certs for scratch container

	"github.com/ericfisherdev/keygate/internal/adapter/driven/flatfile"
	"github.com/ericfisherdev/keygate/internal/adapter/driven/linkjust"
	"github.com/ericfisherdev/keygate/internal/adapter/driven/redisstore"
	sqliteadapter "github.com/ericfisherdev/keygate/internal/adapter/driven/sqlite"
	httphandler "github.com/ericfisherdev/keygate/internal/adapter/driving/http"
	webhandler "github.com/ericfisherdev/keygate/internal/adapter/driving/web"
	"github.com/ericfisherdev/keygate/internal/application"
	"github.com/ericfisherdev/keygate/internal/config"
	"github.com/ericfisherdev/keygate/internal/domain/port/driven"
)

func main() {
	if err := run(); err != nil {
		slog.Error("fatal error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration (fail fast on missing required env vars).
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"listen_addr", cfg.ListenAddr,
		"store", cfg.Store,
		"key_ttl", cfg.KeyTTL,
		"cooldown", cfg.Cooldown,
		"fingerprint", cfg.FingerprintEnabled,
		"session_binding", cfg.SessionBindingEnabled,
		"cipher", cfg.CipherEnabled,
	)

	// 2. Setup signal-based context (SIGINT, SIGTERM).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Open the backing store.
	var (
		keyStore     driven.KeyStore
		tokenStore   driven.GateTokenStore
		sessionStore driven.SessionStore
	)
	switch cfg.Store {
	case "sqlite":
		db, err := sqliteadapter.NewDB(cfg.DBPath)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				slog.Error("error closing database", "error", closeErr)
			}
		}()
		if err := sqliteadapter.RunMigrations(db.Writer); err != nil {
			return err
		}
		slog.Info("database opened", "path", cfg.DBPath)

		keyStore = sqliteadapter.NewKeyRepo(db)
		tokenStore = sqliteadapter.NewGateTokenRepo(db)
		sessionStore = sqliteadapter.NewSessionRepo(db)
	case "file":
		store := flatfile.NewStore(cfg.StorePath, slog.Default())
		slog.Info("flat file store opened", "path", cfg.StorePath)

		keyStore = store.Keys()
		tokenStore = store.GateTokens()
		sessionStore = store.Sessions()
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store)
	}

	// 3b. Optional Redis overlay for the ephemeral state (gate tokens and
	// session bindings), for multi-replica deployments.
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer func() {
			if closeErr := rdb.Close(); closeErr != nil {
				slog.Error("error closing redis client", "error", closeErr)
			}
		}()
		tokenStore = redisstore.NewGateTokenStore(rdb)
		sessionStore = redisstore.NewSessionStore(rdb, cfg.KeyTTL)
		slog.Info("redis overlay enabled", "addr", cfg.RedisAddr)
	}

	// 4. Build the key cipher (identity transform when disabled).
	cipher, err := application.NewKeyCipher(cfg.SecretKey)
	if err != nil {
		return err
	}

	// 5. Wire application services.
	var binder *application.SessionBinder
	if cfg.SessionBindingEnabled {
		binder = application.NewSessionBinder(sessionStore, cfg.SessionKey, cfg.KeyTTL)
	}

	fp := application.NewFingerprinter(cfg.FingerprintEnabled)
	issueSvc := application.NewIssueService(keyStore, binder, cfg.KeyTTL, cfg.Cooldown)
	redeemSvc := application.NewRedeemService(keyStore, cipher)

	gate := linkjust.NewClient(cfg.GateURL, cfg.GateAPIKey, cfg.GateTimeout)
	gateSvc := application.NewGateService(tokenStore, gate, cfg.BaseURL, cfg.GateTokenTTL)

	// 6. Load the operator notice for the key page.
	notice := webhandler.LoadNotice(cfg.NoticePath, slog.Default())

	// 7. Register routes and apply middleware.
	apiHandler := httphandler.NewHandler(gateSvc, redeemSvc, slog.Default())
	mux := http.NewServeMux()
	httphandler.RegisterAPIRoutes(mux, apiHandler)

	webH := webhandler.NewHandler(issueSvc, gateSvc, binder, cipher, fp, notice, slog.Default())
	webhandler.RegisterRoutes(mux, webH)

	handler := httphandler.ApplyMiddleware(mux, slog.Default())

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		slog.Info("http server starting", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server error", "error", err)
		}
	}()

	// 8. Log startup complete.
	slog.Info("keygate started", "listen_addr", cfg.ListenAddr, "base_url", cfg.BaseURL)

	// 9. Wait for shutdown signal.
	<-ctx.Done()
	slog.Info("shutting down")

	// 10. Graceful shutdown with 10s timeout to drain in-flight requests.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("http server shutdown error", "error", err)
	}

	slog.Info("shutdown complete")
	return nil
}
