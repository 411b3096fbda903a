package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aka0kuro/hostberry-sub000/internal/audit"
	"github.com/aka0kuro/hostberry-sub000/internal/auth"
	"github.com/aka0kuro/hostberry-sub000/internal/background"
	"github.com/aka0kuro/hostberry-sub000/internal/config"
	"github.com/aka0kuro/hostberry-sub000/internal/gateway"
	"github.com/aka0kuro/hostberry-sub000/internal/handlers"
	middlewareCustom "github.com/aka0kuro/hostberry-sub000/internal/middleware"
	"github.com/aka0kuro/hostberry-sub000/internal/models"
	"github.com/aka0kuro/hostberry-sub000/internal/routes"
	"github.com/aka0kuro/hostberry-sub000/internal/security"
	"github.com/aka0kuro/hostberry-sub000/internal/store"
	pkgauth "github.com/aka0kuro/hostberry-sub000/pkg/auth"
	pkghttp "github.com/aka0kuro/hostberry-sub000/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load configuration", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("configuration loaded", slog.String("env", cfg.Server.Env))

	// The hashing backend is the one dependency we cannot degrade without:
	// refuse to start if the probe fails.
	if err := pkgauth.SelfCheck(); err != nil {
		logger.Error("password hashing self-check failed", slog.Any("error", err))
		os.Exit(1)
	}

	// Resolve the token signing secret once at startup
	secret := []byte(cfg.Auth.TokenSecret)
	if len(secret) == 0 {
		secret, err = auth.GenerateEphemeralSecret()
		if err != nil {
			logger.Error("failed to generate token secret", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Warn("no TOKEN_SECRET configured, using an ephemeral secret; tokens will not survive a restart")
	}

	// Audit trail is the only durable state
	auditLog, err := audit.Open(cfg.Audit.LogPath, logger)
	if err != nil {
		logger.Error("failed to open audit log", slog.String("path", cfg.Audit.LogPath), slog.Any("error", err))
		os.Exit(1)
	}
	defer auditLog.Close()

	// Credential store with the seeded administrative account
	principalStore := store.NewMemoryStore()
	if err := seedAdminPrincipal(principalStore, cfg, logger); err != nil {
		logger.Error("failed to seed admin principal", slog.Any("error", err))
		os.Exit(1)
	}

	// Security components
	tokenService := auth.NewTokenService(secret, cfg.Auth.TokenTTL)
	loginGuard := security.NewLoginGuard(principalStore, security.LoginGuardConfig{
		MaxAttempts:   cfg.Auth.MaxLoginAttempts,
		BlockDuration: cfg.Auth.LoginBlockDuration,
	}, logger)
	rateLimiter := security.NewRateLimiter(security.RateLimiterConfig{
		Enabled:     cfg.RateLimit.Enabled,
		MaxRequests: cfg.RateLimit.MaxRequests,
		Window:      cfg.RateLimit.Window,
	}, logger)
	accessFilter := security.NewAccessFilter(security.AccessFilterConfig{
		Blacklist:        cfg.Access.Blacklist,
		Whitelist:        cfg.Access.Whitelist,
		WhitelistEnabled: cfg.Access.WhitelistEnabled,
	})

	ipConfig := &pkghttp.IPConfig{TrustedProxies: cfg.Server.TrustedProxies}

	gw := gateway.New(accessFilter, rateLimiter, loginGuard, tokenService,
		principalStore, auditLog, logger, ipConfig, cfg.Auth.AdminUsername)

	// Handlers
	authHandler := handlers.NewAuthHandler(gw, ipConfig)
	accessHandler := handlers.NewAccessHandler(accessFilter, auditLog, ipConfig)

	// Background sweep of rate windows and expired lockouts
	cleanupManager := background.NewCleanupManager(rateLimiter, loginGuard, logger, cfg.RateLimit.CleanupInterval)

	// Setup router
	router := chi.NewRouter()
	// No RealIP middleware here: forwarded headers are honored only from
	// trusted proxies, inside pkg/http.ExtractClientIP.
	router.Use(middleware.RequestID)
	router.Use(middlewareCustom.SecurityHeaders(middlewareCustom.SecurityHeadersConfig{
		EnableHSTS: cfg.Headers.EnableHSTS,
		EnableCSP:  cfg.Headers.EnableCSP,
		CSP:        middlewareCustom.DefaultCSP(),
	}))
	router.Use(middlewareCustom.SecureLogger(logger))
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))
	router.Use(gw.Screen)

	routes.RegisterRoutes(router, authHandler, accessHandler, gw)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	})

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	defer cleanupCancel()

	go cleanupManager.Start(cleanupCtx)

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", slog.Any("error", err))
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received")

	cleanupCancel()
	cleanupManager.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	logger.Info("server stopped gracefully")
}

// seedAdminPrincipal creates the default administrative account. Logging in
// as this account flags must_change_password until the operator rotates it.
func seedAdminPrincipal(principalStore *store.MemoryStore, cfg *config.Config, logger *slog.Logger) error {
	password := cfg.Auth.AdminPassword
	if password == "" {
		// Ships with the well-known default; the login response tells the
		// operator to change it.
		password = "hostberry"
		logger.Warn("no ADMIN_PASSWORD set, seeding default admin credentials")
	}

	hashed, err := pkgauth.HashPassword(password, cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}

	principalStore.Put(&models.Principal{
		Username:     cfg.Auth.AdminUsername,
		PasswordHash: hashed,
		Active:       true,
		Admin:        true,
	})

	logger.Info("admin principal seeded", slog.String("username", cfg.Auth.AdminUsername))
	return nil
}
