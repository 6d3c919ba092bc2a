package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"portal/api/internal/authserver"
	"portal/api/internal/directory"
	"portal/api/internal/httpx"
	"portal/api/internal/metrics"
	"portal/api/internal/scheduler"
	"portal/api/internal/seed"
)

var authServerCmd = &cobra.Command{
	Use:   "authserver",
	Short: "Run the mock authentication service",
	Long: `authserver signs the seeded accounts in over POST /api/login, accepts
client logs on POST /api/logs and lists the directory to Admin tokens on
GET /api/admin/users. Point the portal at it with auth.mode=remote.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serveAuth(ctx)
	},
}

func serveAuth(ctx context.Context) error {
	fx, err := seed.Default(time.Now())
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}
	dir, err := directory.New(fx.Users)
	if err != nil {
		return fmt.Errorf("build directory: %w", err)
	}
	authn, err := directory.NewStatic(dir, fx.Accounts, cfg.AuthServer.Latency)
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	m := metrics.New("authserver")
	limiter := httpx.NewRateLimiter(cfg.AuthServer.LoginRate, cfg.AuthServer.LoginBurst)
	srv, err := authserver.New(authserver.Options{
		Directory:     dir,
		Authenticator: authn,
		JWTSecret:     cfg.AuthServer.JWTSecret,
		TokenTTL:      cfg.AuthServer.TokenTTL,
		Logger:        logger,
		Limiter:       limiter,
		Metrics:       m,
	})
	if err != nil {
		return err
	}

	jobs := scheduler.New(logger, m)
	if err := jobs.Add(scheduler.Job{
		Name: "login_limiter_cleanup",
		Spec: limiterCleanupSpec,
		Run:  func() int { return limiter.Cleanup(limiterIdleRetention) },
	}); err != nil {
		return err
	}
	jobs.Start()

	server := &http.Server{
		Addr:              cfg.AuthServer.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return run(ctx, server, func(shutdownCtx context.Context) {
		_ = jobs.Stop(shutdownCtx)
	})
}
