package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portal/api/internal/app"
	"portal/api/internal/auth"
	"portal/api/internal/config"
	"portal/api/internal/directory"
	"portal/api/internal/email"
	"portal/api/internal/export"
	"portal/api/internal/httpx"
	"portal/api/internal/metrics"
	"portal/api/internal/objects"
	"portal/api/internal/portal"
	"portal/api/internal/scheduler"
	"portal/api/internal/search"
	"portal/api/internal/seed"
	"portal/api/internal/session"
)

const (
	tokenIssuer          = "platform-portal"
	meiliHealthInterval  = 30 * time.Second
	limiterCleanupSpec   = "@every 10m"
	limiterIdleRetention = 30 * time.Minute
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the portal API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		return serve(ctx)
	},
}

func newAuthenticator(dir *directory.Directory, fx seed.Fixtures) (directory.Authenticator, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		logger.Warn("mock authentication enabled: any password signs in, role is picked from the username")
		return directory.NewRoleMatch(dir, cfg.Auth.Latency), nil
	case config.AuthModeRemote:
		return directory.NewRemote(cfg.Auth.RemoteURL, cfg.Auth.LoginTimeout), nil
	default:
		return directory.NewStatic(dir, fx.Accounts, cfg.Auth.Latency)
	}
}

func newSessionStore() (session.Store, error) {
	if strings.TrimSpace(cfg.Redis.URL) == "" {
		logger.Info("using in-memory session store")
		return session.NewMemoryStore(nil), nil
	}
	logger.Info("using redis session store")
	return session.NewRedisStore(cfg.Redis.URL)
}

func serve(ctx context.Context) error {
	fx, err := seed.Default(time.Now())
	if err != nil {
		return fmt.Errorf("load fixtures: %w", err)
	}
	dir, err := directory.New(fx.Users)
	if err != nil {
		return fmt.Errorf("build directory: %w", err)
	}
	authn, err := newAuthenticator(dir, fx)
	if err != nil {
		return fmt.Errorf("build authenticator: %w", err)
	}

	m := metrics.New("portal")
	p, err := portal.New(portal.Config{
		Fixtures:      fx,
		Directory:     dir,
		Authenticator: authn,
		LoginTimeout:  cfg.Auth.LoginTimeout,
		Logger:        logger,
		Observer:      m,
	})
	if err != nil {
		return err
	}
	m.Gauge("sessions", "active_clients", "Portal clients currently open.", func() float64 {
		return float64(p.ClientCount())
	})
	m.Gauge("audit", "entries", "Audit entries currently retained.", func() float64 {
		return float64(p.Audit.Len())
	})

	sessions, err := newSessionStore()
	if err != nil {
		return fmt.Errorf("session store: %w", err)
	}
	defer sessions.Close()

	var ranker search.Ranker
	if strings.TrimSpace(cfg.Search.MeiliURL) != "" {
		meili := search.NewMeili(cfg.Search.MeiliURL, cfg.Search.MeiliMasterKey, cfg.Search.IndexName,
			search.Records(p.Catalog), meiliHealthInterval, logger)
		defer meili.Close()
		ranker = meili
	}

	opts := app.Options{
		Portal:   p,
		Issuer:   auth.NewIssuer(cfg.Auth.JWTSecret, tokenIssuer, cfg.Auth.AccessTTL),
		Sessions: sessions,
		Search:   search.NewService(p.Catalog, ranker, logger),
		Exporter: export.NewService(p.Audit, cfg.Export.Timeout, logger),
		Logger:   logger,
	}
	if cfg.Objects.Endpoint != "" {
		presigner, err := objects.NewPresigner(objects.Config{
			Endpoint:  cfg.Objects.Endpoint,
			AccessKey: cfg.Objects.AccessKey,
			SecretKey: cfg.Objects.SecretKey,
			Bucket:    cfg.Objects.Bucket,
			Region:    cfg.Objects.Region,
			UseSSL:    cfg.Objects.UseSSL,
			LinkTTL:   cfg.Objects.LinkTTL,
		})
		if err != nil {
			return fmt.Errorf("object storage: %w", err)
		}
		opts.Linker = presigner
	}
	if cfg.Email.Host != "" {
		opts.Mailer = email.NewService(email.Config{
			Host:     cfg.Email.Host,
			Port:     cfg.Email.Port,
			Username: cfg.Email.Username,
			Password: cfg.Email.Password,
			From:     cfg.Email.From,
			FromName: cfg.Email.FromName,
		})
		logger.Info("email alerts enabled", zap.String("smtp_host", cfg.Email.Host))
	}
	service := app.New(opts)

	limiter := httpx.NewRateLimiter(cfg.Auth.LoginRate, cfg.Auth.LoginBurst)
	sessionLimiter := httpx.NewRateLimiter(cfg.Auth.SessionRate, cfg.Auth.SessionBurst)
	jobs := scheduler.New(logger, m)
	for _, job := range append(scheduler.PortalJobs(p, cfg.Retention), scheduler.Job{
		Name: "login_limiter_cleanup",
		Spec: limiterCleanupSpec,
		Run: func() int {
			return limiter.Cleanup(limiterIdleRetention) + sessionLimiter.Cleanup(limiterIdleRetention)
		},
	}) {
		if err := jobs.Add(job); err != nil {
			return err
		}
	}
	jobs.Start()

	httpServer := app.NewHTTPServer(service, app.ServerOptions{
		CORSOrigin:     cfg.Server.CORSOrigin,
		Logger:         logger,
		Metrics:        m,
		LoginLimiter:   limiter,
		SessionLimiter: sessionLimiter,
	})
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           httpServer.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
		IdleTimeout:       cfg.Server.IdleTimeout,
	}
	return run(ctx, server, func(shutdownCtx context.Context) {
		if err := jobs.Stop(shutdownCtx); err != nil {
			logger.Warn("scheduler stop", zap.Error(err))
		}
	})
}

// run serves until ctx is cancelled, then shuts down gracefully and calls
// cleanup with the shutdown deadline.
func run(ctx context.Context, server *http.Server, cleanup func(context.Context)) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}
	if cleanup != nil {
		cleanup(shutdownCtx)
	}
	return nil
}
