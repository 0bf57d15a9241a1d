// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/oliverandrich/hookpanel/internal/config"
	"codeberg.org/oliverandrich/hookpanel/internal/database"
	"codeberg.org/oliverandrich/hookpanel/internal/handlers"
	"codeberg.org/oliverandrich/hookpanel/internal/i18n"
	"codeberg.org/oliverandrich/hookpanel/internal/metrics"
	"codeberg.org/oliverandrich/hookpanel/internal/repository"
	"codeberg.org/oliverandrich/hookpanel/internal/services/auth"
	"codeberg.org/oliverandrich/hookpanel/internal/services/bigcommerce"
	"codeberg.org/oliverandrich/hookpanel/internal/services/email"
	"codeberg.org/oliverandrich/hookpanel/internal/services/reset"
	"github.com/labstack/echo/v4"
	"github.com/urfave/cli/v3"
	"github.com/vinovest/sqlx"
)

// Server holds the router and the process-wide handles behind it.
type Server struct {
	Echo    *echo.Echo
	Metrics *metrics.Metrics
	cfg     *config.Config
	db      *sqlx.DB
}

// Run starts the server with the given CLI command.
func Run(ctx context.Context, cmd *cli.Command) error {
	cfg := config.NewFromCLI(cmd)
	slog.SetDefault(newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format))

	slog.Info("starting server",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"base_url", cfg.Server.BaseURL,
		"upstream", cfg.Upstream.BaseURL,
	)

	srv, err := New(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := srv.Close(); closeErr != nil {
			slog.Error("failed to close database", "error", closeErr)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return srv.startWithGracefulShutdown(ctx)
}

// New opens the database, builds every service and registers the routes.
func New(ctx context.Context, cfg *config.Config) (*Server, error) {
	db, err := database.Open(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if initErr := i18n.Init(); initErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to init i18n: %w", initErr)
	}

	m := metrics.New()
	repo := repository.New(db)
	authSvc := auth.NewService(repo)

	resetOpts := []reset.Option{
		reset.WithTTL(cfg.Reset.TokenTTL),
		reset.WithMetrics(m),
	}
	if cfg.SMTP.Enabled() {
		mailer, mailErr := email.NewService(&cfg.SMTP)
		if mailErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure email: %w", mailErr)
		}
		resetOpts = append(resetOpts, reset.WithMailer(mailer))
	} else {
		slog.Warn("SMTP not configured, password reset emails will not be sent")
	}
	resetSvc := reset.NewService(repo, authSvc, cfg.Reset.LinkBase, resetOpts...)

	if n, purgeErr := resetSvc.PurgeExpired(ctx); purgeErr != nil {
		slog.Error("failed to purge expired reset tokens", "error", purgeErr)
	} else if n > 0 {
		slog.Info("purged expired reset tokens", "count", n)
	}

	upstream := bigcommerce.NewClient(cfg.Upstream, nil, m)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = handlers.ErrorHandler

	setupMiddleware(e, cfg, m)
	setupRoutes(e, routeDeps{
		handlers: handlers.New(repo),
		webhooks: handlers.NewWebhooks(upstream),
		auth:     handlers.NewAuth(authSvc, resetSvc),
		metrics:  m,
	})

	return &Server{Echo: e, Metrics: m, cfg: cfg, db: db}, nil
}

// Close releases the database.
func (s *Server) Close() error {
	return s.db.Close()
}

func (s *Server) startWithGracefulShutdown(ctx context.Context) error {
	tlsResult, err := SetupTLS(s.cfg)
	if err != nil {
		return fmt.Errorf("TLS setup failed: %w", err)
	}

	e := s.Echo
	addr := fmt.Sprintf("%s:%d", s.cfg.Server.Host, s.cfg.Server.Port)
	errChan := make(chan error, 2)
	var redirectServer *http.Server

	serve := func(start func() error) {
		go func() {
			slog.Info("server running", "url", s.cfg.Server.BaseURL)
			if err := start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()
	}

	switch tlsResult.Mode {
	case TLSModeOff:
		serve(func() error { return e.Start(addr) })

	case TLSModeACME:
		serve(func() error { return startTLSServer(e, ":443", tlsResult.TLSConfig) })

		redirectServer = &http.Server{
			Addr:              ":80",
			Handler:           tlsResult.HTTPHandler,
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("HTTP to HTTPS redirect active", "addr", ":80")
			if err := redirectServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errChan <- err
			}
		}()

	case TLSModeSelfSigned, TLSModeManual:
		serve(func() error { return startTLSServer(e, addr, tlsResult.TLSConfig) })
	}

	select {
	case <-ctx.Done():
		slog.Info("shutting down server")
	case err := <-errChan:
		slog.Error("server error", "error", err)
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("failed to shutdown main server", "error", err)
	}
	if redirectServer != nil {
		if err := redirectServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("failed to shutdown HTTP redirect server", "error", err)
		}
	}

	slog.Info("server stopped")
	return nil
}

// startTLSServer starts the Echo server with a custom TLS configuration.
func startTLSServer(e *echo.Echo, addr string, tlsConfig *tls.Config) error {
	lc := &net.ListenConfig{}
	ln, err := lc.Listen(context.Background(), "tcp", addr)
	if err != nil {
		return err
	}
	e.TLSListener = tls.NewListener(ln, tlsConfig)
	e.TLSServer.TLSConfig = tlsConfig
	return e.TLSServer.Serve(e.TLSListener)
}
