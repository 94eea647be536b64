package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/koopa0/widgetd/internal/api"
	"github.com/koopa0/widgetd/internal/config"
	"github.com/koopa0/widgetd/internal/log"
	"github.com/koopa0/widgetd/internal/widget"
)

// Server timeout configuration.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 0 // SSE sessions are long-lived; no write deadline
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

// runServe initializes and starts the widget protocol server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: cfg.Level(), JSON: cfg.LogJSON})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	server, err := api.NewServer(api.ServerConfig{
		Logger:      logger,
		Widgets:     demoWidgets(),
		ServerName:  cfg.ServerName,
		Version:     Version,
		BaseURL:     cfg.BaseURL,
		AssetsDir:   cfg.AssetsDir,
		SSEPath:     cfg.SSEPath,
		MessagePath: cfg.MessagePath,
		CORSOrigins: cfg.CORSOrigins,
		TrustProxy:  cfg.TrustProxy,
		RateBurst:   cfg.RateBurst,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer server.Close()

	for _, w := range server.Widgets() {
		logger.Info("widget compiled",
			"component", w.Def.Component,
			"template", w.TemplateURI,
			"script", w.Def.HTMLSrc,
		)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("widgetd listening",
			"addr", cfg.Addr,
			"version", Version,
			"asset_hash", widget.AssetHash(Version),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancelShutdown()

	// Close live sessions first so their blocked handlers unwind and
	// Shutdown does not wait out the full timeout on idle streams.
	server.Close()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
