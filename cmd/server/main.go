package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pauljones0/dealiem-scraper/internal/browser"
	"github.com/pauljones0/dealiem-scraper/internal/config"
	"github.com/pauljones0/dealiem-scraper/internal/notifier"
	"github.com/pauljones0/dealiem-scraper/internal/processor"
	"github.com/pauljones0/dealiem-scraper/internal/publisher"
	"github.com/pauljones0/dealiem-scraper/internal/scraper"
	"github.com/pauljones0/dealiem-scraper/internal/storage"
	"github.com/pauljones0/dealiem-scraper/internal/validator"
)

func main() {
	slog.Info("Starting dealiem scraper...")
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Critical error loading configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := storage.Open(ctx, cfg)
	if err != nil {
		slog.Error("Critical error initializing document store", "backend", cfg.StoreBackend, "error", err)
		os.Exit(1)
	}
	defer store.Close()

	selectors := scraper.LoadConfig(cfg.SelectorConfigPath)
	pub := publisher.New(store, validator.New(), selectors.Directory.BusinessPath)
	n := notifier.New(cfg.DiscordWebhookURL)

	open := func(ctx context.Context) (processor.Session, error) {
		page, err := browser.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return scraper.New(page, cfg, selectors), nil
	}
	p := processor.New(open, pub, n, cfg)

	if cfg.RunOnce {
		if _, err := p.Run(ctx); err != nil {
			slog.Error("Run failed", "error", err)
			store.Close()
			os.Exit(1)
		}
		return
	}

	if err := serve(ctx, cfg, NewServer(ctx, p, pub)); err != nil {
		slog.Error("Server error", "error", err)
		store.Close()
		os.Exit(1)
	}
	slog.Info("Server stopped.")
}

func serve(ctx context.Context, cfg *config.Config, srv *Server) error {
	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("Listening on port", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("Shutting down gracefully...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
