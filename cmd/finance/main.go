package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-redis/redis/v8"

	"github.com/efreitasn/finance/internal/auth"
	"github.com/efreitasn/finance/internal/config"
	"github.com/efreitasn/finance/internal/engine"
	"github.com/efreitasn/finance/internal/handler"
	"github.com/efreitasn/finance/internal/quote"
	"github.com/efreitasn/finance/internal/service"
	"github.com/efreitasn/finance/internal/store"
)

func main() {
	healthcheck := flag.Bool("healthcheck", false, "Run health check against running server")
	flag.Parse()

	// Handle -healthcheck flag: HTTP GET to localhost:PORT/healthz, exit 0/1.
	if *healthcheck {
		port := os.Getenv("PORT")
		if port == "" {
			port = "8080"
		}
		resp, err := http.Get(fmt.Sprintf("http://localhost:%s/healthz", port))
		if err != nil {
			os.Exit(1)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			os.Exit(1)
		}
		os.Exit(0)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	var logLevel slog.Level
	switch cfg.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	logger.Info("store opened", slog.String("driver", cfg.StoreDriver))

	quotes, closeQuotes := newQuoteProvider(cfg, logger)
	defer closeQuotes()

	if cfg.EphemeralSecret {
		logger.Warn("JWT_SECRET not set, sessions will not survive a restart")
	}
	tokens := auth.NewTokenIssuer(cfg.JWTSecret, cfg.SessionTTL)
	eng := engine.New(engine.Rules{AllowExactCost: cfg.AllowExactCost})

	accountSvc := service.NewAccountService(st, tokens, cfg.InitialCash, logger)
	tradeSvc := service.NewTradeService(st, quotes, eng, logger)
	portfolioSvc := service.NewPortfolioService(st, quotes)

	router := handler.NewRouter(accountSvc, tradeSvc, portfolioSvc, logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
	return nil
}

// newQuoteProvider builds the quote source chain from configuration. The
// returned func releases the Redis ring, if any.
func newQuoteProvider(cfg *config.Config, logger *slog.Logger) (quote.Provider, func()) {
	var provider quote.Provider
	if cfg.APIKey != "" {
		provider = quote.NewHTTPProvider(quote.HTTPConfig{
			URL:        cfg.QuoteURL,
			APIKey:     cfg.APIKey,
			NamePath:   cfg.QuoteNamePath,
			PricePath:  cfg.QuotePricePath,
			SymbolPath: cfg.QuoteSymbolPath,
			Timeout:    cfg.QuoteTimeout,
		})
	} else {
		logger.Warn("API_KEY not set, serving static quotes")
		provider = quote.NewStaticProvider(quote.DefaultQuotes()...)
	}

	if cfg.QuoteCacheTTL == 0 {
		return provider, func() {}
	}

	var ring *redis.Ring
	if cfg.RedisAddr != "" {
		ring = redis.NewRing(&redis.RingOptions{
			Addrs: map[string]string{"server1": cfg.RedisAddr},
		})
		logger.Info("quote cache backed by redis", slog.String("addr", cfg.RedisAddr))
	}
	cached := quote.NewCachedProvider(provider, ring, cfg.QuoteCacheTTL)
	return cached, func() {
		if ring != nil {
			ring.Close()
		}
	}
}
