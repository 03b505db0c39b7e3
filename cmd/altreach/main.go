// Package main provides the entry point for the altreach server.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/thevalentinedev/altreach/internal/assist"
	"github.com/thevalentinedev/altreach/internal/browser"
	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/extract"
	"github.com/thevalentinedev/altreach/internal/handlers"
	"github.com/thevalentinedev/altreach/internal/metrics"
	"github.com/thevalentinedev/altreach/internal/middleware"
	"github.com/thevalentinedev/altreach/internal/selectors"
	"github.com/thevalentinedev/altreach/pkg/version"
)

func main() {
	cfg := config.Load()

	// Setup logging first so validation warnings are visible
	setupLogging(cfg.LogLevel)

	cfg.Validate()

	printBanner()

	log.Info().Msg("Initializing browser pool...")
	pool := browser.NewPool(cfg)

	selectorMgr, err := selectors.NewManager(cfg.SelectorsPath, cfg.SelectorsHotReload)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize selector manager")
	}

	extractor := extract.New(pool, selectorMgr, cfg)
	advisor := assist.NewFromConfig(cfg)

	handler := handlers.New(extractor, advisor, cfg)
	router := handlers.NewRouter(handler, cfg)

	// Build middleware chain, outermost first: recovery catches
	// everything, then logging, then the policy layers.
	chain := []func(http.Handler) http.Handler{
		middleware.Recovery,
		middleware.Logging,
		middleware.SecurityHeaders,
		middleware.CORS(middleware.CORSConfig{AllowedOrigins: cfg.CORSAllowedOrigins}),
		middleware.APIKey(cfg),
	}

	var rateLimiter *middleware.RateLimiterMiddleware
	if cfg.RateLimitEnabled {
		log.Info().
			Int("requests_per_minute", cfg.RateLimitRPM).
			Bool("trust_proxy", cfg.TrustProxy).
			Msg("Rate limiting enabled")
		rateLimiter = middleware.NewRateLimitMiddleware(cfg.RateLimitRPM, cfg.TrustProxy)
		chain = append(chain, rateLimiter.Handler())
	}

	chain = append(chain, middleware.Timeout(cfg.MaxTimeout+10*time.Second))

	finalHandler := middleware.Chain(chain...)(router)

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      finalHandler,
		ReadTimeout:  cfg.MaxTimeout + 10*time.Second,
		WriteTimeout: cfg.MaxTimeout + 20*time.Second,
		IdleTimeout:  120 * time.Second,
	}

	// Channel to signal shutdown to background tasks
	stopCh := make(chan struct{})

	if cfg.MetricsEnabled {
		metrics.SetBuildInfo(version.Full(), version.GoVersion())
		metrics.RegisterPool(pool)
		go metrics.StartMemoryCollector(10*time.Second, stopCh)
	}

	go func() {
		log.Info().
			Str("address", addr).
			Int("pool_max_concurrency", cfg.PoolMaxConcurrency).
			Bool("metrics_enabled", cfg.MetricsEnabled).
			Bool("rate_limit_enabled", cfg.RateLimitEnabled).
			Bool("assist_enabled", advisor.Enabled()).
			Msg("altreach is ready to accept requests")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	close(stopCh)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	if rateLimiter != nil {
		rateLimiter.Close()
	}

	if err := selectorMgr.Close(); err != nil {
		log.Error().Err(err).Msg("Selector manager close error")
	}

	if err := pool.Close(); err != nil {
		log.Error().Err(err).Msg("Browser pool close error")
	}

	log.Info().Msg("Shutdown complete")
}

// setupLogging configures zerolog based on the log level.
func setupLogging(level string) {
	// Use console writer for prettier output
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
	})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// printBanner prints the startup banner.
func printBanner() {
	banner := `
       _ _                      _
  __ _| | |_ _ __ ___  __ _  __| |__
 / _' | | __| '__/ _ \/ _' |/ __| '_ \
| (_| | | |_| | |  __/ (_| | (__| | | |
 \__,_|_|\__|_|  \___|\__,_|\___|_| |_|
`
	fmt.Println(banner)
	log.Info().
		Str("version", version.Full()).
		Str("go_version", version.GoVersion()).
		Msg("Starting altreach")
}
