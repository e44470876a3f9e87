// shelfgrab reconciles a reading-list user's "to read" shelf against the
// media library and serves the results over HTTP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/shelfgrab/shelfgrab/internal/audiobookshelf"
	"github.com/shelfgrab/shelfgrab/internal/cache"
	"github.com/shelfgrab/shelfgrab/internal/config"
	"github.com/shelfgrab/shelfgrab/internal/history"
	"github.com/shelfgrab/shelfgrab/internal/lazylibrarian"
	"github.com/shelfgrab/shelfgrab/internal/logger"
	"github.com/shelfgrab/shelfgrab/internal/readarr"
	"github.com/shelfgrab/shelfgrab/internal/reconcile"
	"github.com/shelfgrab/shelfgrab/internal/scrape"
	"github.com/shelfgrab/shelfgrab/internal/server"
)

var version = "dev" // Set during build

func main() {
	flags := parseFlags()

	if flags.help {
		showHelp()
		return
	}
	if flags.version {
		showVersion()
		return
	}

	// .env is optional; real environment variables win either way
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "WARN: Failed to load .env file: %v\n", err)
	}

	cfg, err := config.Load(flags.configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(logger.Config{
		Level:      cfg.Logging.Level,
		Format:     logger.ParseLogFormat(cfg.Logging.Format),
		Output:     os.Stdout,
		TimeFormat: time.RFC3339,
	})
	log := logger.Get()

	log.Info().
		Str("version", version).
		Str("log_level", cfg.Logging.Level).
		Msg("Starting shelfgrab")

	proxy := scrape.NewClient(cfg.Proxy.URL, cfg.Proxy.MaxTimeout.Std()).
		WithRateLimit(cfg.Proxy.RequestInterval.Std(), 3)
	collector := scrape.NewCollector(proxy, cfg.StoryGraph.BaseURL, cfg.StoryGraph.PageSize)
	library := lazylibrarian.NewClient(cfg.LazyLibrarianBaseURL(), cfg.LazyLibrarian.APIKey)

	var audio reconcile.AudioChecker
	if cfg.Audiobookshelf.URL != "" {
		audio = audiobookshelf.NewClient(cfg.Audiobookshelf.URL, cfg.Audiobookshelf.Token)
		log.Info().Str("url", cfg.Audiobookshelf.URL).Msg("Audiobookshelf cross-check enabled")
	}

	store, err := cache.NewStore(cfg.Cache.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open snapshot store")
	}
	slot := cache.NewSlot(cfg.Cache.CatalogTTL.Std())

	var events *history.Log
	if cfg.History.DBPath != "" {
		events, err = history.Open(cfg.History.DBPath)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open event database")
		}
		defer events.Close()
	}

	reconciler := reconcile.NewService(
		reconcile.CollectorSource{Collector: collector},
		library, audio, store, slot, cfg.Cache.ListTTL.Std(),
	)

	srv := server.New(":"+cfg.Server.Port, reconciler, library, events)
	if base := cfg.ReadarrBaseURL(); base != "" {
		srv.WithReadarr(readarr.NewClient(base, cfg.Readarr.APIKey))
		log.Info().Str("url", base).Msg("Readarr backend enabled")
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Shutdown incomplete")
	}
}
