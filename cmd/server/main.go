package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/tagfeed/app/api"
	"github.com/lysyi3m/tagfeed/app/cfg"
	"github.com/lysyi3m/tagfeed/app/cms"
	"github.com/lysyi3m/tagfeed/app/database"
	"github.com/lysyi3m/tagfeed/app/entity"
	"github.com/lysyi3m/tagfeed/app/feed"
	"github.com/lysyi3m/tagfeed/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// help was shown
		return
	}

	level := slog.LevelInfo
	if appCfg.Debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	slog.Info("Starting TagFeed server", "version", appCfg.Version, "cms_url", appCfg.CMSURL)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to connect to database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	aliases, err := entity.LoadAliasTable(appCfg.AliasesFile)
	if err != nil {
		slog.Error("Failed to load alias table", "path", appCfg.AliasesFile, "error", err)
		os.Exit(1)
	}
	slog.Info("Alias table loaded", "path", appCfg.AliasesFile, "entities", aliases.Count())

	httpClient := &http.Client{Timeout: appCfg.CMSTimeoutDuration()}
	cmsClient := cms.NewClient(appCfg.CMSURL, httpClient, appCfg.UserAgent)

	resolver := entity.NewResolver(cmsClient, aliases)
	fetcher := feed.NewFetcher(cmsClient, feed.NewNormalizer(feed.NewContentCleaner()))
	aggregator := feed.NewAggregator(fetcher, appCfg.PageSize, appCfg.OverfetchFactor)

	resolutionRepo := database.NewResolutionRepository(db)

	scheduler := tasks.NewScheduler(resolutionRepo)
	scheduler.Start()
	defer scheduler.Stop()

	handler := api.NewHandler(resolver, aliases, aggregator, fetcher, resolutionRepo, scheduler)
	server := api.NewServer(handler, appCfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port, "page_size", appCfg.PageSize, "overfetch_factor", appCfg.OverfetchFactor)

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down server gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	slog.Info("Server stopped")
}
