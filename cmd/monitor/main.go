package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/roman-kripton/pw-twin-tools/internal/api"
	"github.com/roman-kripton/pw-twin-tools/internal/config"
	"github.com/roman-kripton/pw-twin-tools/internal/monitor"
	"github.com/roman-kripton/pw-twin-tools/internal/notifier"
	"github.com/roman-kripton/pw-twin-tools/internal/scraper"
	"github.com/roman-kripton/pw-twin-tools/internal/session"
	"github.com/roman-kripton/pw-twin-tools/internal/storage"
)

func main() {
	// Setup logger
	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(log)

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Debug("no .env file found")
	}

	// Load config
	cfg := config.Load()

	// Initialize storage
	store, err := storage.New(cfg.DBPath)
	if err != nil {
		log.Error("init storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	log.Info("storage initialized", "path", cfg.DBPath)

	// A stored marathon_url overrides the env/default one
	cfg.MarathonURL = store.GetSetting("marathon_url", cfg.MarathonURL)

	// Initialize session store
	sessions, err := session.NewStore(cfg.SessionsDir)
	if err != nil {
		log.Error("init session store", "error", err)
		os.Exit(1)
	}
	log.Info("session store initialized", "dir", cfg.SessionsDir)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize browser scraper
	scr, err := scraper.New(ctx, cfg, log)
	if err != nil {
		log.Error("init scraper", "error", err)
		os.Exit(1)
	}
	defer scr.Close()

	// Initialize notifier
	notify, err := notifier.New(cfg, log)
	if err != nil {
		log.Error("init notifier", "error", err)
		os.Exit(1)
	}

	// Initialize monitor
	mon := monitor.New(cfg, store, sessions, scr, notify, log)

	// Start scheduled batch checks
	stopScheduler, err := mon.StartScheduler(ctx)
	if err != nil {
		log.Error("start scheduler", "error", err)
		os.Exit(1)
	}
	defer stopScheduler()

	// Start manual trigger API
	apiServer := api.NewServer(store, sessions, mon, log)
	errCh := make(chan error, 1)
	go func() {
		errCh <- apiServer.Start(ctx, cfg.APIPort)
	}()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		log.Info("shutting down...")
		cancel()
		<-errCh
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			log.Error("api server", "error", err)
			os.Exit(1)
		}
	}
}
