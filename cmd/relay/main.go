package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"ge-offer-relay/internal/config"
	"ge-offer-relay/internal/handler"
	"ge-offer-relay/internal/ledger"
	"ge-offer-relay/internal/middleware"
	"ge-offer-relay/internal/prices"
	"ge-offer-relay/internal/relay"
	"ge-offer-relay/internal/repository"
	"ge-offer-relay/internal/router"
	"ge-offer-relay/internal/service"
	"ge-offer-relay/internal/tracker"

	_ "github.com/go-sql-driver/mysql"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("Starting GE offer relay...")

	cfg := config.MustLoad()
	if cfg.Collector.APIToken == "" {
		log.Println("Warning: no collector API token configured, sends are disabled")
	}

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	buyLedger, err := ledger.New(ctx, store)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize buy-window ledger: %v", err)
	}

	queue := relay.NewDeliveryQueue(relay.QueueConfig{
		URL:            cfg.Collector.URL,
		Token:          func() string { return cfg.Collector.APIToken },
		SendTimeout:    cfg.Collector.SendTimeout,
		InitialBackoff: cfg.Collector.InitialBackoff,
		MaxBackoff:     cfg.Collector.MaxBackoff,
	})

	relaySvc := service.NewRelayService(service.RelayOptions{
		Debounce:   cfg.Collector.Debounce,
		LoginGrace: cfg.Collector.LoginGrace,
		Token:      func() string { return cfg.Collector.APIToken },
	}, tracker.New(), buyLedger, queue)

	sweeper := ledger.NewSweeper(buyLedger, cfg.Ledger.SweepInterval)
	sweeper.Start()

	var refresher *prices.Refresher
	if cfg.Prices.Enabled {
		client := prices.NewClient(cfg.Prices.BaseURL, cfg.Prices.MetaURL, cfg.Prices.UserAgent, cfg.Prices.FetchTimeout)
		refresher = prices.NewRefresher(client, cfg.Prices.RefreshInterval)
		refresher.Start()
	}

	r := router.New(router.Config{
		Handler:        handler.New(relaySvc),
		EventsHandler:  handler.NewEventsHandler(relaySvc),
		MarketHandler:  handler.NewMarketHandler(refresher),
		AuthMiddleware: middleware.NewAuthMiddleware(middleware.AuthConfig{IngestKey: cfg.Server.IngestKey}),
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Printf("Ingest server listening on %s", cfg.Server.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	// Graceful shutdown: stop accepting events, cancel any pending
	// debounced send, stop the delivery worker, then background jobs.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	relaySvc.Stop()
	sweeper.Stop()
	if refresher != nil {
		refresher.Stop()
	}

	log.Println("Relay stopped")
}

// openStore builds the configured buy-window store. Returns nil for
// memory-only operation, and falls back to it when a backend is
// unreachable: persistence is best-effort, the pipeline is not.
func openStore(cfg *config.Config) repository.BuyWindowStore {
	switch cfg.Ledger.StoreType {
	case "memory":
		log.Println("Buy-window ledger running memory-only")
		return nil

	case "mysql":
		db, err := sql.Open("mysql", cfg.Ledger.MySQLDSN())
		if err != nil {
			log.Printf("Warning: MySQL open failed, ledger running memory-only: %v", err)
			return nil
		}
		db.SetMaxOpenConns(5)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(5 * time.Minute)
		if err := db.Ping(); err != nil {
			log.Printf("Warning: MySQL ping failed, ledger running memory-only: %v", err)
			db.Close()
			return nil
		}
		store, err := repository.NewMySQLBuyWindowStore(db)
		if err != nil {
			log.Printf("Warning: MySQL store init failed, ledger running memory-only: %v", err)
			db.Close()
			return nil
		}
		return store

	case "redis":
		store, err := repository.NewRedisBuyWindowStore(cfg.Ledger.RedisAddress(), cfg.Ledger.RedisPassword, cfg.Ledger.RedisDB)
		if err != nil {
			log.Printf("Warning: Redis store init failed, ledger running memory-only: %v", err)
			return nil
		}
		return store

	default: // sqlite
		if dir := filepath.Dir(cfg.Ledger.SQLitePath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				log.Printf("Warning: cannot create %s, ledger running memory-only: %v", dir, err)
				return nil
			}
		}
		store, err := repository.NewSQLiteBuyWindowStore(cfg.Ledger.SQLitePath)
		if err != nil {
			log.Printf("Warning: SQLite store init failed, ledger running memory-only: %v", err)
			return nil
		}
		return store
	}
}
