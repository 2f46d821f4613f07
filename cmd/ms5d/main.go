package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Dashboard4-0/MS5-App-sub002/config"
	"github.com/Dashboard4-0/MS5-App-sub002/engine"
	"github.com/Dashboard4-0/MS5-App-sub002/livecache"
	"github.com/Dashboard4-0/MS5-App-sub002/messaging"
	"github.com/Dashboard4-0/MS5-App-sub002/store"
	"github.com/Dashboard4-0/MS5-App-sub002/www"
)

func main() {
	configPath := flag.String("config", "ms5.yaml", "path to config file")
	debug := flag.Bool("debug", false, "enable debug logging")
	port := flag.Int("port", 0, "HTTP port (overrides config)")
	flag.Parse()

	if *debug {
		log.SetFlags(log.LstdFlags | log.Lshortfile)
	}

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	if *port > 0 {
		cfg.Web.Port = *port
	}

	// Open the time-series store
	db, err := store.Open(&cfg.Store)
	if err != nil {
		log.Fatalf("open store: %v", err)
	}
	defer db.Close()

	// Create and start engine
	eng := engine.New(engine.Config{
		AppConfig:  cfg,
		ConfigPath: *configPath,
		DB:         db,
		LogFunc:    log.Printf,
		Debug:      *debug,
	})
	if err := eng.Start(); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	defer eng.Stop()

	// Optional Redis snapshot mirror
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
		defer client.Close()
		mirror := livecache.NewMirror(client)
		mirror.AttachEngine(eng)
		log.Printf("livecache mirroring to redis at %s", cfg.Redis.Addr)
	}

	// Optional upstream messaging
	if cfg.Messaging.Enabled {
		msgClient := messaging.NewClient(&cfg.Messaging)
		defer msgClient.Close()
		if err := msgClient.Connect(); err != nil {
			log.Printf("messaging connect: %v (continuing without upstream)", err)
		}
		fwd := messaging.NewForwarder(msgClient, &cfg.Messaging, cfg.NodeID())
		fwd.AttachEngine(eng)
		if err := fwd.ListenCommands(eng.Catalog().Reload); err != nil {
			log.Printf("messaging: command subscription: %v", err)
		}
	}

	// Set up HTTP server
	router, stopWeb := www.NewRouter(eng)
	defer stopWeb()

	addr := fmt.Sprintf("%s:%d", cfg.Web.Host, cfg.Web.Port)
	server := &http.Server{Addr: addr, Handler: router}

	// Start HTTP server
	go func() {
		log.Printf("ms5d listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("http server: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Println("Shutting down...")

	// Close live connections first so long-lived sockets drain
	stopWeb()

	// Graceful HTTP shutdown with 10s deadline
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("http server shutdown: %v", err)
	}
}
