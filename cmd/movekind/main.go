package main

import (
	"context"
	"flag"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/movekind/gateway/internal/config"
	"github.com/movekind/gateway/internal/events"
	"github.com/movekind/gateway/internal/proxy"
	"github.com/movekind/gateway/internal/server"
	"github.com/movekind/gateway/internal/storage"
	"github.com/movekind/gateway/internal/umbraco"
	"tailscale.com/tsnet"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	migrateOnly := flag.Bool("migrate-only", false, "run cache migrations and exit")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	log.Info("MoveKind gateway starting", "version", Version)

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Umbraco.BaseURL == "" {
		log.Warn("umbraco base URL not set; API routes will answer 500")
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Content cache (optional)
	var cache *storage.Cache
	if cfg.Cache.Path != "" {
		db, err := storage.Open(ctx, cfg.Cache.Path)
		if err != nil {
			log.Error("failed to open cache", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		if err := db.RunMigrations(); err != nil {
			log.Error("migration failed", "error", err)
			os.Exit(1)
		}
		log.Info("cache migrations applied", "path", cfg.Cache.Path)
		if *migrateOnly {
			log.Info("migrate-only: exiting")
			return
		}
		cache = storage.NewCache(db, cfg.Cache.TTL)
		go purgeCache(ctx, cache, cfg.Cache.TTL, log)
	} else if *migrateOnly {
		log.Info("migrate-only: no cache configured")
		return
	}

	client := umbraco.New(cfg.Umbraco.BaseURL, umbraco.Options{
		Timeout:            cfg.Umbraco.Timeout,
		InsecureSkipVerify: cfg.Umbraco.InsecureSkipVerify,
	})

	// Auth-changed signals: local hub, bridged through Redis when configured
	hub := events.NewHub()
	var publisher events.Publisher = hub
	if cfg.Redis.Addr != "" {
		bridge, err := events.NewRedisBridge(ctx, hub, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.Channel, log)
		if err != nil {
			log.Error("redis connect failed", "addr", cfg.Redis.Addr, "error", err)
			os.Exit(1)
		}
		defer bridge.Close()
		if err := bridge.Start(ctx); err != nil {
			log.Error("redis subscribe failed", "error", err)
			os.Exit(1)
		}
		publisher = bridge
		log.Info("redis bridge started", "addr", cfg.Redis.Addr, "channel", cfg.Redis.Channel)
	}

	popts := proxy.Options{
		BaseURL:            cfg.Umbraco.BaseURL,
		CookieDomain:       cfg.Cookies.Domain,
		Timeout:            cfg.Umbraco.Timeout,
		InsecureSkipVerify: cfg.Umbraco.InsecureSkipVerify,
		Logger:             log,
		Events:             publisher,
	}
	if cache != nil {
		client.SetCache(cache)
		popts.Cache = cache
	}

	// Create server
	srv := server.New(server.Options{
		Client:       client,
		Proxy:        proxy.New(popts),
		Hub:          hub,
		Logger:       log,
		AuthCheckTTL: cfg.Cookies.AuthCheckTTL,
		CORSOrigin:   cfg.Server.CORSOrigin,
	})
	go srv.WatchAuthChanges(ctx)

	// Serve the built front end
	if cfg.Server.StaticDir != "" {
		srv.SetFrontend(os.DirFS(cfg.Server.StaticDir))
		log.Info("serving front end", "dir", cfg.Server.StaticDir)
	}

	// Start server: tsnet or plain HTTP
	var listener net.Listener

	if cfg.Tailscale.Enabled {
		tsServer := &tsnet.Server{
			Hostname: cfg.Tailscale.Hostname,
			Dir:      cfg.Tailscale.StateDir,
		}
		if err := tsServer.Start(); err != nil {
			log.Error("tsnet start failed", "error", err)
			os.Exit(1)
		}
		defer tsServer.Close()

		listener, err = tsServer.Listen("tcp", ":80")
		if err != nil {
			log.Error("tsnet listen failed", "error", err)
			os.Exit(1)
		}
		log.Info("tsnet server starting", "hostname", cfg.Tailscale.Hostname)
	} else {
		addr := cfg.Server.Addr()
		listener, err = net.Listen("tcp", addr)
		if err != nil {
			log.Error("listen failed", "addr", addr, "error", err)
			os.Exit(1)
		}
		log.Info("server starting", "addr", addr)
	}

	httpSrv := &http.Server{Handler: srv, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info("shutting down", "signal", sig)
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "error", err)
	}
	log.Info("server stopped")
}

// purgeCache drops expired cache rows once per TTL until ctx ends.
func purgeCache(ctx context.Context, cache *storage.Cache, every time.Duration, log *slog.Logger) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cache.PurgeExpired(ctx)
			if err != nil {
				log.Warn("cache purge failed", "error", err)
				continue
			}
			if n > 0 {
				log.Info("cache purged", "rows", n)
			}
		}
	}
}
