package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/movekind/gateway/internal/config"
	"github.com/movekind/gateway/internal/mcp"
	"github.com/movekind/gateway/internal/umbraco"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "path to config file (defaults to environment only)")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println("movekind-mcp", Version)
		return
	}

	// stdout carries the protocol; logs go to stderr.
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.FromEnv()
	}
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Umbraco.BaseURL == "" {
		log.Error("umbraco base URL is required (MOVEKIND_UMBRACO_BASE_URL)")
		os.Exit(1)
	}
	if cfg.MCP.Cookie == "" {
		log.Warn("no member cookie configured (MOVEKIND_MCP_COOKIE); member tools will be rejected")
	}

	client := umbraco.New(cfg.Umbraco.BaseURL, umbraco.Options{
		Timeout:            cfg.Umbraco.Timeout,
		InsecureSkipVerify: cfg.Umbraco.InsecureSkipVerify,
	})

	s := mcp.New(client, cfg.MCP.Cookie, Version, log)
	log.Info("MCP server ready on stdio", "backend", cfg.Umbraco.BaseURL)
	if err := server.ServeStdio(s); err != nil {
		log.Error("mcp server stopped", "error", err)
		os.Exit(1)
	}
}
