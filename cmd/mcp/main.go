// Command pdfparse-mcp serves the PDF pipeline as MCP tools over stdio.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/toricodesthings/pdf-parse-service/internal/adapter"
	"github.com/toricodesthings/pdf-parse-service/internal/config"
	"github.com/toricodesthings/pdf-parse-service/internal/pipeline"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides CONFIG_FILE)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	var (
		cfg config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	// stdout carries the protocol; logs go to stderr
	log := cfg.NewLogger(os.Stderr)
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc := cfg.Pipeline
	pc.Logger = log
	pipe := pipeline.New(pc)

	srv := mcp.NewServer(&mcp.Implementation{Name: "pdfparse", Version: "1.0.0"}, nil)
	adapter.RegisterMCP(srv, pipe)

	log.Info("mcp server starting", "transport", "stdio")
	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		log.Error("mcp server", "error", err)
		os.Exit(1)
	}
}
