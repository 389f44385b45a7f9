package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"stroymarket/pos/internal/apiclient"
	"stroymarket/pos/internal/config"
	"stroymarket/pos/internal/logging"
	"stroymarket/pos/internal/terminal"
)

func main() {
	cfg, err := config.LoadTerminal(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	logger, err := logging.New(cfg.LogLevel, cfg.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.New(cfg.BackendURL,
		apiclient.WithLogger(logger),
		apiclient.WithTimeout(cfg.RequestTimeout),
	)
	shell := terminal.New(client, os.Stdout, logger, terminal.Options{BranchID: cfg.BranchID})

	if err := shell.Start(ctx, cfg.PIN); err != nil {
		logger.Error("terminal start failed", zap.String("backend", cfg.BackendURL), zap.Error(err))
		os.Exit(1)
	}
	if err := shell.Run(ctx, os.Stdin); err != nil && ctx.Err() == nil {
		logger.Error("terminal session ended with error", zap.Error(err))
		os.Exit(1)
	}
}
