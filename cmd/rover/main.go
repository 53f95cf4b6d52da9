// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nishisan-dev/rover-fleet/internal/config"
	"github.com/nishisan-dev/rover-fleet/internal/execsim"
	"github.com/nishisan-dev/rover-fleet/internal/logging"
	"github.com/nishisan-dev/rover-fleet/internal/rover"
)

func main() {
	configPath := flag.String("config", "/etc/rover/rover.yaml", "path to rover config file")
	flag.Parse()

	cfg, err := config.LoadRoverConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger, logCloser := logging.NewLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File)
	defer logCloser.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received signal, shutting down", "signal", sig)
		cancel()
	}()

	rv, err := rover.New(cfg, logger, execsim.NewStubExecutor(), nil)
	if err != nil {
		logger.Error("constructing rover failed", "error", err)
		os.Exit(1)
	}

	if err := rv.Run(ctx); err != nil {
		logger.Error("rover error", "error", err)
		os.Exit(1)
	}
}
