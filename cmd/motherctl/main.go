// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/nishisan-dev/rover-fleet/internal/config"
	"github.com/nishisan-dev/rover-fleet/internal/controller"
	"github.com/nishisan-dev/rover-fleet/internal/logging"
	"github.com/nishisan-dev/rover-fleet/internal/observability"
)

func main() {
	configPath := flag.String("config", "/etc/motherctl/motherctl.yaml", "path to controller config file")
	flag.Parse()

	cfg, err := config.LoadControllerConfig(*configPath)
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

	ctl, err := controller.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("constructing controller failed", "error", err)
		os.Exit(1)
	}

	if cfg.Observation.Enabled {
		obsServer := &http.Server{Addr: cfg.Observation.Listen, Handler: observability.NewRouter(ctl)}
		go func() {
			<-ctx.Done()
			obsServer.Close()
		}()
		go func() {
			logger.Info("observation api listening", "addr", cfg.Observation.Listen)
			if err := obsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Warn("observation api stopped", "error", err)
			}
		}()
	}

	if err := ctl.Run(ctx); err != nil {
		logger.Error("controller error", "error", err)
		os.Exit(1)
	}
}
