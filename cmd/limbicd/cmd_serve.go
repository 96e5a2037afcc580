// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/limbic/bus"
	"github.com/AleutianAI/limbic/config"
	"github.com/AleutianAI/limbic/httpapi"
	"github.com/AleutianAI/limbic/pkg/logging"
	sig "github.com/AleutianAI/limbic/signal"
	"github.com/AleutianAI/limbic/telemetry"
	"github.com/AleutianAI/limbic/threshold"
)

var (
	serveConfigPath string
	serveDemo       bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the limbic daemon",
	Long: `Starts the signal bus, the adaptive threshold engine, the config
watcher, and the HTTP inspection API, and runs until interrupted.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVarP(&serveConfigPath, "config", "c", "limbic.yaml",
		"path to the configuration file (created with defaults if absent)")
	serveCmd.Flags().BoolVar(&serveDemo, "demo", false,
		"emit synthetic stress/recovery traffic for exploration")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadOrDefault(serveConfigPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{
		Level:   cfg.Logging.Level,
		JSON:    cfg.Logging.Format == "json",
		Service: "limbicd",
	})
	if err != nil {
		return err
	}
	defer logger.Close()
	logger.SetAsDefault()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry first so every later component can register instruments.
	telemetryCfg := telemetry.DefaultConfig()
	if !cfg.Telemetry.Enabled {
		telemetryCfg.MetricExporter = "none"
	}
	telemetryShutdown, err := telemetry.Init(ctx, telemetryCfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer telemetryShutdown(context.Background())

	b := bus.New(cfg.BusConfig(), bus.WithLogger(logger.Logger))
	engine := threshold.NewEngine(b, threshold.WithLogger(logger.Logger))
	for kind, tc := range cfg.Thresholds {
		engine.Configure(sig.Kind(kind), tc.KindConfig())
	}

	if cfg.Telemetry.Enabled {
		metrics, err := telemetry.NewMetrics(otel.Meter("limbic"), b, engine)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		defer metrics.Close()
	}

	if err := b.Start(ctx); err != nil {
		return err
	}
	defer b.Stop()
	logger.Info("bus started",
		"history_cap", cfg.Bus.HistoryCap,
		"throttled_kinds", len(cfg.Bus.Cooldowns),
	)

	// Hot reload covers threshold tuning and cooldown periods only; bus
	// topology and the HTTP listener are fixed for the process lifetime.
	watcher, err := config.NewWatcher(serveConfigPath, func(next config.Config) {
		for kind, tc := range next.Thresholds {
			engine.Configure(sig.Kind(kind), tc.KindConfig())
		}
		for kind, d := range next.Bus.Cooldowns {
			b.Cooldowns().SetPeriod(sig.Kind(kind), d.Std())
		}
		logger.Info("applied runtime tuning",
			"thresholds", len(next.Thresholds),
			"cooldowns", len(next.Bus.Cooldowns),
		)
	}, config.WithWatcherLogger(logger.Logger))
	if err != nil {
		return err
	}
	if err := watcher.Start(); err != nil {
		return err
	}
	defer watcher.Stop()

	g, ctx := errgroup.WithContext(ctx)

	if cfg.HTTP.Enabled {
		var metricsHandler http.Handler
		if cfg.Telemetry.Enabled {
			metricsHandler = telemetry.MetricsHandler()
		}
		router := httpapi.NewRouter(httpapi.NewHandlers(b, engine), metricsHandler)
		srv := &http.Server{Addr: cfg.HTTP.Addr, Handler: router}

		g.Go(func() error {
			logger.Info("http api listening", "addr", cfg.HTTP.Addr)
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if serveDemo {
		g.Go(func() error {
			runDemo(ctx, b, engine, logger)
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		return nil
	})

	logger.Info("limbicd running")
	err = g.Wait()
	logger.Info("limbicd stopped")
	return err
}
