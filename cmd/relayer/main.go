/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"anypay-escrow-go/internal/common"
	"anypay-escrow-go/internal/config"
	"anypay-escrow-go/internal/listener"
	"anypay-escrow-go/internal/metrics"

	"go.uber.org/zap"
)

func main() {
	assetsFilter := flag.String("assets", "", "Optional path to assets.yaml to limit the assets serviced (default: ASSETS_FILE)")
	once := flag.Bool("once", false, "Run a single pass over deposits awaiting funding and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	zap.L().Info("Starting funding relayer", zap.String("oracle_account", cfg.Listener.OracleAccount))

	if *assetsFilter != "" {
		cfg.Listener.AssetsFile = *assetsFilter
	}

	// oracle signals never settle, so no dispatcher is needed here
	dbService, engine, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	escrowMetrics := metrics.Escrow()
	engine.SetMetrics(escrowMetrics)

	oracle, err := engine.GetFundingConfig(ctx)
	if err != nil {
		zap.L().Fatal("Protocol is not ready", zap.Error(err))
	}
	if oracle.OracleAccount != cfg.Listener.OracleAccount {
		zap.L().Warn("Configured oracle account does not match the protocol oracle; signals will be rejected",
			zap.String("configured", cfg.Listener.OracleAccount),
			zap.String("protocol", oracle.OracleAccount))
	}

	l, err := listener.NewFromConfig(engine, escrowMetrics, cfg.Listener)
	if err != nil {
		zap.L().Fatal("Failed to create funding listener", zap.Error(err))
	}

	if *once {
		l.Tick(ctx)
		zap.L().Info("Single funding pass complete")
		return
	}

	l.Start(ctx)
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping relayer...")

	done := make(chan struct{})
	go func() {
		l.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Relayer stopped gracefully")
	case <-time.After(30 * time.Second):
		zap.L().Warn("Forced shutdown after timeout")
	}
}
