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
	"errors"
	"flag"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"anypay-escrow-go/internal/api"
	"anypay-escrow-go/internal/common"
	"anypay-escrow-go/internal/config"
	"anypay-escrow-go/internal/listener"
	"anypay-escrow-go/internal/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	withListener := flag.Bool("listener", false, "Run the funding listener in-process (overrides LISTENER_ENABLED)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		_, _ = zap.NewProduction()
		zap.L().Fatal("Failed to load configuration", zap.Error(err))
	}

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zap.L().Info("Starting escrow daemon", zap.String("listen_address", cfg.Server.ListenAddress))

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	ledgerService, err := api.NewLedgerService(services.Engine, cfg.Server)
	if err != nil {
		zap.L().Fatal("Failed to create HTTP service", zap.Error(err))
	}

	var fundingListener *listener.FundingListener
	if *withListener || cfg.Listener.Enabled {
		fundingListener, err = listener.NewFromConfig(services.Engine, metrics.Escrow(), cfg.Listener)
		if err != nil {
			zap.L().Fatal("Failed to create funding listener", zap.Error(err))
		}
	}

	server := &http.Server{
		Addr:              cfg.Server.ListenAddress,
		Handler:           ledgerService.Handler(),
		ReadTimeout:       cfg.Server.ReadTimeout,
		ReadHeaderTimeout: cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)

	services.Dispatcher.Start(groupCtx)
	if fundingListener != nil {
		fundingListener.Start(groupCtx)
	}

	group.Go(func() error {
		zap.L().Info("HTTP server listening", zap.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-groupCtx.Done()
		zap.L().Info("Shutdown signal received, stopping escrow daemon...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			zap.L().Warn("HTTP server did not shut down cleanly", zap.Error(err))
		}
		if fundingListener != nil {
			fundingListener.Stop()
		}
		services.Dispatcher.Stop()
		return nil
	})

	if err := group.Wait(); err != nil {
		zap.L().Error("Escrow daemon exited with error", zap.Error(err))
		return
	}
	zap.L().Info("Escrow daemon stopped")
}
