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

package listener

import (
	"context"
	"fmt"
	"sync"
	"time"

	"anypay-escrow-go/internal/common"
	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/intents"
	"anypay-escrow-go/internal/metrics"
	"anypay-escrow-go/internal/models"

	"go.uber.org/zap"
)

// Ledger is the part of the escrow engine the oracle drives.
type Ledger interface {
	GetDepositsByFundingStatus(ctx context.Context, status models.FundingStatus, page escrow.Page) ([]uint64, error)
	GetDepositFunding(ctx context.Context, depositId uint64) (*models.FundingMeta, error)
	GetDeposit(ctx context.Context, depositId uint64) (*models.Deposit, error)
	SetQuote(ctx context.Context, call escrow.Call, p escrow.SetQuoteParams) error
	MarkQuoteExpired(ctx context.Context, call escrow.Call, depositId uint64, quoteId string) error
	ConfirmFunding(ctx context.Context, call escrow.Call, p escrow.ConfirmFundingParams) error
	MarkFailed(ctx context.Context, call escrow.Call, depositId uint64, quoteId, externalStatus, reason string) error
	MarkTopUpExpired(ctx context.Context, call escrow.Call, depositId uint64, quoteId, reason string) error
}

// QuoteProvider is the intents API as seen by the listener.
type QuoteProvider interface {
	CreateFundingQuote(ctx context.Context, req intents.QuoteRequest) (*intents.Quote, error)
	GetStatus(ctx context.Context, depositAddress, depositMemo string) (*intents.StatusResponse, error)
}

var (
	_ Ledger        = (*escrow.Engine)(nil)
	_ QuoteProvider = (*intents.Client)(nil)
)

// FundingListenerConfig contains configuration for FundingListener
type FundingListenerConfig struct {
	Ledger          Ledger
	Quotes          QuoteProvider
	Metrics         *metrics.EscrowMetrics
	OracleAccount   string
	PollingInterval time.Duration
	PageSize        int
	RotationBuffer  time.Duration
}

// FundingListener is the oracle side of the funding workflow. It polls
// deposits awaiting funding and relays intents API state into the ledger.
type FundingListener struct {
	ledger  Ledger
	quotes  QuoteProvider
	metrics *metrics.EscrowMetrics
	oracle  escrow.Call

	pollingInterval time.Duration
	pageSize        int
	rotationBuffer  time.Duration
	nowFn           func() time.Time

	// asset filter; nil services every asset
	mutex          sync.RWMutex
	monitoredAsset map[string]bool

	stopChan chan struct{}
	doneChan chan struct{}
}

func NewFundingListener(cfg FundingListenerConfig) (*FundingListener, error) {
	if cfg.Ledger == nil || cfg.Quotes == nil {
		return nil, fmt.Errorf("funding listener requires a ledger and a quote provider")
	}
	if cfg.OracleAccount == "" {
		return nil, fmt.Errorf("oracle account cannot be empty")
	}
	if cfg.PollingInterval <= 0 {
		return nil, fmt.Errorf("polling interval must be positive, got %v", cfg.PollingInterval)
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = escrow.MaxPageSize
	}

	return &FundingListener{
		ledger:          cfg.Ledger,
		quotes:          cfg.Quotes,
		metrics:         cfg.Metrics,
		oracle:          escrow.Call{Caller: cfg.OracleAccount},
		pollingInterval: cfg.PollingInterval,
		pageSize:        cfg.PageSize,
		rotationBuffer:  cfg.RotationBuffer,
		nowFn:           time.Now,
		stopChan:        make(chan struct{}),
		doneChan:        make(chan struct{}),
	}, nil
}

// NewFromConfig builds a listener that drives ledger with an intents API
// client and the asset filter named in cfg.
func NewFromConfig(ledger Ledger, m *metrics.EscrowMetrics, cfg models.ListenerConfig) (*FundingListener, error) {
	client, err := intents.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("unable to create intents client: %w", err)
	}

	l, err := NewFundingListener(FundingListenerConfig{
		Ledger:          ledger,
		Quotes:          client,
		Metrics:         m,
		OracleAccount:   cfg.OracleAccount,
		PollingInterval: cfg.PollingInterval,
		PageSize:        cfg.PageSize,
		RotationBuffer:  cfg.RotationBuffer,
	})
	if err != nil {
		return nil, err
	}
	if err := l.LoadMonitoredAssets(cfg.AssetsFile); err != nil {
		return nil, err
	}
	return l, nil
}

// SetNowFunc overrides the time source used for deadline and rotation checks.
func (l *FundingListener) SetNowFunc(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	l.nowFn = now
}

// LoadMonitoredAssets restricts the listener to the assets listed in
// assetsFile. An empty path services every asset.
func (l *FundingListener) LoadMonitoredAssets(assetsFile string) error {
	if assetsFile == "" {
		zap.L().Info("Servicing funding workflows for all assets")
		return nil
	}

	ids, err := common.LoadAssetIds(assetsFile)
	if err != nil {
		return fmt.Errorf("failed to load assets from %s: %w", assetsFile, err)
	}

	l.mutex.Lock()
	l.monitoredAsset = ids
	l.mutex.Unlock()

	zap.L().Info("Servicing funding workflows for listed assets",
		zap.String("file", assetsFile),
		zap.Int("count", len(ids)))
	return nil
}

func (l *FundingListener) monitors(assetId string) bool {
	l.mutex.RLock()
	defer l.mutex.RUnlock()
	return l.monitoredAsset == nil || l.monitoredAsset[assetId]
}

// Start begins polling in the background
func (l *FundingListener) Start(ctx context.Context) {
	zap.L().Info("Starting funding listener",
		zap.String("oracle_account", l.oracle.Caller),
		zap.Duration("polling_interval", l.pollingInterval),
		zap.Duration("rotation_buffer", l.rotationBuffer),
		zap.Int("page_size", l.pageSize))

	go l.pollLoop(ctx)
}

// Stop gracefully stops the funding listener
func (l *FundingListener) Stop() {
	zap.L().Info("Stopping funding listener")
	close(l.stopChan)
	<-l.doneChan
	zap.L().Info("Funding listener stopped")
}

func (l *FundingListener) pollLoop(ctx context.Context) {
	defer close(l.doneChan)

	ticker := time.NewTicker(l.pollingInterval)
	defer ticker.Stop()

	l.Tick(ctx)

	for {
		select {
		case <-ticker.C:
			l.Tick(ctx)
		case <-l.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Tick runs one pass over the deposits awaiting funding. Failures on one
// deposit never stop the pass.
func (l *FundingListener) Tick(ctx context.Context) {
	started := time.Now()
	defer func() { l.metrics.ObserveListenerTick(time.Since(started)) }()

	awaiting, err := l.ledger.GetDepositsByFundingStatus(ctx, models.FundingAwaiting, escrow.NewPage(0, l.pageSize))
	if err != nil {
		l.metrics.ObserveListenerAction("error")
		zap.L().Error("Failed to list deposits awaiting funding", zap.Error(err))
		return
	}
	if len(awaiting) == 0 {
		return
	}

	zap.L().Debug("Processing deposits awaiting funding", zap.Int("count", len(awaiting)))

	for _, depositId := range awaiting {
		if ctx.Err() != nil {
			return
		}
		action, err := l.processDeposit(ctx, depositId)
		if err != nil {
			l.metrics.ObserveListenerAction("error")
			zap.L().Error("Failed to process funding workflow",
				zap.Uint64("deposit_id", depositId),
				zap.String("action", action),
				zap.Error(err))
			continue
		}
		l.metrics.ObserveListenerAction(action)
	}
}
