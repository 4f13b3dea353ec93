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

package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"anypay-escrow-go/internal/metrics"
	"anypay-escrow-go/internal/models"

	"go.uber.org/zap"
)

// Dispatcher delivers settlement requests to a Signer from a bounded queue,
// retrying each request a fixed number of times.
type Dispatcher struct {
	signer      Signer
	metrics     *metrics.EscrowMetrics
	queue       chan Request
	maxAttempts int
	retryDelay  time.Duration

	mu       sync.RWMutex
	started  bool
	stopped  bool
	stopChan chan struct{}
	doneChan chan struct{}
}

func NewDispatcher(signer Signer, cfg models.SettlementConfig) (*Dispatcher, error) {
	if signer == nil {
		return nil, fmt.Errorf("settlement signer cannot be nil")
	}
	if cfg.QueueSize <= 0 {
		return nil, fmt.Errorf("settlement queue size must be positive, got %d", cfg.QueueSize)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("settlement max attempts must be positive, got %d", cfg.MaxAttempts)
	}
	if cfg.RetryDelay < 0 {
		return nil, fmt.Errorf("settlement retry delay cannot be negative, got %v", cfg.RetryDelay)
	}

	return &Dispatcher{
		signer:      signer,
		queue:       make(chan Request, cfg.QueueSize),
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}, nil
}

// SetMetrics configures the collectors updated on delivery.
func (d *Dispatcher) SetMetrics(m *metrics.EscrowMetrics) { d.metrics = m }

// RequestSettlement enqueues without blocking.
func (d *Dispatcher) RequestSettlement(_ context.Context, req Request) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.stopped {
		return ErrStopped
	}

	select {
	case d.queue <- req:
		d.metrics.SetSettlementQueueDepth(len(d.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the delivery worker. The worker outlives ctx: requests for
// committed resolutions are delivered until Stop has drained the queue.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	zap.L().Info("Starting settlement dispatcher",
		zap.Int("queue_size", cap(d.queue)),
		zap.Int("max_attempts", d.maxAttempts))
	go d.run(context.WithoutCancel(ctx))
}

// Stop drains queued requests and waits for the worker to exit.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	started := d.started
	close(d.stopChan)
	d.mu.Unlock()

	if started {
		<-d.doneChan
	}
	zap.L().Info("Settlement dispatcher stopped")
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.doneChan)

	for {
		select {
		case req := <-d.queue:
			d.deliver(ctx, req)
		case <-d.stopChan:
			d.drain(ctx)
			return
		}
	}
}

func (d *Dispatcher) drain(ctx context.Context) {
	for {
		select {
		case req := <-d.queue:
			d.deliver(ctx, req)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(ctx context.Context, req Request) {
	d.metrics.SetSettlementQueueDepth(len(d.queue))

	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = d.signer.Sign(ctx, req); err == nil {
			d.metrics.ObserveSettlement("delivered")
			return
		}

		zap.L().Warn("Settlement attempt failed",
			zap.String("request_id", req.Id),
			zap.String("intent_hash", req.IntentHash),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if attempt == d.maxAttempts {
			break
		}
		time.Sleep(d.retryDelay)
	}

	d.metrics.ObserveSettlement("failed")
	zap.L().Error("Settlement request exhausted retries",
		zap.String("request_id", req.Id),
		zap.String("intent_hash", req.IntentHash),
		zap.Uint64("deposit_id", req.DepositId),
		zap.Error(err))
}
