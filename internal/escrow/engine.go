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

package escrow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"anypay-escrow-go/internal/metrics"
	"anypay-escrow-go/internal/models"
	"anypay-escrow-go/internal/settlement"
	"anypay-escrow-go/internal/store"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Protocol defaults applied by Initialize.
const (
	DefaultProtocolFeeBps       = 100
	MaxProtocolFeeBps           = 500
	DefaultMaxIntentsPerDeposit = 100
	DefaultTopUpWindow          = 3 * time.Hour
	DefaultMaxQuoteRotations    = 48
	MaxProofSize                = 8192
	DefaultPageSize             = 50
	MaxPageSize                 = 200
)

var (
	// MaxAmount bounds every amount accepted at the API boundary.
	MaxAmount = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

	// DefaultStorageFee is 0.05 of a 24-decimal native token.
	DefaultStorageFee = new(uint256.Int).Mul(uint256.NewInt(5), new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(22)))
)

// Settler receives settlement requests after the transition that produced
// them has committed.
type Settler interface {
	RequestSettlement(ctx context.Context, req settlement.Request) error
}

// Call carries the host-attested caller identity and any attached payment.
type Call struct {
	Caller   string
	Attached *uint256.Int
}

// Engine executes every escrow operation as one store transaction.
type Engine struct {
	store   store.Store
	settler Settler
	metrics *metrics.EscrowMetrics
	nowFn   func() time.Time
}

// NewEngine creates an engine over the given store with a wall clock and no
// settlement channel. Callers override those via the setters.
func NewEngine(st store.Store) *Engine {
	return &Engine{
		store: st,
		nowFn: time.Now,
	}
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() time.Time) {
	if now == nil {
		e.nowFn = time.Now
		return
	}
	e.nowFn = now
}

// SetSettler configures the settlement channel used after fulfil/release.
func (e *Engine) SetSettler(s Settler) { e.settler = s }

// SetMetrics configures the collectors updated by every operation.
func (e *Engine) SetMetrics(m *metrics.EscrowMetrics) { e.metrics = m }

// now reads the clock once per operation at millisecond granularity.
func (e *Engine) now() time.Time {
	return e.nowFn().UTC().Truncate(time.Millisecond)
}

// op is the state visible to one mutating operation
type op struct {
	tx          store.Tx
	cfg         *models.ProtocolConfig
	now         time.Time
	settlements []settlement.Request
	transitions []models.FundingStatus
}

func (e *Engine) update(ctx context.Context, name string, fn func(o *op) error) error {
	now := e.now()
	var committed *op

	err := e.store.Update(ctx, func(tx store.Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		o := &op{tx: tx, cfg: cfg, now: now}
		if err := fn(o); err != nil {
			return err
		}
		committed = o
		return nil
	})
	e.metrics.ObserveOperation(name, ErrorKind(err))
	if err != nil {
		return err
	}

	for _, status := range committed.transitions {
		e.metrics.ObserveFundingTransition(string(status))
	}
	for _, req := range committed.settlements {
		e.dispatch(ctx, req)
	}
	return nil
}

func (e *Engine) view(ctx context.Context, fn func(tx store.Tx, cfg *models.ProtocolConfig) error) error {
	return e.store.View(ctx, func(tx store.Tx) error {
		cfg, err := loadConfig(tx)
		if err != nil {
			return err
		}
		return fn(tx, cfg)
	})
}

// dispatch hands a committed request to the settlement channel. Failures are
// logged only: the intent transition is already durable.
func (e *Engine) dispatch(ctx context.Context, req settlement.Request) {
	if e.settler == nil {
		zap.L().Warn("No settlement channel configured, request dropped",
			zap.String("intent_hash", req.IntentHash),
			zap.String("kind", string(req.Kind)))
		return
	}
	if err := e.settler.RequestSettlement(ctx, req); err != nil {
		e.metrics.ObserveSettlement("rejected")
		zap.L().Error("Settlement request failed",
			zap.String("intent_hash", req.IntentHash),
			zap.String("request_id", req.Id),
			zap.Error(err))
		return
	}
	e.metrics.ObserveSettlement("queued")
}

func loadConfig(tx store.Tx) (*models.ProtocolConfig, error) {
	cfg, err := tx.GetProtocolConfig()
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNotInitialized
	}
	return cfg, err
}

func (o *op) deposit(id uint64) (*models.Deposit, error) {
	d, err := o.tx.GetDeposit(id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrDepositNotFound, id)
	}
	return d, err
}

func (o *op) intent(hash string) (*models.Intent, error) {
	i, err := o.tx.GetIntent(hash)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrIntentNotFound, hash)
	}
	return i, err
}

func (o *op) funding(depositId uint64) (*models.FundingMeta, error) {
	f, err := o.tx.GetFunding(depositId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: %d", ErrFundingNotFound, depositId)
	}
	return f, err
}

// optionalFunding returns nil when the deposit was created without the funding workflow.
func optionalFunding(tx store.Tx, depositId uint64) (*models.FundingMeta, error) {
	f, err := tx.GetFunding(depositId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	return f, err
}

func (o *op) requireOwner(caller string) error {
	if caller == "" || caller != o.cfg.Owner {
		return ErrOwnerOnly
	}
	return nil
}

func (o *op) requireOracle(caller string) error {
	if caller == "" || caller != o.cfg.OracleAccount {
		return ErrOracleOnly
	}
	return nil
}

// putFunding stamps the update time and records terminal transitions for metrics.
func (o *op) putFunding(f *models.FundingMeta, before models.FundingStatus) error {
	f.UpdatedAt = o.now
	if f.Status != before {
		o.transitions = append(o.transitions, f.Status)
	}
	return o.tx.PutFunding(f)
}

func checkAmount(v *uint256.Int) error {
	if v == nil || v.IsZero() {
		return ErrAmountZero
	}
	if v.Gt(MaxAmount) {
		return ErrAmountTooLarge
	}
	return nil
}

func amountOrZero(v *uint256.Int) *uint256.Int {
	if v == nil {
		return new(uint256.Int)
	}
	return v
}
