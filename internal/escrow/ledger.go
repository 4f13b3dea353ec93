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
	"strings"

	"anypay-escrow-go/internal/models"
	"anypay-escrow-go/internal/store"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// CreateDepositParams describes a directly funded deposit
type CreateDepositParams struct {
	Token           string
	Amount          *uint256.Int
	MinIntentAmount *uint256.Int
	MaxIntentAmount *uint256.Int
	PaymentMethods  []string
	Delegate        string
}

// Initialize writes the protocol configuration exactly once. The oracle
// account defaults to the owner.
func (e *Engine) Initialize(ctx context.Context, owner, feeRecipient string) error {
	owner = strings.TrimSpace(owner)
	feeRecipient = strings.TrimSpace(feeRecipient)
	if owner == "" || feeRecipient == "" {
		return ErrAccountRequired
	}

	err := e.store.Update(ctx, func(tx store.Tx) error {
		_, err := tx.GetProtocolConfig()
		if err == nil {
			return ErrAlreadyInitialized
		}
		if !errors.Is(err, store.ErrNotFound) {
			return err
		}

		return tx.PutProtocolConfig(&models.ProtocolConfig{
			Owner:                owner,
			ProtocolFeeBps:       DefaultProtocolFeeBps,
			ProtocolFeeRecipient: feeRecipient,
			MaxIntentsPerDeposit: DefaultMaxIntentsPerDeposit,
			OracleAccount:        owner,
			StorageFee:           new(uint256.Int).Set(DefaultStorageFee),
			TopUpWindow:          DefaultTopUpWindow,
			MaxQuoteRotations:    DefaultMaxQuoteRotations,
		})
	})
	e.metrics.ObserveOperation("initialize", ErrorKind(err))
	if err != nil {
		return err
	}

	zap.L().Info("Protocol initialized", zap.String("owner", owner), zap.String("fee_recipient", feeRecipient))
	return nil
}

// validateListing applies the checks shared by direct and workflow deposits.
func validateListing(amount, minAmount, maxAmount *uint256.Int, methods []string) error {
	if err := checkAmount(amount); err != nil {
		return err
	}
	if minAmount == nil || minAmount.IsZero() {
		return ErrMinIntentZero
	}
	if maxAmount == nil || maxAmount.Gt(MaxAmount) {
		return ErrAmountTooLarge
	}
	if minAmount.Gt(maxAmount) {
		return ErrMinAboveMax
	}
	if len(methods) == 0 {
		return ErrNoPaymentMethods
	}
	if _, _, ok := firstPaymentDetails(methods); !ok {
		return ErrMalformedPaymentMethod
	}
	return nil
}

// CreateDeposit locks liquidity immediately: remaining = total = amount.
func (e *Engine) CreateDeposit(ctx context.Context, call Call, p CreateDepositParams) (uint64, error) {
	if call.Caller == "" {
		return 0, ErrAccountRequired
	}
	if err := validateListing(p.Amount, p.MinIntentAmount, p.MaxIntentAmount, p.PaymentMethods); err != nil {
		return 0, err
	}
	if strings.TrimSpace(p.Token) == "" {
		return 0, ErrAssetRequired
	}

	var id uint64
	err := e.update(ctx, "create_deposit", func(o *op) error {
		o.cfg.DepositCounter++
		id = o.cfg.DepositCounter

		d := &models.Deposit{
			Id:              id,
			Depositor:       call.Caller,
			Delegate:        strings.TrimSpace(p.Delegate),
			Token:           p.Token,
			Total:           new(uint256.Int).Set(p.Amount),
			Remaining:       new(uint256.Int).Set(p.Amount),
			Outstanding:     new(uint256.Int),
			MinIntentAmount: new(uint256.Int).Set(p.MinIntentAmount),
			MaxIntentAmount: new(uint256.Int).Set(p.MaxIntentAmount),
			PaymentMethods:  append([]string(nil), p.PaymentMethods...),
			CreatedAt:       o.now,
		}
		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		if err := o.tx.AddAccountDeposit(call.Caller, id); err != nil {
			return err
		}
		return o.tx.PutProtocolConfig(o.cfg)
	})
	if err != nil {
		return 0, err
	}

	zap.L().Info("Deposit created",
		zap.Uint64("deposit_id", id),
		zap.String("depositor", call.Caller),
		zap.String("token", p.Token),
		zap.String("amount", p.Amount.Dec()))
	return id, nil
}

// WithdrawDeposit zeroes the remaining liquidity and returns the withdrawn
// amount. The asset transfer itself belongs to the host.
func (e *Engine) WithdrawDeposit(ctx context.Context, call Call, depositId uint64) (*uint256.Int, error) {
	var withdrawn *uint256.Int
	err := e.update(ctx, "withdraw_deposit", func(o *op) error {
		d, err := o.deposit(depositId)
		if err != nil {
			return err
		}
		if !d.IsManager(call.Caller) {
			return ErrNotManager
		}
		if !d.Outstanding.IsZero() {
			return ErrOutstandingIntents
		}

		withdrawn = new(uint256.Int).Set(d.Remaining)
		d.Remaining = new(uint256.Int)
		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		return o.syncOpenListing(d)
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Deposit withdrawn",
		zap.Uint64("deposit_id", depositId),
		zap.String("caller", call.Caller),
		zap.String("amount", withdrawn.Dec()))
	return withdrawn, nil
}

// SetDelegate sets or replaces the co-manager. Depositor only.
func (e *Engine) SetDelegate(ctx context.Context, call Call, depositId uint64, delegate string) error {
	delegate = strings.TrimSpace(delegate)
	if delegate == "" {
		return ErrAccountRequired
	}

	err := e.update(ctx, "set_delegate", func(o *op) error {
		d, err := o.deposit(depositId)
		if err != nil {
			return err
		}
		if call.Caller == "" || d.Depositor != call.Caller {
			return ErrDepositorOnly
		}
		d.Delegate = delegate
		return o.tx.PutDeposit(d)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Delegate set", zap.Uint64("deposit_id", depositId), zap.String("delegate", delegate))
	return nil
}
