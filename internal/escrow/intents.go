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
	"anypay-escrow-go/internal/settlement"
	"anypay-escrow-go/internal/store"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// SignalIntentParams describes a buyer reservation
type SignalIntentParams struct {
	DepositId     uint64
	Amount        *uint256.Int
	PaymentMethod string
	CurrencyCode  string
	Recipient     string
	Chain         string
}

// SignalIntent moves amount from remaining to outstanding and records a new
// Signaled intent.
func (e *Engine) SignalIntent(ctx context.Context, call Call, p SignalIntentParams) (string, error) {
	if call.Caller == "" {
		return "", ErrAccountRequired
	}
	if err := checkAmount(p.Amount); err != nil {
		return "", err
	}

	var hash string
	err := e.update(ctx, "signal_intent", func(o *op) error {
		d, err := o.deposit(p.DepositId)
		if err != nil {
			return err
		}
		f, err := optionalFunding(o.tx, p.DepositId)
		if err != nil {
			return err
		}
		if f != nil && f.Status != models.FundingFunded {
			return ErrListingNotFunded
		}

		if p.Amount.Lt(d.MinIntentAmount) {
			return ErrAmountBelowMinimum
		}
		if p.Amount.Gt(d.MaxIntentAmount) {
			return ErrAmountAboveMaximum
		}
		if d.Remaining.Lt(p.Amount) {
			return ErrInsufficientLiquidity
		}
		if !d.AcceptsPaymentMethod(p.PaymentMethod) {
			return ErrPaymentMethodRejected
		}
		if err := o.checkRegisteredCurrency(p.PaymentMethod, p.CurrencyCode); err != nil {
			return err
		}

		count, err := o.tx.CountDepositIntents(p.DepositId)
		if err != nil {
			return err
		}
		if uint64(count) >= uint64(o.cfg.MaxIntentsPerDeposit) {
			return ErrMaxIntentsReached
		}

		d.Remaining = new(uint256.Int).Sub(d.Remaining, p.Amount)
		d.Outstanding = new(uint256.Int).Add(d.Outstanding, p.Amount)
		if err := checkLiquidity(d); err != nil {
			return err
		}
		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		if err := o.syncOpenListingWith(d, f); err != nil {
			return err
		}

		o.cfg.IntentCounter++
		hash = IntentHash(o.cfg.IntentCounter)

		intent := &models.Intent{
			Hash:          hash,
			Buyer:         call.Caller,
			DepositId:     p.DepositId,
			Amount:        new(uint256.Int).Set(p.Amount),
			PaymentMethod: p.PaymentMethod,
			CurrencyCode:  p.CurrencyCode,
			Recipient:     p.Recipient,
			Chain:         p.Chain,
			Status:        models.IntentSignaled,
			CreatedAt:     o.now,
			UpdatedAt:     o.now,
		}
		if err := o.tx.PutIntent(intent); err != nil {
			return err
		}
		if err := o.tx.AddAccountIntent(call.Caller, hash); err != nil {
			return err
		}
		if err := o.tx.AddDepositIntent(p.DepositId, hash); err != nil {
			return err
		}
		return o.tx.PutProtocolConfig(o.cfg)
	})
	if err != nil {
		return "", err
	}

	zap.L().Info("Intent signaled",
		zap.String("intent_hash", hash),
		zap.Uint64("deposit_id", p.DepositId),
		zap.String("buyer", call.Caller),
		zap.String("amount", p.Amount.Dec()))
	return hash, nil
}

// checkRegisteredCurrency enforces the registry entry for the platform when one exists.
func (o *op) checkRegisteredCurrency(paymentMethod, currencyCode string) error {
	platform, _ := SplitPaymentMethod(paymentMethod)
	if platform == "" {
		return nil
	}
	pm, err := o.tx.GetPaymentMethod(platform)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !pm.AcceptsCurrency(currencyCode) {
		return ErrCurrencyRejected
	}
	return nil
}

// CancelIntent returns the reserved amount to remaining. Buyer only.
func (e *Engine) CancelIntent(ctx context.Context, call Call, hash string) error {
	err := e.update(ctx, "cancel_intent", func(o *op) error {
		intent, err := o.intent(hash)
		if err != nil {
			return err
		}
		if call.Caller == "" || intent.Buyer != call.Caller {
			return ErrBuyerOnly
		}
		if intent.Status != models.IntentSignaled {
			return ErrIntentNotSignaled
		}

		d, err := o.deposit(intent.DepositId)
		if err != nil {
			return err
		}
		outstanding, underflow := new(uint256.Int).SubOverflow(d.Outstanding, intent.Amount)
		if underflow {
			return ErrLiquidityInvariant
		}
		d.Outstanding = outstanding
		d.Remaining = new(uint256.Int).Add(d.Remaining, intent.Amount)
		if err := checkLiquidity(d); err != nil {
			return err
		}
		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		if err := o.syncOpenListing(d); err != nil {
			return err
		}

		intent.Status = models.IntentCancelled
		intent.UpdatedAt = o.now
		return o.tx.PutIntent(intent)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Intent cancelled", zap.String("intent_hash", hash), zap.String("buyer", call.Caller))
	return nil
}

// FulfillIntent consumes the reserved amount and queues a settlement request.
// Any caller may trigger it; payment evidence is checked off-chain.
func (e *Engine) FulfillIntent(ctx context.Context, call Call, hash string) error {
	return e.resolve(ctx, "fulfill_intent", call, hash, models.IntentFulfilled, 0)
}

// FulfillIntentWithProof validates the opaque proof envelope, then fulfils.
func (e *Engine) FulfillIntentWithProof(ctx context.Context, call Call, hash, proof string) error {
	normalized := strings.TrimSpace(proof)
	if normalized == "" {
		return ErrProofRequired
	}
	if len(normalized) > MaxProofSize {
		return ErrProofTooLarge
	}

	zap.L().Info("Intent proof submitted", zap.String("intent_hash", hash), zap.Int("proof_size", len(normalized)))
	return e.resolve(ctx, "fulfill_intent_with_proof", call, hash, models.IntentFulfilled, len(normalized))
}

// ReleaseIntent is the manager-initiated payout path.
func (e *Engine) ReleaseIntent(ctx context.Context, call Call, hash string) error {
	return e.resolve(ctx, "release_intent", call, hash, models.IntentReleased, 0)
}

// resolve performs the shared fulfil/release transition: outstanding is
// decremented without returning to remaining.
func (e *Engine) resolve(ctx context.Context, name string, call Call, hash string, target models.IntentStatus, proofSize int) error {
	err := e.update(ctx, name, func(o *op) error {
		intent, err := o.intent(hash)
		if err != nil {
			return err
		}
		d, err := o.deposit(intent.DepositId)
		if err != nil {
			return err
		}
		if target == models.IntentReleased && !d.IsManager(call.Caller) {
			return ErrNotManager
		}
		if intent.Status != models.IntentSignaled {
			return ErrIntentNotSignaled
		}

		outstanding, underflow := new(uint256.Int).SubOverflow(d.Outstanding, intent.Amount)
		if underflow {
			return ErrLiquidityInvariant
		}
		d.Outstanding = outstanding
		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		if err := o.syncOpenListing(d); err != nil {
			return err
		}

		intent.Status = target
		intent.ProofSize = proofSize
		intent.UpdatedAt = o.now
		if err := o.tx.PutIntent(intent); err != nil {
			return err
		}

		o.settlements = append(o.settlements, o.settlementRequest(intent, d))
		return nil
	})
	if err != nil {
		return err
	}

	zap.L().Info("Intent resolved",
		zap.String("intent_hash", hash),
		zap.String("status", string(target)),
		zap.String("caller", call.Caller))
	return nil
}

func (o *op) settlementRequest(intent *models.Intent, d *models.Deposit) settlement.Request {
	kind := settlement.KindFulfill
	if intent.Status == models.IntentReleased {
		kind = settlement.KindRelease
	}
	return settlement.Request{
		Id:           uuid.New().String(),
		Kind:         kind,
		IntentHash:   intent.Hash,
		DepositId:    intent.DepositId,
		Asset:        d.Token,
		Amount:       new(uint256.Int).Set(intent.Amount),
		ProtocolFee:  ProtocolFee(intent.Amount, o.cfg.ProtocolFeeBps),
		FeeRecipient: o.cfg.ProtocolFeeRecipient,
		Chain:        intent.Chain,
		Recipient:    intent.Recipient,
		RequestedAt:  o.now,
	}
}

// ProtocolFee is amount * bps / 10000, rounded down.
func ProtocolFee(amount *uint256.Int, bps uint32) *uint256.Int {
	fee := new(uint256.Int).Mul(amount, uint256.NewInt(uint64(bps)))
	return fee.Div(fee, uint256.NewInt(10_000))
}

// checkLiquidity asserts remaining + outstanding <= total.
func checkLiquidity(d *models.Deposit) error {
	sum, overflow := new(uint256.Int).AddOverflow(d.Remaining, d.Outstanding)
	if overflow || sum.Gt(d.Total) {
		return ErrLiquidityInvariant
	}
	return nil
}
