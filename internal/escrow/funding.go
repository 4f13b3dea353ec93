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
	"time"

	"anypay-escrow-go/internal/models"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

const (
	reasonCancelledBySeller   = "Cancelled by seller"
	reasonWindowAlreadyClosed = "Top-up window already expired"
	reasonWindowExpired       = "Top-up window expired"
)

// RegisterFundingParams describes a deposit funded later through the oracle workflow
type RegisterFundingParams struct {
	AssetId         string
	ExpectedAmount  *uint256.Int
	MinIntentAmount *uint256.Int
	MaxIntentAmount *uint256.Int
	PaymentMethods  []string
	Delegate        string
	RefundTo        string
}

type SetQuoteParams struct {
	DepositId      uint64
	QuoteId        string
	DepositAddress string
	DepositMemo    string
	QuoteExpiresAt time.Time
}

type ConfirmFundingParams struct {
	DepositId      uint64
	QuoteId        string
	FundedAmount   *uint256.Int
	OriginTxHash   string
	ExternalStatus string
}

// RegisterDepositIntent creates a deposit with no liquidity yet and attaches
// funding metadata in AwaitingFunding with zeroed timers.
func (e *Engine) RegisterDepositIntent(ctx context.Context, call Call, p RegisterFundingParams) (uint64, error) {
	if call.Caller == "" {
		return 0, ErrAccountRequired
	}
	if err := validateListing(p.ExpectedAmount, p.MinIntentAmount, p.MaxIntentAmount, p.PaymentMethods); err != nil {
		return 0, err
	}
	if strings.TrimSpace(p.AssetId) == "" {
		return 0, ErrAssetRequired
	}
	if strings.TrimSpace(p.RefundTo) == "" {
		return 0, ErrRefundToRequired
	}

	var id uint64
	err := e.update(ctx, "register_deposit_intent", func(o *op) error {
		if amountOrZero(call.Attached).Lt(o.cfg.StorageFee) {
			return ErrStorageFeeNotMet
		}

		o.cfg.DepositCounter++
		id = o.cfg.DepositCounter

		d := &models.Deposit{
			Id:              id,
			Depositor:       call.Caller,
			Delegate:        strings.TrimSpace(p.Delegate),
			Token:           p.AssetId,
			Total:           new(uint256.Int).Set(p.ExpectedAmount),
			Remaining:       new(uint256.Int),
			Outstanding:     new(uint256.Int),
			MinIntentAmount: new(uint256.Int).Set(p.MinIntentAmount),
			MaxIntentAmount: new(uint256.Int).Set(p.MaxIntentAmount),
			PaymentMethods:  append([]string(nil), p.PaymentMethods...),
			CreatedAt:       o.now,
		}
		f := &models.FundingMeta{
			DepositId:    id,
			AssetId:      p.AssetId,
			RefundTo:     p.RefundTo,
			Status:       models.FundingAwaiting,
			FundedAmount: new(uint256.Int),
		}

		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		if err := o.putFunding(f, models.FundingAwaiting); err != nil {
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

	zap.L().Info("Funding intent registered",
		zap.Uint64("deposit_id", id),
		zap.String("depositor", call.Caller),
		zap.String("asset_id", p.AssetId),
		zap.String("expected_amount", p.ExpectedAmount.Dec()))
	return id, nil
}

// CancelDepositIntent cancels a workflow that is still awaiting funding. Manager only.
func (e *Engine) CancelDepositIntent(ctx context.Context, call Call, depositId uint64) error {
	err := e.update(ctx, "cancel_deposit_intent", func(o *op) error {
		d, err := o.deposit(depositId)
		if err != nil {
			return err
		}
		f, err := o.funding(depositId)
		if err != nil {
			return err
		}
		if !d.IsManager(call.Caller) {
			return ErrNotManager
		}
		if f.Status != models.FundingAwaiting {
			return ErrNotCancelable
		}

		f.Status = models.FundingCancelled
		f.FailureReason = reasonCancelledBySeller
		if err := o.putFunding(f, models.FundingAwaiting); err != nil {
			return err
		}
		return o.tx.RemoveOpenListing(f.AssetId, depositId)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Funding intent cancelled", zap.Uint64("deposit_id", depositId), zap.String("caller", call.Caller))
	return nil
}

// SetQuote records a new oracle quote. The first quote starts the top-up
// window. A call at or past the deadline expires the workflow instead and
// still commits.
func (e *Engine) SetQuote(ctx context.Context, call Call, p SetQuoteParams) error {
	if strings.TrimSpace(p.QuoteId) == "" {
		return ErrQuoteIdRequired
	}
	if strings.TrimSpace(p.DepositAddress) == "" {
		return ErrDepositAddressRequired
	}

	var outcome string
	err := e.update(ctx, "set_quote", func(o *op) error {
		if err := o.requireOracle(call.Caller); err != nil {
			return err
		}
		if _, err := o.deposit(p.DepositId); err != nil {
			return err
		}
		f, err := o.funding(p.DepositId)
		if err != nil {
			return err
		}
		if f.Status != models.FundingAwaiting {
			outcome = "ignored"
			return nil
		}

		if !f.WindowStarted() {
			f.FundingStartedAt = o.now
			f.TopUpDeadline = o.now.Add(o.cfg.TopUpWindow)
		}

		if f.DeadlinePassed(o.now) {
			outcome = "expired"
			f.Status = models.FundingTopUpExpired
			f.FailureReason = reasonWindowAlreadyClosed
			if err := o.putFunding(f, models.FundingAwaiting); err != nil {
				return err
			}
			return o.tx.RemoveOpenListing(f.AssetId, p.DepositId)
		}

		if f.QuoteGeneration >= o.cfg.MaxQuoteRotations {
			return ErrMaxRotationsReached
		}

		f.QuoteId = p.QuoteId
		f.DepositAddress = p.DepositAddress
		f.DepositMemo = strings.TrimSpace(p.DepositMemo)
		f.QuoteExpiresAt = p.QuoteExpiresAt.UTC().Truncate(time.Millisecond)
		f.QuoteGeneration++
		f.LastExternalStatus = models.ExternalStatusPendingDeposit
		outcome = "accepted"
		return o.putFunding(f, models.FundingAwaiting)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Quote processed",
		zap.Uint64("deposit_id", p.DepositId),
		zap.String("quote_id", p.QuoteId),
		zap.String("outcome", outcome))
	return nil
}

// MarkQuoteExpired clears the active quote. Stale quote ids and terminal
// workflows are ignored. Crossing the deadline here expires the workflow.
func (e *Engine) MarkQuoteExpired(ctx context.Context, call Call, depositId uint64, quoteId string) error {
	return e.update(ctx, "mark_quote_expired", func(o *op) error {
		if err := o.requireOracle(call.Caller); err != nil {
			return err
		}
		f, err := o.funding(depositId)
		if err != nil {
			return err
		}
		if f.Status != models.FundingAwaiting || !f.MatchesQuote(quoteId) {
			return nil
		}

		f.QuoteId = ""
		f.DepositAddress = ""
		f.DepositMemo = ""
		f.QuoteExpiresAt = time.Time{}
		f.LastExternalStatus = models.ExternalStatusQuoteExpired

		if f.DeadlinePassed(o.now) {
			f.Status = models.FundingTopUpExpired
			f.FailureReason = reasonWindowExpired
			if err := o.tx.RemoveOpenListing(f.AssetId, depositId); err != nil {
				return err
			}
			zap.L().Info("Funding window expired", zap.Uint64("deposit_id", depositId), zap.String("quote_id", quoteId))
		}
		return o.putFunding(f, models.FundingAwaiting)
	})
}

// ConfirmFunding activates liquidity: total = remaining = funded amount and
// intent bounds are clamped into [0, funded]. Repeating a confirmation of a
// funded workflow is a no-op.
func (e *Engine) ConfirmFunding(ctx context.Context, call Call, p ConfirmFundingParams) error {
	if err := checkAmount(p.FundedAmount); err != nil {
		if errors.Is(err, ErrAmountZero) {
			return ErrFundedAmountZero
		}
		return err
	}

	var confirmed bool
	err := e.update(ctx, "confirm_funding", func(o *op) error {
		if err := o.requireOracle(call.Caller); err != nil {
			return err
		}
		d, err := o.deposit(p.DepositId)
		if err != nil {
			return err
		}
		f, err := o.funding(p.DepositId)
		if err != nil {
			return err
		}

		if f.Status == models.FundingFunded {
			return nil
		}
		if f.Status != models.FundingAwaiting {
			return ErrNotAwaitingFunding
		}
		if !f.WindowStarted() {
			return ErrWindowNotStarted
		}
		if o.now.After(f.TopUpDeadline) {
			return ErrDeadlinePassed
		}
		if !f.MatchesQuote(p.QuoteId) {
			return ErrStaleQuote
		}

		funded := p.FundedAmount
		f.Status = models.FundingFunded
		f.FundedAmount = new(uint256.Int).Set(funded)
		f.OriginTxHash = p.OriginTxHash
		f.LastExternalStatus = p.ExternalStatus
		f.FailureReason = ""

		d.Total = new(uint256.Int).Set(funded)
		d.Remaining = new(uint256.Int).Set(funded)
		if d.MinIntentAmount.Gt(funded) {
			d.MinIntentAmount = new(uint256.Int).Set(funded)
		}
		if d.MaxIntentAmount.Gt(funded) {
			d.MaxIntentAmount = new(uint256.Int).Set(funded)
		}
		if d.MaxIntentAmount.Lt(d.MinIntentAmount) {
			d.MaxIntentAmount = new(uint256.Int).Set(d.MinIntentAmount)
		}

		if err := o.putFunding(f, models.FundingAwaiting); err != nil {
			return err
		}
		if err := o.tx.PutDeposit(d); err != nil {
			return err
		}
		confirmed = true
		return o.syncOpenListingWith(d, f)
	})
	if err != nil {
		return err
	}

	if confirmed {
		zap.L().Info("Funding confirmed",
			zap.Uint64("deposit_id", p.DepositId),
			zap.String("quote_id", p.QuoteId),
			zap.String("amount", p.FundedAmount.Dec()),
			zap.String("origin_tx_hash", p.OriginTxHash))
	}
	return nil
}

// MarkFailed moves an awaiting workflow to Failed. Stale signals are ignored.
func (e *Engine) MarkFailed(ctx context.Context, call Call, depositId uint64, quoteId, externalStatus, reason string) error {
	return e.update(ctx, "mark_failed", func(o *op) error {
		if err := o.requireOracle(call.Caller); err != nil {
			return err
		}
		f, err := o.funding(depositId)
		if err != nil {
			return err
		}
		if f.Status != models.FundingAwaiting || !f.MatchesQuote(quoteId) {
			return nil
		}

		f.Status = models.FundingFailed
		f.LastExternalStatus = externalStatus
		f.FailureReason = reason
		if err := o.putFunding(f, models.FundingAwaiting); err != nil {
			return err
		}
		zap.L().Info("Funding failed",
			zap.Uint64("deposit_id", depositId),
			zap.String("quote_id", quoteId),
			zap.String("external_status", externalStatus),
			zap.String("reason", reason))
		return o.tx.RemoveOpenListing(f.AssetId, depositId)
	})
}

// MarkTopUpExpired moves an awaiting workflow to TopUpExpired. Stale signals are ignored.
func (e *Engine) MarkTopUpExpired(ctx context.Context, call Call, depositId uint64, quoteId, reason string) error {
	return e.update(ctx, "mark_topup_expired", func(o *op) error {
		if err := o.requireOracle(call.Caller); err != nil {
			return err
		}
		f, err := o.funding(depositId)
		if err != nil {
			return err
		}
		if f.Status != models.FundingAwaiting || !f.MatchesQuote(quoteId) {
			return nil
		}

		f.Status = models.FundingTopUpExpired
		f.FailureReason = reason
		if err := o.putFunding(f, models.FundingAwaiting); err != nil {
			return err
		}
		zap.L().Info("Funding top-up expired",
			zap.Uint64("deposit_id", depositId),
			zap.String("quote_id", quoteId),
			zap.String("reason", reason))
		return o.tx.RemoveOpenListing(f.AssetId, depositId)
	})
}
