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
	"errors"
	"fmt"
	"time"

	"anypay-escrow-go/internal/escrow"
	"anypay-escrow-go/internal/intents"
	"anypay-escrow-go/internal/models"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Listener actions, also used as metric labels.
const (
	actionSkip    = "skip"
	actionExpire  = "expire"
	actionQuote   = "quote"
	actionRotate  = "rotate"
	actionPending = "pending"
	actionConfirm = "confirm"
	actionFail    = "fail"
)

const (
	statusQuoteCreateFailed = "QUOTE_CREATE_FAILED"
	maxReasonLength         = 180
)

// processDeposit advances one workflow by at most one oracle signal
// (rotation is expire followed by a new quote).
func (l *FundingListener) processDeposit(ctx context.Context, depositId uint64) (string, error) {
	f, err := l.ledger.GetDepositFunding(ctx, depositId)
	if errors.Is(err, escrow.ErrFundingNotFound) {
		return actionSkip, nil
	}
	if err != nil {
		return actionSkip, fmt.Errorf("failed to read funding metadata: %w", err)
	}
	if f.Status != models.FundingAwaiting || !l.monitors(f.AssetId) {
		return actionSkip, nil
	}

	now := l.nowFn().UTC()

	if f.WindowStarted() && f.DeadlinePassed(now) {
		quoteId := f.QuoteId
		if quoteId == "" {
			quoteId = fmt.Sprintf("expired:%d", depositId)
		}
		if err := l.ledger.MarkTopUpExpired(ctx, l.oracle, depositId, quoteId, "Top-up deadline reached"); err != nil {
			return actionExpire, err
		}
		zap.L().Info("Funding window closed by oracle", zap.Uint64("deposit_id", depositId), zap.String("quote_id", quoteId))
		return actionExpire, nil
	}

	if !f.HasActiveQuote() || f.DepositAddress == "" {
		return actionQuote, l.createQuote(ctx, f)
	}

	if l.quoteNeedsRotation(f, now) {
		if err := l.ledger.MarkQuoteExpired(ctx, l.oracle, depositId, f.QuoteId); err != nil {
			return actionRotate, err
		}
		return actionRotate, l.createQuote(ctx, f)
	}

	status, err := l.quotes.GetStatus(ctx, f.DepositAddress, f.DepositMemo)
	if err != nil {
		return actionPending, fmt.Errorf("failed to get intents status: %w", err)
	}

	switch status.Status {
	case intents.StatusSuccess:
		return l.confirm(ctx, f, status, now)

	case intents.StatusFailed, intents.StatusRefunded:
		reason := status.SwapDetails.RefundReason
		if reason == "" {
			reason = "Intents status: " + status.Status
		}
		if err := l.ledger.MarkFailed(ctx, l.oracle, depositId, f.QuoteId, status.Status, reason); err != nil {
			return actionFail, err
		}
		return actionFail, nil

	default:
		// PENDING_DEPOSIT, PROCESSING and INCOMPLETE_DEPOSIT wait for a top-up;
		// rotation and expiry are handled above on later ticks
		return actionPending, nil
	}
}

func (l *FundingListener) quoteNeedsRotation(f *models.FundingMeta, now time.Time) bool {
	return !f.QuoteExpiresAt.IsZero() && !now.Add(l.rotationBuffer).Before(f.QuoteExpiresAt)
}

// confirm picks the funded amount from the most specific field available:
// deposited amount, swap amountIn, quoted amountIn, then the expected total.
func (l *FundingListener) confirm(ctx context.Context, f *models.FundingMeta, status *intents.StatusResponse, now time.Time) (string, error) {
	deposit, err := l.ledger.GetDeposit(ctx, f.DepositId)
	if err != nil {
		return actionConfirm, fmt.Errorf("failed to read deposit: %w", err)
	}

	funded := intents.PickPositiveAmount(
		intents.NormalizeAmount(string(status.SwapDetails.DepositedAmount)),
		intents.NormalizeAmount(string(status.SwapDetails.AmountIn)),
		intents.NormalizeAmount(string(status.QuoteResponse.Quote.AmountIn)),
		deposit.Total.Dec(),
	)
	if funded == "0" {
		zap.L().Warn("SUCCESS status without a positive amount", zap.Uint64("deposit_id", f.DepositId))
		return actionPending, nil
	}

	amount, err := uint256.FromDecimal(funded)
	if err != nil {
		return actionConfirm, fmt.Errorf("funded amount %s out of range: %w", funded, err)
	}

	return actionConfirm, l.ledger.ConfirmFunding(ctx, l.oracle, escrow.ConfirmFundingParams{
		DepositId:      f.DepositId,
		QuoteId:        f.QuoteId,
		FundedAmount:   amount,
		OriginTxHash:   originTxHash(status, now),
		ExternalStatus: status.Status,
	})
}

func originTxHash(status *intents.StatusResponse, now time.Time) string {
	if hash := status.OriginTxHash(); hash != "" {
		return hash
	}
	if status.CorrelationId != "" {
		return "correlation:" + status.CorrelationId
	}
	return fmt.Sprintf("unknown:%d", now.UnixMilli())
}

// createQuote requests a quote for the expected total and records it. A
// permanent API rejection fails the workflow instead of retrying forever.
func (l *FundingListener) createQuote(ctx context.Context, f *models.FundingMeta) error {
	deposit, err := l.ledger.GetDeposit(ctx, f.DepositId)
	if err != nil {
		return fmt.Errorf("failed to read deposit: %w", err)
	}
	if deposit.Total.IsZero() {
		zap.L().Warn("Deposit has zero expected amount", zap.Uint64("deposit_id", f.DepositId))
		return nil
	}

	quote, err := l.quotes.CreateFundingQuote(ctx, intents.QuoteRequest{
		AssetId:   f.AssetId,
		Amount:    deposit.Total.Dec(),
		Recipient: deposit.Depositor,
		RefundTo:  f.RefundTo,
	})
	if err != nil {
		if !intents.IsPermanent(err) {
			return fmt.Errorf("failed to create quote: %w", err)
		}

		quoteId := f.QuoteId
		if quoteId == "" {
			quoteId = fmt.Sprintf("quote-create:%d", f.DepositId)
		}
		zap.L().Warn("Quote creation rejected permanently",
			zap.Uint64("deposit_id", f.DepositId),
			zap.Error(err))
		return l.ledger.MarkFailed(ctx, l.oracle, f.DepositId, quoteId, statusQuoteCreateFailed, summarize(err))
	}

	return l.ledger.SetQuote(ctx, l.oracle, escrow.SetQuoteParams{
		DepositId:      f.DepositId,
		QuoteId:        quote.QuoteId,
		DepositAddress: quote.DepositAddress,
		DepositMemo:    quote.DepositMemo,
		QuoteExpiresAt: quote.ExpiresAt,
	})
}

func summarize(err error) string {
	msg := err.Error()
	if len(msg) <= maxReasonLength {
		return msg
	}
	return msg[:maxReasonLength-3] + "..."
}
