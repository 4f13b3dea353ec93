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
	"errors"
	"fmt"
)

// Error kinds. Every rejection returned by the engine wraps exactly one of these.
var (
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrFailedPrecondition = errors.New("failed precondition")
	ErrNotFound           = errors.New("not found")
)

func kindError(kind error, msg string) error {
	return fmt.Errorf("%w: %s", kind, msg)
}

// Validation
var (
	ErrAmountZero             = kindError(ErrInvalidArgument, "amount must be greater than 0")
	ErrAmountTooLarge         = kindError(ErrInvalidArgument, "amount exceeds 128 bits")
	ErrMinIntentZero          = kindError(ErrInvalidArgument, "min intent amount must be greater than 0")
	ErrMinAboveMax            = kindError(ErrInvalidArgument, "min must be <= max")
	ErrNoPaymentMethods       = kindError(ErrInvalidArgument, "at least one payment method required")
	ErrMalformedPaymentMethod = kindError(ErrInvalidArgument, "payment methods must include platform::tagname")
	ErrAssetRequired          = kindError(ErrInvalidArgument, "asset id is required")
	ErrRefundToRequired       = kindError(ErrInvalidArgument, "refund_to is required")
	ErrStorageFeeNotMet       = kindError(ErrInvalidArgument, "attached deposit is below storage fee")
	ErrQuoteIdRequired        = kindError(ErrInvalidArgument, "quote id is required")
	ErrDepositAddressRequired = kindError(ErrInvalidArgument, "deposit address is required")
	ErrFundedAmountZero       = kindError(ErrInvalidArgument, "funded amount must be > 0")
	ErrAmountBelowMinimum     = kindError(ErrInvalidArgument, "amount below minimum")
	ErrAmountAboveMaximum     = kindError(ErrInvalidArgument, "amount above maximum")
	ErrPaymentMethodRejected  = kindError(ErrInvalidArgument, "payment method not supported")
	ErrCurrencyRejected       = kindError(ErrInvalidArgument, "currency not supported by payment method")
	ErrProofRequired          = kindError(ErrInvalidArgument, "proof is required")
	ErrProofTooLarge          = kindError(ErrInvalidArgument, "proof payload is too large")
	ErrFeeTooHigh             = kindError(ErrInvalidArgument, "fee cannot exceed 5%")
	ErrNonPositiveSetting     = kindError(ErrInvalidArgument, "setting must be > 0")
	ErrNoCurrencies           = kindError(ErrInvalidArgument, "at least one currency required")
	ErrNameRequired           = kindError(ErrInvalidArgument, "name is required")
	ErrAccountRequired        = kindError(ErrInvalidArgument, "account is required")
)

// Authorization
var (
	ErrOwnerOnly     = kindError(ErrUnauthorized, "owner only")
	ErrOracleOnly    = kindError(ErrUnauthorized, "oracle only")
	ErrNotManager    = kindError(ErrUnauthorized, "caller does not manage deposit")
	ErrDepositorOnly = kindError(ErrUnauthorized, "only depositor can set delegate")
	ErrBuyerOnly     = kindError(ErrUnauthorized, "only buyer can cancel")
)

// State preconditions
var (
	ErrNotInitialized        = kindError(ErrFailedPrecondition, "protocol not initialized")
	ErrAlreadyInitialized    = kindError(ErrFailedPrecondition, "protocol already initialized")
	ErrOutstandingIntents    = kindError(ErrFailedPrecondition, "cannot withdraw while intents are pending")
	ErrNotCancelable         = kindError(ErrFailedPrecondition, "deposit is no longer cancelable")
	ErrMaxRotationsReached   = kindError(ErrFailedPrecondition, "maximum quote rotations reached")
	ErrNotAwaitingFunding    = kindError(ErrFailedPrecondition, "deposit is not awaiting funding")
	ErrWindowNotStarted      = kindError(ErrFailedPrecondition, "funding window not started")
	ErrDeadlinePassed        = kindError(ErrFailedPrecondition, "top-up deadline has passed")
	ErrStaleQuote            = kindError(ErrFailedPrecondition, "stale quote id")
	ErrListingNotFunded      = kindError(ErrFailedPrecondition, "listing is not funded")
	ErrInsufficientLiquidity = kindError(ErrFailedPrecondition, "insufficient liquidity")
	ErrMaxIntentsReached     = kindError(ErrFailedPrecondition, "max intents reached")
	ErrIntentNotSignaled     = kindError(ErrFailedPrecondition, "intent not in signaled state")
	ErrLiquidityInvariant    = kindError(ErrFailedPrecondition, "deposit liquidity invariant violated")
)

// Not found
var (
	ErrDepositNotFound       = kindError(ErrNotFound, "deposit not found")
	ErrIntentNotFound        = kindError(ErrNotFound, "intent not found")
	ErrFundingNotFound       = kindError(ErrNotFound, "funding metadata not found")
	ErrPaymentMethodNotFound = kindError(ErrNotFound, "payment method not found")
)

// ErrorKind names the kind an error belongs to, or "internal" for storage and
// other unexpected failures.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidArgument):
		return "invalid_argument"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrFailedPrecondition):
		return "failed_precondition"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	default:
		return "internal"
	}
}
