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

package models

import (
	"time"

	"github.com/holiman/uint256"
)

// Deposit is a seller's locked liquidity lot
type Deposit struct {
	Id              uint64       `db:"id"`
	Depositor       string       `db:"depositor"`
	Delegate        string       `db:"delegate"` // empty when no delegate is set
	Token           string       `db:"token"`
	Total           *uint256.Int `db:"total_deposit"`
	Remaining       *uint256.Int `db:"remaining_deposits"`
	Outstanding     *uint256.Int `db:"outstanding_intents"`
	MinIntentAmount *uint256.Int `db:"min_intent_amount"`
	MaxIntentAmount *uint256.Int `db:"max_intent_amount"`
	PaymentMethods  []string     `db:"payment_methods"`
	CreatedAt       time.Time    `db:"created_at"`
}

// IsManager reports whether account may manage the deposit (depositor or delegate).
func (d *Deposit) IsManager(account string) bool {
	if d == nil || account == "" {
		return false
	}
	return d.Depositor == account || (d.Delegate != "" && d.Delegate == account)
}

// AcceptsPaymentMethod reports whether the exact payment method string was listed by the seller.
func (d *Deposit) AcceptsPaymentMethod(method string) bool {
	for _, pm := range d.PaymentMethods {
		if pm == method {
			return true
		}
	}
	return false
}

// Intent is a buyer's reservation against one deposit
type Intent struct {
	Hash          string       `db:"intent_hash"`
	Buyer         string       `db:"buyer"`
	DepositId     uint64       `db:"deposit_id"`
	Amount        *uint256.Int `db:"amount"`
	PaymentMethod string       `db:"payment_method"`
	CurrencyCode  string       `db:"currency_code"`
	Recipient     string       `db:"recipient"`
	Chain         string       `db:"chain"`
	Status        IntentStatus `db:"status"`
	ProofSize     int          `db:"proof_size"`
	CreatedAt     time.Time    `db:"created_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

// FundingMeta is the oracle workflow state attached to a deposit registered through the funding path
type FundingMeta struct {
	DepositId          uint64        `db:"deposit_id"`
	AssetId            string        `db:"asset_id"`
	RefundTo           string        `db:"refund_to"`
	QuoteId            string        `db:"quote_id"` // empty when no quote is active
	DepositAddress     string        `db:"deposit_address"`
	DepositMemo        string        `db:"deposit_memo"`
	QuoteExpiresAt     time.Time     `db:"quote_expires_at_ms"`
	QuoteGeneration    uint16        `db:"quote_generation"`
	FundingStartedAt   time.Time     `db:"funding_started_at_ms"`
	TopUpDeadline      time.Time     `db:"topup_deadline_at_ms"`
	Status             FundingStatus `db:"status"`
	FundedAmount       *uint256.Int  `db:"funded_amount"`
	OriginTxHash       string        `db:"origin_tx_hash"`
	LastExternalStatus string        `db:"last_intents_status"`
	FailureReason      string        `db:"failure_reason"`
	UpdatedAt          time.Time     `db:"updated_at_ms"`
}

// HasActiveQuote reports whether a quote is currently active.
func (f *FundingMeta) HasActiveQuote() bool {
	return f != nil && f.QuoteId != ""
}

// MatchesQuote fences stale oracle signals: with no active quote any id matches.
func (f *FundingMeta) MatchesQuote(quoteId string) bool {
	if !f.HasActiveQuote() {
		return true
	}
	return f.QuoteId == quoteId
}

// WindowStarted reports whether the first quote has been issued.
func (f *FundingMeta) WindowStarted() bool {
	return f != nil && !f.TopUpDeadline.IsZero()
}

// DeadlinePassed reports whether now is at or past the top-up deadline.
func (f *FundingMeta) DeadlinePassed(now time.Time) bool {
	return f.WindowStarted() && !now.Before(f.TopUpDeadline)
}

// PaymentMethod is a registry entry for an allowed payment platform
type PaymentMethod struct {
	Name        string   `db:"name"`
	Verifier    string   `db:"verifier"`
	Currencies  []string `db:"currencies"`
	Initialized bool     `db:"initialized"`
}

// AcceptsCurrency reports whether code is among the method's currencies (case-insensitive).
func (p *PaymentMethod) AcceptsCurrency(code string) bool {
	for _, c := range p.Currencies {
		if equalFold(c, code) {
			return true
		}
	}
	return false
}

// ProtocolConfig is the singleton protocol state row
type ProtocolConfig struct {
	Owner                string        `db:"owner"`
	ProtocolFeeBps       uint32        `db:"protocol_fee_bps"`
	ProtocolFeeRecipient string        `db:"protocol_fee_recipient"`
	MaxIntentsPerDeposit uint32        `db:"max_intents_per_deposit"`
	OracleAccount        string        `db:"oracle_account"`
	StorageFee           *uint256.Int  `db:"storage_fee"`
	TopUpWindow          time.Duration `db:"topup_window_ms"`
	MaxQuoteRotations    uint16        `db:"max_quote_rotations"`
	DepositCounter       uint64        `db:"deposit_counter"`
	IntentCounter        uint64        `db:"intent_counter"`
}
