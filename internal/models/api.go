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

// Amounts cross the HTTP boundary as base-10 strings of base units and
// timestamps as unix milliseconds (0 when unset).

type InitializeRequest struct {
	FeeRecipient string `json:"fee_recipient"`
}

type CreateDepositRequest struct {
	Token           string   `json:"token"`
	Amount          string   `json:"amount"`
	MinIntentAmount string   `json:"min_intent_amount"`
	MaxIntentAmount string   `json:"max_intent_amount"`
	PaymentMethods  []string `json:"payment_methods"`
	Delegate        string   `json:"delegate,omitempty"`
}

type RegisterFundingRequest struct {
	AssetId         string   `json:"asset_id"`
	ExpectedAmount  string   `json:"expected_amount"`
	MinIntentAmount string   `json:"min_intent_amount"`
	MaxIntentAmount string   `json:"max_intent_amount"`
	PaymentMethods  []string `json:"payment_methods"`
	Delegate        string   `json:"delegate,omitempty"`
	RefundTo        string   `json:"refund_to"`
	AttachedDeposit string   `json:"attached_deposit"`
}

type SetDelegateRequest struct {
	Delegate string `json:"delegate"`
}

type SetQuoteRequest struct {
	QuoteId          string `json:"quote_id"`
	DepositAddress   string `json:"deposit_address"`
	DepositMemo      string `json:"deposit_memo,omitempty"`
	QuoteExpiresAtMs int64  `json:"quote_expires_at_ms"`
}

type QuoteRefRequest struct {
	QuoteId string `json:"quote_id"`
}

type ConfirmFundingRequest struct {
	QuoteId       string `json:"quote_id"`
	FundedAmount  string `json:"funded_amount"`
	OriginTxHash  string `json:"origin_tx_hash"`
	IntentsStatus string `json:"intents_status"`
}

type MarkFailedRequest struct {
	QuoteId       string `json:"quote_id"`
	IntentsStatus string `json:"intents_status"`
	Reason        string `json:"reason"`
}

type MarkTopUpExpiredRequest struct {
	QuoteId string `json:"quote_id"`
	Reason  string `json:"reason"`
}

type SignalIntentRequest struct {
	DepositId     uint64 `json:"deposit_id"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	CurrencyCode  string `json:"currency_code"`
	Recipient     string `json:"recipient"`
	Chain         string `json:"chain"`
}

type ProofRequest struct {
	Proof string `json:"proof"`
}

type SetProtocolFeeRequest struct {
	FeeBps uint32 `json:"fee_bps"`
}

type SetMaxIntentsRequest struct {
	MaxIntentsPerDeposit uint32 `json:"max_intents_per_deposit"`
}

type SetOracleRequest struct {
	OracleAccount string `json:"oracle_account"`
}

type SetStorageFeeRequest struct {
	StorageFee string `json:"storage_fee"`
}

type SetTopUpWindowRequest struct {
	TopUpWindowMs int64 `json:"topup_window_ms"`
}

type SetMaxQuoteRotationsRequest struct {
	MaxQuoteRotations uint16 `json:"max_quote_rotations"`
}

type PaymentMethodRequest struct {
	Verifier   string   `json:"verifier"`
	Currencies []string `json:"currencies"`
}

type DepositCreatedResponse struct {
	DepositId uint64 `json:"deposit_id"`
}

type WithdrawResponse struct {
	DepositId uint64 `json:"deposit_id"`
	Amount    string `json:"amount"`
}

type IntentSignaledResponse struct {
	IntentHash string `json:"intent_hash"`
}

type DepositResponse struct {
	DepositId          uint64   `json:"deposit_id"`
	Depositor          string   `json:"depositor"`
	Delegate           string   `json:"delegate,omitempty"`
	Token              string   `json:"token"`
	TotalDeposit       string   `json:"total_deposit"`
	RemainingDeposits  string   `json:"remaining_deposits"`
	OutstandingIntents string   `json:"outstanding_intents"`
	MinIntentAmount    string   `json:"min_intent_amount"`
	MaxIntentAmount    string   `json:"max_intent_amount"`
	PaymentMethods     []string `json:"payment_methods"`
	CreatedAtMs        int64    `json:"created_at_ms"`
}

type IntentResponse struct {
	IntentHash    string `json:"intent_hash"`
	Buyer         string `json:"buyer"`
	DepositId     uint64 `json:"deposit_id"`
	Amount        string `json:"amount"`
	PaymentMethod string `json:"payment_method"`
	CurrencyCode  string `json:"currency_code"`
	Recipient     string `json:"recipient"`
	Chain         string `json:"chain"`
	Status        string `json:"status"`
	ProofSize     int    `json:"proof_size"`
	CreatedAtMs   int64  `json:"created_at_ms"`
	UpdatedAtMs   int64  `json:"updated_at_ms"`
}

type FundingResponse struct {
	DepositId          uint64 `json:"deposit_id"`
	AssetId            string `json:"asset_id"`
	RefundTo           string `json:"refund_to"`
	QuoteId            string `json:"quote_id,omitempty"`
	DepositAddress     string `json:"deposit_address,omitempty"`
	DepositMemo        string `json:"deposit_memo,omitempty"`
	QuoteExpiresAtMs   int64  `json:"quote_expires_at_ms"`
	QuoteGeneration    uint16 `json:"quote_generation"`
	FundingStartedAtMs int64  `json:"funding_started_at_ms"`
	TopUpDeadlineAtMs  int64  `json:"topup_deadline_at_ms"`
	Status             string `json:"status"`
	FundedAmount       string `json:"funded_amount"`
	OriginTxHash       string `json:"origin_tx_hash,omitempty"`
	LastIntentsStatus  string `json:"last_intents_status,omitempty"`
	FailureReason      string `json:"failure_reason,omitempty"`
	UpdatedAtMs        int64  `json:"updated_at_ms"`
}

type TransferDetailsResponse struct {
	IntentHash       string `json:"intent_hash"`
	DepositId        uint64 `json:"deposit_id"`
	Amount           string `json:"amount"`
	CurrencyCode     string `json:"currency_code"`
	PaymentMethodRaw string `json:"payment_method_raw"`
	Platform         string `json:"platform"`
	Tagname          string `json:"tagname"`
	Memo             string `json:"memo"`
}

type DepositSummaryResponse struct {
	DepositId         uint64   `json:"deposit_id"`
	AssetId           string   `json:"asset_id"`
	Depositor         string   `json:"depositor"`
	Delegate          string   `json:"delegate,omitempty"`
	PaymentMethods    []string `json:"payment_methods"`
	MinIntentAmount   string   `json:"min_intent_amount"`
	MaxIntentAmount   string   `json:"max_intent_amount"`
	FundedAmount      string   `json:"funded_amount"`
	Remaining         string   `json:"remaining"`
	TopUpDeadlineAtMs int64    `json:"topup_deadline_at_ms"`
	QuoteExpiresAtMs  int64    `json:"quote_expires_at_ms"`
	Status            string   `json:"status"`
	UpdatedAtMs       int64    `json:"updated_at_ms"`
}

type ListingsResponse struct {
	AssetId  string                   `json:"asset_id"`
	Listings []DepositSummaryResponse `json:"listings"`
}

type DepositIdsResponse struct {
	DepositIds []uint64 `json:"deposit_ids"`
}

type IntentHashesResponse struct {
	IntentHashes []string `json:"intent_hashes"`
}

type ProtocolConfigResponse struct {
	Owner                string `json:"owner"`
	ProtocolFeeBps       uint32 `json:"protocol_fee_bps"`
	ProtocolFeeRecipient string `json:"protocol_fee_recipient"`
	MaxIntentsPerDeposit uint32 `json:"max_intents_per_deposit"`
	OracleAccount        string `json:"oracle_account"`
	StorageFee           string `json:"storage_fee"`
	TopUpWindowMs        int64  `json:"topup_window_ms"`
	MaxQuoteRotations    uint16 `json:"max_quote_rotations"`
	DepositCounter       uint64 `json:"deposit_counter"`
	IntentCounter        uint64 `json:"intent_counter"`
}

type FundingConfigResponse struct {
	OracleAccount     string `json:"oracle_account"`
	StorageFee        string `json:"storage_fee"`
	TopUpWindowMs     int64  `json:"topup_window_ms"`
	MaxQuoteRotations uint16 `json:"max_quote_rotations"`
}

type PaymentMethodResponse struct {
	Name       string   `json:"name"`
	Verifier   string   `json:"verifier"`
	Currencies []string `json:"currencies"`
}

type OwnerResponse struct {
	Owner string `json:"owner"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}
