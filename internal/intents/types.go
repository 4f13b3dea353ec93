package intents

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Swap statuses reported by the intents API.
const (
	StatusPendingDeposit    = "PENDING_DEPOSIT"
	StatusProcessing        = "PROCESSING"
	StatusSuccess           = "SUCCESS"
	StatusFailed            = "FAILED"
	StatusRefunded          = "REFUNDED"
	StatusIncompleteDeposit = "INCOMPLETE_DEPOSIT"
)

// QuoteRequest describes the funding quote for one deposit
type QuoteRequest struct {
	AssetId   string
	Amount    string
	Recipient string
	RefundTo  string
}

// Quote is a created funding quote
type Quote struct {
	QuoteId        string
	DepositAddress string
	DepositMemo    string
	ExpiresAt      time.Time
	AmountIn       string
}

type quoteBody struct {
	Dry               bool   `json:"dry"`
	SwapType          string `json:"swapType"`
	OriginAsset       string `json:"originAsset"`
	DestinationAsset  string `json:"destinationAsset"`
	Amount            string `json:"amount"`
	Deadline          string `json:"deadline"`
	Recipient         string `json:"recipient"`
	RefundTo          string `json:"refundTo"`
	DepositType       string `json:"depositType"`
	RecipientType     string `json:"recipientType"`
	RefundType        string `json:"refundType"`
	SlippageTolerance int    `json:"slippageTolerance"`
}

type quoteResponse struct {
	CorrelationId string `json:"correlationId"`
	Quote         struct {
		DepositAddress   string `json:"depositAddress"`
		DepositMemo      string `json:"depositMemo"`
		Deadline         string `json:"deadline"`
		TimeWhenInactive string `json:"timeWhenInactive"`
		AmountIn         Amount `json:"amountIn"`
	} `json:"quote"`
}

// StatusResponse is the subset of /v0/status the funding listener reads
type StatusResponse struct {
	CorrelationId string `json:"correlationId"`
	Status        string `json:"status"`
	UpdatedAt     string `json:"updatedAt"`
	QuoteResponse struct {
		Quote struct {
			AmountIn Amount `json:"amountIn"`
		} `json:"quote"`
	} `json:"quoteResponse"`
	SwapDetails struct {
		AmountIn            Amount `json:"amountIn"`
		DepositedAmount     Amount `json:"depositedAmount"`
		OriginChainTxHashes []struct {
			Hash string `json:"hash"`
		} `json:"originChainTxHashes"`
		RefundReason string `json:"refundReason"`
	} `json:"swapDetails"`
}

// OriginTxHash returns the first origin chain hash, if any.
func (s *StatusResponse) OriginTxHash() string {
	for _, h := range s.SwapDetails.OriginChainTxHashes {
		if h.Hash != "" {
			return h.Hash
		}
	}
	return ""
}

// Amount accepts base-unit amounts encoded as JSON strings or numbers.
type Amount string

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*a = Amount(s)
		return nil
	}
	*a = Amount(data)
	return nil
}

// NormalizeAmount turns an API amount into a non-negative base-10 integer
// string. Plain integers pass through, scientific notation is expanded and
// truncated, and anything else yields "0".
func NormalizeAmount(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "0"
	}
	if isDigits(trimmed) {
		return trimmed
	}
	if !strings.ContainsAny(trimmed, "eE") {
		return "0"
	}

	d, err := decimal.NewFromString(trimmed)
	if err != nil || d.IsNegative() {
		return "0"
	}
	return d.Truncate(0).String()
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// PickPositiveAmount returns the first candidate that is a positive integer, or "0".
func PickPositiveAmount(candidates ...string) string {
	for _, c := range candidates {
		d, err := decimal.NewFromString(c)
		if err == nil && d.IsPositive() && d.IsInteger() {
			return c
		}
	}
	return "0"
}
