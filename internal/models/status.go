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
	"fmt"
	"strings"
)

type IntentStatus string

const (
	IntentSignaled  IntentStatus = "Signaled"
	IntentFulfilled IntentStatus = "Fulfilled"
	IntentCancelled IntentStatus = "Cancelled"
	IntentReleased  IntentStatus = "Released"
)

// Terminal reports whether no further transition is allowed.
func (s IntentStatus) Terminal() bool {
	return s == IntentFulfilled || s == IntentCancelled || s == IntentReleased
}

type FundingStatus string

const (
	FundingAwaiting     FundingStatus = "AwaitingFunding"
	FundingFunded       FundingStatus = "Funded"
	FundingTopUpExpired FundingStatus = "TopUpExpired"
	FundingFailed       FundingStatus = "Failed"
	FundingCancelled    FundingStatus = "Cancelled"
)

// Valid reports whether the status is one of the known values.
func (s FundingStatus) Valid() bool {
	switch s {
	case FundingAwaiting, FundingFunded, FundingTopUpExpired, FundingFailed, FundingCancelled:
		return true
	default:
		return false
	}
}

// Terminal reports whether the workflow has left AwaitingFunding.
func (s FundingStatus) Terminal() bool {
	return s.Valid() && s != FundingAwaiting
}

// ParseFundingStatus accepts the canonical names case-insensitively.
func ParseFundingStatus(raw string) (FundingStatus, error) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range []FundingStatus{FundingAwaiting, FundingFunded, FundingTopUpExpired, FundingFailed, FundingCancelled} {
		if strings.EqualFold(string(s), trimmed) {
			return s, nil
		}
	}
	return "", fmt.Errorf("unknown funding status %q", raw)
}

// External status markers written by the funding workflow itself.
const (
	ExternalStatusPendingDeposit = "PENDING_DEPOSIT"
	ExternalStatusQuoteExpired   = "QUOTE_EXPIRED"
)

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
