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
	"fmt"
	"strings"
)

const (
	paymentMethodSeparator = "::"
	intentHashPrefix       = "intent:"
	transferMemoPrefix     = "anypay"
)

// SplitPaymentMethod derives the platform/tagname projection of a payment
// method string. The platform is lower-cased; without a separator the whole
// string is the platform and the tagname is empty.
func SplitPaymentMethod(raw string) (platform, tagname string) {
	normalized := strings.TrimSpace(raw)
	if normalized == "" {
		return "", ""
	}

	if left, right, found := strings.Cut(normalized, paymentMethodSeparator); found {
		return strings.ToLower(strings.TrimSpace(left)), strings.TrimSpace(right)
	}

	return strings.ToLower(normalized), ""
}

// ParsePaymentMethod accepts only well-formed platform::tagname strings.
func ParsePaymentMethod(raw string) (platform, tagname string, ok bool) {
	platform, tagname = SplitPaymentMethod(raw)
	if platform == "" || tagname == "" {
		return "", "", false
	}
	return platform, tagname, true
}

// firstPaymentDetails returns the first well-formed entry in the list.
func firstPaymentDetails(methods []string) (platform, tagname string, ok bool) {
	for _, raw := range methods {
		if platform, tagname, ok = ParsePaymentMethod(raw); ok {
			return platform, tagname, true
		}
	}
	return "", "", false
}

// IntentHash formats the identifier of the n-th intent.
func IntentHash(n uint64) string {
	return fmt.Sprintf("%s%d", intentHashPrefix, n)
}

// TransferMemo is the deterministic memo a buyer attaches to the off-chain payment.
func TransferMemo(intentHash string, depositId uint64) string {
	suffix := strings.TrimPrefix(intentHash, intentHashPrefix)
	return fmt.Sprintf("%s:%d:%s", transferMemoPrefix, depositId, suffix)
}
