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

import "anypay-escrow-go/internal/models"

// isOpen is the listing invariant: funded with spare liquidity.
func isOpen(d *models.Deposit, f *models.FundingMeta) bool {
	return d != nil && f != nil && f.Status == models.FundingFunded && !d.Remaining.IsZero()
}

// syncOpenListing re-derives index membership for d after a mutation.
func (o *op) syncOpenListing(d *models.Deposit) error {
	f, err := optionalFunding(o.tx, d.Id)
	if err != nil {
		return err
	}
	return o.syncOpenListingWith(d, f)
}

// syncOpenListingWith is syncOpenListing for callers already holding the funding record.
// Deposits created without the funding workflow are never listed.
func (o *op) syncOpenListingWith(d *models.Deposit, f *models.FundingMeta) error {
	if f == nil {
		return nil
	}
	if isOpen(d, f) {
		return o.tx.AddOpenListing(f.AssetId, d.Id)
	}
	return o.tx.RemoveOpenListing(f.AssetId, d.Id)
}
