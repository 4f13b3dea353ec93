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

package database

import (
	"fmt"

	"anypay-escrow-go/internal/models"
)

func (t *sqlTx) GetFunding(depositId uint64) (*models.FundingMeta, error) {
	var f models.FundingMeta
	var rawId, quoteExpires, started, deadline, updated int64
	var status, funded string

	err := t.tx.QueryRowContext(t.ctx, queryGetFunding, int64(depositId)).Scan(
		&rawId,
		&f.AssetId,
		&f.RefundTo,
		&f.QuoteId,
		&f.DepositAddress,
		&f.DepositMemo,
		&quoteExpires,
		&f.QuoteGeneration,
		&started,
		&deadline,
		&status,
		&funded,
		&f.OriginTxHash,
		&f.LastExternalStatus,
		&f.FailureReason,
		&updated,
	)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("funding metadata for deposit %d", depositId))
	}

	f.DepositId = uint64(rawId)
	f.Status = models.FundingStatus(status)
	f.QuoteExpiresAt = fromMillis(quoteExpires)
	f.FundingStartedAt = fromMillis(started)
	f.TopUpDeadline = fromMillis(deadline)
	f.UpdatedAt = fromMillis(updated)
	if f.FundedAmount, err = decodeAmount("funded_amount", funded); err != nil {
		return nil, err
	}
	return &f, nil
}

func (t *sqlTx) PutFunding(f *models.FundingMeta) error {
	_, err := t.tx.ExecContext(t.ctx, queryUpsertFunding,
		int64(f.DepositId),
		f.AssetId,
		f.RefundTo,
		f.QuoteId,
		f.DepositAddress,
		f.DepositMemo,
		toMillis(f.QuoteExpiresAt),
		f.QuoteGeneration,
		toMillis(f.FundingStartedAt),
		toMillis(f.TopUpDeadline),
		string(f.Status),
		encodeAmount(f.FundedAmount),
		f.OriginTxHash,
		f.LastExternalStatus,
		f.FailureReason,
		toMillis(f.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store funding metadata for deposit %d: %w", f.DepositId, err)
	}
	return nil
}

func (t *sqlTx) ListDepositsByFundingStatus(status models.FundingStatus, offset, limit int) ([]uint64, error) {
	ids, err := t.queryUint64s(queryListDepositsByFundingStatus, string(status), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits with funding status %s: %w", status, err)
	}
	return ids, nil
}
