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

func (t *sqlTx) GetIntent(hash string) (*models.Intent, error) {
	var i models.Intent
	var depositId, createdAt, updatedAt int64
	var amount, status string

	err := t.tx.QueryRowContext(t.ctx, queryGetIntent, hash).Scan(
		&i.Hash,
		&i.Buyer,
		&depositId,
		&amount,
		&i.PaymentMethod,
		&i.CurrencyCode,
		&i.Recipient,
		&i.Chain,
		&status,
		&i.ProofSize,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("intent %s", hash))
	}

	i.DepositId = uint64(depositId)
	i.Status = models.IntentStatus(status)
	i.CreatedAt = fromMillis(createdAt)
	i.UpdatedAt = fromMillis(updatedAt)
	if i.Amount, err = decodeAmount("amount", amount); err != nil {
		return nil, err
	}
	return &i, nil
}

// PutIntent inserts the intent or updates its mutable columns (status, proof size, updated_at).
func (t *sqlTx) PutIntent(i *models.Intent) error {
	_, err := t.tx.ExecContext(t.ctx, queryUpsertIntent,
		i.Hash,
		i.Buyer,
		int64(i.DepositId),
		encodeAmount(i.Amount),
		i.PaymentMethod,
		i.CurrencyCode,
		i.Recipient,
		i.Chain,
		string(i.Status),
		i.ProofSize,
		toMillis(i.CreatedAt),
		toMillis(i.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store intent %s: %w", i.Hash, err)
	}
	return nil
}

func (t *sqlTx) AddAccountIntent(account, hash string) error {
	if _, err := t.tx.ExecContext(t.ctx, queryInsertAccountIntent, account, hash); err != nil {
		return fmt.Errorf("failed to index intent %s for %s: %w", hash, account, err)
	}
	return nil
}

func (t *sqlTx) ListAccountIntents(account string) ([]string, error) {
	hashes, err := t.queryStrings(queryListAccountIntents, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list intents for %s: %w", account, err)
	}
	return hashes, nil
}

func (t *sqlTx) AddDepositIntent(depositId uint64, hash string) error {
	if _, err := t.tx.ExecContext(t.ctx, queryInsertDepositIntent, int64(depositId), hash); err != nil {
		return fmt.Errorf("failed to index intent %s for deposit %d: %w", hash, depositId, err)
	}
	return nil
}

func (t *sqlTx) ListDepositIntents(depositId uint64) ([]string, error) {
	hashes, err := t.queryStrings(queryListDepositIntents, int64(depositId))
	if err != nil {
		return nil, fmt.Errorf("failed to list intents for deposit %d: %w", depositId, err)
	}
	return hashes, nil
}

func (t *sqlTx) CountDepositIntents(depositId uint64) (int, error) {
	var count int
	if err := t.tx.QueryRowContext(t.ctx, queryCountDepositIntents, int64(depositId)).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count intents for deposit %d: %w", depositId, err)
	}
	return count, nil
}
