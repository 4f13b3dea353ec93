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

func (t *sqlTx) GetDeposit(id uint64) (*models.Deposit, error) {
	var d models.Deposit
	var rawId, createdAt int64
	var total, remaining, outstanding, minAmount, maxAmount, methods string

	err := t.tx.QueryRowContext(t.ctx, queryGetDeposit, int64(id)).Scan(
		&rawId,
		&d.Depositor,
		&d.Delegate,
		&d.Token,
		&total,
		&remaining,
		&outstanding,
		&minAmount,
		&maxAmount,
		&methods,
		&createdAt,
	)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("deposit %d", id))
	}

	d.Id = uint64(rawId)
	d.CreatedAt = fromMillis(createdAt)
	if d.Total, err = decodeAmount("total_deposit", total); err != nil {
		return nil, err
	}
	if d.Remaining, err = decodeAmount("remaining_deposits", remaining); err != nil {
		return nil, err
	}
	if d.Outstanding, err = decodeAmount("outstanding_intents", outstanding); err != nil {
		return nil, err
	}
	if d.MinIntentAmount, err = decodeAmount("min_intent_amount", minAmount); err != nil {
		return nil, err
	}
	if d.MaxIntentAmount, err = decodeAmount("max_intent_amount", maxAmount); err != nil {
		return nil, err
	}
	if d.PaymentMethods, err = decodeStrings("payment_methods", methods); err != nil {
		return nil, err
	}
	return &d, nil
}

func (t *sqlTx) PutDeposit(d *models.Deposit) error {
	methods, err := encodeStrings(d.PaymentMethods)
	if err != nil {
		return err
	}

	_, err = t.tx.ExecContext(t.ctx, queryUpsertDeposit,
		int64(d.Id),
		d.Depositor,
		d.Delegate,
		d.Token,
		encodeAmount(d.Total),
		encodeAmount(d.Remaining),
		encodeAmount(d.Outstanding),
		encodeAmount(d.MinIntentAmount),
		encodeAmount(d.MaxIntentAmount),
		methods,
		toMillis(d.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to store deposit %d: %w", d.Id, err)
	}
	return nil
}

func (t *sqlTx) AddAccountDeposit(account string, depositId uint64) error {
	if _, err := t.tx.ExecContext(t.ctx, queryInsertAccountDeposit, account, int64(depositId)); err != nil {
		return fmt.Errorf("failed to index deposit %d for %s: %w", depositId, account, err)
	}
	return nil
}

func (t *sqlTx) ListAccountDeposits(account string) ([]uint64, error) {
	ids, err := t.queryUint64s(queryListAccountDeposits, account)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits for %s: %w", account, err)
	}
	return ids, nil
}
