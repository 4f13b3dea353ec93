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

// Open listing index

func (t *sqlTx) AddOpenListing(assetId string, depositId uint64) error {
	if _, err := t.tx.ExecContext(t.ctx, queryInsertOpenListing, assetId, int64(depositId)); err != nil {
		return fmt.Errorf("failed to list deposit %d under %s: %w", depositId, assetId, err)
	}
	return nil
}

// RemoveOpenListing is a no-op when the deposit is not listed.
func (t *sqlTx) RemoveOpenListing(assetId string, depositId uint64) error {
	if _, err := t.tx.ExecContext(t.ctx, queryDeleteOpenListing, assetId, int64(depositId)); err != nil {
		return fmt.Errorf("failed to unlist deposit %d under %s: %w", depositId, assetId, err)
	}
	return nil
}

func (t *sqlTx) ListOpenListings(assetId string, offset, limit int) ([]uint64, error) {
	ids, err := t.queryUint64s(queryListOpenListings, assetId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list open deposits for %s: %w", assetId, err)
	}
	return ids, nil
}

// Payment method registry

func (t *sqlTx) GetPaymentMethod(name string) (*models.PaymentMethod, error) {
	var pm models.PaymentMethod
	var currencies string

	err := t.tx.QueryRowContext(t.ctx, queryGetPaymentMethod, name).Scan(
		&pm.Name,
		&pm.Verifier,
		&currencies,
		&pm.Initialized,
	)
	if err != nil {
		return nil, notFound(err, fmt.Sprintf("payment method %s", name))
	}

	if pm.Currencies, err = decodeStrings("currencies", currencies); err != nil {
		return nil, err
	}
	return &pm, nil
}

func (t *sqlTx) PutPaymentMethod(pm *models.PaymentMethod) error {
	currencies, err := encodeStrings(pm.Currencies)
	if err != nil {
		return err
	}

	if _, err := t.tx.ExecContext(t.ctx, queryUpsertPaymentMethod, pm.Name, pm.Verifier, currencies, pm.Initialized); err != nil {
		return fmt.Errorf("failed to store payment method %s: %w", pm.Name, err)
	}
	return nil
}

// DeletePaymentMethod reports whether an entry was removed.
func (t *sqlTx) DeletePaymentMethod(name string) (bool, error) {
	res, err := t.tx.ExecContext(t.ctx, queryDeletePaymentMethod, name)
	if err != nil {
		return false, fmt.Errorf("failed to delete payment method %s: %w", name, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to delete payment method %s: %w", name, err)
	}
	return affected > 0, nil
}
