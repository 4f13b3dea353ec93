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
	"time"

	"anypay-escrow-go/internal/models"
)

func (t *sqlTx) GetProtocolConfig() (*models.ProtocolConfig, error) {
	var cfg models.ProtocolConfig
	var storageFee string
	var windowMs, depositCounter, intentCounter int64

	err := t.tx.QueryRowContext(t.ctx, queryGetProtocolConfig).Scan(
		&cfg.Owner,
		&cfg.ProtocolFeeBps,
		&cfg.ProtocolFeeRecipient,
		&cfg.MaxIntentsPerDeposit,
		&cfg.OracleAccount,
		&storageFee,
		&windowMs,
		&cfg.MaxQuoteRotations,
		&depositCounter,
		&intentCounter,
	)
	if err != nil {
		return nil, notFound(err, "protocol config")
	}

	if cfg.StorageFee, err = decodeAmount("storage_fee", storageFee); err != nil {
		return nil, err
	}
	cfg.TopUpWindow = time.Duration(windowMs) * time.Millisecond
	cfg.DepositCounter = uint64(depositCounter)
	cfg.IntentCounter = uint64(intentCounter)
	return &cfg, nil
}

func (t *sqlTx) PutProtocolConfig(cfg *models.ProtocolConfig) error {
	_, err := t.tx.ExecContext(t.ctx, queryUpsertProtocolConfig,
		cfg.Owner,
		cfg.ProtocolFeeBps,
		cfg.ProtocolFeeRecipient,
		cfg.MaxIntentsPerDeposit,
		cfg.OracleAccount,
		encodeAmount(cfg.StorageFee),
		cfg.TopUpWindow.Milliseconds(),
		cfg.MaxQuoteRotations,
		int64(cfg.DepositCounter),
		int64(cfg.IntentCounter),
	)
	if err != nil {
		return fmt.Errorf("failed to store protocol config: %w", err)
	}
	return nil
}
