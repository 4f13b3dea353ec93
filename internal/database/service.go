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
	"context"
	"database/sql"
	"fmt"
	"strings"

	"anypay-escrow-go/internal/models"
	"anypay-escrow-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Compile-time check: *Service must satisfy store.Store.
var _ store.Store = (*Service)(nil)

const memoryPath = ":memory:"

type Service struct {
	db *sql.DB
}

func NewService(ctx context.Context, cfg models.DatabaseConfig) (*Service, error) {
	// Validate configuration
	if cfg.Path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if cfg.MaxOpenConns <= 0 {
		return nil, fmt.Errorf("max open connections must be positive, got %d", cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns < 0 {
		return nil, fmt.Errorf("max idle connections cannot be negative, got %d", cfg.MaxIdleConns)
	}
	if cfg.PingTimeout <= 0 {
		return nil, fmt.Errorf("ping timeout must be positive, got %v", cfg.PingTimeout)
	}

	zap.L().Info("Opening SQLite database", zap.String("file", cfg.Path))
	db, err := sql.Open("sqlite3", dsn(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	if cfg.Path == memoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		db.SetConnMaxLifetime(0)
		db.SetConnMaxIdleTime(0)
	} else {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
		db.SetMaxIdleConns(cfg.MaxIdleConns)
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	// Test connection with timeout
	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	service := &Service{db: db}
	if err := service.initSchema(ctx); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, closeErr
		}
		return nil, fmt.Errorf("unable to initialize schema: %w", err)
	}

	zap.L().Info("Database service initialized successfully")
	return service, nil
}

// dsn builds the connection string. Writers take the reserved lock at BEGIN
// so read-then-write sequences never interleave.
func dsn(path string) string {
	params := "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_txlock=immediate"
	if strings.Contains(path, "?") {
		return path + "&" + params
	}
	return path + "?" + params
}

func (s *Service) Close() {
	if err := s.db.Close(); err != nil {
		zap.L().Warn("Failed to close database connection", zap.Error(err))
	}
}

// Update runs fn inside one write transaction; any error rolls everything back.
func (s *Service) Update(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqlTx{ctx: ctx, tx: tx}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// View runs fn against a consistent snapshot and never commits.
func (s *Service) View(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	return fn(&sqlTx{ctx: ctx, tx: tx})
}

func (s *Service) initSchema(ctx context.Context) error {
	schema := `
	-- Singleton protocol configuration row
	CREATE TABLE IF NOT EXISTS protocol_config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		owner TEXT NOT NULL,
		protocol_fee_bps INTEGER NOT NULL,
		protocol_fee_recipient TEXT NOT NULL,
		max_intents_per_deposit INTEGER NOT NULL,
		oracle_account TEXT NOT NULL,
		storage_fee TEXT NOT NULL,
		topup_window_ms INTEGER NOT NULL,
		max_quote_rotations INTEGER NOT NULL,
		deposit_counter INTEGER NOT NULL DEFAULT 0,
		intent_counter INTEGER NOT NULL DEFAULT 0,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- Deposits are never deleted; amounts are base-10 TEXT
	CREATE TABLE IF NOT EXISTS deposits (
		id INTEGER PRIMARY KEY,
		depositor TEXT NOT NULL,
		delegate TEXT NOT NULL DEFAULT '',
		token TEXT NOT NULL,
		total_deposit TEXT NOT NULL,
		remaining_deposits TEXT NOT NULL,
		outstanding_intents TEXT NOT NULL,
		min_intent_amount TEXT NOT NULL,
		max_intent_amount TEXT NOT NULL,
		payment_methods TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposits_token ON deposits(token);

	CREATE TABLE IF NOT EXISTS intents (
		intent_hash TEXT PRIMARY KEY,
		buyer TEXT NOT NULL,
		deposit_id INTEGER NOT NULL,
		amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		currency_code TEXT NOT NULL,
		recipient TEXT NOT NULL,
		chain TEXT NOT NULL,
		status TEXT NOT NULL,
		proof_size INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_intents_deposit_id ON intents(deposit_id);
	CREATE INDEX IF NOT EXISTS idx_intents_status ON intents(status);

	-- Oracle funding workflow state, 1:1 with deposits created through the funding path.
	-- Millisecond timestamps use 0 for unset.
	CREATE TABLE IF NOT EXISTS deposit_funding (
		deposit_id INTEGER PRIMARY KEY,
		asset_id TEXT NOT NULL,
		refund_to TEXT NOT NULL,
		quote_id TEXT NOT NULL DEFAULT '',
		deposit_address TEXT NOT NULL DEFAULT '',
		deposit_memo TEXT NOT NULL DEFAULT '',
		quote_expires_at_ms INTEGER NOT NULL DEFAULT 0,
		quote_generation INTEGER NOT NULL DEFAULT 0,
		funding_started_at_ms INTEGER NOT NULL DEFAULT 0,
		topup_deadline_at_ms INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		funded_amount TEXT NOT NULL DEFAULT '0',
		origin_tx_hash TEXT NOT NULL DEFAULT '',
		last_intents_status TEXT NOT NULL DEFAULT '',
		failure_reason TEXT NOT NULL DEFAULT '',
		updated_at_ms INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_deposit_funding_status ON deposit_funding(status, deposit_id);

	-- Asset keyed index of funded deposits with spare liquidity
	CREATE TABLE IF NOT EXISTS open_listings (
		asset_id TEXT NOT NULL,
		deposit_id INTEGER NOT NULL,
		PRIMARY KEY (asset_id, deposit_id)
	);

	-- Discovery indices, listed in insertion order
	CREATE TABLE IF NOT EXISTS account_deposits (
		account TEXT NOT NULL,
		deposit_id INTEGER NOT NULL,
		PRIMARY KEY (account, deposit_id)
	);

	CREATE TABLE IF NOT EXISTS account_intents (
		account TEXT NOT NULL,
		intent_hash TEXT NOT NULL,
		PRIMARY KEY (account, intent_hash)
	);

	CREATE TABLE IF NOT EXISTS deposit_intents (
		deposit_id INTEGER NOT NULL,
		intent_hash TEXT NOT NULL,
		PRIMARY KEY (deposit_id, intent_hash)
	);

	CREATE TABLE IF NOT EXISTS payment_methods (
		name TEXT PRIMARY KEY,
		verifier TEXT NOT NULL,
		currencies TEXT NOT NULL,
		initialized BOOLEAN NOT NULL DEFAULT 1
	);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}
