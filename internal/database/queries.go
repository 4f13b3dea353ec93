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

const (
	// Protocol queries
	queryGetProtocolConfig = `
		SELECT owner, protocol_fee_bps, protocol_fee_recipient, max_intents_per_deposit,
		       oracle_account, storage_fee, topup_window_ms, max_quote_rotations,
		       deposit_counter, intent_counter
		FROM protocol_config
		WHERE id = 1`

	queryUpsertProtocolConfig = `
		INSERT INTO protocol_config (
			id, owner, protocol_fee_bps, protocol_fee_recipient, max_intents_per_deposit,
			oracle_account, storage_fee, topup_window_ms, max_quote_rotations,
			deposit_counter, intent_counter
		) VALUES (1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			protocol_fee_bps = excluded.protocol_fee_bps,
			protocol_fee_recipient = excluded.protocol_fee_recipient,
			max_intents_per_deposit = excluded.max_intents_per_deposit,
			oracle_account = excluded.oracle_account,
			storage_fee = excluded.storage_fee,
			topup_window_ms = excluded.topup_window_ms,
			max_quote_rotations = excluded.max_quote_rotations,
			deposit_counter = excluded.deposit_counter,
			intent_counter = excluded.intent_counter,
			updated_at = CURRENT_TIMESTAMP`

	// Deposit queries
	queryGetDeposit = `
		SELECT id, depositor, delegate, token, total_deposit, remaining_deposits,
		       outstanding_intents, min_intent_amount, max_intent_amount, payment_methods, created_at
		FROM deposits
		WHERE id = ?`

	queryUpsertDeposit = `
		INSERT INTO deposits (
			id, depositor, delegate, token, total_deposit, remaining_deposits,
			outstanding_intents, min_intent_amount, max_intent_amount, payment_methods, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			depositor = excluded.depositor,
			delegate = excluded.delegate,
			token = excluded.token,
			total_deposit = excluded.total_deposit,
			remaining_deposits = excluded.remaining_deposits,
			outstanding_intents = excluded.outstanding_intents,
			min_intent_amount = excluded.min_intent_amount,
			max_intent_amount = excluded.max_intent_amount,
			payment_methods = excluded.payment_methods`

	queryInsertAccountDeposit = `
		INSERT OR IGNORE INTO account_deposits (account, deposit_id) VALUES (?, ?)`

	queryListAccountDeposits = `
		SELECT deposit_id FROM account_deposits WHERE account = ? ORDER BY rowid`

	// Intent queries
	queryGetIntent = `
		SELECT intent_hash, buyer, deposit_id, amount, payment_method, currency_code,
		       recipient, chain, status, proof_size, created_at, updated_at
		FROM intents
		WHERE intent_hash = ?`

	queryUpsertIntent = `
		INSERT INTO intents (
			intent_hash, buyer, deposit_id, amount, payment_method, currency_code,
			recipient, chain, status, proof_size, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(intent_hash) DO UPDATE SET
			status = excluded.status,
			proof_size = excluded.proof_size,
			updated_at = excluded.updated_at`

	queryInsertAccountIntent = `
		INSERT OR IGNORE INTO account_intents (account, intent_hash) VALUES (?, ?)`

	queryListAccountIntents = `
		SELECT intent_hash FROM account_intents WHERE account = ? ORDER BY rowid`

	queryInsertDepositIntent = `
		INSERT OR IGNORE INTO deposit_intents (deposit_id, intent_hash) VALUES (?, ?)`

	queryListDepositIntents = `
		SELECT intent_hash FROM deposit_intents WHERE deposit_id = ? ORDER BY rowid`

	queryCountDepositIntents = `
		SELECT COUNT(*) FROM deposit_intents WHERE deposit_id = ?`

	// Funding queries
	queryGetFunding = `
		SELECT deposit_id, asset_id, refund_to, quote_id, deposit_address, deposit_memo,
		       quote_expires_at_ms, quote_generation, funding_started_at_ms, topup_deadline_at_ms,
		       status, funded_amount, origin_tx_hash, last_intents_status, failure_reason, updated_at_ms
		FROM deposit_funding
		WHERE deposit_id = ?`

	queryUpsertFunding = `
		INSERT INTO deposit_funding (
			deposit_id, asset_id, refund_to, quote_id, deposit_address, deposit_memo,
			quote_expires_at_ms, quote_generation, funding_started_at_ms, topup_deadline_at_ms,
			status, funded_amount, origin_tx_hash, last_intents_status, failure_reason, updated_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(deposit_id) DO UPDATE SET
			asset_id = excluded.asset_id,
			refund_to = excluded.refund_to,
			quote_id = excluded.quote_id,
			deposit_address = excluded.deposit_address,
			deposit_memo = excluded.deposit_memo,
			quote_expires_at_ms = excluded.quote_expires_at_ms,
			quote_generation = excluded.quote_generation,
			funding_started_at_ms = excluded.funding_started_at_ms,
			topup_deadline_at_ms = excluded.topup_deadline_at_ms,
			status = excluded.status,
			funded_amount = excluded.funded_amount,
			origin_tx_hash = excluded.origin_tx_hash,
			last_intents_status = excluded.last_intents_status,
			failure_reason = excluded.failure_reason,
			updated_at_ms = excluded.updated_at_ms`

	queryListDepositsByFundingStatus = `
		SELECT deposit_id
		FROM deposit_funding
		WHERE status = ?
		ORDER BY deposit_id ASC
		LIMIT ? OFFSET ?`

	// Open listing queries
	queryInsertOpenListing = `
		INSERT OR IGNORE INTO open_listings (asset_id, deposit_id) VALUES (?, ?)`

	queryDeleteOpenListing = `
		DELETE FROM open_listings WHERE asset_id = ? AND deposit_id = ?`

	queryListOpenListings = `
		SELECT deposit_id
		FROM open_listings
		WHERE asset_id = ?
		ORDER BY deposit_id DESC
		LIMIT ? OFFSET ?`

	// Payment method queries
	queryGetPaymentMethod = `
		SELECT name, verifier, currencies, initialized
		FROM payment_methods
		WHERE name = ?`

	queryUpsertPaymentMethod = `
		INSERT INTO payment_methods (name, verifier, currencies, initialized)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			verifier = excluded.verifier,
			currencies = excluded.currencies,
			initialized = excluded.initialized`

	queryDeletePaymentMethod = `
		DELETE FROM payment_methods WHERE name = ?`
)
