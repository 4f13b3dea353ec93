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
	"context"
	"strings"
	"time"

	"anypay-escrow-go/internal/models"

	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// updateConfig runs an owner-only mutation of the protocol configuration.
func (e *Engine) updateConfig(ctx context.Context, name string, call Call, mutate func(cfg *models.ProtocolConfig) error) error {
	err := e.update(ctx, name, func(o *op) error {
		if err := o.requireOwner(call.Caller); err != nil {
			return err
		}
		if err := mutate(o.cfg); err != nil {
			return err
		}
		return o.tx.PutProtocolConfig(o.cfg)
	})
	if err != nil {
		return err
	}

	zap.L().Info("Protocol configuration updated", zap.String("setting", name), zap.String("owner", call.Caller))
	return nil
}

func (e *Engine) SetProtocolFee(ctx context.Context, call Call, bps uint32) error {
	if bps > MaxProtocolFeeBps {
		return ErrFeeTooHigh
	}
	return e.updateConfig(ctx, "set_protocol_fee", call, func(cfg *models.ProtocolConfig) error {
		cfg.ProtocolFeeBps = bps
		return nil
	})
}

func (e *Engine) SetMaxIntentsPerDeposit(ctx context.Context, call Call, max uint32) error {
	if max == 0 {
		return ErrNonPositiveSetting
	}
	return e.updateConfig(ctx, "set_max_intents_per_deposit", call, func(cfg *models.ProtocolConfig) error {
		cfg.MaxIntentsPerDeposit = max
		return nil
	})
}

func (e *Engine) SetOracleAccount(ctx context.Context, call Call, account string) error {
	account = strings.TrimSpace(account)
	if account == "" {
		return ErrAccountRequired
	}
	return e.updateConfig(ctx, "set_oracle_account", call, func(cfg *models.ProtocolConfig) error {
		cfg.OracleAccount = account
		return nil
	})
}

func (e *Engine) SetStorageFee(ctx context.Context, call Call, fee *uint256.Int) error {
	if fee != nil && fee.Gt(MaxAmount) {
		return ErrAmountTooLarge
	}
	return e.updateConfig(ctx, "set_storage_fee", call, func(cfg *models.ProtocolConfig) error {
		cfg.StorageFee = new(uint256.Int).Set(amountOrZero(fee))
		return nil
	})
}

func (e *Engine) SetTopUpWindow(ctx context.Context, call Call, window time.Duration) error {
	if window.Milliseconds() <= 0 {
		return ErrNonPositiveSetting
	}
	return e.updateConfig(ctx, "set_topup_window", call, func(cfg *models.ProtocolConfig) error {
		cfg.TopUpWindow = window.Truncate(time.Millisecond)
		return nil
	})
}

func (e *Engine) SetMaxQuoteRotations(ctx context.Context, call Call, max uint16) error {
	if max == 0 {
		return ErrNonPositiveSetting
	}
	return e.updateConfig(ctx, "set_max_quote_rotations", call, func(cfg *models.ProtocolConfig) error {
		cfg.MaxQuoteRotations = max
		return nil
	})
}

// AddPaymentMethod inserts or replaces a registry entry. Owner only.
func (e *Engine) AddPaymentMethod(ctx context.Context, call Call, name, verifier string, currencies []string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ErrNameRequired
	}
	if len(currencies) == 0 {
		return ErrNoCurrencies
	}

	err := e.update(ctx, "add_payment_method", func(o *op) error {
		if err := o.requireOwner(call.Caller); err != nil {
			return err
		}
		return o.tx.PutPaymentMethod(&models.PaymentMethod{
			Name:        name,
			Verifier:    verifier,
			Currencies:  append([]string(nil), currencies...),
			Initialized: true,
		})
	})
	if err != nil {
		return err
	}

	zap.L().Info("Payment method added", zap.String("name", name), zap.Strings("currencies", currencies))
	return nil
}

// RemovePaymentMethod deletes a registry entry; removing an absent entry is a no-op. Owner only.
func (e *Engine) RemovePaymentMethod(ctx context.Context, call Call, name string) error {
	var removed bool
	err := e.update(ctx, "remove_payment_method", func(o *op) error {
		if err := o.requireOwner(call.Caller); err != nil {
			return err
		}
		var err error
		removed, err = o.tx.DeletePaymentMethod(name)
		return err
	})
	if err != nil {
		return err
	}

	zap.L().Info("Payment method removed", zap.String("name", name), zap.Bool("existed", removed))
	return nil
}
