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
	"errors"
	"fmt"
	"time"

	"anypay-escrow-go/internal/models"
	"anypay-escrow-go/internal/store"

	"github.com/holiman/uint256"
)

// TransferDetails is the off-chain payment projection of an intent
type TransferDetails struct {
	IntentHash       string
	DepositId        uint64
	Amount           *uint256.Int
	CurrencyCode     string
	PaymentMethodRaw string
	Platform         string
	Tagname          string
	Memo             string
}

// DepositSummary is the listing projection of a funded deposit
type DepositSummary struct {
	DepositId       uint64
	AssetId         string
	Depositor       string
	Delegate        string
	PaymentMethods  []string
	MinIntentAmount *uint256.Int
	MaxIntentAmount *uint256.Int
	FundedAmount    *uint256.Int
	Remaining       *uint256.Int
	TopUpDeadline   time.Time
	QuoteExpiresAt  time.Time
	Status          models.FundingStatus
	UpdatedAt       time.Time
}

// FundingConfig is the workflow configuration snapshot
type FundingConfig struct {
	OracleAccount     string
	StorageFee        *uint256.Int
	TopUpWindow       time.Duration
	MaxQuoteRotations uint16
}

// Page is an offset/limit window over a paginated view. A nil Limit selects
// DefaultPageSize.
type Page struct {
	From  int
	Limit *int
}

// NewPage returns a window with an explicit limit.
func NewPage(from, limit int) Page {
	return Page{From: from, Limit: &limit}
}

// normalize clamps a supplied limit into [1, MaxPageSize].
func (p Page) normalize() (offset, limit int) {
	offset = p.From
	if offset < 0 {
		offset = 0
	}
	if p.Limit == nil {
		return offset, DefaultPageSize
	}
	limit = *p.Limit
	switch {
	case limit < 1:
		limit = 1
	case limit > MaxPageSize:
		limit = MaxPageSize
	}
	return offset, limit
}

func (e *Engine) GetOwner(ctx context.Context) (string, error) {
	var owner string
	err := e.view(ctx, func(_ store.Tx, cfg *models.ProtocolConfig) error {
		owner = cfg.Owner
		return nil
	})
	return owner, err
}

func (e *Engine) GetProtocolConfig(ctx context.Context) (*models.ProtocolConfig, error) {
	var out *models.ProtocolConfig
	err := e.view(ctx, func(_ store.Tx, cfg *models.ProtocolConfig) error {
		out = cfg
		return nil
	})
	return out, err
}

func (e *Engine) GetFundingConfig(ctx context.Context) (*FundingConfig, error) {
	var out *FundingConfig
	err := e.view(ctx, func(_ store.Tx, cfg *models.ProtocolConfig) error {
		out = &FundingConfig{
			OracleAccount:     cfg.OracleAccount,
			StorageFee:        cfg.StorageFee,
			TopUpWindow:       cfg.TopUpWindow,
			MaxQuoteRotations: cfg.MaxQuoteRotations,
		}
		return nil
	})
	return out, err
}

func (e *Engine) GetPaymentMethod(ctx context.Context, name string) (*models.PaymentMethod, error) {
	var out *models.PaymentMethod
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		pm, err := tx.GetPaymentMethod(name)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrPaymentMethodNotFound, name)
		}
		out = pm
		return err
	})
	return out, err
}

func (e *Engine) GetDeposit(ctx context.Context, depositId uint64) (*models.Deposit, error) {
	var out *models.Deposit
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		d, err := tx.GetDeposit(depositId)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrDepositNotFound, depositId)
		}
		out = d
		return err
	})
	return out, err
}

func (e *Engine) GetAccountDeposits(ctx context.Context, account string) ([]uint64, error) {
	var out []uint64
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		var err error
		out, err = tx.ListAccountDeposits(account)
		return err
	})
	return out, err
}

func (e *Engine) GetIntent(ctx context.Context, hash string) (*models.Intent, error) {
	var out *models.Intent
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		i, err := tx.GetIntent(hash)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrIntentNotFound, hash)
		}
		out = i
		return err
	})
	return out, err
}

func (e *Engine) GetIntentTransferDetails(ctx context.Context, hash string) (*TransferDetails, error) {
	intent, err := e.GetIntent(ctx, hash)
	if err != nil {
		return nil, err
	}
	platform, tagname := SplitPaymentMethod(intent.PaymentMethod)
	return &TransferDetails{
		IntentHash:       intent.Hash,
		DepositId:        intent.DepositId,
		Amount:           intent.Amount,
		CurrencyCode:     intent.CurrencyCode,
		PaymentMethodRaw: intent.PaymentMethod,
		Platform:         platform,
		Tagname:          tagname,
		Memo:             TransferMemo(intent.Hash, intent.DepositId),
	}, nil
}

func (e *Engine) GetAccountIntents(ctx context.Context, account string) ([]string, error) {
	var out []string
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		var err error
		out, err = tx.ListAccountIntents(account)
		return err
	})
	return out, err
}

func (e *Engine) GetDepositIntents(ctx context.Context, depositId uint64) ([]string, error) {
	var out []string
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		var err error
		out, err = tx.ListDepositIntents(depositId)
		return err
	})
	return out, err
}

func (e *Engine) GetDepositFunding(ctx context.Context, depositId uint64) (*models.FundingMeta, error) {
	var out *models.FundingMeta
	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		f, err := tx.GetFunding(depositId)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: %d", ErrFundingNotFound, depositId)
		}
		out = f
		return err
	})
	return out, err
}

// GetOpenDepositsByAsset pages the asset's listings in descending id order,
// re-checking the listing invariant for every entry.
func (e *Engine) GetOpenDepositsByAsset(ctx context.Context, assetId string, page Page) ([]DepositSummary, error) {
	offset, limit := page.normalize()
	out := []DepositSummary{}

	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		ids, err := tx.ListOpenListings(assetId, offset, limit)
		if err != nil {
			return err
		}
		for _, id := range ids {
			summary, err := buildSummary(tx, id)
			if err != nil {
				return err
			}
			if summary != nil && summary.AssetId == assetId {
				out = append(out, *summary)
			}
		}
		return nil
	})
	return out, err
}

// GetDepositsByFundingStatus pages deposit ids with the status in ascending order.
func (e *Engine) GetDepositsByFundingStatus(ctx context.Context, status models.FundingStatus, page Page) ([]uint64, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown funding status %q", ErrInvalidArgument, status)
	}
	offset, limit := page.normalize()
	out := []uint64{}

	err := e.view(ctx, func(tx store.Tx, _ *models.ProtocolConfig) error {
		ids, err := tx.ListDepositsByFundingStatus(status, offset, limit)
		out = append(out, ids...)
		return err
	})
	return out, err
}

// buildSummary returns nil when the deposit does not satisfy the listing invariant.
func buildSummary(tx store.Tx, depositId uint64) (*DepositSummary, error) {
	d, err := tx.GetDeposit(depositId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	f, err := optionalFunding(tx, depositId)
	if err != nil {
		return nil, err
	}
	if !isOpen(d, f) {
		return nil, nil
	}

	return &DepositSummary{
		DepositId:       depositId,
		AssetId:         f.AssetId,
		Depositor:       d.Depositor,
		Delegate:        d.Delegate,
		PaymentMethods:  d.PaymentMethods,
		MinIntentAmount: d.MinIntentAmount,
		MaxIntentAmount: d.MaxIntentAmount,
		FundedAmount:    f.FundedAmount,
		Remaining:       d.Remaining,
		TopUpDeadline:   f.TopUpDeadline,
		QuoteExpiresAt:  f.QuoteExpiresAt,
		Status:          f.Status,
		UpdatedAt:       f.UpdatedAt,
	}, nil
}
