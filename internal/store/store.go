package store

import (
	"context"
	"errors"

	"anypay-escrow-go/internal/models"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound = errors.New("record not found")
	ErrClosed   = errors.New("store closed")
)

// Store runs escrow operations as atomic units. Update serializes writers;
// View observes a consistent snapshot and must not write.
// Neither may be nested inside the other.
type Store interface {
	Update(ctx context.Context, fn func(tx Tx) error) error
	View(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

// Tx is the table surface visible inside one atomic unit. Every Get returns
// ErrNotFound when the record does not exist.
type Tx interface {
	// --- Protocol ---
	GetProtocolConfig() (*models.ProtocolConfig, error)
	PutProtocolConfig(cfg *models.ProtocolConfig) error

	// --- Deposits ---
	GetDeposit(id uint64) (*models.Deposit, error)
	PutDeposit(d *models.Deposit) error
	AddAccountDeposit(account string, depositId uint64) error
	ListAccountDeposits(account string) ([]uint64, error)

	// --- Intents ---
	GetIntent(hash string) (*models.Intent, error)
	PutIntent(i *models.Intent) error
	AddAccountIntent(account, hash string) error
	ListAccountIntents(account string) ([]string, error)
	AddDepositIntent(depositId uint64, hash string) error
	ListDepositIntents(depositId uint64) ([]string, error)
	CountDepositIntents(depositId uint64) (int, error)

	// --- Funding ---
	GetFunding(depositId uint64) (*models.FundingMeta, error)
	PutFunding(f *models.FundingMeta) error
	// ListDepositsByFundingStatus scans in ascending deposit id order.
	ListDepositsByFundingStatus(status models.FundingStatus, offset, limit int) ([]uint64, error)

	// --- Open listings ---
	AddOpenListing(assetId string, depositId uint64) error
	RemoveOpenListing(assetId string, depositId uint64) error
	// ListOpenListings pages in descending deposit id order.
	ListOpenListings(assetId string, offset, limit int) ([]uint64, error)

	// --- Payment method registry ---
	GetPaymentMethod(name string) (*models.PaymentMethod, error)
	PutPaymentMethod(pm *models.PaymentMethod) error
	DeletePaymentMethod(name string) (bool, error)
}
