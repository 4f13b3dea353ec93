package api

import (
	"sync"
	"time"
)

// receiptBook remembers payment receipts that have been spent until their
// tokens expire, so one payment funds at most one registration.
type receiptBook struct {
	mu    sync.Mutex
	spent map[string]time.Time
	nowFn func() time.Time
}

func newReceiptBook() *receiptBook {
	return &receiptBook{spent: make(map[string]time.Time), nowFn: time.Now}
}

// spend marks id as used. It reports false when id was already spent.
func (b *receiptBook) spend(id string, expiresAt time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := b.nowFn()
	for spentId, exp := range b.spent {
		if now.After(exp.Add(defaultClockSkew)) {
			delete(b.spent, spentId)
		}
	}

	if _, ok := b.spent[id]; ok {
		return false
	}
	b.spent[id] = expiresAt
	return true
}

// refund returns id to the unspent set after a rejected registration.
func (b *receiptBook) refund(id string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.spent, id)
}
