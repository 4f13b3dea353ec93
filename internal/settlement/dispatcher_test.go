package settlement

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anypay-escrow-go/internal/models"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSigner struct {
	mu       sync.Mutex
	failures int
	calls    int
	signed   []Request
}

func (s *recordingSigner) Sign(_ context.Context, req Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.failures > 0 {
		s.failures--
		return errors.New("signer unavailable")
	}
	s.signed = append(s.signed, req)
	return nil
}

func (s *recordingSigner) snapshot() (int, []Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls, append([]Request(nil), s.signed...)
}

func testConfig() models.SettlementConfig {
	return models.SettlementConfig{QueueSize: 2, MaxAttempts: 3, RetryDelay: time.Millisecond}
}

func TestNewDispatcher_ValidatesConfig(t *testing.T) {
	_, err := NewDispatcher(nil, testConfig())
	assert.Error(t, err)

	_, err = NewDispatcher(LogSigner{}, models.SettlementConfig{QueueSize: 0, MaxAttempts: 1})
	assert.Error(t, err)

	_, err = NewDispatcher(LogSigner{}, models.SettlementConfig{QueueSize: 1, MaxAttempts: 0})
	assert.Error(t, err)
}

func TestDispatcher_RetriesUntilSigned(t *testing.T) {
	signer := &recordingSigner{failures: 2}
	d, err := NewDispatcher(signer, testConfig())
	require.NoError(t, err)

	d.Start(context.Background())
	require.NoError(t, d.RequestSettlement(context.Background(), Request{Id: "r1", IntentHash: "intent:1"}))
	d.Stop()

	calls, signed := signer.snapshot()
	assert.Equal(t, 3, calls)
	require.Len(t, signed, 1)
	assert.Equal(t, "intent:1", signed[0].IntentHash)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	signer := &recordingSigner{failures: 10}
	d, err := NewDispatcher(signer, testConfig())
	require.NoError(t, err)

	d.Start(context.Background())
	require.NoError(t, d.RequestSettlement(context.Background(), Request{Id: "r1"}))
	d.Stop()

	calls, signed := signer.snapshot()
	assert.Equal(t, 3, calls)
	assert.Empty(t, signed)
}

func TestDispatcher_QueueFullAndStopped(t *testing.T) {
	d, err := NewDispatcher(&recordingSigner{}, testConfig())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, d.RequestSettlement(ctx, Request{Id: "a"}))
	require.NoError(t, d.RequestSettlement(ctx, Request{Id: "b"}))
	assert.ErrorIs(t, d.RequestSettlement(ctx, Request{Id: "c"}), ErrQueueFull)

	d.Stop()
	assert.ErrorIs(t, d.RequestSettlement(ctx, Request{Id: "d"}), ErrStopped)
}

func TestDispatcher_DeliversAfterContextCancelled(t *testing.T) {
	signer := &recordingSigner{}
	d, err := NewDispatcher(signer, testConfig())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	d.Start(ctx)
	cancel()

	require.NoError(t, d.RequestSettlement(context.Background(), Request{Id: "r1", IntentHash: "intent:7"}))
	d.Stop()

	calls, signed := signer.snapshot()
	assert.Equal(t, 1, calls)
	require.Len(t, signed, 1)
	assert.Equal(t, "intent:7", signed[0].IntentHash)
	assert.Zero(t, len(d.queue))
}

func TestDispatcher_StopDrainsQueuedRequests(t *testing.T) {
	signer := &recordingSigner{}
	d, err := NewDispatcher(signer, models.SettlementConfig{QueueSize: 8, MaxAttempts: 1})
	require.NoError(t, err)

	ctx := context.Background()
	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, d.RequestSettlement(ctx, Request{Id: id}))
	}
	d.Start(ctx)
	d.Stop()

	_, signed := signer.snapshot()
	assert.Len(t, signed, 3)
}

func TestRequest_Payout(t *testing.T) {
	req := Request{Amount: uint256.NewInt(1000), ProtocolFee: uint256.NewInt(10)}
	assert.Equal(t, uint64(990), req.Payout().Uint64())

	assert.Equal(t, uint64(0), Request{}.Payout().Uint64())
	assert.Equal(t, uint64(5), Request{Amount: uint256.NewInt(5)}.Payout().Uint64())
}
