package escrow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"anypay-escrow-go/internal/database"
	"anypay-escrow-go/internal/models"
	"anypay-escrow-go/internal/settlement"

	"github.com/holiman/uint256"
)

const (
	testOwner  = "owner.near"
	testFees   = "fees.near"
	testOracle = "oracle.near"
	testSeller = "seller.near"
	testBuyer  = "buyer.near"
	testAsset  = "nep141:usdc.near"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type captureSettler struct {
	mu       sync.Mutex
	requests []settlement.Request
	err      error
}

func (s *captureSettler) RequestSettlement(_ context.Context, req settlement.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)
	return s.err
}

func (s *captureSettler) all() []settlement.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]settlement.Request(nil), s.requests...)
}

type testEnv struct {
	engine  *Engine
	clock   *testClock
	settler *captureSettler
	ctx     context.Context
}

func openEngine(t *testing.T, cfg models.DatabaseConfig) (*testEnv, func()) {
	t.Helper()
	db, err := database.NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	clock := &testClock{now: time.UnixMilli(1_700_000_000_000).UTC()}
	settler := &captureSettler{}
	engine := NewEngine(db)
	engine.SetNowFunc(clock.Now)
	engine.SetSettler(settler)

	env := &testEnv{engine: engine, clock: clock, settler: settler, ctx: context.Background()}
	if err := engine.Initialize(env.ctx, testOwner, testFees); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if err := engine.SetOracleAccount(env.ctx, Call{Caller: testOwner}, testOracle); err != nil {
		t.Fatalf("SetOracleAccount failed: %v", err)
	}

	cleanup := func() {
		db.Close()
	}
	return env, cleanup
}

func setupTestEngine(t *testing.T) (*testEnv, func()) {
	return openEngine(t, models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, PingTimeout: time.Second})
}

func amt(v uint64) *uint256.Int { return uint256.NewInt(v) }

func seller() Call { return Call{Caller: testSeller} }
func buyer() Call  { return Call{Caller: testBuyer} }
func oracle() Call { return Call{Caller: testOracle} }
func owner() Call  { return Call{Caller: testOwner} }

func (env *testEnv) createDeposit(t *testing.T, amount, min, max uint64) uint64 {
	t.Helper()
	id, err := env.engine.CreateDeposit(env.ctx, seller(), CreateDepositParams{
		Token:           testAsset,
		Amount:          amt(amount),
		MinIntentAmount: amt(min),
		MaxIntentAmount: amt(max),
		PaymentMethods:  []string{"Venmo::seller-tag"},
	})
	if err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}
	return id
}

func (env *testEnv) registerFunding(t *testing.T, expected, min, max uint64) uint64 {
	t.Helper()
	id, err := env.engine.RegisterDepositIntent(env.ctx, Call{Caller: testSeller, Attached: DefaultStorageFee}, RegisterFundingParams{
		AssetId:         testAsset,
		ExpectedAmount:  amt(expected),
		MinIntentAmount: amt(min),
		MaxIntentAmount: amt(max),
		PaymentMethods:  []string{"Venmo::seller-tag"},
		RefundTo:        "refund.near",
	})
	if err != nil {
		t.Fatalf("RegisterDepositIntent failed: %v", err)
	}
	return id
}

func (env *testEnv) setQuote(t *testing.T, id uint64, quoteId string) {
	t.Helper()
	err := env.engine.SetQuote(env.ctx, oracle(), SetQuoteParams{
		DepositId:      id,
		QuoteId:        quoteId,
		DepositAddress: "deposit-address",
		DepositMemo:    "  memo  ",
		QuoteExpiresAt: env.clock.Now().Add(10 * time.Minute),
	})
	if err != nil {
		t.Fatalf("SetQuote failed: %v", err)
	}
}

func (env *testEnv) fundedDeposit(t *testing.T, amount uint64) uint64 {
	t.Helper()
	id := env.registerFunding(t, amount, 1, amount)
	env.setQuote(t, id, "q1")
	if err := env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{
		DepositId:      id,
		QuoteId:        "q1",
		FundedAmount:   amt(amount),
		OriginTxHash:   "0xabc",
		ExternalStatus: "SUCCESS",
	}); err != nil {
		t.Fatalf("ConfirmFunding failed: %v", err)
	}
	return id
}

func (env *testEnv) signal(t *testing.T, id, amount uint64) string {
	t.Helper()
	hash, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId:     id,
		Amount:        amt(amount),
		PaymentMethod: "Venmo::seller-tag",
		CurrencyCode:  "USD",
		Recipient:     "buyer-wallet",
		Chain:         "near",
	})
	if err != nil {
		t.Fatalf("SignalIntent failed: %v", err)
	}
	return hash
}

func (env *testEnv) deposit(t *testing.T, id uint64) *models.Deposit {
	t.Helper()
	d, err := env.engine.GetDeposit(env.ctx, id)
	if err != nil {
		t.Fatalf("GetDeposit failed: %v", err)
	}
	return d
}

func (env *testEnv) funding(t *testing.T, id uint64) *models.FundingMeta {
	t.Helper()
	f, err := env.engine.GetDepositFunding(env.ctx, id)
	if err != nil {
		t.Fatalf("GetDepositFunding failed: %v", err)
	}
	return f
}

func (env *testEnv) listed(t *testing.T, id uint64) bool {
	t.Helper()
	summaries, err := env.engine.GetOpenDepositsByAsset(env.ctx, testAsset, NewPage(0, MaxPageSize))
	if err != nil {
		t.Fatalf("GetOpenDepositsByAsset failed: %v", err)
	}
	for _, s := range summaries {
		if s.DepositId == id {
			return true
		}
	}
	return false
}

// assertInvariants checks conservation and listing membership for the given deposits.
func (env *testEnv) assertInvariants(t *testing.T, ids ...uint64) {
	t.Helper()
	for _, id := range ids {
		d := env.deposit(t, id)
		sum := new(uint256.Int).Add(d.Remaining, d.Outstanding)
		if sum.Gt(d.Total) {
			t.Errorf("deposit %d: remaining %s + outstanding %s exceeds total %s", id, d.Remaining.Dec(), d.Outstanding.Dec(), d.Total.Dec())
		}

		f, err := env.engine.GetDepositFunding(env.ctx, id)
		want := false
		if err == nil {
			want = f.Status == models.FundingFunded && !d.Remaining.IsZero()
		} else if !errors.Is(err, ErrFundingNotFound) {
			t.Fatalf("GetDepositFunding failed: %v", err)
		}
		if got := env.listed(t, id); got != want {
			t.Errorf("deposit %d: listed=%v, expected %v", id, got, want)
		}
	}
}

func expectErr(t *testing.T, err, want error) {
	t.Helper()
	if !errors.Is(err, want) {
		t.Fatalf("Expected error %v, got %v", want, err)
	}
}

func TestInitialize_GatesEveryOperation(t *testing.T) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{Path: ":memory:", MaxOpenConns: 1, PingTimeout: time.Second})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	ctx := context.Background()
	engine := NewEngine(db)

	_, err = engine.CreateDeposit(ctx, seller(), CreateDepositParams{
		Token: testAsset, Amount: amt(10), MinIntentAmount: amt(1), MaxIntentAmount: amt(5),
		PaymentMethods: []string{"venmo::x"},
	})
	expectErr(t, err, ErrNotInitialized)
	_, err = engine.GetOwner(ctx)
	expectErr(t, err, ErrNotInitialized)

	expectErr(t, engine.Initialize(ctx, "", testFees), ErrAccountRequired)
	if err := engine.Initialize(ctx, testOwner, testFees); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	expectErr(t, engine.Initialize(ctx, testOwner, testFees), ErrAlreadyInitialized)

	gotOwner, err := engine.GetOwner(ctx)
	if err != nil || gotOwner != testOwner {
		t.Fatalf("Expected owner %s, got %s (%v)", testOwner, gotOwner, err)
	}

	cfg, err := engine.GetFundingConfig(ctx)
	if err != nil {
		t.Fatalf("GetFundingConfig failed: %v", err)
	}
	if cfg.OracleAccount != testOwner {
		t.Errorf("Expected oracle to default to owner, got %s", cfg.OracleAccount)
	}
	if cfg.TopUpWindow != 3*time.Hour || cfg.MaxQuoteRotations != 48 {
		t.Errorf("Unexpected workflow defaults %+v", cfg)
	}
	if cfg.StorageFee.Dec() != "50000000000000000000000" {
		t.Errorf("Unexpected storage fee %s", cfg.StorageFee.Dec())
	}

	protocol, err := engine.GetProtocolConfig(ctx)
	if err != nil {
		t.Fatalf("GetProtocolConfig failed: %v", err)
	}
	if protocol.ProtocolFeeBps != 100 || protocol.MaxIntentsPerDeposit != 100 || protocol.ProtocolFeeRecipient != testFees {
		t.Errorf("Unexpected protocol defaults %+v", protocol)
	}
}

func TestScenarioA_SignalAndCancel(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.createDeposit(t, 1000, 10, 500)
	hash := env.signal(t, id, 400)

	d := env.deposit(t, id)
	if d.Remaining.Uint64() != 600 || d.Outstanding.Uint64() != 400 {
		t.Fatalf("Expected 600/400 after signal, got %s/%s", d.Remaining.Dec(), d.Outstanding.Dec())
	}

	if err := env.engine.CancelIntent(env.ctx, buyer(), hash); err != nil {
		t.Fatalf("CancelIntent failed: %v", err)
	}

	d = env.deposit(t, id)
	if d.Remaining.Uint64() != 1000 || !d.Outstanding.IsZero() {
		t.Fatalf("Expected 1000/0 after cancel, got %s/%s", d.Remaining.Dec(), d.Outstanding.Dec())
	}

	intent, err := env.engine.GetIntent(env.ctx, hash)
	if err != nil {
		t.Fatalf("GetIntent failed: %v", err)
	}
	if intent.Status != models.IntentCancelled {
		t.Errorf("Expected Cancelled, got %s", intent.Status)
	}
	env.assertInvariants(t, id)
}

func TestCreateDeposit_Validation(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	valid := CreateDepositParams{
		Token:           testAsset,
		Amount:          amt(100),
		MinIntentAmount: amt(1),
		MaxIntentAmount: amt(50),
		PaymentMethods:  []string{"venmo::x"},
	}

	tooBig := new(uint256.Int).Add(MaxAmount, amt(1))
	cases := []struct {
		name   string
		mutate func(p *CreateDepositParams)
		want   error
	}{
		{"zero amount", func(p *CreateDepositParams) { p.Amount = amt(0) }, ErrAmountZero},
		{"nil amount", func(p *CreateDepositParams) { p.Amount = nil }, ErrAmountZero},
		{"over 128 bits", func(p *CreateDepositParams) { p.Amount = tooBig }, ErrAmountTooLarge},
		{"zero min", func(p *CreateDepositParams) { p.MinIntentAmount = amt(0) }, ErrMinIntentZero},
		{"min above max", func(p *CreateDepositParams) { p.MinIntentAmount = amt(60) }, ErrMinAboveMax},
		{"no methods", func(p *CreateDepositParams) { p.PaymentMethods = nil }, ErrNoPaymentMethods},
		{"no tagname", func(p *CreateDepositParams) { p.PaymentMethods = []string{"venmo", "zelle::"} }, ErrMalformedPaymentMethod},
		{"empty token", func(p *CreateDepositParams) { p.Token = "  " }, ErrAssetRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p := valid
			tc.mutate(&p)
			_, err := env.engine.CreateDeposit(env.ctx, seller(), p)
			expectErr(t, err, tc.want)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Errorf("Expected validation kind, got %v", err)
			}
		})
	}

	ids, err := env.engine.GetAccountDeposits(env.ctx, testSeller)
	if err != nil {
		t.Fatalf("GetAccountDeposits failed: %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("Expected no deposits after rejected creates, got %v", ids)
	}

	// one well-formed method among malformed ones is enough
	p := valid
	p.PaymentMethods = []string{"venmo", "  Zelle :: tag "}
	id, err := env.engine.CreateDeposit(env.ctx, seller(), p)
	if err != nil {
		t.Fatalf("CreateDeposit failed: %v", err)
	}
	if id != 1 {
		t.Errorf("Expected first deposit id 1, got %d", id)
	}
}

func TestWithdrawDeposit(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.createDeposit(t, 1000, 10, 500)
	hash := env.signal(t, id, 100)

	_, err := env.engine.WithdrawDeposit(env.ctx, buyer(), id)
	expectErr(t, err, ErrNotManager)

	_, err = env.engine.WithdrawDeposit(env.ctx, seller(), id)
	expectErr(t, err, ErrOutstandingIntents)

	if err := env.engine.CancelIntent(env.ctx, buyer(), hash); err != nil {
		t.Fatalf("CancelIntent failed: %v", err)
	}

	if err := env.engine.SetDelegate(env.ctx, seller(), id, "delegate.near"); err != nil {
		t.Fatalf("SetDelegate failed: %v", err)
	}
	withdrawn, err := env.engine.WithdrawDeposit(env.ctx, Call{Caller: "delegate.near"}, id)
	if err != nil {
		t.Fatalf("WithdrawDeposit failed: %v", err)
	}
	if withdrawn.Uint64() != 1000 {
		t.Errorf("Expected 1000 withdrawn, got %s", withdrawn.Dec())
	}

	d := env.deposit(t, id)
	if !d.Remaining.IsZero() || d.Total.Uint64() != 1000 {
		t.Errorf("Expected remaining zeroed and total kept, got %s/%s", d.Remaining.Dec(), d.Total.Dec())
	}

	_, err = env.engine.WithdrawDeposit(env.ctx, seller(), 99)
	expectErr(t, err, ErrDepositNotFound)
}

func TestSetDelegate_DepositorOnly(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.createDeposit(t, 100, 1, 10)
	if err := env.engine.SetDelegate(env.ctx, seller(), id, "delegate.near"); err != nil {
		t.Fatalf("SetDelegate failed: %v", err)
	}

	// a delegate manages the deposit but cannot replace itself
	expectErr(t, env.engine.SetDelegate(env.ctx, Call{Caller: "delegate.near"}, id, "other.near"), ErrDepositorOnly)
	expectErr(t, env.engine.SetDelegate(env.ctx, buyer(), id, "other.near"), ErrDepositorOnly)
	expectErr(t, env.engine.SetDelegate(env.ctx, seller(), id, " "), ErrAccountRequired)

	if err := env.engine.SetDelegate(env.ctx, seller(), id, "other.near"); err != nil {
		t.Fatalf("SetDelegate replace failed: %v", err)
	}
	if d := env.deposit(t, id); d.Delegate != "other.near" {
		t.Errorf("Expected delegate other.near, got %s", d.Delegate)
	}
}

func TestScenarioB_ConfirmFundingListsAndClamps(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 900)

	d := env.deposit(t, id)
	if !d.Remaining.IsZero() || d.Total.Uint64() != 1000 {
		t.Fatalf("Expected unfunded deposit with total 1000, got %s/%s", d.Remaining.Dec(), d.Total.Dec())
	}
	f := env.funding(t, id)
	if f.Status != models.FundingAwaiting || f.WindowStarted() || f.QuoteGeneration != 0 {
		t.Fatalf("Unexpected initial funding state %+v", f)
	}
	env.assertInvariants(t, id)

	env.setQuote(t, id, "q1")
	f = env.funding(t, id)
	if f.TopUpDeadline.Sub(f.FundingStartedAt) != 3*time.Hour {
		t.Errorf("Expected 3h window, got %v", f.TopUpDeadline.Sub(f.FundingStartedAt))
	}
	if f.DepositMemo != "memo" || f.LastExternalStatus != models.ExternalStatusPendingDeposit || f.QuoteGeneration != 1 {
		t.Errorf("Unexpected quote state %+v", f)
	}

	env.clock.Advance(time.Hour)
	err := env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{
		DepositId: id, QuoteId: "q1", FundedAmount: amt(800), OriginTxHash: "0xabc", ExternalStatus: "SUCCESS",
	})
	if err != nil {
		t.Fatalf("ConfirmFunding failed: %v", err)
	}

	d = env.deposit(t, id)
	if d.Total.Uint64() != 800 || d.Remaining.Uint64() != 800 {
		t.Errorf("Expected liquidity re-based to 800, got %s/%s", d.Total.Dec(), d.Remaining.Dec())
	}
	if d.MaxIntentAmount.Uint64() != 800 || d.MinIntentAmount.Uint64() != 10 {
		t.Errorf("Expected bounds [10, 800], got [%s, %s]", d.MinIntentAmount.Dec(), d.MaxIntentAmount.Dec())
	}
	if !env.listed(t, id) {
		t.Errorf("Expected funded deposit to be listed")
	}

	_, err = env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: id, Amount: amt(900), PaymentMethod: "Venmo::seller-tag", CurrencyCode: "USD",
	})
	expectErr(t, err, ErrAmountAboveMaximum)
	env.assertInvariants(t, id)
}

func TestConfirmFunding_ClampsMinimumToFundedAmount(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 500, 900)
	env.setQuote(t, id, "q1")
	if err := env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{
		DepositId: id, QuoteId: "q1", FundedAmount: amt(300),
	}); err != nil {
		t.Fatalf("ConfirmFunding failed: %v", err)
	}

	d := env.deposit(t, id)
	if d.MinIntentAmount.Uint64() != 300 || d.MaxIntentAmount.Uint64() != 300 {
		t.Errorf("Expected bounds [300, 300], got [%s, %s]", d.MinIntentAmount.Dec(), d.MaxIntentAmount.Dec())
	}
}

func TestConfirmFunding_Idempotent(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.fundedDeposit(t, 500)
	before := env.funding(t, id)
	env.signal(t, id, 100)

	env.clock.Advance(time.Minute)
	err := env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{
		DepositId: id, QuoteId: "q1", FundedAmount: amt(500), OriginTxHash: "0xabc", ExternalStatus: "SUCCESS",
	})
	if err != nil {
		t.Fatalf("Second ConfirmFunding returned error: %v", err)
	}

	after := env.funding(t, id)
	if !after.UpdatedAt.Equal(before.UpdatedAt) || after.FundedAmount.Cmp(before.FundedAmount) != 0 {
		t.Errorf("Expected repeated confirmation to leave funding unchanged")
	}
	d := env.deposit(t, id)
	if d.Remaining.Uint64() != 400 || d.Outstanding.Uint64() != 100 {
		t.Errorf("Expected liquidity untouched by repeat, got %s/%s", d.Remaining.Dec(), d.Outstanding.Dec())
	}
}

func TestConfirmFunding_Rejections(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	confirm := func(call Call, quoteId string, amount uint64) error {
		return env.engine.ConfirmFunding(env.ctx, call, ConfirmFundingParams{
			DepositId: id, QuoteId: quoteId, FundedAmount: amt(amount),
		})
	}

	expectErr(t, confirm(oracle(), "q1", 0), ErrFundedAmountZero)
	expectErr(t, confirm(seller(), "q1", 100), ErrOracleOnly)
	expectErr(t, confirm(oracle(), "q1", 100), ErrWindowNotStarted)

	env.setQuote(t, id, "q1")
	expectErr(t, confirm(oracle(), "q0", 100), ErrStaleQuote)

	// exactly at the deadline is still accepted; one millisecond later is not
	env.clock.Advance(3*time.Hour + time.Millisecond)
	expectErr(t, confirm(oracle(), "q1", 100), ErrDeadlinePassed)

	f := env.funding(t, id)
	if f.Status != models.FundingAwaiting {
		t.Errorf("Expected rejected confirmations to leave status AwaitingFunding, got %s", f.Status)
	}

	err := env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{DepositId: 77, QuoteId: "q", FundedAmount: amt(1)})
	expectErr(t, err, ErrDepositNotFound)
}

func TestConfirmFunding_AtDeadline(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	env.setQuote(t, id, "q1")
	env.clock.Advance(3 * time.Hour)

	if err := env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{
		DepositId: id, QuoteId: "q1", FundedAmount: amt(1000),
	}); err != nil {
		t.Fatalf("Expected confirmation at the deadline to succeed, got %v", err)
	}
}

func TestScenarioC_LateQuoteExpiresWorkflow(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	env.setQuote(t, id, "q1")
	env.clock.Advance(3*time.Hour + time.Second)

	// the late quote commits the expiry instead of failing
	env.setQuote(t, id, "q2")

	f := env.funding(t, id)
	if f.Status != models.FundingTopUpExpired {
		t.Fatalf("Expected TopUpExpired, got %s", f.Status)
	}
	if f.FailureReason != "Top-up window already expired" {
		t.Errorf("Unexpected failure reason %q", f.FailureReason)
	}
	if f.QuoteId != "q1" || f.QuoteGeneration != 1 {
		t.Errorf("Expected late quote to be rejected, got %s gen %d", f.QuoteId, f.QuoteGeneration)
	}

	// every later oracle signal is ignored
	if err := env.engine.MarkFailed(env.ctx, oracle(), id, "q1", "FAILED", "x"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	if err := env.engine.MarkQuoteExpired(env.ctx, oracle(), id, "q1"); err != nil {
		t.Fatalf("MarkQuoteExpired returned error: %v", err)
	}
	env.setQuote(t, id, "q3")
	expectErr(t, env.engine.ConfirmFunding(env.ctx, oracle(), ConfirmFundingParams{
		DepositId: id, QuoteId: "q1", FundedAmount: amt(10),
	}), ErrNotAwaitingFunding)

	if got := env.funding(t, id); got.Status != models.FundingTopUpExpired || got.FailureReason != f.FailureReason {
		t.Errorf("Expected terminal state to stay frozen, got %+v", got)
	}
	env.assertInvariants(t, id)
}

func TestLazyExpiry_UnobservedWorkflowStaysAwaiting(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	env.setQuote(t, id, "q1")
	env.clock.Advance(24 * time.Hour)

	f := env.funding(t, id)
	if f.Status != models.FundingAwaiting {
		t.Fatalf("Expected no background expiry, got %s", f.Status)
	}
	ids, err := env.engine.GetDepositsByFundingStatus(env.ctx, models.FundingAwaiting, Page{})
	if err != nil {
		t.Fatalf("GetDepositsByFundingStatus failed: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Errorf("Expected expired-but-unobserved deposit in AwaitingFunding scan, got %v", ids)
	}

	// the next oracle observation applies the expiry
	if err := env.engine.MarkQuoteExpired(env.ctx, oracle(), id, "q1"); err != nil {
		t.Fatalf("MarkQuoteExpired failed: %v", err)
	}
	f = env.funding(t, id)
	if f.Status != models.FundingTopUpExpired || f.FailureReason != "Top-up window expired" {
		t.Errorf("Expected TopUpExpired after observation, got %s (%s)", f.Status, f.FailureReason)
	}
	if f.HasActiveQuote() || f.LastExternalStatus != models.ExternalStatusQuoteExpired {
		t.Errorf("Expected quote cleared, got %+v", f)
	}
}

func TestSetQuote_RotationCap(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	if err := env.engine.SetMaxQuoteRotations(env.ctx, owner(), 2); err != nil {
		t.Fatalf("SetMaxQuoteRotations failed: %v", err)
	}

	id := env.registerFunding(t, 1000, 10, 500)
	env.setQuote(t, id, "q1")
	env.setQuote(t, id, "q2")

	err := env.engine.SetQuote(env.ctx, oracle(), SetQuoteParams{DepositId: id, QuoteId: "q3", DepositAddress: "addr"})
	expectErr(t, err, ErrMaxRotationsReached)

	f := env.funding(t, id)
	if f.QuoteGeneration != 2 || f.QuoteId != "q2" {
		t.Errorf("Expected generation 2 with q2 active, got %d %s", f.QuoteGeneration, f.QuoteId)
	}

	// the deadline is evaluated before the cap, so a capped workflow still expires
	env.clock.Advance(4 * time.Hour)
	env.setQuote(t, id, "q4")
	if f := env.funding(t, id); f.Status != models.FundingTopUpExpired {
		t.Errorf("Expected TopUpExpired past the deadline, got %s", f.Status)
	}
}

func TestSetQuote_ValidationAndAuthorization(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	expectErr(t, env.engine.SetQuote(env.ctx, oracle(), SetQuoteParams{DepositId: id, DepositAddress: "a"}), ErrQuoteIdRequired)
	expectErr(t, env.engine.SetQuote(env.ctx, oracle(), SetQuoteParams{DepositId: id, QuoteId: "q"}), ErrDepositAddressRequired)
	expectErr(t, env.engine.SetQuote(env.ctx, owner(), SetQuoteParams{DepositId: id, QuoteId: "q", DepositAddress: "a"}), ErrOracleOnly)

	plain := env.createDeposit(t, 100, 1, 10)
	expectErr(t, env.engine.SetQuote(env.ctx, oracle(), SetQuoteParams{DepositId: plain, QuoteId: "q", DepositAddress: "a"}), ErrFundingNotFound)
}

func TestMarkQuoteExpired_Fencing(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	env.setQuote(t, id, "q1")

	if err := env.engine.MarkQuoteExpired(env.ctx, oracle(), id, "stale"); err != nil {
		t.Fatalf("MarkQuoteExpired returned error: %v", err)
	}
	if f := env.funding(t, id); f.QuoteId != "q1" {
		t.Fatalf("Expected stale signal to be ignored, got quote %q", f.QuoteId)
	}

	if err := env.engine.MarkQuoteExpired(env.ctx, oracle(), id, "q1"); err != nil {
		t.Fatalf("MarkQuoteExpired failed: %v", err)
	}
	f := env.funding(t, id)
	if f.HasActiveQuote() || f.DepositAddress != "" || f.DepositMemo != "" || !f.QuoteExpiresAt.IsZero() {
		t.Errorf("Expected quote fields cleared, got %+v", f)
	}
	if f.Status != models.FundingAwaiting || f.QuoteGeneration != 1 {
		t.Errorf("Expected workflow still awaiting with generation kept, got %+v", f)
	}

	// with no active quote any id is accepted
	if err := env.engine.MarkFailed(env.ctx, oracle(), id, "whatever", "FAILED", "Intents status: FAILED"); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	f = env.funding(t, id)
	if f.Status != models.FundingFailed || f.LastExternalStatus != "FAILED" || f.FailureReason != "Intents status: FAILED" {
		t.Errorf("Unexpected failed state %+v", f)
	}
}

func TestMarkFailedAndTopUpExpired_StaleSignalsIgnored(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	env.setQuote(t, id, "q1")

	if err := env.engine.MarkTopUpExpired(env.ctx, oracle(), id, "q0", "late"); err != nil {
		t.Fatalf("MarkTopUpExpired returned error: %v", err)
	}
	if err := env.engine.MarkFailed(env.ctx, oracle(), id, "q0", "FAILED", "late"); err != nil {
		t.Fatalf("MarkFailed returned error: %v", err)
	}
	if f := env.funding(t, id); f.Status != models.FundingAwaiting {
		t.Fatalf("Expected stale signals to be ignored, got %s", f.Status)
	}

	expectErr(t, env.engine.MarkFailed(env.ctx, seller(), id, "q1", "FAILED", "x"), ErrOracleOnly)

	if err := env.engine.MarkTopUpExpired(env.ctx, oracle(), id, "q1", "deadline reached"); err != nil {
		t.Fatalf("MarkTopUpExpired failed: %v", err)
	}
	if err := env.engine.MarkFailed(env.ctx, oracle(), id, "q1", "FAILED", "x"); err != nil {
		t.Fatalf("MarkFailed on terminal workflow returned error: %v", err)
	}
	f := env.funding(t, id)
	if f.Status != models.FundingTopUpExpired || f.FailureReason != "deadline reached" {
		t.Errorf("Unexpected terminal state %+v", f)
	}
}

func TestCancelDepositIntent(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.registerFunding(t, 1000, 10, 500)
	expectErr(t, env.engine.CancelDepositIntent(env.ctx, buyer(), id), ErrNotManager)

	if err := env.engine.CancelDepositIntent(env.ctx, seller(), id); err != nil {
		t.Fatalf("CancelDepositIntent failed: %v", err)
	}
	f := env.funding(t, id)
	if f.Status != models.FundingCancelled || f.FailureReason != "Cancelled by seller" {
		t.Errorf("Unexpected cancelled state %+v", f)
	}
	expectErr(t, env.engine.CancelDepositIntent(env.ctx, seller(), id), ErrNotCancelable)

	funded := env.fundedDeposit(t, 500)
	expectErr(t, env.engine.CancelDepositIntent(env.ctx, seller(), funded), ErrNotCancelable)

	plain := env.createDeposit(t, 100, 1, 10)
	expectErr(t, env.engine.CancelDepositIntent(env.ctx, seller(), plain), ErrFundingNotFound)
	env.assertInvariants(t, id, funded, plain)
}

func TestRegisterDepositIntent_Validation(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	valid := RegisterFundingParams{
		AssetId:         testAsset,
		ExpectedAmount:  amt(1000),
		MinIntentAmount: amt(1),
		MaxIntentAmount: amt(10),
		PaymentMethods:  []string{"venmo::x"},
		RefundTo:        "refund.near",
	}

	short := new(uint256.Int).Sub(DefaultStorageFee, amt(1))
	_, err := env.engine.RegisterDepositIntent(env.ctx, Call{Caller: testSeller, Attached: short}, valid)
	expectErr(t, err, ErrStorageFeeNotMet)
	_, err = env.engine.RegisterDepositIntent(env.ctx, seller(), valid)
	expectErr(t, err, ErrStorageFeeNotMet)

	p := valid
	p.RefundTo = " "
	_, err = env.engine.RegisterDepositIntent(env.ctx, Call{Caller: testSeller, Attached: DefaultStorageFee}, p)
	expectErr(t, err, ErrRefundToRequired)

	p = valid
	p.AssetId = ""
	_, err = env.engine.RegisterDepositIntent(env.ctx, Call{Caller: testSeller, Attached: DefaultStorageFee}, p)
	expectErr(t, err, ErrAssetRequired)

	if err := env.engine.SetStorageFee(env.ctx, owner(), amt(0)); err != nil {
		t.Fatalf("SetStorageFee failed: %v", err)
	}
	if _, err := env.engine.RegisterDepositIntent(env.ctx, seller(), valid); err != nil {
		t.Fatalf("Expected registration without payment once the fee is zero, got %v", err)
	}
}

func TestSignalIntent_Preconditions(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	unfunded := env.registerFunding(t, 1000, 10, 500)
	_, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: unfunded, Amount: amt(100), PaymentMethod: "Venmo::seller-tag",
	})
	expectErr(t, err, ErrListingNotFunded)

	id := env.createDeposit(t, 1000, 10, 500)
	cases := []struct {
		name   string
		amount uint64
		method string
		want   error
	}{
		{"below minimum", 5, "Venmo::seller-tag", ErrAmountBelowMinimum},
		{"above maximum", 501, "Venmo::seller-tag", ErrAmountAboveMaximum},
		{"unknown method", 100, "venmo::seller-tag", ErrPaymentMethodRejected},
		{"zero", 0, "Venmo::seller-tag", ErrAmountZero},
	}
	for _, tc := range cases {
		_, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
			DepositId: id, Amount: amt(tc.amount), PaymentMethod: tc.method,
		})
		if !errors.Is(err, tc.want) {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}

	env.signal(t, id, 500)
	env.signal(t, id, 400)
	_, err = env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: id, Amount: amt(200), PaymentMethod: "Venmo::seller-tag",
	})
	expectErr(t, err, ErrInsufficientLiquidity)

	_, err = env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: 404, Amount: amt(20), PaymentMethod: "Venmo::seller-tag",
	})
	expectErr(t, err, ErrDepositNotFound)
	env.assertInvariants(t, unfunded, id)
}

func TestScenarioD_MaxIntentsPerDeposit(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.createDeposit(t, 10_000, 1, 10)
	for i := 0; i < DefaultMaxIntentsPerDeposit; i++ {
		env.signal(t, id, 1)
	}

	before := env.deposit(t, id)
	_, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: id, Amount: amt(1), PaymentMethod: "Venmo::seller-tag",
	})
	expectErr(t, err, ErrMaxIntentsReached)

	after := env.deposit(t, id)
	if after.Remaining.Cmp(before.Remaining) != 0 || after.Outstanding.Cmp(before.Outstanding) != 0 {
		t.Errorf("Expected no state change on rejected signal")
	}
	hashes, err := env.engine.GetDepositIntents(env.ctx, id)
	if err != nil {
		t.Fatalf("GetDepositIntents failed: %v", err)
	}
	if len(hashes) != DefaultMaxIntentsPerDeposit {
		t.Errorf("Expected %d intents, got %d", DefaultMaxIntentsPerDeposit, len(hashes))
	}
}

func TestMaxIntents_CountsResolvedIntents(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	if err := env.engine.SetMaxIntentsPerDeposit(env.ctx, owner(), 2); err != nil {
		t.Fatalf("SetMaxIntentsPerDeposit failed: %v", err)
	}
	id := env.createDeposit(t, 1000, 1, 100)
	first := env.signal(t, id, 10)
	if err := env.engine.CancelIntent(env.ctx, buyer(), first); err != nil {
		t.Fatalf("CancelIntent failed: %v", err)
	}
	env.signal(t, id, 10)

	_, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: id, Amount: amt(10), PaymentMethod: "Venmo::seller-tag",
	})
	expectErr(t, err, ErrMaxIntentsReached)
}

func TestIntentLifecycle_TerminalOnce(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.fundedDeposit(t, 1000)
	fulfilled := env.signal(t, id, 200)
	released := env.signal(t, id, 300)
	cancelled := env.signal(t, id, 100)

	if err := env.engine.FulfillIntent(env.ctx, Call{Caller: "anyone.near"}, fulfilled); err != nil {
		t.Fatalf("FulfillIntent failed: %v", err)
	}
	expectErr(t, env.engine.ReleaseIntent(env.ctx, buyer(), released), ErrNotManager)
	if err := env.engine.ReleaseIntent(env.ctx, seller(), released); err != nil {
		t.Fatalf("ReleaseIntent failed: %v", err)
	}
	expectErr(t, env.engine.CancelIntent(env.ctx, seller(), cancelled), ErrBuyerOnly)
	if err := env.engine.CancelIntent(env.ctx, buyer(), cancelled); err != nil {
		t.Fatalf("CancelIntent failed: %v", err)
	}

	d := env.deposit(t, id)
	if d.Remaining.Uint64() != 500 || !d.Outstanding.IsZero() || d.Total.Uint64() != 1000 {
		t.Errorf("Expected 500/0 of 1000, got %s/%s of %s", d.Remaining.Dec(), d.Outstanding.Dec(), d.Total.Dec())
	}

	for _, hash := range []string{fulfilled, released, cancelled} {
		expectErr(t, env.engine.FulfillIntent(env.ctx, buyer(), hash), ErrIntentNotSignaled)
		expectErr(t, env.engine.ReleaseIntent(env.ctx, seller(), hash), ErrIntentNotSignaled)
		expectErr(t, env.engine.CancelIntent(env.ctx, buyer(), hash), ErrIntentNotSignaled)
	}
	expectErr(t, env.engine.FulfillIntent(env.ctx, buyer(), "intent:999"), ErrIntentNotFound)

	statuses := map[string]models.IntentStatus{
		fulfilled: models.IntentFulfilled,
		released:  models.IntentReleased,
		cancelled: models.IntentCancelled,
	}
	for hash, want := range statuses {
		intent, err := env.engine.GetIntent(env.ctx, hash)
		if err != nil {
			t.Fatalf("GetIntent failed: %v", err)
		}
		if intent.Status != want {
			t.Errorf("%s: expected %s, got %s", hash, want, intent.Status)
		}
	}
	env.assertInvariants(t, id)
}

func TestResolve_QueuesSettlementAfterCommit(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.fundedDeposit(t, 1000)
	fulfilled := env.signal(t, id, 250)
	released := env.signal(t, id, 100)

	if err := env.engine.FulfillIntent(env.ctx, buyer(), fulfilled); err != nil {
		t.Fatalf("FulfillIntent failed: %v", err)
	}

	// a failing channel never rolls back the transition
	env.settler.err = errors.New("channel down")
	if err := env.engine.ReleaseIntent(env.ctx, seller(), released); err != nil {
		t.Fatalf("ReleaseIntent failed: %v", err)
	}
	if intent, _ := env.engine.GetIntent(env.ctx, released); intent.Status != models.IntentReleased {
		t.Errorf("Expected Released despite channel failure, got %s", intent.Status)
	}

	requests := env.settler.all()
	if len(requests) != 2 {
		t.Fatalf("Expected 2 settlement requests, got %d", len(requests))
	}
	first := requests[0]
	if first.Kind != settlement.KindFulfill || first.IntentHash != fulfilled || first.Asset != testAsset {
		t.Errorf("Unexpected fulfil request %+v", first)
	}
	if first.Amount.Uint64() != 250 || first.ProtocolFee.Uint64() != 2 || first.FeeRecipient != testFees {
		t.Errorf("Expected amount 250 with fee 2, got %s fee %s", first.Amount.Dec(), first.ProtocolFee.Dec())
	}
	if first.Chain != "near" || first.Recipient != "buyer-wallet" || first.Id == "" {
		t.Errorf("Unexpected routing in %+v", first)
	}
	if requests[1].Kind != settlement.KindRelease {
		t.Errorf("Expected release request, got %s", requests[1].Kind)
	}
}

func TestFulfillIntentWithProof(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.fundedDeposit(t, 1000)
	hash := env.signal(t, id, 100)

	expectErr(t, env.engine.FulfillIntentWithProof(env.ctx, buyer(), hash, "   "), ErrProofRequired)
	oversized := make([]byte, MaxProofSize+1)
	for i := range oversized {
		oversized[i] = 'a'
	}
	expectErr(t, env.engine.FulfillIntentWithProof(env.ctx, buyer(), hash, string(oversized)), ErrProofTooLarge)

	if intent, _ := env.engine.GetIntent(env.ctx, hash); intent.Status != models.IntentSignaled {
		t.Fatalf("Expected rejected proofs to leave intent signaled, got %s", intent.Status)
	}

	proof := string(oversized[:MaxProofSize])
	if err := env.engine.FulfillIntentWithProof(env.ctx, buyer(), hash, "  "+proof+"\n"); err != nil {
		t.Fatalf("FulfillIntentWithProof failed: %v", err)
	}
	intent, err := env.engine.GetIntent(env.ctx, hash)
	if err != nil {
		t.Fatalf("GetIntent failed: %v", err)
	}
	if intent.Status != models.IntentFulfilled || intent.ProofSize != MaxProofSize {
		t.Errorf("Expected Fulfilled with proof size %d, got %s %d", MaxProofSize, intent.Status, intent.ProofSize)
	}
}

func TestOpenListing_FollowsLiquidity(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.fundedDeposit(t, 300)
	plain := env.createDeposit(t, 300, 1, 300)
	env.assertInvariants(t, id, plain)

	all := env.signal(t, id, 300)
	if env.listed(t, id) {
		t.Errorf("Expected exhausted deposit to be unlisted")
	}
	if err := env.engine.CancelIntent(env.ctx, buyer(), all); err != nil {
		t.Fatalf("CancelIntent failed: %v", err)
	}
	if !env.listed(t, id) {
		t.Errorf("Expected deposit relisted after cancel")
	}

	if _, err := env.engine.WithdrawDeposit(env.ctx, seller(), id); err != nil {
		t.Fatalf("WithdrawDeposit failed: %v", err)
	}
	if env.listed(t, id) {
		t.Errorf("Expected withdrawn deposit to be unlisted")
	}
	env.assertInvariants(t, id, plain)
}

func TestOpenListing_PagesDescending(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, env.fundedDeposit(t, 100))
	}

	first, err := env.engine.GetOpenDepositsByAsset(env.ctx, testAsset, NewPage(0, 2))
	if err != nil {
		t.Fatalf("GetOpenDepositsByAsset failed: %v", err)
	}
	second, err := env.engine.GetOpenDepositsByAsset(env.ctx, testAsset, NewPage(2, 2))
	if err != nil {
		t.Fatalf("GetOpenDepositsByAsset failed: %v", err)
	}
	if len(first) != 2 || first[0].DepositId != ids[4] || first[1].DepositId != ids[3] {
		t.Errorf("Unexpected first page %+v", first)
	}
	if len(second) != 2 || second[0].DepositId != ids[2] {
		t.Errorf("Unexpected second page %+v", second)
	}
	if first[0].FundedAmount.Uint64() != 100 || first[0].Status != models.FundingFunded {
		t.Errorf("Unexpected summary %+v", first[0])
	}

	other, err := env.engine.GetOpenDepositsByAsset(env.ctx, "nep141:wbtc.near", Page{})
	if err != nil {
		t.Fatalf("GetOpenDepositsByAsset failed: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("Expected no listings for another asset, got %d", len(other))
	}
}

func TestPage_Normalize(t *testing.T) {
	cases := []struct {
		in         Page
		wantOffset int
		wantLimit  int
	}{
		{Page{}, 0, DefaultPageSize},
		{Page{From: 4}, 4, DefaultPageSize},
		{NewPage(0, 0), 0, 1},
		{NewPage(-3, -1), 0, 1},
		{NewPage(7, 1000), 7, MaxPageSize},
		{NewPage(1, 20), 1, 20},
	}
	for i, tc := range cases {
		offset, limit := tc.in.normalize()
		if offset != tc.wantOffset || limit != tc.wantLimit {
			t.Errorf("case %d: expected (%d, %d), got (%d, %d)", i, tc.wantOffset, tc.wantLimit, offset, limit)
		}
	}
}

func TestFundingStatusScan(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	a := env.registerFunding(t, 100, 1, 10)
	b := env.fundedDeposit(t, 100)
	c := env.registerFunding(t, 100, 1, 10)
	if err := env.engine.CancelDepositIntent(env.ctx, seller(), c); err != nil {
		t.Fatalf("CancelDepositIntent failed: %v", err)
	}

	check := func(status models.FundingStatus, want ...uint64) {
		t.Helper()
		ids, err := env.engine.GetDepositsByFundingStatus(env.ctx, status, Page{})
		if err != nil {
			t.Fatalf("GetDepositsByFundingStatus failed: %v", err)
		}
		if len(ids) != len(want) {
			t.Fatalf("%s: expected %v, got %v", status, want, ids)
		}
		for i := range want {
			if ids[i] != want[i] {
				t.Errorf("%s: expected %v, got %v", status, want, ids)
			}
		}
	}
	check(models.FundingAwaiting, a)
	check(models.FundingFunded, b)
	check(models.FundingCancelled, c)
	check(models.FundingFailed)

	_, err := env.engine.GetDepositsByFundingStatus(env.ctx, models.FundingStatus("Bogus"), Page{})
	expectErr(t, err, ErrInvalidArgument)
}

func TestRegistry_CurrencyEnforcement(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	expectErr(t, env.engine.AddPaymentMethod(env.ctx, seller(), "venmo", "v", []string{"USD"}), ErrOwnerOnly)
	expectErr(t, env.engine.AddPaymentMethod(env.ctx, owner(), "venmo", "v", nil), ErrNoCurrencies)
	if err := env.engine.AddPaymentMethod(env.ctx, owner(), "venmo", "venmo-verifier", []string{"USD"}); err != nil {
		t.Fatalf("AddPaymentMethod failed: %v", err)
	}

	pm, err := env.engine.GetPaymentMethod(env.ctx, "venmo")
	if err != nil {
		t.Fatalf("GetPaymentMethod failed: %v", err)
	}
	if !pm.Initialized || pm.Verifier != "venmo-verifier" {
		t.Errorf("Unexpected registry entry %+v", pm)
	}

	id := env.createDeposit(t, 1000, 1, 100)
	_, err = env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: id, Amount: amt(10), PaymentMethod: "Venmo::seller-tag", CurrencyCode: "EUR",
	})
	expectErr(t, err, ErrCurrencyRejected)
	env.signal(t, id, 10)

	if err := env.engine.RemovePaymentMethod(env.ctx, owner(), "venmo"); err != nil {
		t.Fatalf("RemovePaymentMethod failed: %v", err)
	}
	if err := env.engine.RemovePaymentMethod(env.ctx, owner(), "venmo"); err != nil {
		t.Fatalf("Removing an absent entry should be a no-op, got %v", err)
	}
	_, err = env.engine.GetPaymentMethod(env.ctx, "venmo")
	expectErr(t, err, ErrPaymentMethodNotFound)

	if _, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
		DepositId: id, Amount: amt(10), PaymentMethod: "Venmo::seller-tag", CurrencyCode: "EUR",
	}); err != nil {
		t.Fatalf("Expected unregistered platform to accept any currency, got %v", err)
	}
}

func TestAdminSetters(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	expectErr(t, env.engine.SetProtocolFee(env.ctx, owner(), 501), ErrFeeTooHigh)
	expectErr(t, env.engine.SetProtocolFee(env.ctx, seller(), 10), ErrOwnerOnly)
	expectErr(t, env.engine.SetMaxIntentsPerDeposit(env.ctx, owner(), 0), ErrNonPositiveSetting)
	expectErr(t, env.engine.SetTopUpWindow(env.ctx, owner(), 0), ErrNonPositiveSetting)
	expectErr(t, env.engine.SetMaxQuoteRotations(env.ctx, owner(), 0), ErrNonPositiveSetting)
	expectErr(t, env.engine.SetOracleAccount(env.ctx, owner(), ""), ErrAccountRequired)

	if err := env.engine.SetProtocolFee(env.ctx, owner(), 500); err != nil {
		t.Fatalf("SetProtocolFee failed: %v", err)
	}
	if err := env.engine.SetTopUpWindow(env.ctx, owner(), 90*time.Minute); err != nil {
		t.Fatalf("SetTopUpWindow failed: %v", err)
	}

	cfg, err := env.engine.GetProtocolConfig(env.ctx)
	if err != nil {
		t.Fatalf("GetProtocolConfig failed: %v", err)
	}
	if cfg.ProtocolFeeBps != 500 || cfg.TopUpWindow != 90*time.Minute || cfg.OracleAccount != testOracle {
		t.Errorf("Unexpected config %+v", cfg)
	}

	id := env.registerFunding(t, 100, 1, 10)
	env.setQuote(t, id, "q1")
	if f := env.funding(t, id); f.TopUpDeadline.Sub(f.FundingStartedAt) != 90*time.Minute {
		t.Errorf("Expected the new window to apply, got %v", f.TopUpDeadline.Sub(f.FundingStartedAt))
	}
}

func TestTransferDetails(t *testing.T) {
	env, cleanup := setupTestEngine(t)
	defer cleanup()

	id := env.createDeposit(t, 1000, 1, 100)
	hash := env.signal(t, id, 42)

	details, err := env.engine.GetIntentTransferDetails(env.ctx, hash)
	if err != nil {
		t.Fatalf("GetIntentTransferDetails failed: %v", err)
	}
	if details.Platform != "venmo" || details.Tagname != "seller-tag" {
		t.Errorf("Unexpected platform/tagname %s/%s", details.Platform, details.Tagname)
	}
	if details.Memo != "anypay:1:1" || details.PaymentMethodRaw != "Venmo::seller-tag" || details.Amount.Uint64() != 42 {
		t.Errorf("Unexpected details %+v", details)
	}

	intents, err := env.engine.GetAccountIntents(env.ctx, testBuyer)
	if err != nil {
		t.Fatalf("GetAccountIntents failed: %v", err)
	}
	if len(intents) != 1 || intents[0] != hash {
		t.Errorf("Expected buyer index [%s], got %v", hash, intents)
	}

	_, err = env.engine.GetIntentTransferDetails(env.ctx, "intent:404")
	expectErr(t, err, ErrIntentNotFound)
}

func TestConcurrentSignals_ConserveLiquidity(t *testing.T) {
	path := t.TempDir() + "/escrow.db"
	env, cleanup := openEngine(t, models.DatabaseConfig{Path: path, MaxOpenConns: 4, MaxIdleConns: 4, PingTimeout: time.Second})
	defer cleanup()

	id := env.fundedDeposit(t, 1000)

	const workers = 8
	const perWorker = 10
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				hash, err := env.engine.SignalIntent(env.ctx, buyer(), SignalIntentParams{
					DepositId: id, Amount: amt(10), PaymentMethod: "Venmo::seller-tag", CurrencyCode: "USD",
				})
				if err != nil {
					errs <- err
					continue
				}
				if i%2 == 0 {
					if err := env.engine.CancelIntent(env.ctx, buyer(), hash); err != nil {
						errs <- err
					}
				}
			}
		}(w)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("Concurrent operation failed: %v", err)
	}

	d := env.deposit(t, id)
	total := new(uint256.Int).Add(d.Remaining, d.Outstanding)
	if total.Uint64() != 1000 {
		t.Errorf("Expected remaining+outstanding to stay 1000, got %s", total.Dec())
	}
	if d.Outstanding.Uint64() != workers*perWorker/2*10 {
		t.Errorf("Expected outstanding %d, got %s", workers*perWorker/2*10, d.Outstanding.Dec())
	}

	hashes, err := env.engine.GetDepositIntents(env.ctx, id)
	if err != nil {
		t.Fatalf("GetDepositIntents failed: %v", err)
	}
	if len(hashes) != workers*perWorker {
		t.Errorf("Expected %d intents, got %d", workers*perWorker, len(hashes))
	}
	env.assertInvariants(t, id)
}
