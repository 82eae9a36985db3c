package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/efreitasn/shareledger/internal/domain"
	"github.com/efreitasn/shareledger/internal/engine"
	"github.com/efreitasn/shareledger/internal/scheduler"
	"github.com/efreitasn/shareledger/internal/store"
)

// testEnv bundles all services over one memory store.
type testEnv struct {
	ctx        context.Context
	store      *store.Memory
	engine     *engine.Engine
	properties *PropertyService
	accounts   *AccountService
	invest     *InvestmentService
	market     *MarketService
	admin      *AdminService
}

func newTestEnv() *testEnv {
	s := store.NewMemory(time.Second)
	eng := engine.New(s, engine.Options{})
	return &testEnv{
		ctx:        context.Background(),
		store:      s,
		engine:     eng,
		properties: NewPropertyService(eng),
		accounts:   NewAccountService(eng, s),
		invest:     NewInvestmentService(eng, s),
		market:     NewMarketService(eng),
		admin:      NewAdminService(eng, scheduler.New(context.Background(), eng, nil, time.Minute, nil)),
	}
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func (env *testEnv) approvedUser(t *testing.T, id, cash string) {
	t.Helper()
	if err := env.accounts.SetVerification(env.ctx, id, domain.VerificationApproved); err != nil {
		t.Fatalf("set verification: %v", err)
	}
	if _, err := env.accounts.Deposit(env.ctx, MoneyMovementRequest{UserID: id, Amount: dec(cash)}); err != nil {
		t.Fatalf("deposit: %v", err)
	}
}

func requireValidation(t *testing.T, err error, contains string) {
	t.Helper()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(ve.Message, contains) {
		t.Errorf("message %q does not contain %q", ve.Message, contains)
	}
}

func TestPropertyService_Register(t *testing.T) {
	env := newTestEnv()

	inv, err := env.properties.Register(env.ctx, RegisterPropertyRequest{
		PropertyID: "lisbon-01", TotalShares: 1000, SharePrice: dec("50.00"),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.AvailableShares != 1000 {
		t.Errorf("got available %d, want 1000", inv.AvailableShares)
	}

	_, err = env.properties.Register(env.ctx, RegisterPropertyRequest{
		PropertyID: "lisbon-01", TotalShares: 10, SharePrice: dec("1"),
	})
	if !errors.Is(err, domain.ErrPropertyAlreadyExists) {
		t.Errorf("got %v, want ErrPropertyAlreadyExists", err)
	}

	got, err := env.properties.Get(env.ctx, "lisbon-01")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.SharePrice.Equal(dec("50")) {
		t.Errorf("got share price %s, want 50", got.SharePrice)
	}
}

func TestPropertyService_RegisterValidation(t *testing.T) {
	env := newTestEnv()

	tests := []struct {
		name string
		req  RegisterPropertyRequest
		want string
	}{
		{"bad id", RegisterPropertyRequest{PropertyID: "has space", TotalShares: 1, SharePrice: dec("1")}, "property_id"},
		{"zero shares", RegisterPropertyRequest{PropertyID: "p1", TotalShares: 0, SharePrice: dec("1")}, "total_shares"},
		{"zero price", RegisterPropertyRequest{PropertyID: "p1", TotalShares: 1, SharePrice: dec("0")}, "share_price"},
		{"sub-cent price", RegisterPropertyRequest{PropertyID: "p1", TotalShares: 1, SharePrice: dec("1.005")}, "decimal places"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.properties.Register(env.ctx, tt.req)
			requireValidation(t, err, tt.want)
		})
	}
}

func TestAccountService_DepositWithdraw(t *testing.T) {
	env := newTestEnv()

	b, err := env.accounts.Deposit(env.ctx, MoneyMovementRequest{UserID: "u1", Amount: dec("100.25"), Reference: "wire 7781"})
	if err != nil {
		t.Fatalf("deposit: %v", err)
	}
	if !b.AvailableBalance.Equal(dec("100.25")) {
		t.Errorf("got %s, want 100.25", b.AvailableBalance)
	}

	_, err = env.accounts.Withdraw(env.ctx, MoneyMovementRequest{UserID: "u1", Amount: dec("200")})
	if !errors.Is(err, domain.ErrInsufficientFunds) {
		t.Errorf("got %v, want ErrInsufficientFunds", err)
	}

	_, err = env.accounts.Deposit(env.ctx, MoneyMovementRequest{UserID: "u1", Amount: dec("-1")})
	requireValidation(t, err, "amount")

	_, err = env.accounts.Deposit(env.ctx, MoneyMovementRequest{UserID: "u1", Amount: dec("1"), Reference: "line\nbreak"})
	requireValidation(t, err, "reference")
}

func TestAccountService_Transactions(t *testing.T) {
	env := newTestEnv()
	for i := 0; i < 3; i++ {
		if _, err := env.accounts.Deposit(env.ctx, MoneyMovementRequest{UserID: "u1", Amount: dec("1")}); err != nil {
			t.Fatalf("deposit: %v", err)
		}
	}

	page, err := env.accounts.Transactions(env.ctx, "u1", 1, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if page.Total != 3 || len(page.Transactions) != 2 {
		t.Errorf("got total=%d len=%d, want 3/2", page.Total, len(page.Transactions))
	}

	_, err = env.accounts.Transactions(env.ctx, "u1", 0, 10)
	requireValidation(t, err, "page")
	_, err = env.accounts.Transactions(env.ctx, "u1", 1, 101)
	requireValidation(t, err, "limit")
}

func TestAccountService_SetVerificationRejectsUnknownStatus(t *testing.T) {
	env := newTestEnv()

	err := env.accounts.SetVerification(env.ctx, "u1", domain.VerificationStatus("maybe"))
	requireValidation(t, err, "Invalid verification status")
}

func TestInvestmentService_Invest(t *testing.T) {
	env := newTestEnv()
	env.approvedUser(t, "alice", "1000")
	if _, err := env.properties.Register(env.ctx, RegisterPropertyRequest{PropertyID: "p1", TotalShares: 100, SharePrice: dec("10")}); err != nil {
		t.Fatalf("register: %v", err)
	}

	req := InvestRequest{UserID: "alice", PropertyID: "p1", Shares: 5, PricePerShare: dec("10"), IdempotencyKey: "order-1"}
	res, err := env.invest.Invest(env.ctx, req)
	if err != nil {
		t.Fatalf("invest: %v", err)
	}
	if res.Replayed {
		t.Error("first call must not be a replay")
	}

	again, err := env.invest.Invest(env.ctx, req)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !again.Replayed || again.Investment.InvestmentID != res.Investment.InvestmentID {
		t.Errorf("replay returned %+v, want original investment", again)
	}

	got, err := env.invest.Get(env.ctx, res.Investment.InvestmentID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Shares != 5 {
		t.Errorf("got shares %d, want 5", got.Shares)
	}

	_, err = env.invest.Get(env.ctx, "nope")
	if !errors.Is(err, domain.ErrInvestmentNotFound) {
		t.Errorf("got %v, want ErrInvestmentNotFound", err)
	}
}

func TestInvestmentService_Validation(t *testing.T) {
	env := newTestEnv()
	base := InvestRequest{UserID: "alice", PropertyID: "p1", Shares: 1, PricePerShare: dec("10"), IdempotencyKey: "k"}

	tests := []struct {
		name   string
		mutate func(*InvestRequest)
		want   string
	}{
		{"missing key", func(r *InvestRequest) { r.IdempotencyKey = "" }, "Idempotency-Key"},
		{"key with space", func(r *InvestRequest) { r.IdempotencyKey = "a b" }, "Idempotency-Key"},
		{"key too long", func(r *InvestRequest) { r.IdempotencyKey = strings.Repeat("k", 129) }, "Idempotency-Key"},
		{"negative shares", func(r *InvestRequest) { r.Shares = -2 }, "shares"},
		{"bad user", func(r *InvestRequest) { r.UserID = "" }, "user_id"},
		{"bad price", func(r *InvestRequest) { r.PricePerShare = dec("0.001") }, "price_per_share"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := base
			tt.mutate(&req)
			_, err := env.invest.Invest(env.ctx, req)
			requireValidation(t, err, tt.want)
		})
	}
}

func TestMarketService_Flow(t *testing.T) {
	env := newTestEnv()
	env.approvedUser(t, "seller", "1000")
	env.approvedUser(t, "buyer", "1000")
	if _, err := env.properties.Register(env.ctx, RegisterPropertyRequest{PropertyID: "p1", TotalShares: 100, SharePrice: dec("10")}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := env.invest.Invest(env.ctx, InvestRequest{UserID: "seller", PropertyID: "p1", Shares: 20, PricePerShare: dec("10"), IdempotencyKey: "s-1"}); err != nil {
		t.Fatalf("invest: %v", err)
	}

	expires := time.Now().Add(time.Hour)
	sr, err := env.market.CreateSellRequest(env.ctx, CreateSellRequestRequest{
		SellerID: "seller", PropertyID: "p1", Shares: 10, PricePerShare: dec("15"), ExpiresAt: &expires,
	})
	if err != nil {
		t.Fatalf("create sell request: %v", err)
	}

	hold, err := env.market.PlaceHold(env.ctx, PlaceHoldRequest{BuyerID: "buyer", SellRequestID: sr.SellRequestID, Shares: 4})
	if err != nil {
		t.Fatalf("place hold: %v", err)
	}

	_, err = env.market.ConfirmHold(env.ctx, ConfirmHoldRequest{HoldID: hold.HoldID, ActorID: "buyer", Party: "both"})
	requireValidation(t, err, "Invalid party")

	if _, err := env.market.ConfirmHold(env.ctx, ConfirmHoldRequest{HoldID: hold.HoldID, ActorID: "buyer", Party: domain.PartyBuyer}); err != nil {
		t.Fatalf("buyer confirm: %v", err)
	}
	settled, err := env.market.ConfirmHold(env.ctx, ConfirmHoldRequest{HoldID: hold.HoldID, ActorID: "seller", Party: domain.PartySeller})
	if err != nil {
		t.Fatalf("seller confirm: %v", err)
	}
	if settled.Status != domain.HoldStatusSettled {
		t.Errorf("got status %s, want settled", settled.Status)
	}

	pos, err := env.accounts.Position(env.ctx, "buyer", "p1")
	if err != nil {
		t.Fatalf("position: %v", err)
	}
	if pos.Shares != 4 {
		t.Errorf("got buyer shares %d, want 4", pos.Shares)
	}

	cancelled, err := env.market.CancelSellRequest(env.ctx, "seller", sr.SellRequestID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != domain.SellRequestStatusCancelled {
		t.Errorf("got status %s, want cancelled", cancelled.Status)
	}
}

func TestMarketService_CreateSellRequestRequiresExpiry(t *testing.T) {
	env := newTestEnv()

	_, err := env.market.CreateSellRequest(env.ctx, CreateSellRequestRequest{
		SellerID: "seller", PropertyID: "p1", Shares: 1, PricePerShare: dec("1"),
	})
	requireValidation(t, err, "expires_at")
}

func TestAdminService_SweepAndRebuild(t *testing.T) {
	env := newTestEnv()

	res, ran, err := env.admin.Sweep(env.ctx)
	if err != nil {
		t.Fatalf("sweep: %v", err)
	}
	if !ran || res.HoldsExpired != 0 {
		t.Errorf("got ran=%v result=%+v", ran, res)
	}

	changed, err := env.admin.RebuildPositions(env.ctx)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if changed != 0 {
		t.Errorf("got %d changed, want 0", changed)
	}
}
