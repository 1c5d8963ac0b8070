package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/broadcast"
	"github.com/sparkmatch/sparkmatch/internal/cache"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	"github.com/sparkmatch/sparkmatch/internal/kvcache"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	pendingservice "github.com/sparkmatch/sparkmatch/internal/pending/service"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	usageservice "github.com/sparkmatch/sparkmatch/internal/usage/service"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// -- Stubs --

type authorityStub struct {
	mu sync.Mutex

	balance    remote.Balance
	balanceErr error
	deductErr  error
	creditErr  error

	deducts int
	credits int
	keys    []string
}

func (a *authorityStub) GetBalance(ctx context.Context, userID int64) (remote.Balance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.balanceErr != nil {
		return remote.Balance{}, a.balanceErr
	}
	return a.balance, nil
}

func (a *authorityStub) Deduct(ctx context.Context, userID int64, amount int64, key string) (remote.Balance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.deductErr != nil {
		return remote.Balance{}, a.deductErr
	}
	a.deducts++
	a.keys = append(a.keys, key)
	a.balance.Balance -= amount
	return a.balance, nil
}

func (a *authorityStub) Credit(ctx context.Context, userID int64, amount int64, key string) (remote.Balance, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.creditErr != nil {
		return remote.Balance{}, a.creditErr
	}
	a.credits++
	a.keys = append(a.keys, key)
	a.balance.Balance += amount
	return a.balance, nil
}

func (a *authorityStub) GetSubscription(context.Context, int64) (*remote.Subscription, error) {
	return nil, nil
}
func (a *authorityStub) CreateSubscription(context.Context, int64, string, string) (*remote.Subscription, error) {
	return nil, nil
}
func (a *authorityStub) CancelSubscription(context.Context, int64, string) (*remote.Subscription, error) {
	return nil, nil
}
func (a *authorityStub) UpdateAutoRenew(context.Context, int64, bool) (*remote.Subscription, error) {
	return nil, nil
}
func (a *authorityStub) CreatePaymentOrder(context.Context, int64, string, map[string]any) (remote.PaymentOrder, error) {
	return remote.PaymentOrder{}, nil
}
func (a *authorityStub) VerifyPayment(context.Context, string, string, string) (bool, error) {
	return false, nil
}

// -- Harness --

type balanceHarness struct {
	svc        balancedomain.Service
	db         *gorm.DB
	authority  *authorityStub
	watcher    *connectivity.Watcher
	fallback   kvcache.Store
	pendingSvc pendingdomain.Service
	clk        *clock.FakeClock
}

func newBalanceHarness(t *testing.T, name string) *balanceHarness {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&balancedomain.CreditBalance{},
		&usagedomain.UsageRecord{},
		&pendingdomain.PendingMutation{},
	); err != nil {
		t.Fatal(err)
	}

	node, _ := snowflake.NewNode(1)
	logger := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	authority := &authorityStub{balanceErr: remote.ErrNotFound}
	watcher := connectivity.NewWatcher(logger)
	fallback := kvcache.NewMemoryStore()

	pendingSvc := pendingservice.NewService(pendingservice.ServiceParam{
		DB: db, Log: logger, GenID: node, Clock: clk,
	})
	usageSvc := usageservice.NewService(usageservice.ServiceParam{
		DB: db, Log: logger, GenID: node, Clock: clk,
	})

	svc := NewService(ServiceParam{
		DB:            db,
		Log:           logger,
		Clock:         clk,
		ResolverCache: cache.NewLedgerResolverCache(),
		Fallback:      fallback,
		Hub:           broadcast.NewHub(),
		Authority:     authority,
		PendingSvc:    pendingSvc,
		UsageSvc:      usageSvc,
		Watcher:       watcher,
	})

	return &balanceHarness{
		svc:        svc,
		db:         db,
		authority:  authority,
		watcher:    watcher,
		fallback:   fallback,
		pendingSvc: pendingSvc,
		clk:        clk,
	}
}

func userCtx() context.Context {
	return usercontext.WithUserID(context.Background(), 7)
}

// -- Tests --

func TestDebit_OnlineConfirmsRemotely(t *testing.T) {
	h := newBalanceHarness(t, "balance_online")
	ctx := userCtx()

	h.authority.mu.Lock()
	h.authority.balanceErr = nil
	h.authority.balance = remote.Balance{UserID: 7, Balance: 100, LifetimeEarned: 100}
	h.authority.mu.Unlock()

	got, err := h.svc.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(100), got.Balance)

	h.clk.Advance(time.Second)
	updated, err := h.svc.Debit(ctx, balancedomain.DebitRequest{
		Amount:    30,
		UsageType: usagedomain.UsageTypeSpeedDate,
		TargetID:  "match_42",
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(70), updated.Balance)
	assert.Equal(t, int64(30), updated.LifetimeSpent)
	assert.True(t, updated.Consistent())

	assert.Equal(t, 1, h.authority.deducts)

	depth, err := h.pendingSvc.Depth(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), depth)

	var usageCount int64
	h.db.Model(&usagedomain.UsageRecord{}).Where("user_id = ?", 7).Count(&usageCount)
	assert.Equal(t, int64(1), usageCount)
}

func TestDebit_InsufficientBalanceRecordsNothing(t *testing.T) {
	h := newBalanceHarness(t, "balance_insufficient")
	ctx := userCtx()

	_, err := h.svc.Debit(ctx, balancedomain.DebitRequest{
		Amount:    10,
		UsageType: usagedomain.UsageTypeContactUnlock,
	})
	assert.ErrorIs(t, err, balancedomain.ErrInsufficientBalance)

	var usageCount int64
	h.db.Model(&usagedomain.UsageRecord{}).Count(&usageCount)
	assert.Equal(t, int64(0), usageCount)

	got, err := h.svc.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), got.Balance)
}

func TestDebit_OfflineQueuesMutation(t *testing.T) {
	h := newBalanceHarness(t, "balance_offline")
	ctx := userCtx()

	err := h.svc.Overwrite(ctx, balancedomain.CreditBalance{
		UserID:         7,
		Balance:        50,
		LifetimeEarned: 50,
		LastUpdated:    h.clk.Now(),
	})
	assert.NoError(t, err)

	h.watcher.SetOnline(false)
	h.clk.Advance(time.Second)

	updated, err := h.svc.Debit(ctx, balancedomain.DebitRequest{
		Amount:    20,
		UsageType: usagedomain.UsageTypeProfileBoost,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(30), updated.Balance)
	assert.Equal(t, 0, h.authority.deducts)

	queue, err := h.pendingSvc.Snapshot(ctx, 7)
	assert.NoError(t, err)
	if assert.Len(t, queue, 1) {
		assert.Equal(t, pendingdomain.OpTypeDeduct, queue[0].OpType)
		assert.Equal(t, int64(20), queue[0].Amount)
		assert.NotEmpty(t, queue[0].IdempotencyKey)
	}
}

func TestDebit_RemoteFailureQueuesAndGoesOffline(t *testing.T) {
	h := newBalanceHarness(t, "balance_remote_fail")
	ctx := userCtx()

	err := h.svc.Overwrite(ctx, balancedomain.CreditBalance{
		UserID:         7,
		Balance:        40,
		LifetimeEarned: 40,
		LastUpdated:    h.clk.Now(),
	})
	assert.NoError(t, err)

	h.authority.mu.Lock()
	h.authority.deductErr = remote.ErrUnavailable
	h.authority.mu.Unlock()

	h.clk.Advance(time.Second)
	updated, err := h.svc.Debit(ctx, balancedomain.DebitRequest{
		Amount:    15,
		UsageType: usagedomain.UsageTypeSuperLike,
	})
	assert.NoError(t, err)
	assert.Equal(t, int64(25), updated.Balance)

	assert.False(t, h.watcher.Online())

	depth, err := h.pendingSvc.Depth(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(1), depth)
}

func TestGet_FallbackServesLastKnownValue(t *testing.T) {
	h := newBalanceHarness(t, "balance_fallback")
	ctx := userCtx()

	cached := balancedomain.CreditBalance{
		UserID:         7,
		Balance:        77,
		LifetimeEarned: 77,
		LastUpdated:    h.clk.Now().Add(-time.Hour),
	}
	payload, _ := json.Marshal(cached)
	assert.NoError(t, h.fallback.Set(ctx, "balance:7", string(payload)))

	h.authority.mu.Lock()
	h.authority.balanceErr = remote.ErrUnavailable
	h.authority.mu.Unlock()

	got, err := h.svc.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(77), got.Balance)
	assert.False(t, h.watcher.Online())
}

func TestApplyUpdate_LastWriteWins(t *testing.T) {
	h := newBalanceHarness(t, "balance_lww")
	ctx := userCtx()

	base := h.clk.Now()
	err := h.svc.Overwrite(ctx, balancedomain.CreditBalance{
		UserID: 7, Balance: 60, LifetimeEarned: 60, LastUpdated: base,
	})
	assert.NoError(t, err)

	// Older frame loses.
	err = h.svc.ApplyUpdate(ctx, balancedomain.CreditBalance{
		UserID: 7, Balance: 10, LifetimeEarned: 10, LastUpdated: base.Add(-time.Minute),
	})
	assert.NoError(t, err)
	got, err := h.svc.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(60), got.Balance)

	// Newer frame wins.
	err = h.svc.ApplyUpdate(ctx, balancedomain.CreditBalance{
		UserID: 7, Balance: 45, LifetimeEarned: 60, LifetimeSpent: 15, LastUpdated: base.Add(time.Minute),
	})
	assert.NoError(t, err)
	got, err = h.svc.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(45), got.Balance)
}

func TestDebit_Validation(t *testing.T) {
	h := newBalanceHarness(t, "balance_validation")
	ctx := userCtx()

	_, err := h.svc.Debit(ctx, balancedomain.DebitRequest{Amount: 0, UsageType: "speed_date"})
	assert.ErrorIs(t, err, balancedomain.ErrInvalidAmount)

	_, err = h.svc.Debit(ctx, balancedomain.DebitRequest{Amount: 5, UsageType: "  "})
	assert.ErrorIs(t, err, balancedomain.ErrInvalidUsageType)

	_, err = h.svc.Debit(context.Background(), balancedomain.DebitRequest{Amount: 5, UsageType: "speed_date"})
	assert.ErrorIs(t, err, balancedomain.ErrInvalidUser)
}

func TestCredit_PersistsBeforeReturn(t *testing.T) {
	h := newBalanceHarness(t, "balance_credit")
	ctx := userCtx()

	_, err := h.svc.Get(ctx)
	assert.NoError(t, err)

	h.clk.Advance(time.Second)
	updated, err := h.svc.Credit(ctx, balancedomain.CreditRequest{Amount: 120, Source: "credit_purchase"})
	assert.NoError(t, err)
	assert.Equal(t, int64(120), updated.Balance)
	assert.Equal(t, int64(120), updated.LifetimeEarned)

	var row balancedomain.CreditBalance
	err = h.db.First(&row, "user_id = ?", 7).Error
	assert.NoError(t, err)
	assert.Equal(t, int64(120), row.Balance)
	assert.True(t, row.Consistent())
}

func TestBalanceInvariantAcrossOps(t *testing.T) {
	h := newBalanceHarness(t, "balance_consistency")
	ctx := userCtx()

	_, err := h.svc.Get(ctx)
	assert.NoError(t, err)

	_, err = h.svc.Credit(ctx, balancedomain.CreditRequest{Amount: 200})
	assert.NoError(t, err)
	for i := 0; i < 3; i++ {
		h.clk.Advance(time.Second)
		_, err = h.svc.Debit(ctx, balancedomain.DebitRequest{Amount: 25, UsageType: "speed_date"})
		assert.NoError(t, err)
	}

	got, err := h.svc.Get(ctx)
	assert.NoError(t, err)
	assert.Equal(t, int64(125), got.Balance)
	assert.Equal(t, int64(200), got.LifetimeEarned)
	assert.Equal(t, int64(75), got.LifetimeSpent)
	assert.True(t, got.Consistent())
}
