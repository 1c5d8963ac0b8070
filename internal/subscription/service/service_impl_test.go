package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/sparkmatch/sparkmatch/internal/broadcast"
	"github.com/sparkmatch/sparkmatch/internal/cache"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	"github.com/sparkmatch/sparkmatch/internal/kvcache"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type authorityStub struct {
	mu sync.Mutex

	subscription *remote.Subscription
	subErr       error
	getCalls     int
}

func (a *authorityStub) GetSubscription(context.Context, int64) (*remote.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.getCalls++
	if a.subErr != nil {
		return nil, a.subErr
	}
	return a.subscription, nil
}

func (a *authorityStub) CreateSubscription(ctx context.Context, userID int64, planID, cycle string) (*remote.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subErr != nil {
		return nil, a.subErr
	}
	sub := &remote.Subscription{
		ID:           "4242",
		UserID:       userID,
		Tier:         planID,
		Status:       "active",
		BillingCycle: cycle,
		StartDate:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
		AutoRenew:    true,
	}
	a.subscription = sub
	return sub, nil
}

func (a *authorityStub) CancelSubscription(ctx context.Context, userID int64, reason string) (*remote.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subErr != nil {
		return nil, a.subErr
	}
	sub := *a.subscription
	sub.Status = "cancelled"
	sub.CancelReason = reason
	a.subscription = &sub
	return &sub, nil
}

func (a *authorityStub) UpdateAutoRenew(ctx context.Context, userID int64, enabled bool) (*remote.Subscription, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.subErr != nil {
		return nil, a.subErr
	}
	sub := *a.subscription
	sub.AutoRenew = enabled
	a.subscription = &sub
	return &sub, nil
}

func (a *authorityStub) GetBalance(context.Context, int64) (remote.Balance, error) {
	return remote.Balance{}, nil
}
func (a *authorityStub) Deduct(context.Context, int64, int64, string) (remote.Balance, error) {
	return remote.Balance{}, nil
}
func (a *authorityStub) Credit(context.Context, int64, int64, string) (remote.Balance, error) {
	return remote.Balance{}, nil
}
func (a *authorityStub) CreatePaymentOrder(context.Context, int64, string, map[string]any) (remote.PaymentOrder, error) {
	return remote.PaymentOrder{}, nil
}
func (a *authorityStub) VerifyPayment(context.Context, string, string, string) (bool, error) {
	return false, nil
}

type subHarness struct {
	svc       subscriptiondomain.Service
	db        *gorm.DB
	node      *snowflake.Node
	authority *authorityStub
	watcher   *connectivity.Watcher
	clk       *clock.FakeClock
}

func newSubHarness(t *testing.T, name string) *subHarness {
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

	if err := db.AutoMigrate(&subscriptiondomain.UserSubscription{}); err != nil {
		t.Fatal(err)
	}

	node, _ := snowflake.NewNode(1)
	logger := zap.NewNop()
	clk := clock.NewFakeClock(time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC))
	authority := &authorityStub{}
	watcher := connectivity.NewWatcher(logger)

	svc := NewService(ServiceParam{
		DB:            db,
		Log:           logger,
		GenID:         node,
		Clock:         clk,
		ResolverCache: cache.NewLedgerResolverCache(),
		Fallback:      kvcache.NewMemoryStore(),
		Hub:           broadcast.NewHub(),
		Authority:     authority,
		Watcher:       watcher,
	})

	return &subHarness{svc: svc, db: db, node: node, authority: authority, watcher: watcher, clk: clk}
}

func subCtx() context.Context {
	return usercontext.WithUserID(context.Background(), 7)
}

func seedSubscription(t *testing.T, h *subHarness, status subscriptiondomain.SubscriptionStatus, endDate time.Time) subscriptiondomain.UserSubscription {
	t.Helper()
	row := subscriptiondomain.UserSubscription{
		ID:           h.node.Generate(),
		UserID:       7,
		Tier:         "gold",
		Status:       status,
		BillingCycle: subscriptiondomain.BillingCycleMonthly,
		StartDate:    endDate.AddDate(0, -1, 0),
		EndDate:      endDate,
		AutoRenew:    true,
		FetchedAt:    h.clk.Now(),
		UpdatedAt:    h.clk.Now(),
	}
	if err := h.db.Create(&row).Error; err != nil {
		t.Fatal(err)
	}
	return row
}

func TestGet_ServesFreshLocalWithoutRemote(t *testing.T) {
	h := newSubHarness(t, "sub_fresh")

	seedSubscription(t, h, subscriptiondomain.SubscriptionStatusActive, h.clk.Now().AddDate(0, 0, 10))

	got, err := h.svc.Get(subCtx())
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, got.Status)
	}
	assert.Equal(t, 0, h.authority.getCalls)
}

func TestGet_NeverServesExpiredAsActive(t *testing.T) {
	h := newSubHarness(t, "sub_expired")

	// Row still says active but its end date has passed, and the remote
	// authority cannot be reached to confirm.
	seedSubscription(t, h, subscriptiondomain.SubscriptionStatusActive, h.clk.Now().AddDate(0, 0, -1))
	h.authority.mu.Lock()
	h.authority.subErr = remote.ErrUnavailable
	h.authority.mu.Unlock()

	got, err := h.svc.Get(subCtx())
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, subscriptiondomain.SubscriptionStatusExpired, got.Status)
	}
	assert.False(t, h.watcher.Online())
}

func TestGet_RefetchesStaleFromRemote(t *testing.T) {
	h := newSubHarness(t, "sub_stale")

	seedSubscription(t, h, subscriptiondomain.SubscriptionStatusActive, h.clk.Now().AddDate(0, 0, -1))
	h.authority.mu.Lock()
	h.authority.subscription = &remote.Subscription{
		ID:           "5151",
		UserID:       7,
		Tier:         "platinum",
		Status:       "active",
		BillingCycle: "yearly",
		StartDate:    h.clk.Now().AddDate(0, -1, 0),
		EndDate:      h.clk.Now().AddDate(0, 11, 0),
		AutoRenew:    true,
	}
	h.authority.mu.Unlock()

	got, err := h.svc.Get(subCtx())
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, "platinum", got.Tier)
		assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, got.Status)
	}
	assert.Equal(t, 1, h.authority.getCalls)
}

func TestGet_NoSubscriptionAnywhere(t *testing.T) {
	h := newSubHarness(t, "sub_none")

	got, err := h.svc.Get(subCtx())
	assert.NoError(t, err)
	assert.Nil(t, got)
}

func TestCreate_ValidatesPlanAndCycle(t *testing.T) {
	h := newSubHarness(t, "sub_create_validate")

	_, err := h.svc.Create(subCtx(), subscriptiondomain.CreateSubscriptionRequest{
		PlanID:       "diamond",
		BillingCycle: subscriptiondomain.BillingCycleMonthly,
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidPlan)

	_, err = h.svc.Create(subCtx(), subscriptiondomain.CreateSubscriptionRequest{
		PlanID:       "gold",
		BillingCycle: "weekly",
	})
	assert.ErrorIs(t, err, subscriptiondomain.ErrInvalidBillingCycle)
}

func TestCreate_PersistsRemoteResult(t *testing.T) {
	h := newSubHarness(t, "sub_create")

	got, err := h.svc.Create(subCtx(), subscriptiondomain.CreateSubscriptionRequest{
		PlanID:       "gold",
		BillingCycle: subscriptiondomain.BillingCycleMonthly,
	})
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, subscriptiondomain.SubscriptionStatusActive, got.Status)
	}

	var count int64
	h.db.Model(&subscriptiondomain.UserSubscription{}).Where("user_id = ?", 7).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCancel_RequiresExistingSubscription(t *testing.T) {
	h := newSubHarness(t, "sub_cancel_none")

	_, err := h.svc.Cancel(subCtx(), subscriptiondomain.CancelSubscriptionRequest{Reason: "too pricey"})
	assert.ErrorIs(t, err, subscriptiondomain.ErrNoSubscription)
}

func TestCancel_RecordsReason(t *testing.T) {
	h := newSubHarness(t, "sub_cancel")

	_, err := h.svc.Create(subCtx(), subscriptiondomain.CreateSubscriptionRequest{
		PlanID:       "gold",
		BillingCycle: subscriptiondomain.BillingCycleMonthly,
	})
	assert.NoError(t, err)

	h.clk.Advance(time.Minute)
	got, err := h.svc.Cancel(subCtx(), subscriptiondomain.CancelSubscriptionRequest{Reason: "too pricey"})
	assert.NoError(t, err)
	if assert.NotNil(t, got) {
		assert.Equal(t, subscriptiondomain.SubscriptionStatusCancelled, got.Status)
		assert.NotNil(t, got.CancelledAt)
	}
}

func TestApplyUpdate_LastWriteWins(t *testing.T) {
	h := newSubHarness(t, "sub_lww")

	row := seedSubscription(t, h, subscriptiondomain.SubscriptionStatusActive, h.clk.Now().AddDate(0, 0, 10))

	older := row
	older.AutoRenew = false
	older.UpdatedAt = row.UpdatedAt.Add(-time.Minute)
	assert.NoError(t, h.svc.ApplyUpdate(subCtx(), older))

	var current subscriptiondomain.UserSubscription
	assert.NoError(t, h.db.First(&current, "id = ?", row.ID).Error)
	assert.True(t, current.AutoRenew)

	newer := row
	newer.AutoRenew = false
	newer.UpdatedAt = row.UpdatedAt.Add(time.Minute)
	assert.NoError(t, h.svc.ApplyUpdate(subCtx(), newer))

	assert.NoError(t, h.db.First(&current, "id = ?", row.ID).Error)
	assert.False(t, current.AutoRenew)
}
