package cache

import (
	"strconv"
	"time"

	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
)

const (
	defaultBalanceTTL      = 30 * time.Second
	defaultSubscriptionTTL = 5 * time.Minute
)

// LedgerResolverCache stores hot-path reads for the balance and subscription
// tiers. It is the quick-access layer in front of the persistent store.
type LedgerResolverCache interface {
	GetBalance(userID int64) (balancedomain.CreditBalance, bool)
	SetBalance(userID int64, balance balancedomain.CreditBalance)
	InvalidateBalance(userID int64)
	GetSubscription(userID int64) (subscriptiondomain.UserSubscription, bool)
	SetSubscription(userID int64, sub subscriptiondomain.UserSubscription)
	InvalidateSubscription(userID int64)
}

type ledgerResolverCache struct {
	balances      Cache[string, balancedomain.CreditBalance]
	subscriptions Cache[string, subscriptiondomain.UserSubscription]
	balanceTTL    time.Duration
	subTTL        time.Duration
}

// NewLedgerResolverCache returns an in-memory cache tuned for ledger reads.
func NewLedgerResolverCache() LedgerResolverCache {
	return &ledgerResolverCache{
		balances:      NewTTLCache[string, balancedomain.CreditBalance](),
		subscriptions: NewTTLCache[string, subscriptiondomain.UserSubscription](),
		balanceTTL:    defaultBalanceTTL,
		subTTL:        defaultSubscriptionTTL,
	}
}

func (c *ledgerResolverCache) GetBalance(userID int64) (balancedomain.CreditBalance, bool) {
	return c.balances.Get(cacheKey(userID))
}

func (c *ledgerResolverCache) SetBalance(userID int64, balance balancedomain.CreditBalance) {
	if balance.UserID == 0 {
		return
	}
	c.balances.Set(cacheKey(userID), balance, c.balanceTTL)
}

func (c *ledgerResolverCache) InvalidateBalance(userID int64) {
	c.balances.Delete(cacheKey(userID))
}

func (c *ledgerResolverCache) GetSubscription(userID int64) (subscriptiondomain.UserSubscription, bool) {
	return c.subscriptions.Get(cacheKey(userID))
}

func (c *ledgerResolverCache) SetSubscription(userID int64, sub subscriptiondomain.UserSubscription) {
	if sub.ID == 0 {
		return
	}
	c.subscriptions.Set(cacheKey(userID), sub, c.subTTL)
}

func (c *ledgerResolverCache) InvalidateSubscription(userID int64) {
	c.subscriptions.Delete(cacheKey(userID))
}

func cacheKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
