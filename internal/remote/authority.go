// Package remote defines the contract with the remote authority, the final
// source of truth for balance and subscription state.
package remote

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrUnavailable marks transport failures. Callers queue the mutation
	// and retry on the next connectivity change instead of failing the user.
	ErrUnavailable = errors.New("remote_unavailable")
	ErrNotFound    = errors.New("remote_not_found")
	ErrRejected    = errors.New("remote_rejected")
)

type Balance struct {
	UserID         int64     `json:"user_id"`
	Balance        int64     `json:"balance"`
	LifetimeEarned int64     `json:"lifetime_earned"`
	LifetimeSpent  int64     `json:"lifetime_spent"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type Subscription struct {
	ID           string     `json:"id"`
	UserID       int64      `json:"user_id"`
	Tier         string     `json:"tier"`
	Status       string     `json:"status"`
	BillingCycle string     `json:"billing_cycle"`
	StartDate    time.Time  `json:"start_date"`
	EndDate      time.Time  `json:"end_date"`
	AutoRenew    bool       `json:"auto_renew"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CancelReason string     `json:"cancel_reason,omitempty"`
}

type PaymentOrder struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Authority is the abstract remote contract. All mutating calls accept an
// idempotency key; the authority treats re-delivery of a known key as a
// no-op, which is what makes at-least-once draining safe.
type Authority interface {
	GetBalance(ctx context.Context, userID int64) (Balance, error)
	Deduct(ctx context.Context, userID int64, amount int64, idempotencyKey string) (Balance, error)
	Credit(ctx context.Context, userID int64, amount int64, idempotencyKey string) (Balance, error)

	GetSubscription(ctx context.Context, userID int64) (*Subscription, error)
	CreateSubscription(ctx context.Context, userID int64, planID, cycle string) (*Subscription, error)
	CancelSubscription(ctx context.Context, userID int64, reason string) (*Subscription, error)
	UpdateAutoRenew(ctx context.Context, userID int64, enabled bool) (*Subscription, error)

	CreatePaymentOrder(ctx context.Context, amount int64, purchaseType string, metadata map[string]any) (PaymentOrder, error)
	VerifyPayment(ctx context.Context, orderID, paymentID, signature string) (bool, error)
}
