package domain

import (
	"context"
	"errors"
)

type CreateSubscriptionRequest struct {
	PlanID       string       `json:"plan_id"`
	BillingCycle BillingCycle `json:"billing_cycle"`
}

type CancelSubscriptionRequest struct {
	Reason string `json:"reason"`
}

type Service interface {
	// Get serves the current subscription through the tier chain:
	// persistent store, then the remote authority on staleness, then the
	// last-known fallback value when both are unavailable. Returns nil when
	// the user has no subscription.
	Get(ctx context.Context) (*UserSubscription, error)

	// Create provisions a subscription with the remote authority and caches
	// it locally.
	Create(ctx context.Context, req CreateSubscriptionRequest) (*UserSubscription, error)

	// Cancel cancels with the remote authority and retires the cached row.
	Cancel(ctx context.Context, req CancelSubscriptionRequest) (*UserSubscription, error)

	// SetAutoRenew toggles auto-renewal with the remote authority.
	SetAutoRenew(ctx context.Context, enabled bool) (*UserSubscription, error)

	// Overwrite replaces the cached subscription with the authority's
	// canonical record. Used by sync reconciliation.
	Overwrite(ctx context.Context, canonical *UserSubscription) error

	// ApplyUpdate merges a subscription broadcast from a sibling context,
	// last-write-wins by timestamp.
	ApplyUpdate(ctx context.Context, incoming UserSubscription) error
}

var (
	ErrInvalidUser          = errors.New("invalid_user")
	ErrInvalidPlan          = errors.New("invalid_plan")
	ErrInvalidBillingCycle  = errors.New("invalid_billing_cycle")
	ErrNoSubscription       = errors.New("no_subscription")
	ErrSubscriptionInactive = errors.New("subscription_inactive")
)
