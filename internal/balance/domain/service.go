package domain

import (
	"context"
	"errors"
)

type DebitRequest struct {
	Amount    int64          `json:"amount"`
	UsageType string         `json:"usage_type"`
	TargetID  string         `json:"target_id,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

type CreditRequest struct {
	Amount int64  `json:"amount"`
	Source string `json:"source,omitempty"`
}

type Service interface {
	// Get serves the balance through the tier chain: memory cache, then the
	// persistent store, then the remote authority (seeding both local tiers),
	// then the last-known fallback value.
	Get(ctx context.Context) (CreditBalance, error)

	// Debit applies an optimistic local debit and records the usage event in
	// the same storage transaction. The remote push happens after commit;
	// if it cannot be confirmed the mutation is queued for sync.
	Debit(ctx context.Context, req DebitRequest) (CreditBalance, error)

	// Credit applies an optimistic local credit, persisted before returning.
	Credit(ctx context.Context, req CreditRequest) (CreditBalance, error)

	// Overwrite replaces local state with the authority's canonical balance.
	// Used by sync reconciliation, where the remote value wins.
	Overwrite(ctx context.Context, canonical CreditBalance) error

	// ApplyUpdate merges a balance broadcast from a sibling context,
	// last-write-wins by timestamp.
	ApplyUpdate(ctx context.Context, incoming CreditBalance) error
}

var (
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidUsageType    = errors.New("invalid_usage_type")
	ErrInsufficientBalance = errors.New("insufficient_balance")
	ErrStorageUnavailable  = errors.New("storage_unavailable")
)
