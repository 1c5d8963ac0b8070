package domain

import (
	"context"
	"errors"
)

type EnqueueRequest struct {
	UserID         int64
	OpType         OpType
	Amount         int64
	IdempotencyKey string
	Payload        map[string]any
}

type Service interface {
	// Enqueue appends a mutation that could not be confirmed remotely. The
	// queue is persisted, so draining is restartable across process restarts.
	Enqueue(ctx context.Context, req EnqueueRequest) (*PendingMutation, error)

	// Snapshot returns the user's queued mutations in FIFO order.
	Snapshot(ctx context.Context, userID int64) ([]*PendingMutation, error)

	// Remove deletes a mutation once the remote authority confirmed it and
	// remembers its idempotency key in the recently-applied set.
	Remove(ctx context.Context, mutation *PendingMutation) error

	// MarkRetry bumps the retry counter after a failed push attempt.
	MarkRetry(ctx context.Context, mutation *PendingMutation) error

	// RecentlyApplied reports whether the key was already pushed, guarding
	// against local double-application on top of the authority's own
	// idempotency handling.
	RecentlyApplied(key string) bool

	// Depth reports the number of queued mutations for the user.
	Depth(ctx context.Context, userID int64) (int64, error)
}

var (
	ErrInvalidUser   = errors.New("invalid_user")
	ErrInvalidOpType = errors.New("invalid_op_type")
	ErrInvalidAmount = errors.New("invalid_amount")
	ErrMissingKey    = errors.New("missing_idempotency_key")
)
