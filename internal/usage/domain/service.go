package domain

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// BreakdownGroup aggregates spend for one usage type inside the window.
type BreakdownGroup struct {
	UsageType string `json:"usage_type"`
	Credits   int64  `json:"credits"`
	Count     int64  `json:"count"`
}

type RecordRequest struct {
	UserID    int64
	UsageType string
	Credits   int64
	TargetID  string
	Metadata  map[string]any
}

type Service interface {
	// RecordInTx appends a usage record inside the caller's storage
	// transaction. Only a committed debit may call it, which is what keeps
	// the ledger and the balance consistent.
	RecordInTx(ctx context.Context, tx *gorm.DB, req RecordRequest) (*UsageRecord, error)

	// History returns records most-recent-first, optionally limited.
	History(ctx context.Context, limit int) ([]*UsageRecord, error)

	// Breakdown groups spend by usage type over the trailing window.
	Breakdown(ctx context.Context, windowDays int) ([]BreakdownGroup, error)
}

var (
	ErrInvalidUser      = errors.New("invalid_user")
	ErrInvalidUsageType = errors.New("invalid_usage_type")
	ErrInvalidCredits   = errors.New("invalid_credits")
	ErrInvalidWindow    = errors.New("invalid_window")
)
