// Package domain contains the durable queue of balance mutations awaiting
// confirmation by the remote authority.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type OpType string

const (
	OpTypeDeduct OpType = "deduct"
	OpTypeCredit OpType = "credit"
)

// PendingMutation is one queued balance mutation. Snowflake ids are
// time-ordered, so ordering by id preserves FIFO per user across restarts.
type PendingMutation struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID         int64             `gorm:"not null;index:idx_pending_user_id,priority:1" json:"user_id"`
	OpType         OpType            `gorm:"type:text;not null" json:"op_type"`
	Amount         int64             `gorm:"not null" json:"amount"`
	IdempotencyKey string            `gorm:"type:text;not null;uniqueIndex" json:"idempotency_key"`
	Payload        datatypes.JSONMap `gorm:"type:jsonb" json:"payload,omitempty"`
	RetryCount     int               `gorm:"not null;default:0" json:"retry_count"`
	EnqueuedAt     time.Time         `gorm:"not null" json:"enqueued_at"`
}

// TableName sets the database table name.
func (PendingMutation) TableName() string { return "pending_payments" }
