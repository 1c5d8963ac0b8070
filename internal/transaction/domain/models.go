// Package domain contains the payment-transaction state machine records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type TransactionStatus string

const (
	StatusPending  TransactionStatus = "pending"
	StatusSuccess  TransactionStatus = "success"
	StatusFailed   TransactionStatus = "failed"
	StatusRefunded TransactionStatus = "refunded"
)

type TransactionType string

const (
	TypeCreditPurchase TransactionType = "credit_purchase"
	TypeSubscription   TransactionType = "subscription"
)

// Transaction tracks one payment attempt from creation to settlement. The
// row is created pending before any gateway interaction so a crash
// mid-payment leaves a recoverable record; terminal rows are immutable.
type Transaction struct {
	ID               snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID           int64             `gorm:"not null;index:idx_txn_user_created,priority:1" json:"user_id"`
	Type             TransactionType   `gorm:"type:text;not null;index" json:"type"`
	Amount           int64             `gorm:"not null" json:"amount"`
	GST              int64             `gorm:"column:gst;not null" json:"gst"`
	TotalAmount      int64             `gorm:"not null" json:"total_amount"`
	Status           TransactionStatus `gorm:"type:text;not null;index" json:"status"`
	GatewayOrderID   *string           `gorm:"type:text;index" json:"gateway_order_id,omitempty"`
	GatewayPaymentID *string           `gorm:"type:text" json:"gateway_payment_id,omitempty"`
	GatewaySignature *string           `gorm:"type:text" json:"gateway_signature,omitempty"`
	FailureReason    *string           `gorm:"type:text" json:"failure_reason,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;index:idx_txn_user_created,priority:2" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (Transaction) TableName() string { return "transactions" }

// Terminal reports whether no further transition is permitted out of the
// status. A failed transaction stays failed; a new purchase starts a new row.
func (s TransactionStatus) Terminal() bool {
	return s == StatusFailed || s == StatusRefunded
}

// TransitionAllowed encodes the full state machine:
// pending -> success | failed, success -> refunded.
func TransitionAllowed(current, target TransactionStatus) bool {
	switch current {
	case StatusPending:
		return target == StatusSuccess || target == StatusFailed
	case StatusSuccess:
		return target == StatusRefunded
	default:
		return false
	}
}
