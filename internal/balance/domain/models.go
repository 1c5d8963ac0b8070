// Package domain contains the authoritative local record of a user's
// spendable credits.
package domain

import "time"

// CreditBalance is the single balance row per user. At every committed state
// Balance == LifetimeEarned - LifetimeSpent and Balance >= 0.
type CreditBalance struct {
	UserID         int64     `gorm:"primaryKey;column:user_id" json:"user_id"`
	Balance        int64     `gorm:"not null" json:"balance"`
	LifetimeEarned int64     `gorm:"not null" json:"lifetime_earned"`
	LifetimeSpent  int64     `gorm:"not null" json:"lifetime_spent"`
	LastUpdated    time.Time `gorm:"not null" json:"last_updated"`
}

// TableName sets the database table name.
func (CreditBalance) TableName() string { return "credit_balances" }

// Consistent reports whether the lifetime totals reconcile with the balance.
func (b CreditBalance) Consistent() bool {
	return b.Balance >= 0 && b.Balance == b.LifetimeEarned-b.LifetimeSpent
}
