// Package domain contains the cached subscription record and its freshness
// rules.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// SubscriptionStatus represents lifecycle states for a subscription.
type SubscriptionStatus string

const (
	SubscriptionStatusActive    SubscriptionStatus = "active"
	SubscriptionStatusExpired   SubscriptionStatus = "expired"
	SubscriptionStatusCancelled SubscriptionStatus = "cancelled"
	SubscriptionStatusPending   SubscriptionStatus = "pending"
)

type BillingCycle string

const (
	BillingCycleMonthly BillingCycle = "monthly"
	BillingCycleYearly  BillingCycle = "yearly"
)

// UserSubscription is the single current subscription for the user plus the
// freshness timestamp for the cache tier.
type UserSubscription struct {
	ID           snowflake.ID       `gorm:"primaryKey" json:"id"`
	UserID       int64              `gorm:"not null;index" json:"user_id"`
	Tier         string             `gorm:"type:text;not null" json:"tier"`
	Status       SubscriptionStatus `gorm:"type:text;not null;index" json:"status"`
	BillingCycle BillingCycle       `gorm:"type:text;not null" json:"billing_cycle"`
	StartDate    time.Time          `gorm:"not null" json:"start_date"`
	EndDate      time.Time          `gorm:"not null" json:"end_date"`
	AutoRenew    bool               `gorm:"not null;default:false" json:"auto_renew"`
	CancelledAt  *time.Time         `gorm:"" json:"cancelled_at,omitempty"`
	CancelReason *string            `gorm:"type:text" json:"cancel_reason,omitempty"`
	FetchedAt    time.Time          `gorm:"not null" json:"fetched_at"`
	UpdatedAt    time.Time          `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (UserSubscription) TableName() string { return "subscriptions" }

// Fresh reports whether the cached row can be served without a refetch:
// only an active subscription whose end date is still in the future.
func (s UserSubscription) Fresh(now time.Time) bool {
	return s.Status == SubscriptionStatusActive && s.EndDate.After(now)
}
