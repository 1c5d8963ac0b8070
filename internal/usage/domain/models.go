// Package domain contains the append-only record of credit-consuming events.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// Known usage types. The ledger accepts any non-empty type; these are the
// ones the app spends credits on today.
const (
	UsageTypeSpeedDate     = "speed_date"
	UsageTypeContactUnlock = "contact_unlock"
	UsageTypeProfileBoost  = "profile_boost"
	UsageTypeSuperLike     = "super_like"
)

// UsageRecord is one immutable ledger entry for a committed debit.
type UsageRecord struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    int64             `gorm:"not null;index:idx_usage_user_created,priority:1" json:"user_id"`
	UsageType string            `gorm:"type:text;not null;index" json:"usage_type"`
	Credits   int64             `gorm:"not null" json:"credits"`
	TargetID  *string           `gorm:"type:text" json:"target_id,omitempty"`
	Metadata  datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt time.Time         `gorm:"not null;index:idx_usage_user_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (UsageRecord) TableName() string { return "credit_usage" }
