// Package migration creates the ledger tables on startup so the module is
// usable out of the box against an empty database, whatever the dialect.
package migration

import (
	"errors"

	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	"gorm.io/gorm"
)

func RunMigrations(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	return db.AutoMigrate(
		&balancedomain.CreditBalance{},
		&usagedomain.UsageRecord{},
		&subscriptiondomain.UserSubscription{},
		&transactiondomain.Transaction{},
		&pendingdomain.PendingMutation{},
	)
}
