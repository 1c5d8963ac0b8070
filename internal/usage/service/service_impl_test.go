package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newUsageHarness(t *testing.T, name string) (usagedomain.Service, *gorm.DB, *clock.FakeClock) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file:"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatal(err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatal(err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&usagedomain.UsageRecord{}); err != nil {
		t.Fatal(err)
	}

	node, _ := snowflake.NewNode(1)
	clk := clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clk,
	})
	return svc, db, clk
}

func usageCtx() context.Context {
	return usercontext.WithUserID(context.Background(), 7)
}

func record(t *testing.T, svc usagedomain.Service, db *gorm.DB, usageType string, credits int64) {
	t.Helper()
	_, err := svc.RecordInTx(usageCtx(), db, usagedomain.RecordRequest{
		UserID:    7,
		UsageType: usageType,
		Credits:   credits,
	})
	if err != nil {
		t.Fatal(err)
	}
}

func TestRecordInTx_Validation(t *testing.T) {
	svc, db, _ := newUsageHarness(t, "usage_validate")

	_, err := svc.RecordInTx(usageCtx(), db, usagedomain.RecordRequest{
		UsageType: "speed_date", Credits: 10,
	})
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUser)

	_, err = svc.RecordInTx(usageCtx(), db, usagedomain.RecordRequest{
		UserID: 7, UsageType: " ", Credits: 10,
	})
	assert.ErrorIs(t, err, usagedomain.ErrInvalidUsageType)

	_, err = svc.RecordInTx(usageCtx(), db, usagedomain.RecordRequest{
		UserID: 7, UsageType: "speed_date", Credits: 0,
	})
	assert.ErrorIs(t, err, usagedomain.ErrInvalidCredits)
}

func TestHistory_MostRecentFirst(t *testing.T) {
	svc, db, clk := newUsageHarness(t, "usage_history")

	record(t, svc, db, usagedomain.UsageTypeSpeedDate, 30)
	clk.Advance(time.Minute)
	record(t, svc, db, usagedomain.UsageTypeSuperLike, 5)
	clk.Advance(time.Minute)
	record(t, svc, db, usagedomain.UsageTypeContactUnlock, 50)

	records, err := svc.History(usageCtx(), 0)
	assert.NoError(t, err)
	if assert.Len(t, records, 3) {
		assert.Equal(t, usagedomain.UsageTypeContactUnlock, records[0].UsageType)
		assert.Equal(t, usagedomain.UsageTypeSpeedDate, records[2].UsageType)
	}

	limited, err := svc.History(usageCtx(), 2)
	assert.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestBreakdown_GroupsByTypeInsideWindow(t *testing.T) {
	svc, db, clk := newUsageHarness(t, "usage_breakdown")

	// Old spend outside the window must not count.
	record(t, svc, db, usagedomain.UsageTypeSpeedDate, 100)
	clk.Advance(40 * 24 * time.Hour)

	record(t, svc, db, usagedomain.UsageTypeSpeedDate, 30)
	record(t, svc, db, usagedomain.UsageTypeSpeedDate, 30)
	record(t, svc, db, usagedomain.UsageTypeSuperLike, 5)

	groups, err := svc.Breakdown(usageCtx(), 30)
	assert.NoError(t, err)
	if assert.Len(t, groups, 2) {
		assert.Equal(t, usagedomain.UsageTypeSpeedDate, groups[0].UsageType)
		assert.Equal(t, int64(60), groups[0].Credits)
		assert.Equal(t, int64(2), groups[0].Count)
		assert.Equal(t, usagedomain.UsageTypeSuperLike, groups[1].UsageType)
	}

	_, err = svc.Breakdown(usageCtx(), 0)
	assert.ErrorIs(t, err, usagedomain.ErrInvalidWindow)
}
