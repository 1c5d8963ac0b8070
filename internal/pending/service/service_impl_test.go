package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func newPendingService(t *testing.T, name string) pendingdomain.Service {
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

	if err := db.AutoMigrate(&pendingdomain.PendingMutation{}); err != nil {
		t.Fatal(err)
	}

	node, _ := snowflake.NewNode(1)
	return NewService(ServiceParam{
		DB:    db,
		Log:   zap.NewNop(),
		GenID: node,
		Clock: clock.NewFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
	})
}

func TestEnqueue_Validation(t *testing.T) {
	svc := newPendingService(t, "pending_validate")
	ctx := context.Background()

	_, err := svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
		OpType: pendingdomain.OpTypeDeduct, Amount: 10, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, pendingdomain.ErrInvalidUser)

	_, err = svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
		UserID: 7, OpType: "upsert", Amount: 10, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, pendingdomain.ErrInvalidOpType)

	_, err = svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
		UserID: 7, OpType: pendingdomain.OpTypeDeduct, Amount: 0, IdempotencyKey: "k",
	})
	assert.ErrorIs(t, err, pendingdomain.ErrInvalidAmount)

	_, err = svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
		UserID: 7, OpType: pendingdomain.OpTypeDeduct, Amount: 10, IdempotencyKey: "  ",
	})
	assert.ErrorIs(t, err, pendingdomain.ErrMissingKey)
}

func TestSnapshot_PreservesEnqueueOrder(t *testing.T) {
	svc := newPendingService(t, "pending_order")
	ctx := context.Background()

	for _, key := range []string{"first", "second", "third"} {
		_, err := svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
			UserID:         7,
			OpType:         pendingdomain.OpTypeDeduct,
			Amount:         5,
			IdempotencyKey: key,
		})
		assert.NoError(t, err)
	}

	queue, err := svc.Snapshot(ctx, 7)
	assert.NoError(t, err)
	if assert.Len(t, queue, 3) {
		assert.Equal(t, "first", queue[0].IdempotencyKey)
		assert.Equal(t, "second", queue[1].IdempotencyKey)
		assert.Equal(t, "third", queue[2].IdempotencyKey)
	}
}

func TestRemove_RemembersAppliedKey(t *testing.T) {
	svc := newPendingService(t, "pending_remember")
	ctx := context.Background()

	mutation, err := svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
		UserID:         7,
		OpType:         pendingdomain.OpTypeCredit,
		Amount:         100,
		IdempotencyKey: "applied_once",
	})
	assert.NoError(t, err)

	assert.False(t, svc.RecentlyApplied("applied_once"))
	assert.NoError(t, svc.Remove(ctx, mutation))
	assert.True(t, svc.RecentlyApplied("applied_once"))

	depth, err := svc.Depth(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), depth)
}

func TestMarkRetry_BumpsCounter(t *testing.T) {
	svc := newPendingService(t, "pending_retry")
	ctx := context.Background()

	mutation, err := svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
		UserID:         7,
		OpType:         pendingdomain.OpTypeDeduct,
		Amount:         10,
		IdempotencyKey: "retry_me",
	})
	assert.NoError(t, err)

	assert.NoError(t, svc.MarkRetry(ctx, mutation))
	assert.NoError(t, svc.MarkRetry(ctx, mutation))

	queue, err := svc.Snapshot(ctx, 7)
	assert.NoError(t, err)
	if assert.Len(t, queue, 1) {
		assert.Equal(t, 2, queue[0].RetryCount)
	}
}

func TestDepth_ScopedToUser(t *testing.T) {
	svc := newPendingService(t, "pending_depth")
	ctx := context.Background()

	for i, user := range []int64{7, 7, 8} {
		_, err := svc.Enqueue(ctx, pendingdomain.EnqueueRequest{
			UserID:         user,
			OpType:         pendingdomain.OpTypeDeduct,
			Amount:         5,
			IdempotencyKey: string(rune('a' + i)),
		})
		assert.NoError(t, err)
	}

	depth, err := svc.Depth(ctx, 7)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), depth)
}
