// Package syncer drains the pending mutation queue against the remote
// authority and reconciles local state with the authority's canonical
// records. A pass runs on startup and on every offline-to-online edge.
package syncer

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	"github.com/sparkmatch/sparkmatch/internal/config"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	obsmetrics "github.com/sparkmatch/sparkmatch/internal/observability/metrics"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	subscriptionservice "github.com/sparkmatch/sparkmatch/internal/subscription/service"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type EngineParam struct {
	fx.In

	Log             *zap.Logger
	Config          config.Config
	Clock           clock.Clock
	GenID           *snowflake.Node
	Authority       remote.Authority
	Watcher         *connectivity.Watcher
	PendingSvc      pendingdomain.Service
	BalanceSvc      balancedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Metrics         *obsmetrics.Metrics `optional:"true"`
}

type Engine struct {
	log             *zap.Logger
	userID          int64
	clock           clock.Clock
	genID           *snowflake.Node
	authority       remote.Authority
	watcher         *connectivity.Watcher
	pendingSvc      pendingdomain.Service
	balanceSvc      balancedomain.Service
	subscriptionSvc subscriptiondomain.Service
	metrics         *obsmetrics.Metrics

	syncing atomic.Bool
}

func NewEngine(p EngineParam) *Engine {
	e := &Engine{
		log:             p.Log.Named("syncer"),
		userID:          p.Config.UserID,
		clock:           p.Clock,
		genID:           p.GenID,
		authority:       p.Authority,
		watcher:         p.Watcher,
		pendingSvc:      p.PendingSvc,
		balanceSvc:      p.BalanceSvc,
		subscriptionSvc: p.SubscriptionSvc,
		metrics:         p.Metrics,
	}
	e.watcher.OnChange(func(online bool) {
		if online {
			go func() {
				if err := e.SyncNow(context.Background()); err != nil {
					e.log.Warn("sync pass failed", zap.Error(err))
				}
			}()
		}
	})
	return e
}

// SyncNow runs one full pass: drain the pending queue in FIFO order, then
// reconcile balance and subscription with the authority. Concurrent calls
// collapse into the running pass.
func (e *Engine) SyncNow(ctx context.Context) error {
	if !e.syncing.CompareAndSwap(false, true) {
		return nil
	}
	defer e.syncing.Store(false)

	ctx = usercontext.WithUserID(ctx, e.userID)
	if err := e.drain(ctx); err != nil {
		return err
	}
	return e.reconcile(ctx)
}

// drain pushes queued mutations oldest first and stops at the first failure
// so ordering is preserved for the next pass.
func (e *Engine) drain(ctx context.Context) error {
	queue, err := e.pendingSvc.Snapshot(ctx, e.userID)
	if err != nil {
		return err
	}
	if len(queue) == 0 {
		return nil
	}
	e.log.Info("draining pending mutations", zap.Int("depth", len(queue)))

	for _, mutation := range queue {
		if e.pendingSvc.RecentlyApplied(mutation.IdempotencyKey) {
			// Pushed by an earlier pass that died before removal.
			if err := e.pendingSvc.Remove(ctx, mutation); err != nil {
				return err
			}
			continue
		}

		if err := e.push(ctx, mutation); err != nil {
			if errors.Is(err, remote.ErrUnavailable) {
				e.watcher.ReportFailure()
			}
			if rerr := e.pendingSvc.MarkRetry(ctx, mutation); rerr != nil {
				e.log.Warn("failed to record retry", zap.Error(rerr))
			}
			e.metrics.RecordDrainFailure()
			e.log.Warn("drain stopped",
				zap.String("idempotency_key", mutation.IdempotencyKey),
				zap.Error(err))
			return err
		}

		if err := e.pendingSvc.Remove(ctx, mutation); err != nil {
			return err
		}
		e.metrics.RecordDrained()
	}
	return nil
}

func (e *Engine) push(ctx context.Context, mutation *pendingdomain.PendingMutation) error {
	var err error
	switch mutation.OpType {
	case pendingdomain.OpTypeDeduct:
		_, err = e.authority.Deduct(ctx, mutation.UserID, mutation.Amount, mutation.IdempotencyKey)
	case pendingdomain.OpTypeCredit:
		_, err = e.authority.Credit(ctx, mutation.UserID, mutation.Amount, mutation.IdempotencyKey)
	default:
		return pendingdomain.ErrInvalidOpType
	}
	// The authority treats a replayed idempotency key as already applied,
	// which counts as success here.
	if errors.Is(err, remote.ErrRejected) && mutation.RetryCount > 0 {
		e.log.Info("mutation rejected on retry, treating as applied",
			zap.String("idempotency_key", mutation.IdempotencyKey))
		return nil
	}
	return err
}

// reconcile overwrites local state with the authority's records. The remote
// value wins over any optimistic local result.
func (e *Engine) reconcile(ctx context.Context) error {
	bal, err := e.authority.GetBalance(ctx, e.userID)
	switch {
	case err == nil:
		canonical := balancedomain.CreditBalance{
			UserID:         bal.UserID,
			Balance:        bal.Balance,
			LifetimeEarned: bal.LifetimeEarned,
			LifetimeSpent:  bal.LifetimeSpent,
			LastUpdated:    bal.UpdatedAt,
		}
		if canonical.UserID == 0 {
			canonical.UserID = e.userID
		}
		if err := e.balanceSvc.Overwrite(ctx, canonical); err != nil {
			return err
		}
		e.metrics.RecordReconciliation()
	case errors.Is(err, remote.ErrNotFound):
		// The authority has never seen this user; local state stands.
	default:
		if errors.Is(err, remote.ErrUnavailable) {
			e.watcher.ReportFailure()
		}
		return err
	}

	sub, err := e.authority.GetSubscription(ctx, e.userID)
	switch {
	case err == nil && sub == nil:
		return e.subscriptionSvc.Overwrite(ctx, nil)
	case err == nil:
		row := subscriptionservice.FromRemote(e.genID, *sub, e.clock.Now())
		return e.subscriptionSvc.Overwrite(ctx, &row)
	case errors.Is(err, remote.ErrNotFound):
		return e.subscriptionSvc.Overwrite(ctx, nil)
	default:
		if errors.Is(err, remote.ErrUnavailable) {
			e.watcher.ReportFailure()
		}
		return err
	}
}
