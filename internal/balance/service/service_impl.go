package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/broadcast"
	"github.com/sparkmatch/sparkmatch/internal/cache"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	"github.com/sparkmatch/sparkmatch/internal/kvcache"
	obsmetrics "github.com/sparkmatch/sparkmatch/internal/observability/metrics"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ServiceParam struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Clock         clock.Clock
	ResolverCache cache.LedgerResolverCache
	Fallback      kvcache.Store
	Hub           *broadcast.Hub
	Authority     remote.Authority
	PendingSvc    pendingdomain.Service
	UsageSvc      usagedomain.Service
	Watcher       *connectivity.Watcher
	Metrics       *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	resolverCache cache.LedgerResolverCache
	fallback      kvcache.Store
	hub           *broadcast.Hub
	authority     remote.Authority
	pendingSvc    pendingdomain.Service
	usageSvc      usagedomain.Service
	watcher       *connectivity.Watcher
	metrics       *obsmetrics.Metrics
}

func NewService(p ServiceParam) balancedomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("balance.service"),
		clock:         p.Clock,
		resolverCache: p.ResolverCache,
		fallback:      p.Fallback,
		hub:           p.Hub,
		authority:     p.Authority,
		pendingSvc:    p.PendingSvc,
		usageSvc:      p.UsageSvc,
		watcher:       p.Watcher,
		metrics:       p.Metrics,
	}
}

func (s *Service) Get(ctx context.Context) (balancedomain.CreditBalance, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return balancedomain.CreditBalance{}, balancedomain.ErrInvalidUser
	}

	if cached, ok := s.resolverCache.GetBalance(userID); ok {
		return cached, nil
	}

	var row balancedomain.CreditBalance
	err := s.db.WithContext(ctx).First(&row, "user_id = ?", userID).Error
	switch {
	case err == nil:
		s.resolverCache.SetBalance(userID, row)
		return row, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return s.seedFromRemote(ctx, userID)
	default:
		s.log.Warn("persistent store read failed", zap.Error(err))
		return s.readFallback(ctx, userID)
	}
}

// seedFromRemote fetches the authority's balance on a cold store and writes
// it through every local tier. A user unknown to the authority starts at the
// default (zero) balance.
func (s *Service) seedFromRemote(ctx context.Context, userID int64) (balancedomain.CreditBalance, error) {
	remoteBalance, err := s.authority.GetBalance(ctx, userID)
	if err != nil {
		if errors.Is(err, remote.ErrNotFound) {
			return s.createDefault(ctx, userID)
		}
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
			if fromFallback, ferr := s.readFallback(ctx, userID); ferr == nil {
				return fromFallback, nil
			}
			return s.createDefault(ctx, userID)
		}
		return balancedomain.CreditBalance{}, err
	}

	row := balancedomain.CreditBalance{
		UserID:         userID,
		Balance:        remoteBalance.Balance,
		LifetimeEarned: remoteBalance.LifetimeEarned,
		LifetimeSpent:  remoteBalance.LifetimeSpent,
		LastUpdated:    remoteBalance.UpdatedAt,
	}
	if row.LastUpdated.IsZero() {
		row.LastUpdated = s.clock.Now()
	}
	if err := s.upsert(ctx, s.db, row); err != nil {
		return balancedomain.CreditBalance{}, err
	}
	s.writeThrough(ctx, row)
	return row, nil
}

func (s *Service) createDefault(ctx context.Context, userID int64) (balancedomain.CreditBalance, error) {
	row := balancedomain.CreditBalance{
		UserID:      userID,
		LastUpdated: s.clock.Now(),
	}
	if err := s.upsert(ctx, s.db, row); err != nil {
		return balancedomain.CreditBalance{}, err
	}
	s.writeThrough(ctx, row)
	return row, nil
}

func (s *Service) readFallback(ctx context.Context, userID int64) (balancedomain.CreditBalance, error) {
	raw, err := s.fallback.Get(ctx, balanceKey(userID))
	if err != nil {
		return balancedomain.CreditBalance{}, balancedomain.ErrStorageUnavailable
	}
	var row balancedomain.CreditBalance
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return balancedomain.CreditBalance{}, balancedomain.ErrStorageUnavailable
	}
	s.resolverCache.SetBalance(userID, row)
	return row, nil
}

func (s *Service) Debit(ctx context.Context, req balancedomain.DebitRequest) (balancedomain.CreditBalance, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return balancedomain.CreditBalance{}, balancedomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return balancedomain.CreditBalance{}, balancedomain.ErrInvalidAmount
	}
	if strings.TrimSpace(req.UsageType) == "" {
		return balancedomain.CreditBalance{}, balancedomain.ErrInvalidUsageType
	}

	// Ensure the row exists before the mutation transaction.
	if _, err := s.Get(ctx); err != nil {
		return balancedomain.CreditBalance{}, err
	}

	var updated balancedomain.CreditBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row balancedomain.CreditBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "user_id = ?", userID).Error; err != nil {
			return err
		}

		if req.Amount > row.Balance {
			return balancedomain.ErrInsufficientBalance
		}

		row.Balance -= req.Amount
		row.LifetimeSpent += req.Amount
		row.LastUpdated = s.clock.Now()

		if err := tx.Save(&row).Error; err != nil {
			return err
		}

		if _, err := s.usageSvc.RecordInTx(ctx, tx, usagedomain.RecordRequest{
			UserID:    userID,
			UsageType: req.UsageType,
			Credits:   req.Amount,
			TargetID:  req.TargetID,
			Metadata:  req.Metadata,
		}); err != nil {
			return err
		}

		updated = row
		return nil
	})
	if err != nil {
		if errors.Is(err, balancedomain.ErrInsufficientBalance) {
			s.metrics.RecordInsufficientBalance()
		}
		return balancedomain.CreditBalance{}, err
	}

	s.metrics.RecordDebit(req.UsageType)
	s.writeThrough(ctx, updated)
	s.publish(updated)
	s.pushRemote(ctx, pendingdomain.OpTypeDeduct, userID, req.Amount)

	return updated, nil
}

func (s *Service) Credit(ctx context.Context, req balancedomain.CreditRequest) (balancedomain.CreditBalance, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return balancedomain.CreditBalance{}, balancedomain.ErrInvalidUser
	}
	if req.Amount <= 0 {
		return balancedomain.CreditBalance{}, balancedomain.ErrInvalidAmount
	}

	if _, err := s.Get(ctx); err != nil {
		return balancedomain.CreditBalance{}, err
	}

	var updated balancedomain.CreditBalance
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row balancedomain.CreditBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "user_id = ?", userID).Error; err != nil {
			return err
		}

		row.Balance += req.Amount
		row.LifetimeEarned += req.Amount
		row.LastUpdated = s.clock.Now()

		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		updated = row
		return nil
	})
	if err != nil {
		return balancedomain.CreditBalance{}, err
	}

	s.metrics.RecordCredit()
	s.writeThrough(ctx, updated)
	s.publish(updated)
	s.pushRemote(ctx, pendingdomain.OpTypeCredit, userID, req.Amount)

	return updated, nil
}

func (s *Service) Overwrite(ctx context.Context, canonical balancedomain.CreditBalance) error {
	if canonical.UserID == 0 {
		return balancedomain.ErrInvalidUser
	}
	if canonical.LastUpdated.IsZero() {
		canonical.LastUpdated = s.clock.Now()
	}
	if err := s.upsert(ctx, s.db, canonical); err != nil {
		return err
	}
	s.writeThrough(ctx, canonical)
	s.publish(canonical)
	return nil
}

func (s *Service) ApplyUpdate(ctx context.Context, incoming balancedomain.CreditBalance) error {
	if incoming.UserID == 0 {
		return balancedomain.ErrInvalidUser
	}

	var current balancedomain.CreditBalance
	err := s.db.WithContext(ctx).First(&current, "user_id = ?", incoming.UserID).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}
	// Last-write-wins: older frames lose against the local value.
	if err == nil && !incoming.LastUpdated.After(current.LastUpdated) {
		return nil
	}

	if err := s.upsert(ctx, s.db, incoming); err != nil {
		return err
	}
	s.writeThrough(ctx, incoming)
	return nil
}

// pushRemote confirms the committed mutation with the authority, queueing it
// when the link is down or the call fails. The caller has already been told
// the mutation succeeded; failures here are resolved by the sync engine.
func (s *Service) pushRemote(ctx context.Context, op pendingdomain.OpType, userID, amount int64) {
	key := ulid.Make().String()

	enqueue := func() {
		if _, err := s.pendingSvc.Enqueue(ctx, pendingdomain.EnqueueRequest{
			UserID:         userID,
			OpType:         op,
			Amount:         amount,
			IdempotencyKey: key,
		}); err != nil {
			s.log.Error("failed to queue pending mutation", zap.Error(err))
			return
		}
		s.metrics.RecordEnqueued()
	}

	if !s.watcher.Online() {
		enqueue()
		return
	}

	var err error
	switch op {
	case pendingdomain.OpTypeDeduct:
		_, err = s.authority.Deduct(ctx, userID, amount, key)
	case pendingdomain.OpTypeCredit:
		_, err = s.authority.Credit(ctx, userID, amount, key)
	}
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
		}
		s.log.Warn("remote push failed, queueing mutation",
			zap.String("op_type", string(op)),
			zap.Error(err),
		)
		enqueue()
	}
}

func (s *Service) upsert(ctx context.Context, tx *gorm.DB, row balancedomain.CreditBalance) error {
	return tx.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

// writeThrough mirrors committed state into the quick-access cache and the
// fallback key/value tier.
func (s *Service) writeThrough(ctx context.Context, row balancedomain.CreditBalance) {
	s.resolverCache.SetBalance(row.UserID, row)
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}
	if err := s.fallback.Set(ctx, balanceKey(row.UserID), string(payload)); err != nil {
		s.log.Debug("fallback cache write failed", zap.Error(err))
	}
}

func (s *Service) publish(row balancedomain.CreditBalance) {
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}
	s.hub.Publish(strconv.FormatInt(row.UserID, 10), broadcast.StateUpdate{
		Key:       broadcast.KeyBalance,
		Value:     payload,
		Timestamp: row.LastUpdated,
	})
}

func balanceKey(userID int64) string {
	return fmt.Sprintf("balance:%d", userID)
}
