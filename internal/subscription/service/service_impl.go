package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/sparkmatch/sparkmatch/internal/broadcast"
	"github.com/sparkmatch/sparkmatch/internal/cache"
	"github.com/sparkmatch/sparkmatch/internal/catalog"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	"github.com/sparkmatch/sparkmatch/internal/kvcache"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
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
	GenID         *snowflake.Node
	Clock         clock.Clock
	ResolverCache cache.LedgerResolverCache
	Fallback      kvcache.Store
	Hub           *broadcast.Hub
	Authority     remote.Authority
	Watcher       *connectivity.Watcher
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	resolverCache cache.LedgerResolverCache
	fallback      kvcache.Store
	hub           *broadcast.Hub
	authority     remote.Authority
	watcher       *connectivity.Watcher
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("subscription.service"),
		genID:         p.GenID,
		clock:         p.Clock,
		resolverCache: p.ResolverCache,
		fallback:      p.Fallback,
		hub:           p.Hub,
		authority:     p.Authority,
		watcher:       p.Watcher,
	}
}

func (s *Service) Get(ctx context.Context) (*subscriptiondomain.UserSubscription, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	now := s.clock.Now()

	if cached, ok := s.resolverCache.GetSubscription(userID); ok && cached.Fresh(now) {
		return &cached, nil
	}

	local, err := s.findCurrent(ctx, userID)
	if err != nil {
		s.log.Warn("persistent store read failed", zap.Error(err))
		return s.readFallback(ctx, userID, now)
	}

	if local != nil && local.Fresh(now) {
		s.resolverCache.SetSubscription(userID, *local)
		return local, nil
	}

	// Stale or missing: the remote authority decides.
	fetched, ferr := s.authority.GetSubscription(ctx, userID)
	if ferr != nil {
		if errors.Is(ferr, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
			if local != nil {
				stale := s.normalize(*local, now)
				return &stale, nil
			}
			return s.readFallback(ctx, userID, now)
		}
		if errors.Is(ferr, remote.ErrNotFound) {
			return nil, nil
		}
		return nil, ferr
	}
	if fetched == nil {
		if local != nil {
			s.retire(ctx, local, now)
		}
		return nil, nil
	}

	row := s.fromRemote(*fetched, now)
	if err := s.upsert(ctx, row); err != nil {
		return nil, err
	}
	s.writeThrough(ctx, row)
	return &row, nil
}

func (s *Service) Create(ctx context.Context, req subscriptiondomain.CreateSubscriptionRequest) (*subscriptiondomain.UserSubscription, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	if _, err := catalog.PlanByID(strings.TrimSpace(req.PlanID)); err != nil {
		return nil, subscriptiondomain.ErrInvalidPlan
	}
	cycle := req.BillingCycle
	if cycle != subscriptiondomain.BillingCycleMonthly && cycle != subscriptiondomain.BillingCycleYearly {
		return nil, subscriptiondomain.ErrInvalidBillingCycle
	}

	created, err := s.authority.CreateSubscription(ctx, userID, req.PlanID, string(cycle))
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
		}
		return nil, err
	}

	now := s.clock.Now()
	row := s.fromRemote(*created, now)
	if err := s.upsert(ctx, row); err != nil {
		return nil, err
	}
	s.writeThrough(ctx, row)
	s.publish(row)
	return &row, nil
}

func (s *Service) Cancel(ctx context.Context, req subscriptiondomain.CancelSubscriptionRequest) (*subscriptiondomain.UserSubscription, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidUser
	}

	current, err := s.findCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, subscriptiondomain.ErrNoSubscription
	}

	cancelled, err := s.authority.CancelSubscription(ctx, userID, req.Reason)
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
		}
		return nil, err
	}

	now := s.clock.Now()
	row := s.fromRemote(*cancelled, now)
	if row.Status != subscriptiondomain.SubscriptionStatusCancelled {
		row.Status = subscriptiondomain.SubscriptionStatusCancelled
	}
	if row.CancelledAt == nil {
		row.CancelledAt = &now
	}
	if reason := strings.TrimSpace(req.Reason); reason != "" && row.CancelReason == nil {
		row.CancelReason = &reason
	}
	if err := s.upsert(ctx, row); err != nil {
		return nil, err
	}
	s.writeThrough(ctx, row)
	s.publish(row)
	return &row, nil
}

func (s *Service) SetAutoRenew(ctx context.Context, enabled bool) (*subscriptiondomain.UserSubscription, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, subscriptiondomain.ErrInvalidUser
	}

	current, err := s.findCurrent(ctx, userID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, subscriptiondomain.ErrNoSubscription
	}

	updated, err := s.authority.UpdateAutoRenew(ctx, userID, enabled)
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
		}
		return nil, err
	}

	now := s.clock.Now()
	row := s.fromRemote(*updated, now)
	if err := s.upsert(ctx, row); err != nil {
		return nil, err
	}
	s.writeThrough(ctx, row)
	s.publish(row)
	return &row, nil
}

func (s *Service) Overwrite(ctx context.Context, canonical *subscriptiondomain.UserSubscription) error {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return subscriptiondomain.ErrInvalidUser
	}
	now := s.clock.Now()

	if canonical == nil {
		local, err := s.findCurrent(ctx, userID)
		if err != nil || local == nil {
			return err
		}
		s.retire(ctx, local, now)
		return nil
	}

	if canonical.UpdatedAt.IsZero() {
		canonical.UpdatedAt = now
	}
	canonical.FetchedAt = now
	if err := s.upsert(ctx, *canonical); err != nil {
		return err
	}
	s.writeThrough(ctx, *canonical)
	s.publish(*canonical)
	return nil
}

func (s *Service) ApplyUpdate(ctx context.Context, incoming subscriptiondomain.UserSubscription) error {
	if incoming.UserID == 0 {
		return subscriptiondomain.ErrInvalidUser
	}

	current, err := s.findCurrent(ctx, incoming.UserID)
	if err != nil {
		return err
	}
	// Last-write-wins: older frames lose against the local value.
	if current != nil && !incoming.UpdatedAt.After(current.UpdatedAt) {
		return nil
	}

	if err := s.upsert(ctx, incoming); err != nil {
		return err
	}
	s.writeThrough(ctx, incoming)
	return nil
}

func (s *Service) findCurrent(ctx context.Context, userID int64) (*subscriptiondomain.UserSubscription, error) {
	var row subscriptiondomain.UserSubscription
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (s *Service) readFallback(ctx context.Context, userID int64, now time.Time) (*subscriptiondomain.UserSubscription, error) {
	raw, err := s.fallback.Get(ctx, subscriptionKey(userID))
	if err != nil {
		return nil, nil
	}
	var row subscriptiondomain.UserSubscription
	if err := json.Unmarshal([]byte(raw), &row); err != nil {
		return nil, nil
	}
	normalized := s.normalize(row, now)
	return &normalized, nil
}

// normalize never serves an expired subscription as active.
func (s *Service) normalize(row subscriptiondomain.UserSubscription, now time.Time) subscriptiondomain.UserSubscription {
	if row.Status == subscriptiondomain.SubscriptionStatusActive && !row.EndDate.After(now) {
		row.Status = subscriptiondomain.SubscriptionStatusExpired
	}
	return row
}

func (s *Service) retire(ctx context.Context, row *subscriptiondomain.UserSubscription, now time.Time) {
	if row.Status == subscriptiondomain.SubscriptionStatusActive {
		row.Status = subscriptiondomain.SubscriptionStatusExpired
		row.UpdatedAt = now
		if err := s.upsert(ctx, *row); err != nil {
			s.log.Warn("failed to retire subscription", zap.Error(err))
		}
	}
	s.resolverCache.InvalidateSubscription(row.UserID)
}

func (s *Service) fromRemote(src remote.Subscription, now time.Time) subscriptiondomain.UserSubscription {
	return FromRemote(s.genID, src, now)
}

// FromRemote maps the authority's subscription record onto the local row
// shape. Remote ids that are not snowflakes get a locally generated one.
func FromRemote(genID *snowflake.Node, src remote.Subscription, now time.Time) subscriptiondomain.UserSubscription {
	id, err := snowflake.ParseString(src.ID)
	if err != nil || id == 0 {
		id = genID.Generate()
	}
	row := subscriptiondomain.UserSubscription{
		ID:           id,
		UserID:       src.UserID,
		Tier:         src.Tier,
		Status:       subscriptiondomain.SubscriptionStatus(src.Status),
		BillingCycle: subscriptiondomain.BillingCycle(src.BillingCycle),
		StartDate:    src.StartDate,
		EndDate:      src.EndDate,
		AutoRenew:    src.AutoRenew,
		CancelledAt:  src.CancelledAt,
		FetchedAt:    now,
		UpdatedAt:    now,
	}
	if reason := strings.TrimSpace(src.CancelReason); reason != "" {
		row.CancelReason = &reason
	}
	if row.Status == subscriptiondomain.SubscriptionStatusActive && !row.EndDate.After(now) {
		row.Status = subscriptiondomain.SubscriptionStatusExpired
	}
	return row
}

func (s *Service) upsert(ctx context.Context, row subscriptiondomain.UserSubscription) error {
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&row).Error
}

func (s *Service) writeThrough(ctx context.Context, row subscriptiondomain.UserSubscription) {
	s.resolverCache.SetSubscription(row.UserID, row)
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}
	if err := s.fallback.Set(ctx, subscriptionKey(row.UserID), string(payload)); err != nil {
		s.log.Debug("fallback cache write failed", zap.Error(err))
	}
}

func (s *Service) publish(row subscriptiondomain.UserSubscription) {
	payload, err := json.Marshal(row)
	if err != nil {
		return
	}
	s.hub.Publish(strconv.FormatInt(row.UserID, 10), broadcast.StateUpdate{
		Key:       broadcast.KeySubscription,
		Value:     payload,
		Timestamp: row.UpdatedAt,
	})
}

func subscriptionKey(userID int64) string {
	return fmt.Sprintf("subscription:%d", userID)
}
