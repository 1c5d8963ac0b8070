package service

import (
	"context"
	"strings"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	"github.com/sparkmatch/sparkmatch/pkg/db/option"
	"github.com/sparkmatch/sparkmatch/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// recentlyAppliedCap bounds the local guard set. The remote authority's own
// idempotency handling is the real duplicate suppression; this set only
// short-circuits obvious local replays.
const recentlyAppliedCap = 256

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Clock clock.Clock
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock
	repo  repository.Repository[pendingdomain.PendingMutation]

	mu      sync.Mutex
	applied map[string]struct{}
	order   []string
}

func NewService(p ServiceParam) pendingdomain.Service {
	return &Service{
		db:      p.DB,
		log:     p.Log.Named("pending.service"),
		genID:   p.GenID,
		clock:   p.Clock,
		repo:    repository.ProvideStore[pendingdomain.PendingMutation](p.DB),
		applied: make(map[string]struct{}),
	}
}

func (s *Service) Enqueue(ctx context.Context, req pendingdomain.EnqueueRequest) (*pendingdomain.PendingMutation, error) {
	if req.UserID == 0 {
		return nil, pendingdomain.ErrInvalidUser
	}
	if req.OpType != pendingdomain.OpTypeDeduct && req.OpType != pendingdomain.OpTypeCredit {
		return nil, pendingdomain.ErrInvalidOpType
	}
	if req.Amount <= 0 {
		return nil, pendingdomain.ErrInvalidAmount
	}
	key := strings.TrimSpace(req.IdempotencyKey)
	if key == "" {
		return nil, pendingdomain.ErrMissingKey
	}

	mutation := &pendingdomain.PendingMutation{
		ID:             s.genID.Generate(),
		UserID:         req.UserID,
		OpType:         req.OpType,
		Amount:         req.Amount,
		IdempotencyKey: key,
		EnqueuedAt:     s.clock.Now(),
	}
	if req.Payload != nil {
		mutation.Payload = datatypes.JSONMap(req.Payload)
	}

	if err := s.repo.Create(ctx, mutation); err != nil {
		return nil, err
	}
	s.log.Info("mutation queued for sync",
		zap.String("op_type", string(req.OpType)),
		zap.Int64("amount", req.Amount),
		zap.String("idempotency_key", key),
	)
	return mutation, nil
}

func (s *Service) Snapshot(ctx context.Context, userID int64) ([]*pendingdomain.PendingMutation, error) {
	if userID == 0 {
		return nil, pendingdomain.ErrInvalidUser
	}
	return s.repo.Find(ctx, &pendingdomain.PendingMutation{UserID: userID},
		option.WithSortBy(option.QuerySortBy{Field: "id", Allow: map[string]bool{"id": true}}),
	)
}

func (s *Service) Remove(ctx context.Context, mutation *pendingdomain.PendingMutation) error {
	if mutation == nil {
		return nil
	}
	if err := s.repo.Delete(ctx, mutation.ID.String()); err != nil {
		return err
	}
	s.remember(mutation.IdempotencyKey)
	return nil
}

func (s *Service) MarkRetry(ctx context.Context, mutation *pendingdomain.PendingMutation) error {
	if mutation == nil {
		return nil
	}
	mutation.RetryCount++
	return s.repo.Update(ctx, mutation.ID.String(), map[string]any{
		"retry_count": mutation.RetryCount,
	})
}

func (s *Service) RecentlyApplied(key string) bool {
	key = strings.TrimSpace(key)
	if key == "" {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.applied[key]
	return ok
}

func (s *Service) Depth(ctx context.Context, userID int64) (int64, error) {
	if userID == 0 {
		return 0, pendingdomain.ErrInvalidUser
	}
	return s.repo.Count(ctx, &pendingdomain.PendingMutation{UserID: userID})
}

func (s *Service) remember(key string) {
	key = strings.TrimSpace(key)
	if key == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.applied[key]; ok {
		return
	}
	s.applied[key] = struct{}{}
	s.order = append(s.order, key)
	if len(s.order) > recentlyAppliedCap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.applied, oldest)
	}
}
