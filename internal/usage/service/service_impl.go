package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"github.com/sparkmatch/sparkmatch/pkg/db/option"
	"github.com/sparkmatch/sparkmatch/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const defaultHistoryLimit = 50

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
	repo  repository.Repository[usagedomain.UsageRecord]
}

func NewService(p ServiceParam) usagedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("usage.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  repository.ProvideStore[usagedomain.UsageRecord](p.DB),
	}
}

func (s *Service) RecordInTx(ctx context.Context, tx *gorm.DB, req usagedomain.RecordRequest) (*usagedomain.UsageRecord, error) {
	if req.UserID == 0 {
		return nil, usagedomain.ErrInvalidUser
	}
	usageType := strings.TrimSpace(req.UsageType)
	if usageType == "" {
		return nil, usagedomain.ErrInvalidUsageType
	}
	if req.Credits <= 0 {
		return nil, usagedomain.ErrInvalidCredits
	}

	record := &usagedomain.UsageRecord{
		ID:        s.genID.Generate(),
		UserID:    req.UserID,
		UsageType: usageType,
		Credits:   req.Credits,
		CreatedAt: s.clock.Now(),
	}
	if target := strings.TrimSpace(req.TargetID); target != "" {
		record.TargetID = &target
	}
	if req.Metadata != nil {
		record.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.WithTrx(tx).Create(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]*usagedomain.UsageRecord, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, usagedomain.ErrInvalidUser
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	return s.repo.Find(ctx, &usagedomain.UsageRecord{UserID: userID},
		option.WithSortBy(option.QuerySortBy{Field: "created_at", Desc: true, Allow: map[string]bool{"created_at": true}}),
		option.WithLimit(limit),
	)
}

func (s *Service) Breakdown(ctx context.Context, windowDays int) ([]usagedomain.BreakdownGroup, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, usagedomain.ErrInvalidUser
	}
	if windowDays <= 0 {
		return nil, usagedomain.ErrInvalidWindow
	}

	cutoff := s.clock.Now().AddDate(0, 0, -windowDays)

	var groups []usagedomain.BreakdownGroup
	err := s.db.WithContext(ctx).
		Model(&usagedomain.UsageRecord{}).
		Select("usage_type, SUM(credits) AS credits, COUNT(1) AS count").
		Where("user_id = ? AND created_at >= ?", userID, cutoff).
		Group("usage_type").
		Order("credits DESC").
		Scan(&groups).Error
	if err != nil {
		return nil, err
	}
	return groups, nil
}
