package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/sparkmatch/sparkmatch/internal/clock"
	"github.com/sparkmatch/sparkmatch/internal/tax"
	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
	"github.com/sparkmatch/sparkmatch/pkg/db/pagination"
	"github.com/sparkmatch/sparkmatch/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

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
	repo  repository.Repository[transactiondomain.Transaction]
}

func NewService(p ServiceParam) transactiondomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("transaction.service"),
		genID: p.GenID,
		clock: p.Clock,
		repo:  repository.ProvideStore[transactiondomain.Transaction](p.DB),
	}
}

func (s *Service) Create(ctx context.Context, req transactiondomain.CreateRequest) (*transactiondomain.Transaction, error) {
	if req.UserID == 0 {
		return nil, transactiondomain.ErrInvalidUser
	}
	if req.Type != transactiondomain.TypeCreditPurchase && req.Type != transactiondomain.TypeSubscription {
		return nil, transactiondomain.ErrInvalidType
	}
	if req.Amount <= 0 {
		return nil, transactiondomain.ErrInvalidAmount
	}

	now := s.clock.Now()
	gst := tax.ComputeGST(req.Amount)
	row := &transactiondomain.Transaction{
		ID:          s.genID.Generate(),
		UserID:      req.UserID,
		Type:        req.Type,
		Amount:      req.Amount,
		GST:         gst,
		TotalAmount: req.Amount + gst,
		Status:      transactiondomain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Metadata != nil {
		row.Metadata = datatypes.JSONMap(req.Metadata)
	}

	if err := s.repo.Create(ctx, row); err != nil {
		return nil, err
	}
	return row, nil
}

func (s *Service) Transition(ctx context.Context, req transactiondomain.TransitionRequest) (*transactiondomain.Transaction, error) {
	if req.TransactionID == 0 {
		return nil, transactiondomain.ErrNotFound
	}

	switch req.Target {
	case transactiondomain.StatusSuccess, transactiondomain.StatusFailed, transactiondomain.StatusRefunded:
	default:
		return nil, transactiondomain.ErrInvalidTarget
	}

	var result *transactiondomain.Transaction
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row transactiondomain.Transaction
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&row, "id = ?", req.TransactionID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return transactiondomain.ErrNotFound
			}
			return err
		}

		if row.Status == req.Target {
			result = &row
			return nil
		}
		if !transactiondomain.TransitionAllowed(row.Status, req.Target) {
			return transactiondomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		switch req.Target {
		case transactiondomain.StatusSuccess:
			// Settling requires the complete gateway triple.
			orderID := strings.TrimSpace(req.GatewayOrderID)
			paymentID := strings.TrimSpace(req.GatewayPaymentID)
			signature := strings.TrimSpace(req.GatewaySignature)
			if orderID == "" || paymentID == "" || signature == "" {
				return transactiondomain.ErrMissingGatewayRef
			}
			row.GatewayOrderID = &orderID
			row.GatewayPaymentID = &paymentID
			row.GatewaySignature = &signature
		case transactiondomain.StatusFailed:
			if reason := strings.TrimSpace(req.FailureReason); reason != "" {
				row.FailureReason = &reason
			}
			if paymentID := strings.TrimSpace(req.GatewayPaymentID); paymentID != "" {
				row.GatewayPaymentID = &paymentID
			}
		case transactiondomain.StatusRefunded:
			if reason := strings.TrimSpace(req.FailureReason); reason != "" {
				row.FailureReason = &reason
			}
		}

		row.Status = req.Target
		row.UpdatedAt = now

		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		result = &row
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("transaction transitioned",
		zap.String("transaction_id", result.ID.String()),
		zap.String("status", string(result.Status)),
	)
	return result, nil
}

func (s *Service) GetByID(ctx context.Context, id snowflake.ID) (*transactiondomain.Transaction, error) {
	row, err := s.repo.FindOne(ctx, &transactiondomain.Transaction{ID: id})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, transactiondomain.ErrNotFound
	}
	return row, nil
}

func (s *Service) GetByOrderID(ctx context.Context, orderID string) (*transactiondomain.Transaction, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, transactiondomain.ErrNotFound
	}
	var row transactiondomain.Transaction
	err := s.db.WithContext(ctx).First(&row, "gateway_order_id = ?", orderID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, transactiondomain.ErrNotFound
		}
		return nil, err
	}
	return &row, nil
}

func (s *Service) List(ctx context.Context, req transactiondomain.ListRequest) (transactiondomain.ListResponse, error) {
	if req.UserID == 0 {
		return transactiondomain.ListResponse{}, transactiondomain.ErrInvalidUser
	}

	var cursor snowflake.ID
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return transactiondomain.ListResponse{}, transactiondomain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return transactiondomain.ListResponse{}, transactiondomain.ErrInvalidPageToken
		}
		cursor = id
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 250 {
		pageSize = 250
	}

	query := s.db.WithContext(ctx).Where("user_id = ?", req.UserID)
	if req.Status != "" {
		query = query.Where("status = ?", req.Status)
	}
	if cursor != 0 {
		query = query.Where("id < ?", cursor)
	}

	var items []*transactiondomain.Transaction
	if err := query.Order("id DESC").Limit(pageSize + 1).Find(&items).Error; err != nil {
		return transactiondomain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *transactiondomain.Transaction) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{ID: item.ID.String()})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	return transactiondomain.ListResponse{
		Transactions: items,
		PageInfo:     *pageInfo,
	}, nil
}

func (s *Service) AttachOrder(ctx context.Context, id snowflake.ID, orderID string) (*transactiondomain.Transaction, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return nil, transactiondomain.ErrMissingGatewayRef
	}

	row, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if row.Status != transactiondomain.StatusPending {
		return nil, transactiondomain.ErrInvalidTransition
	}

	if err := s.repo.Update(ctx, id.String(), map[string]any{
		"gateway_order_id": orderID,
		"updated_at":       s.clock.Now(),
	}); err != nil {
		return nil, err
	}
	row.GatewayOrderID = &orderID
	return row, nil
}
