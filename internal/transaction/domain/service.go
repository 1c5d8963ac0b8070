package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/sparkmatch/sparkmatch/pkg/db/pagination"
)

type CreateRequest struct {
	UserID   int64
	Type     TransactionType
	Amount   int64
	Metadata map[string]any
}

type TransitionRequest struct {
	TransactionID    snowflake.ID
	Target           TransactionStatus
	GatewayOrderID   string
	GatewayPaymentID string
	GatewaySignature string
	FailureReason    string
}

type ListRequest struct {
	UserID    int64
	Status    TransactionStatus
	PageToken string
	PageSize  int
}

type ListResponse struct {
	Transactions []*Transaction      `json:"transactions"`
	PageInfo     pagination.PageInfo `json:"page_info"`
}

type Service interface {
	// Create opens a pending transaction with GST computed from the amount.
	Create(ctx context.Context, req CreateRequest) (*Transaction, error)

	// Transition moves a transaction through the state machine. Exactly one
	// transition per gateway callback; terminal states reject all targets.
	Transition(ctx context.Context, req TransitionRequest) (*Transaction, error)

	GetByID(ctx context.Context, id snowflake.ID) (*Transaction, error)
	GetByOrderID(ctx context.Context, orderID string) (*Transaction, error)
	// List pages the user's transactions newest first, cursor-tokenized.
	List(ctx context.Context, req ListRequest) (ListResponse, error)

	// AttachOrder records the gateway order reference on a pending row.
	AttachOrder(ctx context.Context, id snowflake.ID, orderID string) (*Transaction, error)
}

var (
	ErrInvalidUser       = errors.New("invalid_user")
	ErrInvalidType       = errors.New("invalid_type")
	ErrInvalidAmount     = errors.New("invalid_amount")
	ErrInvalidTarget     = errors.New("invalid_target_status")
	ErrInvalidTransition = errors.New("invalid_transition")
	ErrNotFound          = errors.New("transaction_not_found")
	ErrInvalidPageToken  = errors.New("invalid_page_token")
	ErrMissingGatewayRef = errors.New("missing_gateway_reference")
)
