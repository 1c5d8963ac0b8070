// Package domain defines the purchase orchestration contract: initiating a
// checkout against the external gateway and settling it after verification.
package domain

import (
	"context"
	"errors"

	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
)

type InitiateRequest struct {
	PackageID    string `json:"package_id,omitempty"`
	PlanID       string `json:"plan_id,omitempty"`
	BillingCycle string `json:"billing_cycle,omitempty"`
}

// CheckoutIntent is handed to the external gateway's checkout. Amounts are
// in the smallest display unit with GST already applied.
type CheckoutIntent struct {
	TransactionID string         `json:"transaction_id"`
	OrderID       string         `json:"order_id"`
	Amount        int64          `json:"amount"`
	GST           int64          `json:"gst"`
	TotalAmount   int64          `json:"total_amount"`
	Currency      string         `json:"currency"`
	GatewayKeyID  string         `json:"gateway_key_id"`
	Notes         map[string]any `json:"notes,omitempty"`
}

type CompleteRequest struct {
	OrderID   string `json:"order_id"`
	PaymentID string `json:"payment_id"`
	Signature string `json:"signature"`
}

type Service interface {
	// Initiate opens a pending transaction and a gateway order. The
	// transaction exists before any gateway interaction so a crash
	// mid-payment leaves a recoverable record.
	Initiate(ctx context.Context, req InitiateRequest) (*CheckoutIntent, error)

	// Complete verifies the gateway triple with the remote authority and
	// settles the transaction. Nothing is credited before verification.
	Complete(ctx context.Context, req CompleteRequest) (*transactiondomain.Transaction, error)

	// CancelCheckout fails the pending transaction when the user abandons
	// the external checkout.
	CancelCheckout(ctx context.Context, orderID, reason string) (*transactiondomain.Transaction, error)

	// HandleRefund moves a settled transaction to refunded on an explicit
	// refund notification.
	HandleRefund(ctx context.Context, orderID, reason string) (*transactiondomain.Transaction, error)
}

var (
	ErrGatewayNotReady    = errors.New("gateway_not_ready")
	ErrVerificationFailed = errors.New("verification_failed")
	ErrMissingReference   = errors.New("missing_gateway_reference")
)
