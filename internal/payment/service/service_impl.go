package service

import (
	"context"
	"errors"
	"strings"

	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/catalog"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	obsmetrics "github.com/sparkmatch/sparkmatch/internal/observability/metrics"
	paymentdomain "github.com/sparkmatch/sparkmatch/internal/payment/domain"
	"github.com/sparkmatch/sparkmatch/internal/payment/gateway"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const checkoutCurrency = "INR"

type ServiceParam struct {
	fx.In

	Log             *zap.Logger
	Authority       remote.Authority
	Watcher         *connectivity.Watcher
	Adapter         *gateway.Adapter
	TransactionSvc  transactiondomain.Service
	BalanceSvc      balancedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	Metrics         *obsmetrics.Metrics `optional:"true"`
}

type Service struct {
	log             *zap.Logger
	authority       remote.Authority
	watcher         *connectivity.Watcher
	adapter         *gateway.Adapter
	transactionSvc  transactiondomain.Service
	balanceSvc      balancedomain.Service
	subscriptionSvc subscriptiondomain.Service
	metrics         *obsmetrics.Metrics
}

func NewService(p ServiceParam) paymentdomain.Service {
	return &Service{
		log:             p.Log.Named("payment.service"),
		authority:       p.Authority,
		watcher:         p.Watcher,
		adapter:         p.Adapter,
		transactionSvc:  p.TransactionSvc,
		balanceSvc:      p.BalanceSvc,
		subscriptionSvc: p.SubscriptionSvc,
		metrics:         p.Metrics,
	}
}

func (s *Service) Initiate(ctx context.Context, req paymentdomain.InitiateRequest) (*paymentdomain.CheckoutIntent, error) {
	userID, ok := usercontext.UserIDFromContext(ctx)
	if !ok {
		return nil, transactiondomain.ErrInvalidUser
	}
	if err := s.adapter.EnsureReady(); err != nil {
		return nil, err
	}

	var (
		amount   int64
		txnType  transactiondomain.TransactionType
		metadata map[string]any
	)
	switch {
	case strings.TrimSpace(req.PackageID) != "":
		pkg, err := catalog.PackageByID(strings.TrimSpace(req.PackageID))
		if err != nil {
			return nil, err
		}
		amount = pkg.Price
		txnType = transactiondomain.TypeCreditPurchase
		metadata = map[string]any{
			"package_id": pkg.ID,
			"credits":    pkg.Credits + pkg.Bonus,
		}
	case strings.TrimSpace(req.PlanID) != "":
		plan, err := catalog.PlanByID(strings.TrimSpace(req.PlanID))
		if err != nil {
			return nil, err
		}
		cycle := strings.TrimSpace(req.BillingCycle)
		if cycle == "" {
			cycle = string(subscriptiondomain.BillingCycleMonthly)
		}
		if cycle != string(subscriptiondomain.BillingCycleMonthly) && cycle != string(subscriptiondomain.BillingCycleYearly) {
			return nil, subscriptiondomain.ErrInvalidBillingCycle
		}
		amount = catalog.PlanPrice(plan, cycle)
		txnType = transactiondomain.TypeSubscription
		metadata = map[string]any{
			"plan_id":       plan.ID,
			"tier":          plan.Tier,
			"billing_cycle": cycle,
		}
	default:
		return nil, catalog.ErrPackageNotFound
	}

	txn, err := s.transactionSvc.Create(ctx, transactiondomain.CreateRequest{
		UserID:   userID,
		Type:     txnType,
		Amount:   amount,
		Metadata: metadata,
	})
	if err != nil {
		return nil, err
	}

	order, err := s.authority.CreatePaymentOrder(ctx, txn.TotalAmount, string(txnType), metadata)
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
		}
		if _, ferr := s.transactionSvc.Transition(ctx, transactiondomain.TransitionRequest{
			TransactionID: txn.ID,
			Target:        transactiondomain.StatusFailed,
			FailureReason: "order_creation_failed: " + err.Error(),
		}); ferr != nil {
			s.log.Error("failed to fail transaction after order error", zap.Error(ferr))
		}
		return nil, err
	}

	if _, err := s.transactionSvc.AttachOrder(ctx, txn.ID, order.OrderID); err != nil {
		return nil, err
	}

	currency := order.Currency
	if currency == "" {
		currency = checkoutCurrency
	}
	return &paymentdomain.CheckoutIntent{
		TransactionID: txn.ID.String(),
		OrderID:       order.OrderID,
		Amount:        txn.Amount,
		GST:           txn.GST,
		TotalAmount:   txn.TotalAmount,
		Currency:      currency,
		GatewayKeyID:  s.adapter.KeyID(),
		Notes:         metadata,
	}, nil
}

func (s *Service) Complete(ctx context.Context, req paymentdomain.CompleteRequest) (*transactiondomain.Transaction, error) {
	orderID := strings.TrimSpace(req.OrderID)
	paymentID := strings.TrimSpace(req.PaymentID)
	signature := strings.TrimSpace(req.Signature)
	if orderID == "" || paymentID == "" || signature == "" {
		return nil, paymentdomain.ErrMissingReference
	}

	txn, err := s.transactionSvc.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if txn.Status == transactiondomain.StatusSuccess {
		return txn, nil
	}
	if txn.Status.Terminal() {
		return nil, transactiondomain.ErrInvalidTransition
	}

	verified, err := s.authority.VerifyPayment(ctx, orderID, paymentID, signature)
	if err != nil {
		if errors.Is(err, remote.ErrUnavailable) {
			s.watcher.ReportFailure()
		}
		// Verification could not run; the transaction stays pending and the
		// caller may retry the callback. Crediting without verification is
		// forbidden.
		return nil, err
	}
	if !verified {
		s.metrics.RecordVerificationFailure()
		if _, ferr := s.transactionSvc.Transition(ctx, transactiondomain.TransitionRequest{
			TransactionID:    txn.ID,
			Target:           transactiondomain.StatusFailed,
			GatewayPaymentID: paymentID,
			FailureReason:    "signature_verification_failed",
		}); ferr != nil {
			s.log.Error("failed to mark transaction failed", zap.Error(ferr))
		}
		return nil, paymentdomain.ErrVerificationFailed
	}

	settled, err := s.transactionSvc.Transition(ctx, transactiondomain.TransitionRequest{
		TransactionID:    txn.ID,
		Target:           transactiondomain.StatusSuccess,
		GatewayOrderID:   orderID,
		GatewayPaymentID: paymentID,
		GatewaySignature: signature,
	})
	if err != nil {
		return nil, err
	}

	s.applyPurchase(ctx, settled)
	return settled, nil
}

func (s *Service) CancelCheckout(ctx context.Context, orderID, reason string) (*transactiondomain.Transaction, error) {
	txn, err := s.transactionSvc.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	failureReason := "checkout_cancelled"
	if reason = strings.TrimSpace(reason); reason != "" {
		failureReason += ": " + reason
	}
	return s.transactionSvc.Transition(ctx, transactiondomain.TransitionRequest{
		TransactionID: txn.ID,
		Target:        transactiondomain.StatusFailed,
		FailureReason: failureReason,
	})
}

func (s *Service) HandleRefund(ctx context.Context, orderID, reason string) (*transactiondomain.Transaction, error) {
	txn, err := s.transactionSvc.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transactionSvc.Transition(ctx, transactiondomain.TransitionRequest{
		TransactionID: txn.ID,
		Target:        transactiondomain.StatusRefunded,
		FailureReason: strings.TrimSpace(reason),
	})
}

// applyPurchase grants what the settled transaction paid for. A failure here
// is not a payment failure; the remote authority already holds the canonical
// outcome and the next sync pass reconciles local state.
func (s *Service) applyPurchase(ctx context.Context, txn *transactiondomain.Transaction) {
	switch txn.Type {
	case transactiondomain.TypeCreditPurchase:
		credits := metadataInt(txn.Metadata, "credits")
		if credits <= 0 {
			s.log.Error("settled purchase missing credits metadata",
				zap.String("transaction_id", txn.ID.String()))
			return
		}
		if _, err := s.balanceSvc.Credit(ctx, balancedomain.CreditRequest{
			Amount: credits,
			Source: "credit_purchase",
		}); err != nil {
			s.log.Error("failed to credit settled purchase", zap.Error(err))
		}
	case transactiondomain.TypeSubscription:
		planID, _ := txn.Metadata["plan_id"].(string)
		cycle, _ := txn.Metadata["billing_cycle"].(string)
		if _, err := s.subscriptionSvc.Create(ctx, subscriptiondomain.CreateSubscriptionRequest{
			PlanID:       planID,
			BillingCycle: subscriptiondomain.BillingCycle(cycle),
		}); err != nil {
			s.log.Error("failed to activate settled subscription", zap.Error(err))
		}
	}
}

func metadataInt(metadata map[string]any, key string) int64 {
	switch v := metadata[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
