package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/catalog"
	paymentdomain "github.com/sparkmatch/sparkmatch/internal/payment/domain"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	"gorm.io/gorm"
)

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var ErrInvalidRequest = errors.New("invalid_request")

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case errors.Is(err, balancedomain.ErrInsufficientBalance):
		return http.StatusPaymentRequired, errorPayload{
			Type:    "insufficient_balance",
			Message: "insufficient balance",
		}
	case errors.Is(err, paymentdomain.ErrVerificationFailed):
		return http.StatusBadRequest, errorPayload{
			Type:    "verification_failed",
			Message: "payment verification failed",
		}
	case errors.Is(err, transactiondomain.ErrInvalidTransition):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "transaction state does not allow this operation",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case isUnavailableError(err):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, balancedomain.ErrInvalidAmount),
		errors.Is(err, balancedomain.ErrInvalidUsageType),
		errors.Is(err, usagedomain.ErrInvalidUsageType),
		errors.Is(err, usagedomain.ErrInvalidCredits),
		errors.Is(err, usagedomain.ErrInvalidWindow),
		errors.Is(err, subscriptiondomain.ErrInvalidPlan),
		errors.Is(err, subscriptiondomain.ErrInvalidBillingCycle),
		errors.Is(err, transactiondomain.ErrInvalidAmount),
		errors.Is(err, transactiondomain.ErrInvalidType),
		errors.Is(err, transactiondomain.ErrInvalidTarget),
		errors.Is(err, transactiondomain.ErrMissingGatewayRef),
		errors.Is(err, transactiondomain.ErrInvalidPageToken),
		errors.Is(err, pendingdomain.ErrInvalidOpType),
		errors.Is(err, pendingdomain.ErrInvalidAmount),
		errors.Is(err, pendingdomain.ErrMissingKey),
		errors.Is(err, paymentdomain.ErrMissingReference),
		errors.Is(err, remote.ErrRejected):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, catalog.ErrPackageNotFound),
		errors.Is(err, catalog.ErrPlanNotFound),
		errors.Is(err, subscriptiondomain.ErrNoSubscription),
		errors.Is(err, transactiondomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isUnavailableError(err error) bool {
	switch {
	case errors.Is(err, remote.ErrUnavailable),
		errors.Is(err, balancedomain.ErrStorageUnavailable),
		errors.Is(err, paymentdomain.ErrGatewayNotReady):
		return true
	default:
		return false
	}
}
