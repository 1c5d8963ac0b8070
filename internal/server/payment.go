package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	paymentdomain "github.com/sparkmatch/sparkmatch/internal/payment/domain"
	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"github.com/sparkmatch/sparkmatch/pkg/db/pagination"
)

func (s *Server) InitiatePurchase(c *gin.Context) {
	var req paymentdomain.InitiateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	intent, err := s.paymentSvc.Initiate(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, intent)
}

func (s *Server) CompletePurchase(c *gin.Context) {
	var req paymentdomain.CompleteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	txn, err := s.paymentSvc.Complete(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (s *Server) CancelPurchase(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	txn, err := s.paymentSvc.CancelCheckout(c.Request.Context(), c.Param("order_id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (s *Server) RefundPurchase(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	txn, err := s.paymentSvc.HandleRefund(c.Request.Context(), c.Param("order_id"), req.Reason)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, txn)
}

func (s *Server) ListTransactions(c *gin.Context) {
	userID, _ := usercontext.UserIDFromContext(c.Request.Context())

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	req := transactiondomain.ListRequest{
		UserID:    userID,
		PageToken: page.PageToken,
		PageSize:  page.PageSize,
	}
	if raw := c.Query("status"); raw != "" {
		req.Status = transactiondomain.TransactionStatus(raw)
	}

	resp, err := s.transactionSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
