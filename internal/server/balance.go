package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
)

func (s *Server) GetBalance(c *gin.Context) {
	bal, err := s.balanceSvc.Get(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bal)
}

func (s *Server) DebitBalance(c *gin.Context) {
	var req balancedomain.DebitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	bal, err := s.balanceSvc.Debit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bal)
}

func (s *Server) CreditBalance(c *gin.Context) {
	var req balancedomain.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	bal, err := s.balanceSvc.Credit(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, bal)
}
