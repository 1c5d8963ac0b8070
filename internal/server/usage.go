package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

const defaultBreakdownDays = 30

func (s *Server) GetUsageHistory(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	records, err := s.usageSvc.History(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"usage": records})
}

func (s *Server) GetUsageBreakdown(c *gin.Context) {
	days := defaultBreakdownDays
	if raw := c.Query("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		days = parsed
	}

	groups, err := s.usageSvc.Breakdown(c.Request.Context(), days)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"breakdown": groups, "window_days": days})
}
