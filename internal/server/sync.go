package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
)

func (s *Server) TriggerSync(c *gin.Context) {
	if err := s.syncEngine.SyncNow(c.Request.Context()); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "synced"})
}

func (s *Server) SyncStatus(c *gin.Context) {
	userID, _ := usercontext.UserIDFromContext(c.Request.Context())

	depth, err := s.pendingSvc.Depth(c.Request.Context(), userID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"online":        s.watcher.Online(),
		"pending_depth": depth,
	})
}

// SetConnectivity flips the link state by hand. Useful for exercising
// offline behavior without pulling the network.
func (s *Server) SetConnectivity(c *gin.Context) {
	var req struct {
		Online *bool `json:"online"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.Online == nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	s.watcher.SetOnline(*req.Online)
	c.JSON(http.StatusOK, gin.H{"online": s.watcher.Online()})
}
