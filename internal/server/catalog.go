package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sparkmatch/sparkmatch/internal/catalog"
)

func (s *Server) ListPackages(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"packages": catalog.Packages()})
}

func (s *Server) ListPlans(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"plans": catalog.Plans()})
}
