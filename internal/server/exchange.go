package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) GetExchangeRates(c *gin.Context) {
	resp, err := s.exchangeSvc.Current(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RefreshExchangeRates(c *gin.Context) {
	resp, err := s.exchangeSvc.Refresh(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
