package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) handleAuthorizeURL(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"authorization_url": s.Linker.AuthorizationURL(currentSeller(c).ID)})
}

// handleConnect is the redirect target registered with Mercado Pago.
func (s *Server) handleConnect(c *gin.Context) {
	_, err := s.Linker.CompleteLink(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.Redirect(http.StatusSeeOther, s.opts.DashboardURL)
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.Linker.Disconnect(c.Request.Context(), currentSeller(c).ID); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "disconnected"})
}
