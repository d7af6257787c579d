package server

import (
	"net/http"

	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) GetChallenge(c *gin.Context) {
	challenge, err := s.authSvc.Challenge(c.Request.Context(), c.Query("wallet"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"challenge": challenge})
}

func (s *Server) Login(c *gin.Context) {
	var req authdomain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, authdomain.ErrWalletRequired)
		return
	}

	resp, err := s.authSvc.Login(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetMe(c *gin.Context) {
	claims := s.currentClaims(c)
	user, err := s.authSvc.GetUser(c.Request.Context(), claims.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, user)
}
