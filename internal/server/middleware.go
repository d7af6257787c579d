package server

import (
	"strings"

	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	obscontext "github.com/cotravel/cotravel/internal/observability/context"
	"github.com/gin-gonic/gin"
)

const ctxUserKey = "auth.user"

// requireAuth validates the bearer token and stashes the claims on the
// gin context and the request context.
func (s *Server) requireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		claims, err := s.authSvc.ParseToken(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		c.Set(ctxUserKey, claims)
		ctx := obscontext.WithUserID(c.Request.Context(), claims.UserID.String())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// currentClaims returns the authenticated user's claims. Routes behind
// requireAuth always have them.
func (s *Server) currentClaims(c *gin.Context) authdomain.Claims {
	claims, ok := c.Get(ctxUserKey)
	if !ok {
		return authdomain.Claims{}
	}
	return claims.(authdomain.Claims)
}

func (s *Server) currentUserID(c *gin.Context) string {
	claims := s.currentClaims(c)
	if claims.UserID == 0 {
		return ""
	}
	return claims.UserID.String()
}

func (s *Server) limitChallenge() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		res := s.limiter.AllowChallenge(c.Request.Context(), c.ClientIP())
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfter.String())
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func (s *Server) limitContribute() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.limiter.Enabled() {
			c.Next()
			return
		}
		res := s.limiter.AllowContribute(c.Request.Context(), s.currentUserID(c))
		if !res.Allowed {
			c.Header("Retry-After", res.RetryAfter.String())
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}
