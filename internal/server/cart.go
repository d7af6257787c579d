package server

import (
	"net/http"

	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListCart(c *gin.Context) {
	lines, err := s.cartSvc.List(c.Request.Context(), s.currentUserID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": lines})
}

func (s *Server) AddCartItem(c *gin.Context) {
	var req cartdomain.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, cartdomain.ErrInvalidID)
		return
	}
	req.UserID = s.currentUserID(c)

	item, err := s.cartSvc.Add(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": item})
}

func (s *Server) UpdateCartItem(c *gin.Context) {
	var req cartdomain.UpdateQuantityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, cartdomain.ErrInvalidQuantity)
		return
	}
	req.UserID = s.currentUserID(c)
	req.ServiceID = c.Param("serviceId")

	item, err := s.cartSvc.UpdateQuantity(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": item})
}

func (s *Server) RemoveCartItem(c *gin.Context) {
	if err := s.cartSvc.Remove(c.Request.Context(), s.currentUserID(c), c.Param("serviceId")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) ClearCart(c *gin.Context) {
	if err := s.cartSvc.Clear(c.Request.Context(), s.currentUserID(c)); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) Checkout(c *gin.Context) {
	var req cartdomain.CheckoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.UserID = s.currentUserID(c)

	invoice, err := s.cartSvc.Checkout(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}
