package server

import (
	"net/http"

	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) JoinInvoice(c *gin.Context) {
	participant, err := s.invoiceSvc.Join(c.Request.Context(), invoicedomain.JoinRequest{
		InvoiceID: c.Param("id"),
		UserID:    s.currentUserID(c),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": participant})
}

func (s *Server) Contribute(c *gin.Context) {
	var req invoicedomain.ContributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidAmount)
		return
	}
	req.InvoiceID = c.Param("id")
	req.UserID = s.currentUserID(c)

	release, acquired := s.acquireSubmitLock(c, req.InvoiceID, req.UserID)
	if !acquired {
		AbortWithError(c, ErrRateLimited)
		return
	}
	defer release()

	resp, err := s.invoiceSvc.Contribute(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) Withdraw(c *gin.Context) {
	var req invoicedomain.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrSignedTxRequired)
		return
	}
	req.InvoiceID = c.Param("id")
	req.UserID = s.currentUserID(c)
	req.WalletAddress = s.currentClaims(c).WalletAddress

	release, acquired := s.acquireSubmitLock(c, req.InvoiceID, req.UserID)
	if !acquired {
		AbortWithError(c, ErrRateLimited)
		return
	}
	defer release()

	resp, err := s.invoiceSvc.Withdraw(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ConfirmRelease(c *gin.Context) {
	var req invoicedomain.ConfirmReleaseRequest
	// Confirmation may carry no signed transaction.
	_ = c.ShouldBindJSON(&req)
	req.InvoiceID = c.Param("id")
	req.UserID = s.currentUserID(c)

	resp, err := s.invoiceSvc.ConfirmRelease(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListParticipants(c *gin.Context) {
	participants, err := s.invoiceSvc.ListParticipants(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": participants})
}

func (s *Server) ListTransactions(c *gin.Context) {
	transactions, err := s.invoiceSvc.ListTransactions(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": transactions})
}

func (s *Server) ListModifications(c *gin.Context) {
	modifications, err := s.invoiceSvc.ListModifications(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": modifications})
}

// acquireSubmitLock wraps the redis submit lock, turning the disabled
// limiter into a no-op.
func (s *Server) acquireSubmitLock(c *gin.Context, invoiceID, userID string) (func(), bool) {
	if !s.limiter.Enabled() {
		return func() {}, true
	}
	return s.limiter.AcquireSubmitLock(c.Request.Context(), invoiceID, userID)
}
