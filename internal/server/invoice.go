package server

import (
	"net/http"

	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) CreateInvoice(c *gin.Context) {
	var req invoicedomain.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidItems)
		return
	}
	req.OrganizerID = s.currentUserID(c)

	invoice, err := s.invoiceSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invoice})
}

func (s *Server) ListInvoices(c *gin.Context) {
	resp, err := s.invoiceSvc.List(c.Request.Context(), invoicedomain.ListInvoicesRequest{
		UserID: s.currentUserID(c),
		Status: c.Query("status"),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Invoices})
}

func (s *Server) GetInvoice(c *gin.Context) {
	detail, err := s.invoiceSvc.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": detail})
}

func (s *Server) LinkContract(c *gin.Context) {
	var req invoicedomain.LinkContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrSignedTxRequired)
		return
	}
	req.InvoiceID = c.Param("id")
	req.CallerID = s.currentUserID(c)

	invoice, err := s.invoiceSvc.LinkContract(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) UpdateInvoiceItems(c *gin.Context) {
	var req invoicedomain.UpdateItemsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrInvalidItems)
		return
	}
	req.InvoiceID = c.Param("id")
	req.CallerID = s.currentUserID(c)

	invoice, err := s.invoiceSvc.UpdateItems(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ReleaseInvoice(c *gin.Context) {
	var req invoicedomain.ReleaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrSignedTxRequired)
		return
	}
	req.InvoiceID = c.Param("id")
	req.CallerID = s.currentUserID(c)

	invoice, err := s.invoiceSvc.Release(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) CancelInvoice(c *gin.Context) {
	var req invoicedomain.CancelRequest
	// A draft cancel carries no body.
	_ = c.ShouldBindJSON(&req)
	req.InvoiceID = c.Param("id")
	req.CallerID = s.currentUserID(c)

	invoice, err := s.invoiceSvc.Cancel(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}

func (s *Server) ClaimDeadline(c *gin.Context) {
	var req invoicedomain.ClaimDeadlineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invoicedomain.ErrSignedTxRequired)
		return
	}
	req.InvoiceID = c.Param("id")
	req.CallerID = s.currentUserID(c)

	invoice, err := s.invoiceSvc.ClaimDeadline(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invoice})
}
