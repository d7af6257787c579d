package server

import (
	"net/http"

	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"github.com/gin-gonic/gin"
)

func (s *Server) ListBusinesses(c *gin.Context) {
	businesses, err := s.catalogSvc.ListBusinesses(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": businesses})
}

func (s *Server) GetBusiness(c *gin.Context) {
	business, err := s.catalogSvc.GetBusiness(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": business})
}

func (s *Server) ListBusinessServices(c *gin.Context) {
	services, err := s.catalogSvc.ListServices(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": services})
}

func (s *Server) SearchServices(c *gin.Context) {
	services, err := s.catalogSvc.SearchServices(c.Request.Context(), c.Query("q"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": services})
}

func (s *Server) GetService(c *gin.Context) {
	service, err := s.catalogSvc.GetService(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": service})
}

func (s *Server) CreateBusiness(c *gin.Context) {
	var req catalogdomain.CreateBusinessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.OwnerID = s.currentUserID(c)

	business, err := s.catalogSvc.CreateBusiness(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": business})
}

func (s *Server) CreateService(c *gin.Context) {
	var req catalogdomain.CreateServiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	req.BusinessID = c.Param("id")
	req.CallerID = s.currentUserID(c)

	service, err := s.catalogSvc.CreateService(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": service})
}
