// Package server exposes the HTTP API: wallet auth, catalog browsing,
// cart checkout and the invoice escrow lifecycle.
package server

import (
	"context"
	"net/http"
	"time"

	authdomain "github.com/cotravel/cotravel/internal/auth/domain"
	cartdomain "github.com/cotravel/cotravel/internal/cart/domain"
	catalogdomain "github.com/cotravel/cotravel/internal/catalog/domain"
	"github.com/cotravel/cotravel/internal/config"
	invoicedomain "github.com/cotravel/cotravel/internal/invoice/domain"
	"github.com/cotravel/cotravel/internal/observability"
	obslogger "github.com/cotravel/cotravel/internal/observability/logger"
	"github.com/cotravel/cotravel/internal/observability/metrics"
	obstracing "github.com/cotravel/cotravel/internal/observability/tracing"
	"github.com/cotravel/cotravel/internal/ratelimit"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, m *metrics.Metrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obslogger.GinMiddleware(obslogger.MiddlewareConfig{Debug: obsCfg.Debug()}))
	r.Use(obstracing.GinMiddleware(obsCfg.ServiceName))
	r.Use(m.GinMiddleware())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	log        *zap.Logger
	authSvc    authdomain.Auth
	invoiceSvc invoicedomain.Service
	cartSvc    cartdomain.Cart
	catalogSvc catalogdomain.Catalog
	limiter    *ratelimit.RequestLimiter
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	Log        *zap.Logger
	AuthSvc    authdomain.Auth
	InvoiceSvc invoicedomain.Service
	CartSvc    cartdomain.Cart
	CatalogSvc catalogdomain.Catalog
	Limiter    *ratelimit.RequestLimiter `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		log:        p.Log.Named("http.server"),
		authSvc:    p.AuthSvc,
		invoiceSvc: p.InvoiceSvc,
		cartSvc:    p.CartSvc,
		catalogSvc: p.CatalogSvc,
		limiter:    p.Limiter,
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	api := s.engine.Group("/api")

	authGroup := api.Group("/auth")
	authGroup.GET("/challenge", s.limitChallenge(), s.GetChallenge)
	authGroup.POST("/login", s.Login)
	authGroup.GET("/me", s.requireAuth(), s.GetMe)

	catalogGroup := api.Group("/catalog")
	catalogGroup.GET("/businesses", s.ListBusinesses)
	catalogGroup.GET("/businesses/:id", s.GetBusiness)
	catalogGroup.GET("/businesses/:id/services", s.ListBusinessServices)
	catalogGroup.GET("/services", s.SearchServices)
	catalogGroup.GET("/services/:id", s.GetService)
	catalogGroup.POST("/businesses", s.requireAuth(), s.CreateBusiness)
	catalogGroup.POST("/businesses/:id/services", s.requireAuth(), s.CreateService)

	cartGroup := api.Group("/cart", s.requireAuth())
	cartGroup.GET("", s.ListCart)
	cartGroup.POST("/items", s.AddCartItem)
	cartGroup.PATCH("/items/:serviceId", s.UpdateCartItem)
	cartGroup.DELETE("/items/:serviceId", s.RemoveCartItem)
	cartGroup.DELETE("", s.ClearCart)
	cartGroup.POST("/checkout", s.Checkout)

	invoiceGroup := api.Group("/invoices", s.requireAuth())
	invoiceGroup.POST("", s.CreateInvoice)
	invoiceGroup.GET("", s.ListInvoices)
	invoiceGroup.GET("/:id", s.GetInvoice)
	invoiceGroup.POST("/:id/link-contract", s.LinkContract)
	invoiceGroup.PUT("/:id/items", s.UpdateInvoiceItems)
	invoiceGroup.POST("/:id/release", s.ReleaseInvoice)
	invoiceGroup.POST("/:id/cancel", s.CancelInvoice)
	invoiceGroup.POST("/:id/claim-deadline", s.ClaimDeadline)
	invoiceGroup.POST("/:id/join", s.JoinInvoice)
	invoiceGroup.POST("/:id/contribute", s.limitContribute(), s.Contribute)
	invoiceGroup.POST("/:id/withdraw", s.Withdraw)
	invoiceGroup.POST("/:id/confirm", s.ConfirmRelease)
	invoiceGroup.GET("/:id/participants", s.ListParticipants)
	invoiceGroup.GET("/:id/transactions", s.ListTransactions)
	invoiceGroup.GET("/:id/modifications", s.ListModifications)
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info("http server listening", zap.String("addr", cfg.ListenAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal("http server failed", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}
