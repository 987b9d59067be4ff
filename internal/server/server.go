package server

import (
	"context"
	"errors"
	"net/http"

	"github.com/edmarket/coursepay/internal/checkout"
	"github.com/edmarket/coursepay/internal/config"
	enrollmentdomain "github.com/edmarket/coursepay/internal/enrollment/domain"
	instructordomain "github.com/edmarket/coursepay/internal/instructor/domain"
	orderdomain "github.com/edmarket/coursepay/internal/order/domain"
	"github.com/edmarket/coursepay/internal/payment/adapters/paypal"
	"github.com/edmarket/coursepay/internal/payment/webhook"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Server struct {
	cfg         config.Config
	engine      *gin.Engine
	checkout    *checkout.Service
	webhooks    *webhook.Service
	orders      orderdomain.Repository
	enrollments enrollmentdomain.Repository
	instructors instructordomain.Repository
	paypal      *paypal.Adapter
	log         *zap.Logger
}

type Params struct {
	fx.In

	Cfg         config.Config
	Checkout    *checkout.Service
	Webhooks    *webhook.Service
	Orders      orderdomain.Repository
	Enrollments enrollmentdomain.Repository
	Instructors instructordomain.Repository
	PayPal      *paypal.Adapter `optional:"true"`
	Registry    *prometheus.Registry
	Log         *zap.Logger
}

func New(p Params) *Server {
	if p.Cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		cfg:         p.Cfg,
		checkout:    p.Checkout,
		webhooks:    p.Webhooks,
		orders:      p.Orders,
		enrollments: p.Enrollments,
		instructors: p.Instructors,
		paypal:      p.PayPal,
		log:         p.Log.Named("http"),
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(errorHandler(s.log))

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "version": p.Cfg.AppVersion})
	})
	engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(p.Registry, promhttp.HandlerOpts{})))

	api := engine.Group("/api")
	{
		api.POST("/checkout", s.handleCheckout)
		api.GET("/orders", s.handleListOrders)
		api.GET("/orders/:id", s.handleGetOrder)
		api.GET("/enrollments", s.handleListEnrollments)
		api.GET("/instructors/:id/balance", s.handleInstructorBalance)
		api.POST("/payments/webhooks/:provider", s.handleWebhook)
		api.POST("/payments/paypal/:id/capture", s.handlePayPalCapture)
	}

	s.engine = engine
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func registerHooks(lc fx.Lifecycle, s *Server) {
	srv := &http.Server{
		Addr:    s.cfg.HTTPAddr,
		Handler: s.engine,
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			s.log.Info("http server starting", zap.String("addr", s.cfg.HTTPAddr))
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.Error("http server stopped", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

var Module = fx.Module("server",
	fx.Provide(New),
	fx.Invoke(registerHooks),
)
