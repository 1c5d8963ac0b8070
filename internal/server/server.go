package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sparkmatch/sparkmatch/internal/balance"
	balancedomain "github.com/sparkmatch/sparkmatch/internal/balance/domain"
	"github.com/sparkmatch/sparkmatch/internal/broadcast"
	"github.com/sparkmatch/sparkmatch/internal/cache"
	"github.com/sparkmatch/sparkmatch/internal/config"
	"github.com/sparkmatch/sparkmatch/internal/connectivity"
	"github.com/sparkmatch/sparkmatch/internal/kvcache"
	"github.com/sparkmatch/sparkmatch/internal/migration"
	obsmetrics "github.com/sparkmatch/sparkmatch/internal/observability/metrics"
	"github.com/sparkmatch/sparkmatch/internal/payment"
	paymentdomain "github.com/sparkmatch/sparkmatch/internal/payment/domain"
	"github.com/sparkmatch/sparkmatch/internal/pending"
	pendingdomain "github.com/sparkmatch/sparkmatch/internal/pending/domain"
	"github.com/sparkmatch/sparkmatch/internal/remote"
	"github.com/sparkmatch/sparkmatch/internal/subscription"
	subscriptiondomain "github.com/sparkmatch/sparkmatch/internal/subscription/domain"
	"github.com/sparkmatch/sparkmatch/internal/syncer"
	"github.com/sparkmatch/sparkmatch/internal/transaction"
	transactiondomain "github.com/sparkmatch/sparkmatch/internal/transaction/domain"
	"github.com/sparkmatch/sparkmatch/internal/usage"
	usagedomain "github.com/sparkmatch/sparkmatch/internal/usage/domain"
	"github.com/sparkmatch/sparkmatch/internal/usercontext"
	"go.uber.org/fx"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	broadcast.Module,
	cache.Module,
	kvcache.Module,
	connectivity.Module,
	remote.Module,
	obsmetrics.Module,
	migration.Module,
	balance.Module,
	usage.Module,
	subscription.Module,
	pending.Module,
	transaction.Module,
	payment.Module,
	syncer.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(cfg config.Config) *gin.Engine {
	return NewEngine(cfg)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
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

type Server struct {
	engine          *gin.Engine
	cfg             config.Config
	balanceSvc      balancedomain.Service
	usageSvc        usagedomain.Service
	subscriptionSvc subscriptiondomain.Service
	transactionSvc  transactiondomain.Service
	paymentSvc      paymentdomain.Service
	pendingSvc      pendingdomain.Service
	syncEngine      *syncer.Engine
	watcher         *connectivity.Watcher
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	BalanceSvc      balancedomain.Service
	UsageSvc        usagedomain.Service
	SubscriptionSvc subscriptiondomain.Service
	TransactionSvc  transactiondomain.Service
	PaymentSvc      paymentdomain.Service
	PendingSvc      pendingdomain.Service
	SyncEngine      *syncer.Engine
	Watcher         *connectivity.Watcher
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		balanceSvc:      p.BalanceSvc,
		usageSvc:        p.UsageSvc,
		subscriptionSvc: p.SubscriptionSvc,
		transactionSvc:  p.TransactionSvc,
		paymentSvc:      p.PaymentSvc,
		pendingSvc:      p.PendingSvc,
		syncEngine:      p.SyncEngine,
		watcher:         p.Watcher,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1", s.UserContextMiddleware())

	v1.GET("/balance", s.GetBalance)
	v1.POST("/balance/debit", s.DebitBalance)
	v1.POST("/balance/credit", s.CreditBalance)

	v1.GET("/usage", s.GetUsageHistory)
	v1.GET("/usage/breakdown", s.GetUsageBreakdown)

	v1.GET("/subscription", s.GetSubscription)
	v1.POST("/subscription", s.CreateSubscription)
	v1.DELETE("/subscription", s.CancelSubscription)
	v1.PUT("/subscription/auto-renew", s.SetAutoRenew)

	v1.GET("/catalog/packages", s.ListPackages)
	v1.GET("/catalog/plans", s.ListPlans)

	v1.POST("/purchases", s.InitiatePurchase)
	v1.POST("/purchases/complete", s.CompletePurchase)
	v1.POST("/purchases/:order_id/cancel", s.CancelPurchase)
	v1.POST("/purchases/:order_id/refund", s.RefundPurchase)
	v1.GET("/transactions", s.ListTransactions)

	v1.POST("/sync", s.TriggerSync)
	v1.GET("/sync/status", s.SyncStatus)
	v1.PUT("/connectivity", s.SetConnectivity)
}

// UserContextMiddleware stamps the configured local identity onto the
// request context. Every downstream service resolves the user from there.
func (s *Server) UserContextMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := usercontext.WithUserID(c.Request.Context(), s.cfg.UserID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
