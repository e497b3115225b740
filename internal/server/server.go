package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/smallbiznis/gavel/internal/arbiter"
	attendancedomain "github.com/smallbiznis/gavel/internal/attendance/domain"
	auctiondomain "github.com/smallbiznis/gavel/internal/auction/domain"
	ledgerdomain "github.com/smallbiznis/gavel/internal/bidledger/domain"
	"github.com/smallbiznis/gavel/internal/config"
	highbiddomain "github.com/smallbiznis/gavel/internal/highbid/domain"
	"github.com/smallbiznis/gavel/internal/notifier"
	ownershipdomain "github.com/smallbiznis/gavel/internal/ownership/domain"
	"github.com/smallbiznis/gavel/internal/stats"
)

var Module = fx.Module("http.server",
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, registry *prometheus.Registry) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogMiddleware())
	r.Use(NodeHeaderMiddleware(cfg.NodeNumber))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	return r
}

func registerGin(cfg config.Config, registry *prometheus.Registry) *gin.Engine {
	return NewEngine(cfg, registry)
}

type Server struct {
	engine        *gin.Engine
	cfg           config.Config
	db            *gorm.DB
	arbiter       *arbiter.Arbiter
	notifier      *notifier.Notifier
	metrics       *stats.Metrics
	ledgerSvc     ledgerdomain.Service
	attendanceSvc attendancedomain.Service
	auctions      auctiondomain.Repository
	highBids      highbiddomain.Repository
	owners        ownershipdomain.Service
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	DB            *gorm.DB
	Arbiter       *arbiter.Arbiter
	Notifier      *notifier.Notifier
	Metrics       *stats.Metrics
	LedgerSvc     ledgerdomain.Service
	AttendanceSvc attendancedomain.Service
	Auctions      auctiondomain.Repository
	HighBids      highbiddomain.Repository
	Owners        ownershipdomain.Service
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		db:            p.DB,
		arbiter:       p.Arbiter,
		notifier:      p.Notifier,
		metrics:       p.Metrics,
		ledgerSvc:     p.LedgerSvc,
		attendanceSvc: p.AttendanceSvc,
		auctions:      p.Auctions,
		highBids:      p.HighBids,
		owners:        p.Owners,
	}

	svc.registerBidRoutes()
	svc.registerItemRoutes()
	svc.registerAttendanceRoutes()

	return svc
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
