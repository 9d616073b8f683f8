package server

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/fx"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/joinparent"
	joinparentdomain "github.com/assemblee/assemblee/internal/joinparent/domain"
	"github.com/assemblee/assemblee/internal/notification"
	notificationdomain "github.com/assemblee/assemblee/internal/notification/domain"
	"github.com/assemblee/assemblee/internal/observability"
	obsmiddleware "github.com/assemblee/assemblee/internal/observability/logger"
	obsmetrics "github.com/assemblee/assemblee/internal/observability/metrics"
	obstracing "github.com/assemblee/assemblee/internal/observability/tracing"
	"github.com/assemblee/assemblee/internal/organization"
	organizationdomain "github.com/assemblee/assemblee/internal/organization/domain"
	"github.com/assemblee/assemblee/internal/ratelimit"
	"github.com/assemblee/assemblee/internal/user"
)

var Module = fx.Module("http.server",
	config.Module,
	fx.Provide(registerGin),
	user.Module,
	organization.Module,
	joinparent.Module,
	notification.Module,
	ratelimit.Module,
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics) *gin.Engine {
	return NewEngine(obsCfg, httpMetrics)
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
	db              *gorm.DB
	genID           *snowflake.Node
	organizationSvc organizationdomain.Service
	joinParentSvc   joinparentdomain.Service
	notificationSvc notificationdomain.Service
	writeLimiter    *ratelimit.WriteLimiter
	obsMetrics      *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin             *gin.Engine
	Cfg             config.Config
	DB              *gorm.DB
	GenID           *snowflake.Node
	OrganizationSvc organizationdomain.Service
	JoinParentSvc   joinparentdomain.Service
	NotificationSvc notificationdomain.Service
	WriteLimiter    *ratelimit.WriteLimiter `optional:"true"`
	ObsMetrics      *obsmetrics.Metrics     `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:          p.Gin,
		cfg:             p.Cfg,
		db:              p.DB,
		genID:           p.GenID,
		organizationSvc: p.OrganizationSvc,
		joinParentSvc:   p.JoinParentSvc,
		notificationSvc: p.NotificationSvc,
		writeLimiter:    p.WriteLimiter,
		obsMetrics:      p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) registerAPIRoutes() {
	api := s.engine.Group("/api/v1", s.AuthRequired())

	write := s.WriteRateLimit()

	orgs := api.Group("/organizations")
	orgs.POST("", write, s.CreateOrganization)
	orgs.GET("/:org_id", s.GetOrganization)
	orgs.POST("/:org_id/archive", write, s.ArchiveOrganization)

	orgs.POST("/:org_id/join", write, s.JoinOrganization)
	orgs.DELETE("/:org_id/join", write, s.CancelJoinOrganization)

	orgs.GET("/:org_id/join-parent", s.GetJoinParentRequest)
	orgs.GET("/:org_id/join-parent/incoming", s.ListIncomingJoinParentRequests)
	orgs.GET("/:org_id/join-parent/history", s.ListJoinParentHistory)

	requests := api.Group("/join-parent-requests")
	requests.POST("", write, s.CreateJoinParentRequest)
	requests.POST("/:request_id/handle", write, s.HandleJoinParentRequest)
	requests.DELETE("/:request_id", write, s.CancelJoinParentRequest)

	notifications := api.Group("/notifications")
	notifications.GET("", s.ListNotifications)
	notifications.POST("/:notification_id/read", write, s.MarkNotificationRead)
}
