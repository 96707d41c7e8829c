package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	behavioraldomain "github.com/pulselens/pulselens/internal/behavioral/domain"
	"github.com/pulselens/pulselens/internal/config"
	eventdomain "github.com/pulselens/pulselens/internal/event/domain"
	expansiondomain "github.com/pulselens/pulselens/internal/expansion/domain"
	obsmetrics "github.com/pulselens/pulselens/internal/observability/metrics"
	onboardingdomain "github.com/pulselens/pulselens/internal/onboarding/domain"
	"github.com/pulselens/pulselens/internal/ratelimit"
	renewaldomain "github.com/pulselens/pulselens/internal/renewal/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Provide(NewServer),
	fx.Invoke(func(*Server) {}),
	fx.Invoke(run),
)

func NewEngine(cfg config.Config, log *zap.Logger) *gin.Engine {
	if !cfg.IsDev() {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogging(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func run(lc fx.Lifecycle, r *gin.Engine, cfg config.Config, log *zap.Logger) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				log.Info("http server listening", zap.String("addr", cfg.HTTPAddr))
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
	engine        *gin.Engine
	cfg           config.Config
	log           *zap.Logger
	eventSvc      eventdomain.Service
	renewalSvc    renewaldomain.Service
	behavioralSvc behavioraldomain.Service
	onboardingSvc onboardingdomain.Service
	expansionSvc  expansiondomain.Service
	ingestLimiter *ratelimit.IngestLimiter
	obsMetrics    *obsmetrics.Metrics
}

type ServerParams struct {
	fx.In

	Gin           *gin.Engine
	Cfg           config.Config
	Log           *zap.Logger
	EventSvc      eventdomain.Service
	RenewalSvc    renewaldomain.Service
	BehavioralSvc behavioraldomain.Service
	OnboardingSvc onboardingdomain.Service
	ExpansionSvc  expansiondomain.Service
	IngestLimiter *ratelimit.IngestLimiter `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics      `optional:"true"`
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:        p.Gin,
		cfg:           p.Cfg,
		log:           p.Log.Named("http.server"),
		eventSvc:      p.EventSvc,
		renewalSvc:    p.RenewalSvc,
		behavioralSvc: p.BehavioralSvc,
		onboardingSvc: p.OnboardingSvc,
		expansionSvc:  p.ExpansionSvc,
		ingestLimiter: p.IngestLimiter,
		obsMetrics:    p.ObsMetrics,
	}

	svc.registerAPIRoutes()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerAPIRoutes() {
	v1 := s.engine.Group("/v1")

	// -------- Events --------
	v1.POST("/events", s.EventIngestRateLimit(), s.RecordEvent)
	v1.POST("/events/batch", s.EventIngestRateLimit(), s.RecordEventBatch)
	v1.GET("/events", s.ListEvents)

	// -------- Companies --------
	v1.GET("/companies", s.ListCompanies)
	v1.DELETE("/companies/:id/events", s.ResetCompanyEvents)
	v1.GET("/companies/:id/health", s.GetRenewalHealth)
	v1.GET("/companies/:id/trend", s.GetUsageTrend)
	v1.GET("/companies/:id/onboarding", s.GetOnboardingHealth)
	v1.GET("/companies/:id/expansion", s.GetExpansionPrediction)
	v1.PUT("/companies/:id/seat-license", s.SetSeatLicense)
	v1.PUT("/companies/:id/onboarding-start", s.SetOnboardingStart)

	// -------- Batch scoring --------
	v1.POST("/health:batch", s.BatchRenewalHealth)
	v1.POST("/trend:batch", s.BatchUsageTrend)
	v1.POST("/onboarding:batch", s.BatchOnboardingHealth)
	v1.POST("/expansion:batch", s.BatchExpansionPrediction)
}
