package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/config"
	v1 "github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/handler/v1"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/internal/middleware"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/auth"
	"github.com/Dhivya2345/Post-Operative-Patient-Management-System/pkg/metrics"
)

type RouterDeps struct {
	Records  *v1.MedicalRecordHandler
	Identity auth.IdentityProvider
	Metrics  *metrics.Collector
	// DB is pinged by /healthz; nil skips the check.
	DB  *gorm.DB
	Log *zap.Logger
}

func NewRouter(cfg *config.Config, deps RouterDeps) *gin.Engine {
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.MaxMultipartMemory = 8 << 20
	r.Use(
		gin.Recovery(),
		middleware.RequestContext(),
		middleware.CORS(cfg.CORS),
		middleware.Metrics(deps.Metrics),
		middleware.RequestLogger(deps.Log),
	)
	if cfg.Tracing.Enabled {
		r.Use(otelgin.Middleware(cfg.Tracing.ServiceName))
	}

	r.GET("/healthz", healthz(deps.DB))
	r.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	api := r.Group("/api/v1", middleware.AttachBearerToken())
	deps.Records.RegisterRoutes(api, middleware.RequireIdentity(deps.Identity))

	return r
}

func healthz(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
