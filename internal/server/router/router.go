package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/mamadbah2/harvest/internal/server/handlers"
)

// Handlers groups the HTTP adapters the router mounts.
type Handlers struct {
	Harvest       *handlers.HarvestHandler
	Silobags      *handlers.SilobagHandler
	Logistics     *handlers.LogisticsHandler
	Sync          *handlers.SyncHandler
	Subscriptions *handlers.SubscriptionHandler
}

// New wires the Gin engine with required routes and middlewares.
func New(h Handlers, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(zapLoggerMiddleware(logger))

	sessions := r.Group("/sessions")
	sessions.POST("", h.Harvest.StartSession)
	sessions.PATCH("/:id/manager", h.Harvest.UpdateManager)
	sessions.PUT("/:id/harvesters", h.Harvest.UpsertHarvesters)
	sessions.PATCH("/:id/progress", h.Harvest.UpdateProgress)
	sessions.POST("/:id/registers", h.Harvest.AddRegister)
	sessions.PUT("/:id/registers/:registerId", h.Harvest.UpdateRegister)
	sessions.DELETE("/:id/registers/:registerId", h.Harvest.DeleteRegister)

	silobags := r.Group("/silobags")
	silobags.POST("", h.Silobags.Create)
	silobags.POST("/:id/extractions", h.Silobags.Extract)
	silobags.POST("/:id/close", h.Silobags.Close)

	r.POST("/logistics", h.Logistics.Create)
	r.PATCH("/logistics/:id/status", h.Logistics.UpdateStatus)

	r.POST("/sync", h.Sync.Drain)
	r.GET("/sync/status", h.Sync.Status)
	r.GET("/sync/queue", h.Sync.Queue)

	r.GET("/subscriptions/:collection", h.Subscriptions.Stream)

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	if logger != nil {
		logger.Info("router initialized")
	}

	return r
}

func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		logger.Info("request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()))
	}
}
