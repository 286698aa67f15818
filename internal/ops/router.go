// Package ops exposes the auxiliary HTTP surface of the bot: liveness,
// readiness, and Prometheus metrics. Nothing here is user-facing, the
// bot's only product surface is Telegram, so the server carries no
// authentication and is expected to listen on an internal address.
package ops

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// readyTimeout bounds the DB ping behind /readyz.
const readyTimeout = 2 * time.Second

// NewRouter builds the ops router: /healthz, /readyz, /metrics.
//
//   - /healthz always answers 200 while the process is serving.
//   - /readyz pings the catalog database and answers 503 when it is
//     unreachable, so orchestration can hold traffic-independent restarts
//     until the catalog is back.
//   - /metrics serves the provided Prometheus gatherer.
func NewRouter(db *gorm.DB, gatherer prometheus.Gatherer) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gzip.Gzip(gzip.DefaultCompression))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/readyz", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readyTimeout)
		defer cancel()

		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(ctx)
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	return r
}
