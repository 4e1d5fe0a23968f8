package handler

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	C "pitchmetrics/config"
	mid "pitchmetrics/middleware"
)

func InitRoutes(r *gin.Engine) {
	// CORS
	if C.IsDevelopment() {
		log.Info("Running in development.")
		config := cors.DefaultConfig()
		config.AllowOrigins = []string{"http://localhost:8080",
			"http://localhost:3000"}
		r.Use(cors.New(config))
	}

	r.Use(mid.RequestIdGenerator())

	r.POST("/events", CreateEventHandler)

	r.POST("/funnels", CreateFunnelHandler)
	r.PUT("/funnels/:funnel_id", UpdateFunnelHandler)
	r.GET("/funnels/:funnel_id/analyze", AnalyzeFunnelHandler)
	r.POST("/funnels/:funnel_id/recompute", RecomputeFunnelHandler)

	r.POST("/cohorts", CreateCohortHandler)
	r.POST("/cohorts/:cohort_id/refresh", RefreshCohortHandler)
	r.GET("/cohorts/:cohort_id/analyze", AnalyzeCohortHandler)
}
