package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/reliefconnect/api/internal/lifecycle"
	"github.com/reliefconnect/api/internal/middleware"
	"github.com/reliefconnect/api/internal/mission"
	"github.com/reliefconnect/api/internal/query"
	"github.com/reliefconnect/api/internal/realtime"
	"github.com/reliefconnect/api/internal/report"
)

// ActionCreateRequest is the rate limiter rule applied to POST /api/requests.
const ActionCreateRequest = "create_request"

type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the components the router serves. Hub, Limiter and Analyzer may
// be nil; the matching features are then off.
type Deps struct {
	Requests *lifecycle.Manager
	Views    *query.Service
	Missions *mission.Engine
	Reports  *report.Aggregator
	Analyzer Analyzer
	Hub      *realtime.Hub
	Limiter  middleware.RateChecker
	Store    Pinger
}

func NewRouter(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(middleware.CORS())
	r.Use(middleware.MetricsMiddleware())

	r.GET("/health", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := d.Store.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if d.Hub != nil {
		r.GET("/ws", gin.WrapF(d.Hub.Serve))
	}

	var events Publisher = d.Hub
	requests := NewRequestHandler(d.Requests, d.Views, events)
	missions := NewMissionHandler(d.Missions, events)
	reports := NewReportHandler(d.Reports, events)

	api := r.Group("/api")
	{
		// Requests
		api.POST("/requests", middleware.RateLimit(d.Limiter, ActionCreateRequest), requests.Create)
		api.GET("/requests", requests.List)
		api.GET("/requests/:id", requests.Get)
		api.PATCH("/requests", requests.UpdateStatus)

		// Missions
		api.POST("/missions", missions.Accept)
		api.PATCH("/missions", missions.Complete)
		api.POST("/missions/retry", missions.Retry)

		// Reports
		api.POST("/reports", reports.Create)
		api.GET("/reports", reports.List)

		api.GET("/stats", requests.Stats)

		if d.Analyzer != nil {
			api.POST("/analyze-request", NewAnalyzeHandler(d.Analyzer).Analyze)
		}
	}
	return r
}
