package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/run-uniqueness/internal/config"
	"github.com/jengzang/run-uniqueness/internal/handler"
	"github.com/jengzang/run-uniqueness/internal/middleware"
	"github.com/jengzang/run-uniqueness/internal/service"
)

// SetupRouter 设置路由
func SetupRouter(cfg *config.Config, uniquenessService *service.UniquenessService, taskService *service.AnalysisTaskService, statsService *service.StatsService) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())

	// CORS 中间件
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	if cfg.Security.RateLimitRPS > 0 {
		r.Use(middleware.NewRateLimiter(cfg.Security.RateLimitRPS, cfg.Security.RateLimitBurst).Middleware())
	}

	// 健康检查
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"message":   "Run uniqueness API is running",
			"algorithm": cfg.Uniqueness.Algorithm,
		})
	})

	uniquenessHandler := handler.NewUniquenessHandler(uniquenessService)
	taskHandler := handler.NewAnalysisTaskHandler(taskService)
	statsHandler := handler.NewStatsHandler(statsService)

	// API 路由组
	api := r.Group("/api/v1")
	{
		activities := api.Group("/activities")
		{
			activities.POST("", uniquenessHandler.ImportActivities)
			activities.GET("/:id/uniqueness", uniquenessHandler.GetUniqueness)
		}

		api.POST("/uniqueness/score", uniquenessHandler.ScoreActivity)
		api.GET("/uniqueness/stats", statsHandler.GetUniquenessStatistics)

		admin := api.Group("/admin", middleware.JWTAuth(cfg.Security.JWTSecret))
		{
			tasks := admin.Group("/analysis/tasks")
			{
				tasks.POST("", taskHandler.CreateTask)
				tasks.GET("", taskHandler.ListTasks)
				tasks.GET("/:id", taskHandler.GetTask)
				tasks.DELETE("/:id", taskHandler.CancelTask)
			}
		}
	}

	return r
}
