package router

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"shopfloor/backend/config"
	"shopfloor/backend/internal/api/handler"
	"shopfloor/backend/internal/api/middleware"
	"shopfloor/backend/pkg/redis"
)

// Setup 初始化并返回 Gin 路由引擎
func Setup(cfg *config.Config, h *handler.Handler, rdb *redis.Client, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()

	// ── 全局中间件 ──
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.SecurityHeaders())
	r.Use(middleware.CORS(cfg.Server.CORS.AllowOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	// ── 健康检查 ──
	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ── API v1 ──
	v1 := r.Group("/api/v1")
	{
		// 排产模块
		orders := v1.Group("/orders")
		{
			orders.POST("/:id/schedule", h.Schedule.Generate)
			orders.GET("/:id/schedule", h.Schedule.GetByOrder)
			orders.GET("/:id/schedule/export", h.Export.ExportSchedule)
		}
		v1.POST("/schedules/:id/replan", h.Schedule.Replan)

		// 生产报工模块
		entries := v1.Group("/entries")
		{
			entries.POST("/:id/start", h.Production.RecordStart)
			entries.POST("/:id/complete", h.Production.RecordCompletion)
		}

		// 产能分析模块（纯读）
		analytics := v1.Group("/analytics")
		{
			analytics.GET("/deadline-risks", h.Capacity.DeadlineRisks)
			analytics.GET("/overtime", h.Capacity.OvertimeProjections)
			analytics.GET("/capacity", h.Capacity.CapacityAnalysis)
		}

		// 工人与熟练度模块
		workers := v1.Group("/workers")
		{
			workers.GET("", h.Worker.ListWorkers)
			workers.GET("/:id", h.Worker.GetWorker)
			workers.GET("/:id/proficiency/:stepId", h.Worker.GetProficiency)
			workers.PUT("/:id/proficiency/:stepId", h.Worker.SetProficiency)
			workers.GET("/:id/proficiency-history", h.Worker.ListProficiencyHistory)
		}

		// 假日日历模块
		holidays := v1.Group("/holidays")
		{
			holidays.GET("", h.Calendar.ListHolidays)
			holidays.POST("", h.Calendar.CreateHoliday)
			holidays.DELETE("/:id", h.Calendar.DeleteHoliday)
			// ICS 导入触发外部拉取，单独限流
			holidays.POST("/import-ics",
				middleware.RateLimit(rdb, 5, time.Minute),
				h.Calendar.ImportICS)
		}
	}

	return r
}
