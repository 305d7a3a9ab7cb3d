package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/ktr1133/MyTeacherApp-sub003/controllers"
	"github.com/ktr1133/MyTeacherApp-sub003/middleware"
)

func RegisterRoutes(r *gin.Engine, internalToken string, reportController *controllers.ReportController, performanceController *controllers.PerformanceController) {
	// 需要认证的路由
	private := r.Group("/api/v1")
	private.Use(middleware.AuthMiddleware()) // 应用认证中间件
	{
		// 实绩图表接口
		private.GET("/performance", performanceController.GetPerformance)
		private.GET("/groups/:groupId/performance", performanceController.GetGroupPerformance)

		// 月度报告接口
		private.GET("/groups/:groupId/reports/months", reportController.GetAvailableMonths)
		private.GET("/groups/:groupId/reports/:yearMonth", reportController.GetMonthlyReport)
		private.GET("/groups/:groupId/reports/:yearMonth/trend", reportController.GetTrend)
		private.GET("/groups/:groupId/reports/:yearMonth/classification", reportController.GetClassification)
	}

	// 内部路由组（仅限服务器内部调用，定时任务触发）
	internal := r.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(internalToken))
	{
		internal.POST("/reports/generate", reportController.GenerateReport)
		internal.POST("/reports/generate-all", reportController.GenerateAllReports)
		internal.POST("/reports/cleanup", reportController.CleanupReports)
	}

	// 测试路由
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(200, gin.H{"message": "pong"})
	})
}
