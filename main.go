package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ktr1133/MyTeacherApp-sub003/config"
	"github.com/ktr1133/MyTeacherApp-sub003/controllers"
	"github.com/ktr1133/MyTeacherApp-sub003/middleware"
	"github.com/ktr1133/MyTeacherApp-sub003/repositories"
	"github.com/ktr1133/MyTeacherApp-sub003/routes"
	"github.com/ktr1133/MyTeacherApp-sub003/services"
	"github.com/ktr1133/MyTeacherApp-sub003/utils"
)

func main() {
	// 初始化日志
	if err := config.InitLogger(); err != nil {
		log.Fatalf("无法初始化日志: %v", err)
	}
	defer config.Logger.Sync()

	// 加载配置
	conf, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("无法加载配置: %v", err)
		return
	}

	// 初始化JWT密钥
	utils.InitJWT(conf.JWTSecret)

	// 初始化数据库
	if err := config.InitDB(conf); err != nil {
		log.Fatalf("无法初始化数据库: %v", err)
		return
	}

	// 数据库迁移
	if err := config.MigrateDB(); err != nil {
		log.Fatalf("无法迁移数据库: %v", err)
		return
	}

	// 初始化Redis
	if err := config.InitRedis(conf); err != nil {
		log.Fatalf("无法初始化Redis: %v", err)
		return
	}

	// 初始化Deepseek客户端
	deepseekClient, err := services.NewDeepseekClient(conf.DeepseekAPIKey, conf.DeepseekAPIEndpoint)
	if err != nil {
		log.Fatalf("无法初始化Deepseek客户端: %v", err)
	}

	// 组装服务
	reportRepo := repositories.NewReportRepository(config.DB)
	reportStore := repositories.NewReportStore(config.DB)
	aiService := services.NewReportAIService(deepseekClient)
	changeService := services.NewChangeService(services.DefaultChangeThreshold)
	subscriptionService := services.NewSubscriptionService()
	performanceService := services.NewPerformanceService(reportRepo)
	reportService := services.NewMonthlyReportService(reportStore, aiService, changeService, subscriptionService)
	classifierService := services.NewClassifierService(services.DefaultTaskCategories)

	reportController := controllers.NewReportController(reportService, classifierService)
	performanceController := controllers.NewPerformanceController(performanceService)

	// 设置Gin模式
	if conf.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建Gin引擎
	r := gin.New()

	// 设置中间件
	middleware.SetupMiddleware(r)

	// 注册路由
	routes.RegisterRoutes(r, conf.InternalAuthToken, reportController, performanceController)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:    ":" + conf.ServerPort,
		Handler: r,
	}

	// 在goroutine中启动服务器
	go func() {
		config.Logger.Infow("启动服务器", "port", conf.ServerPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("服务器启动失败: %v", err)
		}
	}()

	// 等待中断信号以实现优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	config.Logger.Infow("正在关闭服务器...")

	// 创建超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// 优雅关闭服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务器关闭失败: %v", err)
	}

	config.Logger.Infow("服务器已关闭")
}
