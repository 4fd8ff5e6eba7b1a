package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-focus-api/internal/handler"
	"github.com/noah-isme/sma-focus-api/internal/middleware"
	"github.com/noah-isme/sma-focus-api/internal/models"
	"github.com/noah-isme/sma-focus-api/internal/service"
	"github.com/noah-isme/sma-focus-api/pkg/config"
	"github.com/noah-isme/sma-focus-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-focus-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-focus-api/pkg/middleware/requestid"
)

type routerDeps struct {
	auth       middleware.TokenValidator
	metrics    *service.MetricsService
	students   middleware.StudentResolver
	analytics  *handler.AnalyticsHandler
	attendance *handler.AttendanceHandler
	authH      *handler.AuthHandler
	ops        *handler.MetricsHandler
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS))
	r.Use(middleware.Metrics(deps.metrics))

	r.GET("/health", deps.ops.Health)
	r.GET("/ready", deps.ops.Ready)
	r.GET("/metrics", deps.ops.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	api.Use(middleware.WithResponseMeta())
	api.POST("/auth/login", deps.authH.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.auth))
	secured.GET("/auth/me", deps.authH.Me)

	staff := middleware.RequireRoles(models.RoleTeacher, models.RoleAdmin)

	analytics := secured.Group("/analytics")
	analytics.POST("/process", deps.analytics.Process)
	analytics.GET("/focus/:studentId", middleware.StudentSelf(deps.students, "studentId"), deps.analytics.StudentFocus)
	analytics.GET("/trends/:studentId", middleware.StudentSelf(deps.students, "studentId"), deps.analytics.Trends)
	analytics.GET("/class/:classId", staff, deps.analytics.Class)
	analytics.GET("/class/:classId/export", staff, deps.analytics.ClassExport)
	analytics.GET("/dashboard", staff, deps.analytics.Dashboard)
	analytics.GET("/system", middleware.RequireRoles(models.RoleAdmin), deps.analytics.System)

	attendance := secured.Group("/attendance")
	attendance.POST("/mark", deps.attendance.Mark)
	attendance.GET("/student/:studentId", middleware.StudentSelf(deps.students, "studentId"), deps.attendance.Student)
	attendance.GET("/class/:classId", staff, deps.attendance.Class)
	attendance.GET("/today", staff, deps.attendance.Today)
	attendance.GET("/report", staff, deps.attendance.Report)
	attendance.PUT("/:id", staff, deps.attendance.Update)

	return r
}
