package routes

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/mbaye/projecthub/config"
	"github.com/mbaye/projecthub/controllers"
	"github.com/mbaye/projecthub/middleware"
	"github.com/mbaye/projecthub/models"
	"github.com/mbaye/projecthub/storage"
	"github.com/mbaye/projecthub/utils"
)

// SetupRouter wires routes, middlewares, and controllers.
func SetupRouter(db *gorm.DB, store storage.BlobStore) *gin.Engine {
	// Load config and set Gin mode from configuration
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	authController := controllers.NewAuthController(db)
	adminController := controllers.NewAdminController(db)
	classController := controllers.NewClassController(db)
	projectController := controllers.NewProjectController(db, store)
	taskController := controllers.NewTaskController(db, store)
	attachmentController := controllers.NewAttachmentController(db, store)

	api := r.Group("/api/v1")

	authGroup := api.Group("/auth")
	authGroup.Use(middleware.RateLimitMiddleware())
	authGroup.POST("/register", authController.Register)
	authGroup.POST("/login", authController.Login)
	authGroup.POST("/logout", middleware.AuthRequired(), authController.Logout)
	authGroup.GET("/me", middleware.AuthRequired(), authController.Me)
	authGroup.PATCH("/profile", middleware.AuthRequired(), authController.UpdateProfile)

	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AuthRequired(), middleware.RoleRequired(models.RoleAdmin))
	adminGroup.GET("/users", adminController.ListUsers)
	adminGroup.PATCH("/users/:id/validate", adminController.ValidateUser)
	adminGroup.DELETE("/users/:id", adminController.DeleteUser)
	adminGroup.GET("/stats", adminController.Stats)

	classGroup := api.Group("/classes")
	classGroup.Use(middleware.AuthRequired())
	classGroup.GET("", classController.ListClasses)
	classGroup.GET("/:id", classController.GetClass)
	classGroup.GET("/:id/students", classController.ListStudents)
	classGroup.POST("", middleware.RoleRequired(models.RoleAdmin), classController.CreateClass)
	classGroup.PUT("/:id", middleware.RoleRequired(models.RoleAdmin), classController.UpdateClass)
	classGroup.DELETE("/:id", middleware.RoleRequired(models.RoleAdmin), classController.DeleteClass)
	classGroup.POST("/:id/teachers", middleware.RoleRequired(models.RoleAdmin), classController.AssignTeacher)
	classGroup.DELETE("/:id/teachers/:teacherId", middleware.RoleRequired(models.RoleAdmin), classController.UnassignTeacher)

	projectGroup := api.Group("/projects")
	projectGroup.Use(middleware.AuthRequired())
	projectGroup.GET("", projectController.ListProjects)
	projectGroup.GET("/:id", projectController.GetProject)
	projectGroup.GET("/:id/tasks", taskController.ListProjectTasks)
	projectGroup.POST("", middleware.RoleRequired(models.RoleTeacher), projectController.CreateProject)
	projectGroup.PUT("/:id", middleware.RoleRequired(models.RoleTeacher), projectController.UpdateProject)
	projectGroup.DELETE("/:id", middleware.RoleRequired(models.RoleTeacher), projectController.DeleteProject)
	projectGroup.POST("/:id/tasks", middleware.RoleRequired(models.RoleTeacher), taskController.CreateTask)

	taskGroup := api.Group("/tasks")
	taskGroup.Use(middleware.AuthRequired())
	taskGroup.GET("/assigned", middleware.RoleRequired(models.RoleStudent), taskController.ListAssignedTasks)
	taskGroup.GET("/:id", taskController.GetTask)
	taskGroup.PUT("/:id", taskController.UpdateTask)
	taskGroup.DELETE("/:id", middleware.RoleRequired(models.RoleTeacher), taskController.DeleteTask)

	attachmentGroup := api.Group("/attachments")
	attachmentGroup.Use(middleware.AuthRequired())
	attachmentGroup.POST("", middleware.RoleRequired(models.RoleTeacher), attachmentController.Upload)
	attachmentGroup.GET("/entity/:kind/:id", attachmentController.ListByEntity)
	attachmentGroup.GET("/id/:id/view", attachmentController.View)
	attachmentGroup.GET("/id/:id/signed", attachmentController.Signed)
	attachmentGroup.GET("/id/:id/stream", attachmentController.Stream)
	attachmentGroup.GET("/id/:id/download", attachmentController.Download)
	attachmentGroup.DELETE("/:id", middleware.RoleRequired(models.RoleTeacher), attachmentController.Delete)

	return r
}
