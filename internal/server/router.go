// Package server wires services, handlers and middleware into the HTTP router.
package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"

	"cashbook/internal/config"
	_ "cashbook/internal/docs" // swagger docs
	"cashbook/internal/handlers"
	"cashbook/internal/middleware"
	"cashbook/internal/models"
	"cashbook/internal/services"
	"cashbook/internal/storage"
)

// multipartOverhead is allowed on top of the receipt size limit for the
// multipart framing around the file.
const multipartOverhead = 1 << 20

// App is the assembled application.
type App struct {
	Router *gin.Engine
	Users  services.UserServicer
	Ledger services.LedgerServicer
}

// New builds every service and handler on db and registers the routes.
func New(cfg *config.Config, db *gorm.DB, receipts *storage.LocalStore) *App {
	// Services
	ledgerService := services.NewLedgerService(db)
	userService := services.NewUserService(db, cfg.SignupSecretCode)
	bookService := services.NewBookService(db, ledgerService)
	transactionService := services.NewTransactionService(db, bookService, ledgerService, cfg.DisplayTimezone)
	reportService := services.NewReportService(db, bookService)
	auditService := services.NewAuditService(db)

	display := handlers.Display{Location: cfg.DisplayTimezone, BaseURL: cfg.PublicBaseURL}

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	bookHandler := handlers.NewBookHandler(bookService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService, receipts, display)
	reportHandler := handlers.NewReportHandler(reportService, display)
	adminHandler := handlers.NewAdminHandler(userService, transactionService, auditService, display)
	pipelineHandler := handlers.NewPipelineHandler(ledgerService, auditService)

	router := gin.New()
	router.Use(middleware.RequestLogging())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key, X-Request-ID")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-Request-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.Static("/"+storage.PublicPrefix, receipts.Dir())

	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Automation
	pipeline := v1.Group("/pipeline")
	pipeline.Use(middleware.PipelineAuthMiddleware(cfg.PipelineAPIKey))
	pipeline.POST("/reconcile", pipelineHandler.Reconcile)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware(userService))

	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile", authHandler.UpdateProfile)
	protected.PUT("/profile/preferences", authHandler.UpdatePreferences)
	protected.PUT("/profile/password", authHandler.ChangePassword)
	protected.GET("/users/search", authHandler.SearchUsers)
	protected.GET("/users/batch", authHandler.BatchUsers)

	books := protected.Group("/books")
	books.GET("", bookHandler.ListBooks)
	books.POST("", bookHandler.CreateBook)
	books.GET("/:id", bookHandler.GetBook)
	books.PATCH("/:id", bookHandler.RenameBook)
	books.DELETE("/:id", bookHandler.DeleteBook)
	books.POST("/:id/duplicate", bookHandler.DuplicateBook)
	books.GET("/:id/members", bookHandler.ListMembers)
	books.POST("/:id/members", bookHandler.AddMember)
	books.DELETE("/:id/members/:userId", bookHandler.RemoveMember)

	transactions := protected.Group("/transactions")
	transactions.GET("", transactionHandler.ListTransactions)
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("/:id", transactionHandler.GetTransaction)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)
	transactions.POST("/:id/restore", transactionHandler.RestoreTransaction)
	transactions.POST("/:id/receipt",
		middleware.BodyLimit(cfg.MaxUploadBytes+multipartOverhead), transactionHandler.UploadReceipt)

	protected.GET("/dashboard/summary", reportHandler.Dashboard)

	reports := protected.Group("/reports")
	reports.GET("/summary", reportHandler.Summary)
	reports.GET("/details", reportHandler.Details)
	reports.GET("/export/csv", reportHandler.ExportCSV)
	reports.GET("/export/xlsx", reportHandler.ExportXLSX)
	reports.GET("/export/pdf", reportHandler.ExportPDF)

	admin := protected.Group("/admin")
	admin.Use(middleware.RequireRole(models.RoleAdmin))
	admin.GET("/users", adminHandler.ListUsers)
	admin.PUT("/users/:id/status", adminHandler.SetUserStatus)
	admin.GET("/users/:id/transactions", adminHandler.UserTransactions)
	admin.GET("/audit-logs", adminHandler.AuditLogs)
	admin.POST("/reconcile", pipelineHandler.Reconcile)

	return &App{Router: router, Users: userService, Ledger: ledgerService}
}
