// internal/router/router.go
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/craftkart/craftkart-backend/internal/config"
	"github.com/craftkart/craftkart-backend/internal/handlers"
	"github.com/craftkart/craftkart-backend/internal/middleware"
	"github.com/craftkart/craftkart-backend/internal/services"
	"github.com/craftkart/craftkart-backend/internal/utils"
)

func Initialize(db *gorm.DB, cfg *config.Config) *gin.Engine {
	// Initialize services
	notificationService := services.NewNotificationService(db, cfg)
	storageService, _ := services.NewStorageService(cfg)

	authService := services.NewAuthService(db, cfg)
	designService := services.NewDesignService(db, notificationService)
	paymentService := services.NewPaymentService(db, cfg, notificationService)
	orderService := services.NewOrderService(db, cfg, notificationService)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService)
	designHandler := handlers.NewDesignRequestHandler(designService, storageService)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	orderHandler := handlers.NewOrderHandler(orderService)

	// Set JWT secret
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	// Initialize Gin router
	r := gin.New()

	// Global middleware
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger())
	r.Use(middleware.CORS([]string{cfg.Frontend.BaseURL}))
	r.Use(middleware.GeneralRateLimit())
	r.Use(middleware.AuditLogMiddleware(db))

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": "1.0.0",
		})
	})

	// API v1 routes
	v1 := r.Group("/v1")
	{
		// Authentication routes
		auth := v1.Group("/auth")
		auth.Use(middleware.AuthRateLimit())
		{
			auth.POST("/register", authHandler.Register)
			auth.POST("/login", authHandler.Login)
			auth.POST("/logout", middleware.AuthRequired(), authHandler.Logout)
			auth.POST("/refresh", authHandler.RefreshToken)
			auth.GET("/me", middleware.AuthRequired(), authHandler.GetProfile)
		}

		// Design request routes
		designRequests := v1.Group("/design-requests")
		designRequests.Use(middleware.AuthRequired())
		{
			designRequests.POST("", designHandler.Submit)
			designRequests.GET("", designHandler.List)
			designRequests.POST("/upload-image", middleware.UploadRateLimit(), designHandler.UploadImage)
			designRequests.GET("/:id", designHandler.Get)
			designRequests.GET("/:id/history", designHandler.History)

			// Seller actions
			designRequests.PUT("/:id/quote", middleware.SellerRequired(), designHandler.SubmitQuote)
			designRequests.PUT("/:id/negotiate", middleware.SellerRequired(), designHandler.RespondToNegotiation)

			// Buyer actions
			designRequests.PUT("/:id/respond", designHandler.RespondToQuote)
			designRequests.POST("/:id/payment-intent", paymentHandler.CreateAdvanceIntent)
			designRequests.POST("/:id/payments", paymentHandler.RecordPayment)

			// Conversion
			designRequests.POST("/:id/convert", middleware.SellerRequired(), orderHandler.Convert)
		}

		// Order routes
		orders := v1.Group("/orders")
		orders.Use(middleware.AuthRequired())
		{
			orders.GET("", orderHandler.List)
			orders.GET("/:id", orderHandler.Get)
		}
	}

	// Static file serving (for development)
	if cfg.Environment == "development" {
		r.Static("/uploads", "./uploads")
	}

	return r
}
