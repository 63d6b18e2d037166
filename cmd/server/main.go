package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/wanderstay/payments-backend/internal/config"
	"github.com/wanderstay/payments-backend/internal/database"
	"github.com/wanderstay/payments-backend/internal/handlers"
	"github.com/wanderstay/payments-backend/internal/middleware"
	"github.com/wanderstay/payments-backend/internal/models"
	"github.com/wanderstay/payments-backend/internal/services"
	"github.com/wanderstay/payments-backend/pkg/jwt"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting WanderStay Payments Backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Initialize repositories
	bookingRepo := database.NewBookingRepository(db)
	paymentRepo := database.NewPaymentRepository(db)
	userRepo := database.NewUserRepository(db)
	auditRepo := database.NewPaymentAuditRepository(db, logger)

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)
	stripeService := services.NewStripeService(&cfg.Payment, logger)
	if !stripeService.Configured() {
		logger.Warn("STRIPE_SECRET_KEY not set, online payments disabled")
	}
	auditService := services.NewAuditService(auditRepo, logger, cfg.Security.EnableAuditLog)
	authService := services.NewAuthService(userRepo, jwtService, logger)
	paymentService := services.NewPaymentService(
		bookingRepo,
		paymentRepo,
		stripeService,
		userRepo,
		auditService,
		logger,
	)
	logger.Info("Services initialized")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	paymentHandler := handlers.NewPaymentHandler(paymentService, logger)
	webhookHandler := handlers.NewWebhookHandler(paymentService, logger)
	adminPaymentHandler := handlers.NewAdminPaymentHandler(paymentService, auditRepo, logger)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refresh", authHandler.Refresh)
		}

		// Payment routes
		payments := v1.Group("/payments")
		{
			// Processor webhooks authenticate by payload matching, not JWT
			payments.POST("/webhook/:provider", webhookHandler.HandleWebhook)

			// Guest checkout routes (require JWT authentication)
			protected := payments.Group("")
			protected.Use(middleware.AuthMiddleware(jwtService, logger))
			{
				protected.POST("/create-intent", paymentHandler.CreateIntent)
				protected.POST("/confirm", paymentHandler.ConfirmPayment)
				protected.GET("/status/:booking_id", paymentHandler.GetPaymentStatus)
			}
		}

		// Admin routes (JWT + admin role claim; service re-checks against DB)
		admin := v1.Group("/admin")
		admin.Use(middleware.AuthMiddleware(jwtService, logger))
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/payments/review", adminPaymentHandler.ReviewPayment)
			admin.GET("/payments/pending-review", adminPaymentHandler.ListPendingReview)
			admin.GET("/payments/audit/:booking_id", adminPaymentHandler.GetPaymentAudit)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited successfully")
}

// requestLogger middleware for logging HTTP requests
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		latency := time.Since(start)

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": latency.Milliseconds(),
			"user_agent": c.Request.UserAgent(),
		}

		if userCtx, exists := middleware.GetUserContext(c); exists {
			fields["user_id"] = userCtx.UserID
		}

		if len(c.Errors) > 0 {
			logger.WithFields(fields).Error(c.Errors.String())
			return
		}

		logger.WithFields(fields).Info("Request completed")
	}
}

// healthCheckHandler reports service and database health
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := "healthy"
		dbStatus := "connected"
		code := http.StatusOK

		if err := db.Ping(); err != nil {
			status = "degraded"
			dbStatus = "disconnected"
			code = http.StatusServiceUnavailable
		}

		c.JSON(code, gin.H{
			"status":   status,
			"database": dbStatus,
			"version":  version,
			"time":     time.Now().UTC().Format(time.RFC3339),
		})
	}
}
