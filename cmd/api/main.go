package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"petsitter/pkg/auth"
	"petsitter/pkg/booking"
	"petsitter/pkg/config"
	"petsitter/pkg/database"
	"petsitter/pkg/events"
	"petsitter/pkg/logger"
	"petsitter/pkg/models"
	"petsitter/pkg/queue"
	"petsitter/pkg/rating"
	"petsitter/pkg/validation"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	db       *gorm.DB
	tokens   *auth.Tokens
	notifier *events.Notifier
	ratings  *rating.Worker

	now = time.Now
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	l := logger.Init(cfg.IsProduction(), cfg.LogLevel)
	defer func() { _ = l.Sync() }()
	l.Info("Starting petsitter api", zap.String("env", cfg.Env))

	if cfg.JWTSecret == "" {
		if cfg.IsProduction() {
			l.Fatal("JWT_SECRET must be set in production")
		}
		l.Warn("JWT_SECRET not set, using an insecure development secret")
		cfg.JWTSecret = "dev-secret"
	}

	validation.Register()

	loc, err := cfg.SlotLocation()
	if err != nil {
		l.Fatal("Invalid SLOT_TIMEZONE", zap.String("zone", cfg.SlotTimezone), zap.Error(err))
	}
	booking.Location = loc

	db, err = database.Init(cfg)
	if err != nil {
		l.Fatal("Database initialization failed", zap.Error(err))
	}
	l.Info("Database connected successfully", zap.String("driver", cfg.DBDriver))

	tokens = auth.NewTokens(cfg.JWTSecret, time.Duration(cfg.JWTExpireMin)*time.Minute)
	notifier = events.NewNotifier(newPublisher(cfg, l), l)
	defer func() { _ = notifier.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ratings = rating.NewWorker(db, queue.NewQueue(), l)
	go ratings.Run(ctx)

	if cfg.SeedData {
		seedTestData()
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           setupRouter(cfg, l),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		l.Info("Petsitter api starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	l.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		l.Error("Graceful shutdown failed", zap.Error(err))
	}
}

func newPublisher(cfg config.Config, l *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		l.Info("AMQP_URL not set, booking events disabled")
		return events.Nop{}
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		l.Warn("RabbitMQ unavailable, booking events disabled", zap.Error(err))
		return events.Nop{}
	}
	l.Info("Publishing booking events", zap.String("exchange", cfg.AMQPExchange))
	return pub
}

func setupRouter(cfg config.Config, l *zap.Logger) *gin.Engine {
	server := gin.New()
	server.Use(logger.Recovery(l), logger.Middleware(l))
	server.Use(cors.New(corsConfig(cfg.AllowedOrigins())))
	server.Use(auth.RateLimit(cfg.RateLimitPerMin))

	server.GET("/manage/health", healthCheck)

	requireUser := auth.JWTAuth(tokens)
	api := server.Group("/api/v1")

	api.POST("/auth/register", register)
	api.POST("/auth/login", login)

	api.GET("/sitters", listSitters)
	api.GET("/sitters/:id", getSitter)
	api.POST("/sitters", requireUser, createSitter)
	api.PUT("/sitters/:id", requireUser, updateSitter)
	api.DELETE("/sitters/:id", requireUser, deleteSitter)
	api.POST("/sitters/:id/services", requireUser, addService)
	api.PUT("/sitters/:id/services/:serviceId", requireUser, updateService)
	api.DELETE("/sitters/:id/services/:serviceId", requireUser, deleteService)
	api.GET("/sitters/:id/reviews", getReviews)
	api.POST("/sitters/:id/reviews", requireUser, addReview)
	api.GET("/sitters/:id/availability", getAvailability)
	api.POST("/sitters/:id/availability", requireUser, setAvailability)

	bookings := api.Group("/bookings", requireUser)
	bookings.GET("", auth.RequireRole(models.RoleAdmin), getAllBookings)
	bookings.GET("/user/my-bookings", getMyBookings)
	bookings.GET("/sitter/:sitterId", getSitterBookings)
	bookings.GET("/:id", getBooking)
	bookings.POST("", createBooking)
	bookings.PUT("/:id", updateBooking)
	bookings.DELETE("/:id", cancelBooking)

	return server
}

func corsConfig(origins []string) cors.Config {
	cc := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cc.AllowAllOrigins = true
			return cc
		}
	}
	if len(origins) == 0 {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOrigins = origins
	cc.AllowCredentials = true
	return cc
}

func healthCheck(ctx *gin.Context) {
	sqlDB, err := db.DB()
	if err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database connection failed",
			"error":   err.Error(),
		})
		return
	}
	if err := sqlDB.PingContext(ctx.Request.Context()); err != nil {
		ctx.JSON(http.StatusServiceUnavailable, gin.H{
			"status":  "DOWN",
			"details": "Database ping failed",
			"error":   err.Error(),
		})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"status":  "UP",
		"details": "Database reachable",
	})
}
