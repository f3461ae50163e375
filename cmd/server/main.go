package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"safeguard/internal/config"
	"safeguard/internal/handlers"
	"safeguard/internal/middleware"
	"safeguard/internal/repositories/mongodb"
	"safeguard/internal/services"
	"safeguard/pkg/cache"
	"safeguard/pkg/database"
	"safeguard/pkg/geocode"
	"safeguard/pkg/logger"
	"safeguard/pkg/push"
	"safeguard/pkg/sms"
	"safeguard/pkg/websocket"
	"safeguard/routes"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	appLogger, err := logger.NewLogger(&logger.Config{
		Level:  logger.LogLevel(cfg.App.LogLevel),
		Format: cfg.App.LogFormat,
		Output: "stdout",
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	// Storage
	db, err := database.NewMongoDB(&database.DatabaseConfig{
		URI:            cfg.Database.URI,
		Database:       cfg.Database.Database,
		MaxPoolSize:    cfg.Database.MaxPoolSize,
		MinPoolSize:    cfg.Database.MinPoolSize,
		ConnectTimeout: cfg.Database.ConnectTimeout,
		SocketTimeout:  cfg.Database.SocketTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer db.Close()

	if err := db.EnsureIndexes(); err != nil {
		log.Fatalf("Failed to create indexes: %v", err)
	}

	redisCache, err := cache.NewRedisCache(&cache.RedisConfig{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		PoolSize:     cfg.Redis.PoolSize,
		MinIdleConns: cfg.Redis.MinIdleConns,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisCache.Close()

	cacheService := services.NewCacheService(redisCache, appLogger)

	// Repositories
	sessionRepo := mongodb.NewSessionRepository(db.Database, cacheService)
	sosLockRepo := mongodb.NewSosLockRepository(db.Database, cacheService)

	// Alert transports, ranked. SMS first, push as fallback.
	transports := buildTransports(cfg, appLogger)

	var geocoder geocode.Provider
	if cfg.Geocode.Enabled && cfg.Geocode.APIKey != "" {
		geocoder, err = geocode.NewGoogleProvider(cfg.Geocode.APIKey)
		if err != nil {
			appLogger.WithError(err).Warn("Geocoding disabled, client init failed")
			geocoder = nil
		}
	}

	// Services
	telemetryService := services.NewTelemetryService(cacheService, cfg.Session, appLogger)
	wsHandler := websocket.NewHandler(telemetryService)
	dispatchService := services.NewDispatchService(transports, geocoder, cfg.Session, appLogger)
	sessionService := services.NewSessionService(sessionRepo, cacheService, dispatchService,
		telemetryService, wsHandler, cfg.Session, appLogger)
	sosService := services.NewSosService(sosLockRepo, cacheService, cfg.Security, appLogger)

	// Resume sessions that were live before the last restart.
	restoreCtx, restoreCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := sessionService.Restore(restoreCtx); err != nil {
		appLogger.WithError(err).Error("Session restore failed")
	}
	restoreCancel()

	janitorCtx, janitorCancel := context.WithCancel(context.Background())
	go sessionService.RunJanitor(janitorCtx)

	// Handlers
	sessionHandler := handlers.NewSessionHandler(sessionService)
	sosHandler := handlers.NewSosHandler(sosService)
	telemetryHandler := handlers.NewTelemetryHandler(telemetryService)

	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.LoggingMiddleware(appLogger))

	v1 := router.Group("/api/v1")
	{
		routes.SetupSessionRoutes(v1, sessionHandler, cfg.Security.JWTSecret)
		routes.SetupSosRoutes(v1, sosHandler, cfg.Security.JWTSecret)
		routes.SetupTelemetryRoutes(v1, telemetryHandler, wsHandler, cfg.Security.JWTSecret)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": cfg.App.Version,
		})
	})

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.App.Port),
		Handler: router,
	}

	go func() {
		appLogger.WithField("port", cfg.App.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down")
	janitorCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("HTTP server shutdown failed")
	}
	if err := sessionService.Shutdown(shutdownCtx); err != nil {
		appLogger.WithError(err).Error("Session runners did not drain in time")
	}
}

func buildTransports(cfg *config.Config, appLogger *logger.Logger) []services.Transport {
	var transports []services.Transport

	if cfg.SMS.Twilio.AccountSID != "" {
		twilioProvider := sms.NewTwilioProvider(cfg.SMS.Twilio.AccountSID,
			cfg.SMS.Twilio.AuthToken, cfg.SMS.Twilio.FromNumber)
		transports = append(transports, services.NewSMSTransport("twilio", twilioProvider, cfg.SMS.Twilio.FromNumber))
	}

	if cfg.SMS.AWS.AccessKeyID != "" || cfg.SMS.Provider == "sns" {
		snsProvider, err := sms.NewAWSSNSProvider(cfg.SMS.AWS.Region)
		if err != nil {
			appLogger.WithError(err).Warn("SNS transport unavailable")
		} else {
			transports = append(transports, services.NewSMSTransport("sns", snsProvider, cfg.SMS.DefaultFrom))
		}
	}

	if cfg.Push.FCM.Credentials != "" {
		fcmProvider, err := push.NewFCMProvider(cfg.Push.FCM.Credentials)
		if err != nil {
			appLogger.WithError(err).Warn("FCM transport unavailable")
		} else {
			transports = append(transports, services.NewPushTransport("fcm", fcmProvider))
		}
	}

	if cfg.Push.APNS.KeyFile != "" {
		apnsProvider, err := push.NewAPNSProvider(cfg.Push.APNS.KeyFile, cfg.Push.APNS.KeyID,
			cfg.Push.APNS.TeamID, cfg.Push.APNS.BundleID, cfg.Push.APNS.Production)
		if err != nil {
			appLogger.WithError(err).Warn("APNS transport unavailable")
		} else {
			transports = append(transports, services.NewPushTransport("apns", apnsProvider))
		}
	}

	if len(transports) == 0 {
		appLogger.Warn("No alert transports configured, dispatch cycles will fail per recipient")
	}

	return transports
}
