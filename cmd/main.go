package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/franciscosanchezn/gin-foodgram-api/docs" // Import generated docs
	"github.com/franciscosanchezn/gin-foodgram-api/internal/auth"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/server"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// @title Foodgram API
// @version 1.0
// @description Recipe publishing service with favorites, subscriptions and shopping lists
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	// Load environment variables
	loadDotenvFile()

	// Initialize logger
	setUpLogger()

	// Load configuration
	configuration := loadConfig()
	services.SetLogLevel(configuration.LogLevel)
	middleware.SetLogLevel(configuration.LogLevel)
	if configuration.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database connection
	db := setupDatabase(configuration)

	ctx := context.Background()
	purgeExpiredTokens(ctx, db)
	images, mediaDir := setupImageStore(ctx, configuration)
	limiter, closeRedis := setupRateLimiter(ctx, configuration)
	defer closeRedis()

	router := server.NewRouter(configuration, server.Dependencies{
		DB:       db,
		Images:   images,
		Limiter:  limiter,
		MediaDir: mediaDir,
	})

	srv := &http.Server{
		Addr:              configuration.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		log.Infof("Starting server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("Server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.WithField("signal", sig.String()).Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Graceful shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info("Server stopped")
}

// checkPanicErr checks if an error occurred and panics if it did
func checkPanicErr(err error) {
	if err != nil {
		panic(err)
	}
}

// loadDotenvFile loads environment variables from a .env file
// If the file is not found, it will log a warning and use system environment variables
func loadDotenvFile() {
	if err := godotenv.Load(); err != nil {
		log.Warn("No .env file found, using system environment variables")
	}
}

// setUpLogger initializes the logger with a JSON formatter and sets the log level based on the environment
func setUpLogger() {
	log.SetFormatter(&log.JSONFormatter{})
	environment := config.GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(log.DebugLevel)
	case "production":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

// loadConfig loads the application configuration from environment variables
// It returns a Config struct or panics if there is an error
func loadConfig() *config.Config {
	conf, err := config.LoadConfig()
	checkPanicErr(err)
	return conf
}

// setupDatabase connects with retries and migrates the schema
func setupDatabase(conf *config.Config) *gorm.DB {
	db, err := database.InitDatabase(database.FromAppConfig(conf))
	checkPanicErr(err)
	checkPanicErr(database.Migrate(db))
	return db
}

// setupImageStore selects the media backend. The local backend also returns the directory to serve.
// purgeExpiredTokens drops client-credentials tokens that expired while the server was down
func purgeExpiredTokens(ctx context.Context, db *gorm.DB) {
	purged, err := auth.NewGormTokenStore(db).PurgeExpired(ctx, time.Now())
	if err != nil {
		log.WithError(err).Warn("Failed to purge expired OAuth tokens")
		return
	}
	log.WithField("purged", purged).Info("Expired OAuth tokens purged")
}

func setupImageStore(ctx context.Context, conf *config.Config) (storage.ImageStore, string) {
	if conf.StorageBackend == "s3" {
		store, err := storage.NewS3Store(ctx, conf.S3Bucket, conf.AWSRegion, conf.S3Endpoint)
		checkPanicErr(err)
		log.WithField("bucket", conf.S3Bucket).Info("Storing images in S3")
		return store, ""
	}

	store, err := storage.NewLocalStore(conf.MediaRoot, conf.MediaURL)
	checkPanicErr(err)
	log.WithField("media_root", conf.MediaRoot).Info("Storing images on local disk")
	return store, conf.MediaRoot
}

// setupRateLimiter connects to Redis when REDIS_URL is set. Without it, or when Redis is
// unreachable at startup, requests are not limited.
func setupRateLimiter(ctx context.Context, conf *config.Config) (*middleware.RateLimiter, func()) {
	noop := func() {}
	if conf.RedisURL == "" {
		log.Info("REDIS_URL not set, rate limiting disabled")
		return nil, noop
	}

	opts, err := redis.ParseURL(conf.RedisURL)
	checkPanicErr(err)
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		log.WithError(err).Warn("Redis unreachable, rate limiting will fail open until it recovers")
	}

	limiter := middleware.NewRateLimiter(middleware.NewRedisCounter(client), middleware.RateLimitConfig{
		Window:    time.Minute,
		Limit:     conf.RateLimitPerMinute,
		KeyPrefix: "foodgram:rate_limit",
	})
	return limiter, func() { client.Close() }
}
