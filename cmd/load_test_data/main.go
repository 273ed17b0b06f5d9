// Command load_test_data fills an empty database with demo users, tags, ingredients and recipes.
// Existing rows are reused, so running it twice changes nothing.
package main

import (
	"context"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	log.SetFormatter(&log.JSONFormatter{})
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using system environment variables")
	}

	conf, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}

	db, err := database.InitDatabase(database.FromAppConfig(conf))
	if err != nil {
		log.WithError(err).Fatal("Database unavailable")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}

	ctx := context.Background()
	var images storage.ImageStore
	if conf.StorageBackend == "s3" {
		images, err = storage.NewS3Store(ctx, conf.S3Bucket, conf.AWSRegion, conf.S3Endpoint)
	} else {
		images, err = storage.NewLocalStore(conf.MediaRoot, conf.MediaURL)
	}
	if err != nil {
		log.WithError(err).Fatal("Image store unavailable")
	}

	summary, err := services.Seed(ctx, db, images)
	if err != nil {
		log.WithError(err).Fatal("Seeding failed")
	}
	log.WithFields(log.Fields{
		"users":       summary.Users,
		"tags":        summary.Tags,
		"ingredients": summary.Ingredients,
		"recipes":     summary.Recipes,
	}).Info("Test data loaded")
}
