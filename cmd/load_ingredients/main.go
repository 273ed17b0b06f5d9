// Command load_ingredients imports an ingredient dataset (JSON or CSV) into the catalog.
// Pairs already present are skipped, so the command can be run repeatedly.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

func main() {
	path := flag.String("path", "", "dataset file (defaults to INGREDIENTS_PATH)")
	format := flag.String("format", "", "json or csv (detected from the extension when empty)")
	flag.Parse()

	log.SetFormatter(&log.JSONFormatter{})
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using system environment variables")
	}

	conf, err := config.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("Invalid configuration")
	}
	services.SetLogLevel(conf.LogLevel)
	if *path == "" {
		*path = conf.IngredientsPath
	}

	db, err := database.InitDatabase(database.FromAppConfig(conf))
	if err != nil {
		log.WithError(err).Fatal("Database unavailable")
	}
	if err := database.Migrate(db); err != nil {
		log.WithError(err).Fatal("Migration failed")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := services.NewIngredientLoader(db).LoadIngredientsFile(ctx, *path, *format)
	if err != nil {
		log.WithError(err).WithField("path", *path).Fatal("Ingredient import failed")
	}

	for _, failure := range summary.Failures {
		log.WithFields(log.Fields{
			"index":  failure.Index,
			"fields": failure.Fields,
		}).Warn("Record rejected")
	}
	log.WithFields(log.Fields{
		"path":     *path,
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("Ingredient import finished")
}
