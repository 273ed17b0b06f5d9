// Package testhelpers provides database fixtures shared by the package tests.
package testhelpers

import (
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/database"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// SetupSQLiteDB opens a migrated SQLite database in a temporary directory.
// A file is used instead of :memory: so every pooled connection sees the same data.
func SetupSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()

	cfg := database.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "test.sqlite")}
	db, err := gorm.Open(sqlite.Open(cfg.DSN()), database.GormConfig())
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// SetupPostgresDB starts a PostgreSQL container and returns a migrated connection to it.
// The test is skipped in -short mode or when docker is not available.
func SetupPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping container-based test in short mode")
	}
	if _, err := exec.LookPath("docker"); err != nil {
		t.Skip("docker not installed, skipping container-based test")
	}

	ctx := context.Background()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "foodgram",
				"POSTGRES_PASSWORD": "foodgram",
				"POSTGRES_DB":       "foodgram",
			},
			WaitingFor: wait.ForAll(
				wait.ForListeningPort("5432/tcp"),
				wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
			).WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Skipf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	db, err := database.InitDatabase(database.DatabaseConfig{
		Driver:   "postgres",
		Host:     host,
		Port:     port.Port(),
		User:     "foodgram",
		Password: "foodgram",
		Name:     "foodgram",
		SSLMode:  "disable",
	})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

// CreateUser inserts a user with the given username and a hashed "password123" password
func CreateUser(t *testing.T, db *gorm.DB, username string) *models.User {
	t.Helper()

	user := &models.User{
		Email:     username + "@example.com",
		Username:  username,
		FirstName: username,
		LastName:  "Tester",
		Password:  "password123",
		Role:      models.RoleUser,
	}
	require.NoError(t, user.HashPassword())
	require.NoError(t, db.Create(user).Error)
	return user
}

// CreateIngredient returns the catalog entry for the pair, inserting it when missing
func CreateIngredient(t *testing.T, db *gorm.DB, name, unit string) *models.Ingredient {
	t.Helper()

	ingredient := &models.Ingredient{}
	require.NoError(t, db.Where(models.Ingredient{Name: name, MeasurementUnit: unit}).FirstOrCreate(ingredient).Error)
	return ingredient
}

// CreateRecipe inserts a recipe by author with the given ingredient amounts
func CreateRecipe(t *testing.T, db *gorm.DB, author *models.User, name string, amounts map[*models.Ingredient]int) *models.Recipe {
	t.Helper()

	recipe := &models.Recipe{
		AuthorID:    author.ID,
		Name:        name,
		Text:        name + " instructions",
		CookingTime: 10,
	}
	for ingredient, amount := range amounts {
		recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{IngredientID: ingredient.ID, Amount: amount})
	}
	require.NoError(t, db.Omit("Author").Create(recipe).Error)
	return recipe
}
