package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// SampleImage is a 1x1 PNG used for seeded recipes
const SampleImage = "data:image/png;base64,iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAQAAAC1HAwCAAAAC0lEQVR4nGMAAQAABQABDQottAAAAABJRU5ErkJggg=="

// SeedSummary counts the demo rows created by Seed; existing rows are left alone
type SeedSummary struct {
	Users       int `json:"users"`
	Tags        int `json:"tags"`
	Ingredients int `json:"ingredients"`
	Recipes     int `json:"recipes"`
}

type seedUser struct {
	email, username, firstName, lastName, password string
}

type seedRecipe struct {
	name, authorEmail, text string
	cookingTime             int
	tags                    []string
	ingredients             []seedAmount
}

type seedAmount struct {
	name   string
	amount int
}

var (
	demoUsers = []seedUser{
		{"demo1@example.com", "demo1", "Demo", "User", "demo12345"},
		{"demo2@example.com", "demo2", "Chef", "User", "demo12345"},
	}

	demoTags = []models.Tag{
		{Name: "Breakfast", Color: "#E26C2D", Slug: "breakfast"},
		{Name: "Lunch", Color: "#49B64E", Slug: "lunch"},
		{Name: "Dinner", Color: "#8775D2", Slug: "dinner"},
	}

	demoIngredients = []models.Ingredient{
		{Name: "chicken egg", MeasurementUnit: "pc"},
		{Name: "milk", MeasurementUnit: "ml"},
		{Name: "flour", MeasurementUnit: "g"},
		{Name: "salt", MeasurementUnit: "g"},
		{Name: "sugar", MeasurementUnit: "g"},
		{Name: "dill", MeasurementUnit: "g"},
		{Name: "potato", MeasurementUnit: "g"},
		{Name: "chicken fillet", MeasurementUnit: "g"},
	}

	demoRecipes = []seedRecipe{
		{
			name:        "Herb omelette",
			authorEmail: "demo1@example.com",
			text:        "A quick breakfast of eggs whisked with milk and dill.",
			cookingTime: 10,
			tags:        []string{"breakfast"},
			ingredients: []seedAmount{{"chicken egg", 3}, {"milk", 100}, {"dill", 5}, {"salt", 2}},
		},
		{
			name:        "Chicken fillet with potatoes",
			authorEmail: "demo2@example.com",
			text:        "Baked chicken fillet served with mashed potatoes.",
			cookingTime: 40,
			tags:        []string{"dinner"},
			ingredients: []seedAmount{{"chicken fillet", 300}, {"potato", 400}, {"salt", 3}, {"milk", 150}, {"sugar", 5}},
		},
	}
)

// Seed creates demo users, tags, ingredients and recipes in one transaction.
// Running it again creates nothing.
func Seed(ctx context.Context, db *gorm.DB, images storage.ImageStore) (SeedSummary, error) {
	var summary SeedSummary
	var savedImages []string

	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := make(map[string]*models.User, len(demoUsers))
		for _, du := range demoUsers {
			user := &models.User{}
			err := tx.Where("email = ?", du.email).First(user).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				user = &models.User{
					Email:     du.email,
					Username:  du.username,
					FirstName: du.firstName,
					LastName:  du.lastName,
					Password:  du.password,
					Role:      models.RoleUser,
				}
				if err := user.HashPassword(); err != nil {
					return fmt.Errorf("hash password: %w", err)
				}
				if err := tx.Create(user).Error; err != nil {
					return fmt.Errorf("create user %s: %w", du.email, err)
				}
				summary.Users++
			} else if err != nil {
				return fmt.Errorf("look up user %s: %w", du.email, err)
			}
			users[du.email] = user
		}

		tags := make(map[string]models.Tag, len(demoTags))
		for _, dt := range demoTags {
			tag := models.Tag{}
			result := tx.Where(models.Tag{Slug: dt.Slug}).Attrs(models.Tag{Name: dt.Name, Color: dt.Color}).FirstOrCreate(&tag)
			if result.Error != nil {
				return fmt.Errorf("create tag %s: %w", dt.Slug, result.Error)
			}
			summary.Tags += int(result.RowsAffected)
			tags[dt.Slug] = tag
		}

		ingredients := make(map[string]models.Ingredient, len(demoIngredients))
		for _, di := range demoIngredients {
			ingredient := models.Ingredient{}
			result := tx.Where(models.Ingredient{Name: di.Name, MeasurementUnit: di.MeasurementUnit}).FirstOrCreate(&ingredient)
			if result.Error != nil {
				return fmt.Errorf("create ingredient %s: %w", di.Name, result.Error)
			}
			summary.Ingredients += int(result.RowsAffected)
			ingredients[di.Name] = ingredient
		}

		for _, dr := range demoRecipes {
			author := users[dr.authorEmail]

			var existing int64
			if err := tx.Model(&models.Recipe{}).Where("name = ? AND author_id = ?", dr.name, author.ID).Count(&existing).Error; err != nil {
				return fmt.Errorf("look up recipe %s: %w", dr.name, err)
			}
			if existing > 0 {
				continue
			}

			image, err := images.Save(ctx, recipeImagePrefix, SampleImage)
			if err != nil {
				return fmt.Errorf("store sample image: %w", err)
			}
			savedImages = append(savedImages, image)

			recipe := models.Recipe{
				AuthorID:    author.ID,
				Name:        dr.name,
				Text:        dr.text,
				CookingTime: dr.cookingTime,
				Image:       image,
			}
			for _, slug := range dr.tags {
				recipe.Tags = append(recipe.Tags, tags[slug])
			}
			for _, a := range dr.ingredients {
				recipe.Ingredients = append(recipe.Ingredients, models.RecipeIngredient{
					IngredientID: ingredients[a.name].ID,
					Amount:       a.amount,
				})
			}
			if err := tx.Omit("Author", "Tags.*").Create(&recipe).Error; err != nil {
				return fmt.Errorf("create recipe %s: %w", dr.name, err)
			}
			summary.Recipes++
		}
		return nil
	})
	if err != nil {
		for _, url := range savedImages {
			if derr := images.Delete(ctx, url); derr != nil {
				log.WithError(derr).WithField("image", url).Warn("Failed to delete sample image")
			}
		}
		return SeedSummary{}, err
	}

	log.WithFields(logrus.Fields{
		"users":       summary.Users,
		"tags":        summary.Tags,
		"ingredients": summary.Ingredients,
		"recipes":     summary.Recipes,
	}).Info("Demo data seeded")
	return summary, nil
}
