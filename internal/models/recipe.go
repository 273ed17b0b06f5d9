package models

import (
	"time"
)

// Ingredient is an entry of the shared catalog. The (name, measurement unit) pair is unique.
type Ingredient struct {
	ID              uint   `gorm:"primaryKey" json:"id"`
	Name            string `gorm:"size:128;not null;uniqueIndex:idx_ingredient_name_unit" json:"name"`
	MeasurementUnit string `gorm:"size:64;not null;uniqueIndex:idx_ingredient_name_unit" json:"measurement_unit"`
}

// Tag groups recipes, e.g. breakfast or dinner
type Tag struct {
	ID    uint   `gorm:"primaryKey" json:"id"`
	Name  string `gorm:"size:128;not null" json:"name"`
	Color string `gorm:"size:7;not null" json:"color"`
	Slug  string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
}

// Recipe is a published recipe. It owns its RecipeIngredient rows.
type Recipe struct {
	ID          uint               `gorm:"primaryKey"`
	AuthorID    uint               `gorm:"not null;index"`
	Author      User               `gorm:"constraint:OnDelete:CASCADE"`
	Name        string             `gorm:"size:256;not null"`
	Image       string             `gorm:"size:512"`
	Text        string             `gorm:"type:text;not null"`
	CookingTime int                `gorm:"not null"`
	Tags        []Tag              `gorm:"many2many:recipe_tags"`
	Ingredients []RecipeIngredient `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time          `gorm:"index"`
	UpdatedAt   time.Time
}

// RecipeIngredient holds the amount of one catalog ingredient used by a recipe
type RecipeIngredient struct {
	ID           uint       `gorm:"primaryKey"`
	RecipeID     uint       `gorm:"not null;uniqueIndex:idx_recipe_ingredient"`
	IngredientID uint       `gorm:"not null;index;uniqueIndex:idx_recipe_ingredient"`
	Ingredient   Ingredient `gorm:"constraint:OnDelete:CASCADE"`
	Amount       int        `gorm:"not null"`
}

// Favorite marks a recipe as favored by a user
type Favorite struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_favorite_user_recipe"`
	RecipeID  uint   `gorm:"not null;index;uniqueIndex:idx_favorite_user_recipe"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe    Recipe `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

// ShoppingCart puts a recipe into a user's cart for shopping list generation
type ShoppingCart struct {
	ID        uint `gorm:"primaryKey"`
	UserID    uint   `gorm:"not null;uniqueIndex:idx_cart_user_recipe"`
	RecipeID  uint   `gorm:"not null;index;uniqueIndex:idx_cart_user_recipe"`
	User      User   `gorm:"constraint:OnDelete:CASCADE"`
	Recipe    Recipe `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}

// TableName overrides the pluralized default
func (ShoppingCart) TableName() string {
	return "shopping_cart"
}

// AllModels lists every persisted model in migration order
func AllModels() []interface{} {
	return []interface{}{
		&User{},
		&Subscription{},
		&Ingredient{},
		&Tag{},
		&Recipe{},
		&RecipeIngredient{},
		&Favorite{},
		&ShoppingCart{},
		&OAuthClient{},
		&OAuthToken{},
	}
}
