package services

import (
	"context"
	"fmt"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RelationService manages the favorite, shopping cart and subscription registries.
// Adding an existing pair fails with ErrConflict and removing an absent one with ErrNotFound.
type RelationService interface {
	AddFavorite(ctx context.Context, userID, recipeID uint) (*models.Recipe, error)
	RemoveFavorite(ctx context.Context, userID, recipeID uint) error
	AddToCart(ctx context.Context, userID, recipeID uint) (*models.Recipe, error)
	RemoveFromCart(ctx context.Context, userID, recipeID uint) error
	Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*models.AuthorSubscriptionResponse, error)
	Unsubscribe(ctx context.Context, userID, authorID uint) error
	// ListSubscriptions returns a page of the authors followed by the user and the total count.
	// A negative recipesLimit includes every recipe of each author.
	ListSubscriptions(ctx context.Context, userID uint, page Pagination, recipesLimit int) ([]models.AuthorSubscriptionResponse, int64, error)
}

type relationService struct {
	db *gorm.DB
}

// NewRelationService creates a new instance of RelationService
func NewRelationService(db *gorm.DB) RelationService {
	return &relationService{db: db}
}

func (s *relationService) AddFavorite(ctx context.Context, userID, recipeID uint) (*models.Recipe, error) {
	return s.addRecipePair(ctx, recipeID, &models.Favorite{UserID: userID, RecipeID: recipeID}, "favorite")
}

func (s *relationService) RemoveFavorite(ctx context.Context, userID, recipeID uint) error {
	return s.removeRecipePair(ctx, userID, recipeID, &models.Favorite{}, "favorite")
}

func (s *relationService) AddToCart(ctx context.Context, userID, recipeID uint) (*models.Recipe, error) {
	return s.addRecipePair(ctx, recipeID, &models.ShoppingCart{UserID: userID, RecipeID: recipeID}, "shopping cart entry")
}

func (s *relationService) RemoveFromCart(ctx context.Context, userID, recipeID uint) error {
	return s.removeRecipePair(ctx, userID, recipeID, &models.ShoppingCart{}, "shopping cart entry")
}

// addRecipePair inserts row after checking the recipe exists. A concurrent duplicate is
// rejected by the unique index and surfaces as ErrConflict.
func (s *relationService) addRecipePair(ctx context.Context, recipeID uint, row any, what string) (*models.Recipe, error) {
	var recipe models.Recipe
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&recipe, recipeID).Error; err != nil {
			return translateError(err, "recipe")
		}
		if err := tx.Omit("User", "Recipe").Create(row).Error; err != nil {
			return translateError(err, what)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &recipe, nil
}

func (s *relationService) removeRecipePair(ctx context.Context, userID, recipeID uint, model any, what string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recipe models.Recipe
		if err := tx.Select("id").First(&recipe, recipeID).Error; err != nil {
			return translateError(err, "recipe")
		}

		result := tx.Where("user_id = ? AND recipe_id = ?", userID, recipeID).Delete(model)
		if result.Error != nil {
			return fmt.Errorf("delete %s: %w", what, result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("%s: %w", what, ErrNotFound)
		}
		return nil
	})
}

func (s *relationService) Subscribe(ctx context.Context, userID, authorID uint, recipesLimit int) (*models.AuthorSubscriptionResponse, error) {
	if userID == authorID {
		return nil, NewValidationError("author", "cannot subscribe to yourself")
	}

	var resp models.AuthorSubscriptionResponse
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.User
		if err := tx.First(&author, authorID).Error; err != nil {
			return translateError(err, "author")
		}

		sub := models.Subscription{UserID: userID, AuthorID: authorID}
		if err := tx.Omit("User", "Author").Create(&sub).Error; err != nil {
			return translateError(err, "subscription")
		}

		built, err := buildAuthorSubscriptions(tx, []models.User{author}, recipesLimit)
		if err != nil {
			return err
		}
		resp = built[0]
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"user_id": userID, "author_id": authorID}).Debug("Subscription created")
	return &resp, nil
}

func (s *relationService) Unsubscribe(ctx context.Context, userID, authorID uint) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var author models.User
		if err := tx.Select("id").First(&author, authorID).Error; err != nil {
			return translateError(err, "author")
		}

		result := tx.Where("user_id = ? AND author_id = ?", userID, authorID).Delete(&models.Subscription{})
		if result.Error != nil {
			return fmt.Errorf("delete subscription: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("subscription: %w", ErrNotFound)
		}
		return nil
	})
}

func (s *relationService) ListSubscriptions(ctx context.Context, userID uint, page Pagination, recipesLimit int) ([]models.AuthorSubscriptionResponse, int64, error) {
	page = page.Normalize()
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.Subscription{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count subscriptions: %w", err)
	}

	var authors []models.User
	err := db.Joins("JOIN subscriptions ON subscriptions.author_id = users.id").
		Where("subscriptions.user_id = ?", userID).
		Order("subscriptions.id").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&authors).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list subscriptions: %w", err)
	}

	resp, err := buildAuthorSubscriptions(db, authors, recipesLimit)
	if err != nil {
		return nil, 0, err
	}
	return resp, total, nil
}

// buildAuthorSubscriptions decorates followed authors with their recipe count and newest recipes
func buildAuthorSubscriptions(tx *gorm.DB, authors []models.User, recipesLimit int) ([]models.AuthorSubscriptionResponse, error) {
	out := make([]models.AuthorSubscriptionResponse, 0, len(authors))
	if len(authors) == 0 {
		return out, nil
	}

	ids := make([]uint, len(authors))
	for i, a := range authors {
		ids[i] = a.ID
	}

	var counts []struct {
		AuthorID uint
		Total    int64
	}
	err := tx.Model(&models.Recipe{}).
		Select("author_id, COUNT(*) AS total").
		Where("author_id IN ?", ids).
		Group("author_id").
		Scan(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("count author recipes: %w", err)
	}
	byAuthor := make(map[uint]int64, len(counts))
	for _, c := range counts {
		byAuthor[c.AuthorID] = c.Total
	}

	for _, author := range authors {
		recipes := []models.RecipeShortResponse{}
		if recipesLimit != 0 && byAuthor[author.ID] > 0 {
			var rows []models.Recipe
			q := tx.Where("author_id = ?", author.ID).Order("created_at DESC, id DESC")
			if recipesLimit > 0 {
				q = q.Limit(recipesLimit)
			}
			if err := q.Find(&rows).Error; err != nil {
				return nil, fmt.Errorf("list author recipes: %w", err)
			}
			for _, r := range rows {
				recipes = append(recipes, models.NewRecipeShortResponse(r))
			}
		}

		out = append(out, models.AuthorSubscriptionResponse{
			UserResponse: models.NewUserResponse(author, true),
			RecipesCount: byAuthor[author.ID],
			Recipes:      recipes,
		})
	}
	return out, nil
}

