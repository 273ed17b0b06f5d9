package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const recipeImagePrefix = "recipes/images"

// RecipeIngredientInput is one requested ingredient line of a recipe
type RecipeIngredientInput struct {
	ID     uint `json:"id"`
	Amount int  `json:"amount"`
}

// RecipeInput is the writable part of a recipe. Image is a base64 data URI,
// required on create and optional on update.
type RecipeInput struct {
	Name        string                  `json:"name"`
	Text        string                  `json:"text"`
	CookingTime int                     `json:"cooking_time"`
	Image       string                  `json:"image"`
	Tags        []uint                  `json:"tags"`
	Ingredients []RecipeIngredientInput `json:"ingredients"`
}

// RecipeFilter narrows ListRecipes. Membership filters apply to authenticated viewers only.
type RecipeFilter struct {
	AuthorID         *uint
	Tags             []string
	IsFavorited      *bool
	IsInShoppingCart *bool
}

// RecipeService provides methods to read and write recipes
type RecipeService interface {
	ListRecipes(ctx context.Context, filter RecipeFilter, page Pagination, viewerID uint) ([]models.RecipeResponse, int64, error)
	GetRecipe(ctx context.Context, id, viewerID uint) (*models.RecipeResponse, error)
	CreateRecipe(ctx context.Context, authorID uint, input RecipeInput) (*models.RecipeResponse, error)
	// UpdateRecipe replaces the recipe content; only the author or an admin may do it
	UpdateRecipe(ctx context.Context, actorID uint, isAdmin bool, id uint, input RecipeInput) (*models.RecipeResponse, error)
	DeleteRecipe(ctx context.Context, actorID uint, isAdmin bool, id uint) error
	// ShortLink returns an absolute link to the recipe
	ShortLink(ctx context.Context, id uint, baseURL string) (string, error)
}

type recipeService struct {
	db     *gorm.DB
	images storage.ImageStore
}

// NewRecipeService creates a new instance of RecipeService
func NewRecipeService(db *gorm.DB, images storage.ImageStore) RecipeService {
	return &recipeService{db: db, images: images}
}

func (s *recipeService) ListRecipes(ctx context.Context, filter RecipeFilter, page Pagination, viewerID uint) ([]models.RecipeResponse, int64, error) {
	page = page.Normalize()
	db := s.db.WithContext(ctx)

	q := db.Model(&models.Recipe{})
	if filter.AuthorID != nil {
		q = q.Where("recipes.author_id = ?", *filter.AuthorID)
	}
	if len(filter.Tags) > 0 {
		tagged := db.Table("recipe_tags").
			Select("recipe_tags.recipe_id").
			Joins("JOIN tags ON tags.id = recipe_tags.tag_id").
			Where("tags.slug IN ?", filter.Tags)
		q = q.Where("recipes.id IN (?)", tagged)
	}
	if viewerID != 0 {
		q = membershipFilter(db, q, &models.Favorite{}, viewerID, filter.IsFavorited)
		q = membershipFilter(db, q, &models.ShoppingCart{}, viewerID, filter.IsInShoppingCart)
	}
	q = q.Session(&gorm.Session{})

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count recipes: %w", err)
	}

	var recipes []models.Recipe
	err := withRecipeAssociations(q).
		Order("recipes.created_at DESC, recipes.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&recipes).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list recipes: %w", err)
	}

	resp, err := buildRecipeResponses(db, recipes, viewerID)
	if err != nil {
		return nil, 0, err
	}
	return resp, total, nil
}

func membershipFilter(db, q *gorm.DB, model any, viewerID uint, want *bool) *gorm.DB {
	if want == nil {
		return q
	}
	members := db.Model(model).Select("recipe_id").Where("user_id = ?", viewerID)
	if *want {
		return q.Where("recipes.id IN (?)", members)
	}
	return q.Where("recipes.id NOT IN (?)", members)
}

func withRecipeAssociations(q *gorm.DB) *gorm.DB {
	return q.Preload("Author").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.id") }).
		Preload("Ingredients", func(db *gorm.DB) *gorm.DB { return db.Order("recipe_ingredients.id") }).
		Preload("Ingredients.Ingredient")
}

func (s *recipeService) GetRecipe(ctx context.Context, id, viewerID uint) (*models.RecipeResponse, error) {
	return s.loadResponse(s.db.WithContext(ctx), id, viewerID)
}

func (s *recipeService) loadResponse(db *gorm.DB, id, viewerID uint) (*models.RecipeResponse, error) {
	var recipe models.Recipe
	if err := withRecipeAssociations(db).First(&recipe, id).Error; err != nil {
		return nil, translateError(err, "recipe")
	}

	resp, err := buildRecipeResponses(db, []models.Recipe{recipe}, viewerID)
	if err != nil {
		return nil, err
	}
	return &resp[0], nil
}

func (s *recipeService) CreateRecipe(ctx context.Context, authorID uint, input RecipeInput) (*models.RecipeResponse, error) {
	if err := validateRecipeInput(&input, true); err != nil {
		return nil, err
	}

	imageURL, err := s.saveImage(ctx, input.Image)
	if err != nil {
		return nil, err
	}

	recipe := models.Recipe{
		AuthorID:    authorID,
		Name:        input.Name,
		Text:        input.Text,
		CookingTime: input.CookingTime,
		Image:       imageURL,
		Ingredients: ingredientRows(input.Ingredients),
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := resolveReferences(tx, input)
		if err != nil {
			return err
		}
		recipe.Tags = tags
		if err := tx.Omit("Author", "Tags.*").Create(&recipe).Error; err != nil {
			return translateError(err, "create recipe")
		}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, imageURL)
		return nil, err
	}

	log.WithFields(logrus.Fields{"recipe_id": recipe.ID, "author_id": authorID}).Info("Recipe created")
	return s.loadResponse(s.db.WithContext(ctx), recipe.ID, authorID)
}

func (s *recipeService) UpdateRecipe(ctx context.Context, actorID uint, isAdmin bool, id uint, input RecipeInput) (*models.RecipeResponse, error) {
	recipe, err := s.authorize(ctx, actorID, isAdmin, id)
	if err != nil {
		return nil, err
	}
	if err := validateRecipeInput(&input, false); err != nil {
		return nil, err
	}

	newImage := ""
	if input.Image != "" {
		if newImage, err = s.saveImage(ctx, input.Image); err != nil {
			return nil, err
		}
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tags, err := resolveReferences(tx, input)
		if err != nil {
			return err
		}

		updates := map[string]any{
			"name":         input.Name,
			"text":         input.Text,
			"cooking_time": input.CookingTime,
		}
		if newImage != "" {
			updates["image"] = newImage
		}
		if err := tx.Model(recipe).Updates(updates).Error; err != nil {
			return fmt.Errorf("update recipe: %w", err)
		}

		if err := tx.Where("recipe_id = ?", recipe.ID).Delete(&models.RecipeIngredient{}).Error; err != nil {
			return fmt.Errorf("clear recipe ingredients: %w", err)
		}
		rows := ingredientRows(input.Ingredients)
		for i := range rows {
			rows[i].RecipeID = recipe.ID
		}
		if err := tx.Omit("Ingredient").Create(&rows).Error; err != nil {
			return translateError(err, "create recipe ingredients")
		}

		if err := tx.Model(recipe).Omit("Tags.*").Association("Tags").Replace(tags); err != nil {
			return fmt.Errorf("replace recipe tags: %w", err)
		}
		return nil
	})
	if err != nil {
		s.discardImage(ctx, newImage)
		return nil, err
	}

	if newImage != "" {
		s.discardImage(ctx, recipe.Image)
	}
	log.WithFields(logrus.Fields{"recipe_id": recipe.ID, "actor_id": actorID}).Info("Recipe updated")
	return s.loadResponse(s.db.WithContext(ctx), recipe.ID, actorID)
}

func (s *recipeService) DeleteRecipe(ctx context.Context, actorID uint, isAdmin bool, id uint) error {
	recipe, err := s.authorize(ctx, actorID, isAdmin, id)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(recipe).Association("Tags").Clear(); err != nil {
			return fmt.Errorf("clear recipe tags: %w", err)
		}
		if err := tx.Delete(recipe).Error; err != nil {
			return fmt.Errorf("delete recipe: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.discardImage(ctx, recipe.Image)
	log.WithFields(logrus.Fields{"recipe_id": id, "actor_id": actorID}).Info("Recipe deleted")
	return nil
}

func (s *recipeService) ShortLink(ctx context.Context, id uint, baseURL string) (string, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).Select("id").First(&recipe, id).Error; err != nil {
		return "", translateError(err, "recipe")
	}
	return fmt.Sprintf("%s/api/recipes/%d/", strings.TrimRight(baseURL, "/"), recipe.ID), nil
}

// authorize loads the recipe and checks the actor may modify it
func (s *recipeService) authorize(ctx context.Context, actorID uint, isAdmin bool, id uint) (*models.Recipe, error) {
	var recipe models.Recipe
	if err := s.db.WithContext(ctx).First(&recipe, id).Error; err != nil {
		return nil, translateError(err, "recipe")
	}
	if recipe.AuthorID != actorID && !isAdmin {
		return nil, fmt.Errorf("recipe %d belongs to another author: %w", id, ErrForbidden)
	}
	return &recipe, nil
}

func (s *recipeService) saveImage(ctx context.Context, dataURI string) (string, error) {
	url, err := s.images.Save(ctx, recipeImagePrefix, dataURI)
	if errors.Is(err, storage.ErrInvalidImage) {
		return "", NewValidationError("image", err.Error())
	}
	if err != nil {
		return "", fmt.Errorf("store recipe image: %w", err)
	}
	return url, nil
}

// discardImage removes an image that is no longer referenced; failures only leave an orphan file
func (s *recipeService) discardImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		log.WithError(err).WithField("image", url).Warn("Failed to delete recipe image")
	}
}

// validateRecipeInput trims the text fields and checks everything that needs no database access
func validateRecipeInput(input *RecipeInput, requireImage bool) error {
	input.Name = strings.TrimSpace(input.Name)
	input.Text = strings.TrimSpace(input.Text)

	fields := fieldErrors{}
	switch {
	case input.Name == "":
		fields.add("name", "required")
	case utf8.RuneCountInString(input.Name) > 256:
		fields.add("name", "must be at most 256 characters")
	}
	if input.Text == "" {
		fields.add("text", "required")
	}
	if input.CookingTime < 1 {
		fields.add("cooking_time", "must be at least 1")
	}
	if requireImage && strings.TrimSpace(input.Image) == "" {
		fields.add("image", "required")
	}

	if len(input.Ingredients) == 0 {
		fields.add("ingredients", "at least one ingredient is required")
	}
	seenIngredients := make(map[uint]struct{}, len(input.Ingredients))
	for _, ing := range input.Ingredients {
		if ing.Amount < 1 {
			fields.add("ingredients", fmt.Sprintf("amount of ingredient %d must be at least 1", ing.ID))
		}
		if _, dup := seenIngredients[ing.ID]; dup {
			fields.add("ingredients", fmt.Sprintf("ingredient %d is listed more than once", ing.ID))
		}
		seenIngredients[ing.ID] = struct{}{}
	}

	seenTags := make(map[uint]struct{}, len(input.Tags))
	for _, id := range input.Tags {
		if _, dup := seenTags[id]; dup {
			fields.add("tags", fmt.Sprintf("tag %d is listed more than once", id))
		}
		seenTags[id] = struct{}{}
	}

	return fields.err()
}

// resolveReferences checks every referenced ingredient and tag exists and returns the tags
func resolveReferences(tx *gorm.DB, input RecipeInput) ([]models.Tag, error) {
	ids := make([]uint, len(input.Ingredients))
	for i, ing := range input.Ingredients {
		ids[i] = ing.ID
	}

	var found []uint
	if err := tx.Model(&models.Ingredient{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
		return nil, fmt.Errorf("read ingredients: %w", err)
	}
	fields := fieldErrors{}
	if missing := difference(ids, found); len(missing) > 0 {
		fields.add("ingredients", fmt.Sprintf("unknown ingredients %v", missing))
	}

	var tags []models.Tag
	if len(input.Tags) > 0 {
		if err := tx.Where("id IN ?", input.Tags).Find(&tags).Error; err != nil {
			return nil, fmt.Errorf("read tags: %w", err)
		}
		tagIDs := make([]uint, len(tags))
		for i, tag := range tags {
			tagIDs[i] = tag.ID
		}
		if missing := difference(input.Tags, tagIDs); len(missing) > 0 {
			fields.add("tags", fmt.Sprintf("unknown tags %v", missing))
		}
	}

	if err := fields.err(); err != nil {
		return nil, err
	}
	return tags, nil
}

func ingredientRows(inputs []RecipeIngredientInput) []models.RecipeIngredient {
	rows := make([]models.RecipeIngredient, len(inputs))
	for i, in := range inputs {
		rows[i] = models.RecipeIngredient{IngredientID: in.ID, Amount: in.Amount}
	}
	return rows
}

// buildRecipeResponses maps recipes to their viewer-specific representation
func buildRecipeResponses(db *gorm.DB, recipes []models.Recipe, viewerID uint) ([]models.RecipeResponse, error) {
	out := make([]models.RecipeResponse, 0, len(recipes))
	if len(recipes) == 0 {
		return out, nil
	}

	favorites, cart, subscribed := map[uint]bool{}, map[uint]bool{}, map[uint]bool{}
	if viewerID != 0 {
		ids := make([]uint, len(recipes))
		authorIDs := make([]uint, len(recipes))
		for i, r := range recipes {
			ids[i] = r.ID
			authorIDs[i] = r.AuthorID
		}

		var err error
		if favorites, err = memberSet(db, &models.Favorite{}, "recipe_id", viewerID, ids); err != nil {
			return nil, err
		}
		if cart, err = memberSet(db, &models.ShoppingCart{}, "recipe_id", viewerID, ids); err != nil {
			return nil, err
		}
		if subscribed, err = memberSet(db, &models.Subscription{}, "author_id", viewerID, authorIDs); err != nil {
			return nil, err
		}
	}

	for _, r := range recipes {
		tags := r.Tags
		if tags == nil {
			tags = []models.Tag{}
		}
		sort.Slice(tags, func(i, j int) bool { return tags[i].ID < tags[j].ID })

		ingredients := make([]models.RecipeIngredientResponse, 0, len(r.Ingredients))
		for _, ri := range r.Ingredients {
			ingredients = append(ingredients, models.RecipeIngredientResponse{
				ID:              ri.IngredientID,
				Name:            ri.Ingredient.Name,
				MeasurementUnit: ri.Ingredient.MeasurementUnit,
				Amount:          ri.Amount,
			})
		}

		out = append(out, models.RecipeResponse{
			ID:               r.ID,
			Tags:             tags,
			Author:           models.NewUserResponse(r.Author, subscribed[r.AuthorID]),
			Ingredients:      ingredients,
			IsFavorited:      favorites[r.ID],
			IsInShoppingCart: cart[r.ID],
			Name:             r.Name,
			Image:            r.Image,
			Text:             r.Text,
			CookingTime:      r.CookingTime,
		})
	}
	return out, nil
}

// memberSet returns which of ids appear in column of the user's rows of model
func memberSet(db *gorm.DB, model any, column string, userID uint, ids []uint) (map[uint]bool, error) {
	var present []uint
	err := db.Model(model).
		Where("user_id = ? AND "+column+" IN ?", userID, ids).
		Pluck(column, &present).Error
	if err != nil {
		return nil, fmt.Errorf("read %s membership: %w", column, err)
	}

	set := make(map[uint]bool, len(present))
	for _, id := range present {
		set[id] = true
	}
	return set, nil
}
