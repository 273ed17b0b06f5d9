package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"gorm.io/gorm"
)

var slugPattern = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)

// TagInput is the payload of a new tag
type TagInput struct {
	Name  string `json:"name" validate:"required,max=128"`
	Color string `json:"color" validate:"required,hexcolor,len=7"`
	Slug  string `json:"slug" validate:"required,max=64"`
}

// CatalogService reads the shared tag and ingredient catalogs
type CatalogService interface {
	ListTags(ctx context.Context) ([]models.Tag, error)
	GetTag(ctx context.Context, id uint) (*models.Tag, error)
	CreateTag(ctx context.Context, input TagInput) (*models.Tag, error)
	// ListIngredients returns the ingredients whose name starts with prefix, ignoring case
	ListIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error)
	GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error)
}

type catalogService struct {
	db *gorm.DB
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(db *gorm.DB) CatalogService {
	return &catalogService{db: db}
}

func (s *catalogService) ListTags(ctx context.Context) ([]models.Tag, error) {
	tags := []models.Tag{}
	if err := s.db.WithContext(ctx).Order("id").Find(&tags).Error; err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	return tags, nil
}

func (s *catalogService) GetTag(ctx context.Context, id uint) (*models.Tag, error) {
	var tag models.Tag
	if err := s.db.WithContext(ctx).First(&tag, id).Error; err != nil {
		return nil, translateError(err, "tag")
	}
	return &tag, nil
}

func (s *catalogService) CreateTag(ctx context.Context, input TagInput) (*models.Tag, error) {
	input.Name = strings.TrimSpace(input.Name)
	input.Slug = strings.TrimSpace(input.Slug)
	input.Color = strings.ToUpper(strings.TrimSpace(input.Color))

	fields := fieldErrors(validateStruct(input))
	if fields == nil {
		fields = fieldErrors{}
	}
	if input.Slug != "" && !slugPattern.MatchString(input.Slug) {
		fields.add("slug", "may contain only letters, digits, - and _")
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	tag := &models.Tag{Name: input.Name, Color: input.Color, Slug: input.Slug}
	if err := s.db.WithContext(ctx).Create(tag).Error; err != nil {
		return nil, translateError(err, "create tag")
	}
	return tag, nil
}

func (s *catalogService) ListIngredients(ctx context.Context, prefix string) ([]models.Ingredient, error) {
	q := s.db.WithContext(ctx).Order("name").Order("measurement_unit")
	if prefix = strings.TrimSpace(prefix); prefix != "" {
		q = q.Where("LOWER(name) LIKE ? ESCAPE '\\'", escapeLike(strings.ToLower(prefix))+"%")
	}

	ingredients := []models.Ingredient{}
	if err := q.Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("list ingredients: %w", err)
	}
	return ingredients, nil
}

func (s *catalogService) GetIngredient(ctx context.Context, id uint) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := s.db.WithContext(ctx).First(&ingredient, id).Error; err != nil {
		return nil, translateError(err, "ingredient")
	}
	return &ingredient, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
