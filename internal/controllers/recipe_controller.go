package controllers

import (
	"bytes"
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/metrics"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// RecipeController handles recipes, favorites, the shopping cart and its export
type RecipeController struct {
	recipes   services.RecipeService
	relations services.RelationService
	shopping  services.ShoppingService
	pdf       services.PDFOptions
	baseURL   string
}

func NewRecipeController(
	recipes services.RecipeService,
	relations services.RelationService,
	shopping services.ShoppingService,
	pdf services.PDFOptions,
	baseURL string,
) *RecipeController {
	return &RecipeController{
		recipes:   recipes,
		relations: relations,
		shopping:  shopping,
		pdf:       pdf,
		baseURL:   baseURL,
	}
}

// ShortLinkResponse is returned by the get-link endpoint
type ShortLinkResponse struct {
	ShortLink string `json:"short-link"`
}

// ListRecipes godoc
// @Summary List recipes
// @Description Newest first. Membership filters apply to authenticated callers only.
// @Tags recipes
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param author query int false "Author ID"
// @Param tags query []string false "Tag slugs (any of)" collectionFormat(multi)
// @Param is_favorited query int false "1 for favorites only, 0 to exclude them"
// @Param is_in_shopping_cart query int false "1 for cart recipes only, 0 to exclude them"
// @Success 200 {object} models.Page[models.RecipeResponse]
// @Failure 400 {object} models.APIError
// @Router /api/recipes [get]
func (rc *RecipeController) ListRecipes(c *gin.Context) {
	page, ok := pagination(c)
	if !ok {
		return
	}

	var filter services.RecipeFilter
	if raw := c.Query("author"); raw != "" {
		author, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			badRequest(c, models.ErrBadRequest, "Invalid author: "+strconv.Quote(raw))
			return
		}
		id := uint(author)
		filter.AuthorID = &id
	}
	for _, tag := range c.QueryArray("tags") {
		for _, slug := range strings.Split(tag, ",") {
			if slug = strings.TrimSpace(slug); slug != "" {
				filter.Tags = append(filter.Tags, slug)
			}
		}
	}
	if filter.IsFavorited, ok = queryFlag(c, "is_favorited"); !ok {
		return
	}
	if filter.IsInShoppingCart, ok = queryFlag(c, "is_in_shopping_cart"); !ok {
		return
	}

	recipes, count, err := rc.recipes.ListRecipes(c.Request.Context(), filter, page, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(c, requestBaseURL(c, rc.baseURL), recipes, count, page))
}

// GetRecipe godoc
// @Summary Get a recipe
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} models.RecipeResponse
// @Failure 404 {object} models.APIError
// @Router /api/recipes/{id} [get]
func (rc *RecipeController) GetRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	recipe, err := rc.recipes.GetRecipe(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// CreateRecipe godoc
// @Summary Create a recipe
// @Tags recipes
// @Accept json
// @Produce json
// @Param recipe body services.RecipeInput true "Recipe"
// @Success 201 {object} models.RecipeResponse
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes [post]
func (rc *RecipeController) CreateRecipe(c *gin.Context) {
	var req services.RecipeInput
	if !bindJSON(c, &req) {
		return
	}
	recipe, err := rc.recipes.CreateRecipe(c.Request.Context(), middleware.CurrentUserID(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, recipe)
}

// UpdateRecipe godoc
// @Summary Update a recipe
// @Description Only the author or an admin may update a recipe. The image may be omitted to keep the current one.
// @Tags recipes
// @Accept json
// @Produce json
// @Param id path int true "Recipe ID"
// @Param recipe body services.RecipeInput true "Recipe"
// @Success 200 {object} models.RecipeResponse
// @Failure 400 {object} models.APIError
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id} [patch]
func (rc *RecipeController) UpdateRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req services.RecipeInput
	if !bindJSON(c, &req) {
		return
	}
	recipe, err := rc.recipes.UpdateRecipe(c.Request.Context(), middleware.CurrentUserID(c), middleware.IsAdmin(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, recipe)
}

// DeleteRecipe godoc
// @Summary Delete a recipe
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 403 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id} [delete]
func (rc *RecipeController) DeleteRecipe(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := rc.recipes.DeleteRecipe(c.Request.Context(), middleware.CurrentUserID(c), middleware.IsAdmin(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// GetLink godoc
// @Summary Short link to a recipe
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 200 {object} ShortLinkResponse
// @Failure 404 {object} models.APIError
// @Router /api/recipes/{id}/get-link [get]
func (rc *RecipeController) GetLink(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	link, err := rc.recipes.ShortLink(c.Request.Context(), id, requestBaseURL(c, rc.baseURL))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ShortLinkResponse{ShortLink: link})
}

// AddFavorite godoc
// @Summary Add a recipe to favorites
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} models.RecipeShortResponse
// @Failure 404 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/favorite [post]
func (rc *RecipeController) AddFavorite(c *gin.Context) {
	rc.addPair(c, rc.relations.AddFavorite)
}

// RemoveFavorite godoc
// @Summary Remove a recipe from favorites
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/favorite [delete]
func (rc *RecipeController) RemoveFavorite(c *gin.Context) {
	rc.removePair(c, rc.relations.RemoveFavorite)
}

// AddToCart godoc
// @Summary Add a recipe to the shopping cart
// @Tags recipes
// @Produce json
// @Param id path int true "Recipe ID"
// @Success 201 {object} models.RecipeShortResponse
// @Failure 404 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/shopping_cart [post]
func (rc *RecipeController) AddToCart(c *gin.Context) {
	rc.addPair(c, rc.relations.AddToCart)
}

// RemoveFromCart godoc
// @Summary Remove a recipe from the shopping cart
// @Tags recipes
// @Param id path int true "Recipe ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/{id}/shopping_cart [delete]
func (rc *RecipeController) RemoveFromCart(c *gin.Context) {
	rc.removePair(c, rc.relations.RemoveFromCart)
}

func (rc *RecipeController) addPair(c *gin.Context, add func(ctx context.Context, userID, recipeID uint) (*models.Recipe, error)) {
	recipeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	recipe, err := add(c.Request.Context(), middleware.CurrentUserID(c), recipeID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, models.NewRecipeShortResponse(*recipe))
}

func (rc *RecipeController) removePair(c *gin.Context, remove func(ctx context.Context, userID, recipeID uint) error) {
	recipeID, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := remove(c.Request.Context(), middleware.CurrentUserID(c), recipeID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// DownloadShoppingCart godoc
// @Summary Download the shopping list
// @Description Ingredients of every recipe in the cart, summed per name and unit and ordered by name
// @Tags recipes
// @Produce plain
// @Produce application/pdf
// @Produce json
// @Param format query string false "txt (default), pdf or json"
// @Success 200 {object} services.ShoppingList
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/recipes/download_shopping_cart [get]
func (rc *RecipeController) DownloadShoppingCart(c *gin.Context) {
	format := strings.ToLower(c.DefaultQuery("format", services.ExportText))
	switch format {
	case services.ExportText, services.ExportPDF, services.ExportJSON:
	default:
		badRequest(c, models.ErrInvalidExportFormat, "Format must be one of txt, pdf, json")
		return
	}

	userID := middleware.CurrentUserID(c)
	list, err := rc.shopping.AggregateCart(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}

	switch format {
	case services.ExportJSON:
		c.JSON(http.StatusOK, list)
	case services.ExportPDF:
		var buf bytes.Buffer
		if err := services.RenderShoppingListPDF(&buf, list.Items, rc.pdf); err != nil {
			respondError(c, err)
			return
		}
		c.Header("Content-Disposition", `attachment; filename="shopping_list.pdf"`)
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	default:
		c.Header("Content-Disposition", `attachment; filename="shopping_list.txt"`)
		c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(services.RenderShoppingListText(list.Items)))
	}

	metrics.ShoppingListsTotal.WithLabelValues(format).Inc()
	log.WithFields(logrus.Fields{
		"user_id": userID,
		"format":  format,
		"items":   len(list.Items),
	}).Info("Shopping list generated")
}
