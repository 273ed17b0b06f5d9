package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// CatalogController serves tags and ingredients, including the admin import of the ingredient catalog
type CatalogController struct {
	catalog services.CatalogService
	loader  services.IngredientLoader
}

func NewCatalogController(catalog services.CatalogService, loader services.IngredientLoader) *CatalogController {
	return &CatalogController{catalog: catalog, loader: loader}
}

// ListTags godoc
// @Summary List tags
// @Tags tags
// @Produce json
// @Success 200 {array} models.Tag
// @Router /api/tags [get]
func (cc *CatalogController) ListTags(c *gin.Context) {
	tags, err := cc.catalog.ListTags(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tags)
}

// GetTag godoc
// @Summary Get a tag
// @Tags tags
// @Produce json
// @Param id path int true "Tag ID"
// @Success 200 {object} models.Tag
// @Failure 404 {object} models.APIError
// @Router /api/tags/{id} [get]
func (cc *CatalogController) GetTag(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	tag, err := cc.catalog.GetTag(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, tag)
}

// CreateTag godoc
// @Summary Create a tag
// @Tags admin
// @Accept json
// @Produce json
// @Param tag body services.TagInput true "Tag"
// @Success 201 {object} models.Tag
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/admin/tags [post]
func (cc *CatalogController) CreateTag(c *gin.Context) {
	var req services.TagInput
	if !bindJSON(c, &req) {
		return
	}
	tag, err := cc.catalog.CreateTag(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, tag)
}

// ListIngredients godoc
// @Summary Search ingredients
// @Description Ingredients whose name starts with the given prefix, ignoring case
// @Tags ingredients
// @Produce json
// @Param name query string false "Name prefix"
// @Success 200 {array} models.Ingredient
// @Router /api/ingredients [get]
func (cc *CatalogController) ListIngredients(c *gin.Context) {
	ingredients, err := cc.catalog.ListIngredients(c.Request.Context(), c.Query("name"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredients)
}

// GetIngredient godoc
// @Summary Get an ingredient
// @Tags ingredients
// @Produce json
// @Param id path int true "Ingredient ID"
// @Success 200 {object} models.Ingredient
// @Failure 404 {object} models.APIError
// @Router /api/ingredients/{id} [get]
func (cc *CatalogController) GetIngredient(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	ingredient, err := cc.catalog.GetIngredient(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, ingredient)
}

// ImportIngredients godoc
// @Summary Import the ingredient catalog
// @Description Loads a JSON or CSV dataset. Pairs already in the catalog are skipped and invalid records are reported.
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Dataset file"
// @Param format query string false "json or csv (detected from the file name when omitted)"
// @Success 200 {object} services.LoadSummary
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/admin/ingredients/import [post]
func (cc *CatalogController) ImportIngredients(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		badRequest(c, models.ErrImportFileMissing, "Multipart field \"file\" is required")
		return
	}

	format := strings.ToLower(c.Query("format"))
	if format == "" {
		format = services.DetectFormat(header.Filename)
	}

	file, err := header.Open()
	if err != nil {
		respondError(c, err)
		return
	}
	defer file.Close()

	summary, err := cc.loader.LoadIngredientsReader(c.Request.Context(), file, format)
	if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrMalformedDataset) {
		log.WithError(err).WithField("file", header.Filename).Warn("Ingredient import rejected")
		badRequest(c, models.ErrBadRequest, err.Error())
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	log.WithFields(logrus.Fields{
		"file":     header.Filename,
		"inserted": summary.Inserted,
		"skipped":  summary.Skipped,
		"failed":   summary.Failed,
	}).Info("Ingredient import finished")
	c.JSON(http.StatusOK, summary)
}
