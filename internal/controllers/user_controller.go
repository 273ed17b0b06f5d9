package controllers

import (
	"net/http"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

// UserController serves user profiles, avatars and subscriptions
type UserController struct {
	userService     services.UserService
	relationService services.RelationService
	baseURL         string
}

func NewUserController(userService services.UserService, relationService services.RelationService, baseURL string) *UserController {
	return &UserController{userService: userService, relationService: relationService, baseURL: baseURL}
}

// AvatarRequest carries a base64 data URI image
type AvatarRequest struct {
	Avatar string `json:"avatar"`
}

// ListUsers godoc
// @Summary List users
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} models.Page[models.UserResponse]
// @Router /api/users [get]
func (uc *UserController) ListUsers(c *gin.Context) {
	page, ok := pagination(c)
	if !ok {
		return
	}

	users, count, err := uc.userService.ListUsers(c.Request.Context(), page, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(c, requestBaseURL(c, uc.baseURL), users, count, page))
}

// GetUser godoc
// @Summary Get a user profile
// @Tags users
// @Produce json
// @Param id path int true "User ID"
// @Success 200 {object} models.UserResponse
// @Failure 404 {object} models.APIError
// @Router /api/users/{id} [get]
func (uc *UserController) GetUser(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}

	profile, err := uc.userService.GetProfile(c.Request.Context(), id, middleware.CurrentUserID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// SetAvatar godoc
// @Summary Upload avatar
// @Tags users
// @Accept json
// @Produce json
// @Param avatar body AvatarRequest true "Base64 data URI image"
// @Success 200 {object} AvatarRequest
// @Failure 400 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/me/avatar [put]
func (uc *UserController) SetAvatar(c *gin.Context) {
	var req AvatarRequest
	if !bindJSON(c, &req) {
		return
	}

	url, err := uc.userService.SetAvatar(c.Request.Context(), middleware.CurrentUserID(c), req.Avatar)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, AvatarRequest{Avatar: url})
}

// DeleteAvatar godoc
// @Summary Remove avatar
// @Tags users
// @Success 204
// @Security BearerAuth
// @Router /api/users/me/avatar [delete]
func (uc *UserController) DeleteAvatar(c *gin.Context) {
	if err := uc.userService.DeleteAvatar(c.Request.Context(), middleware.CurrentUserID(c)); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Subscriptions godoc
// @Summary Followed authors
// @Description Authors the current user subscribed to, each with up to recipes_limit recipes
// @Tags users
// @Produce json
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Param recipes_limit query int false "Recipes per author (all when omitted)"
// @Success 200 {object} models.Page[models.AuthorSubscriptionResponse]
// @Security BearerAuth
// @Router /api/users/subscriptions [get]
func (uc *UserController) Subscriptions(c *gin.Context) {
	page, ok := pagination(c)
	if !ok {
		return
	}
	recipesLimit, ok := queryInt(c, "recipes_limit", -1)
	if !ok {
		return
	}

	authors, count, err := uc.relationService.ListSubscriptions(c.Request.Context(), middleware.CurrentUserID(c), page, recipesLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPage(c, requestBaseURL(c, uc.baseURL), authors, count, page))
}

// Subscribe godoc
// @Summary Subscribe to an author
// @Tags users
// @Produce json
// @Param id path int true "Author ID"
// @Param recipes_limit query int false "Recipes in the response (all when omitted)"
// @Success 201 {object} models.AuthorSubscriptionResponse
// @Failure 400 {object} models.APIError
// @Failure 404 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/{id}/subscribe [post]
func (uc *UserController) Subscribe(c *gin.Context) {
	authorID, ok := pathID(c, "id")
	if !ok {
		return
	}
	recipesLimit, ok := queryInt(c, "recipes_limit", -1)
	if !ok {
		return
	}

	resp, err := uc.relationService.Subscribe(c.Request.Context(), middleware.CurrentUserID(c), authorID, recipesLimit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Unsubscribe godoc
// @Summary Unsubscribe from an author
// @Tags users
// @Param id path int true "Author ID"
// @Success 204
// @Failure 404 {object} models.APIError
// @Security BearerAuth
// @Router /api/users/{id}/subscribe [delete]
func (uc *UserController) Unsubscribe(c *gin.Context) {
	authorID, ok := pathID(c, "id")
	if !ok {
		return
	}

	if err := uc.relationService.Unsubscribe(c.Request.Context(), middleware.CurrentUserID(c), authorID); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
