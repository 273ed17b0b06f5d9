package controllers

import (
	"net/http"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/auth"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/gin-gonic/gin"
)

type AuthController struct {
	userService services.UserService
	jwtSecret   []byte
	tokenTTL    time.Duration
}

func NewAuthController(userService services.UserService, jwtSecret string, tokenTTL time.Duration) *AuthController {
	return &AuthController{
		userService: userService,
		jwtSecret:   []byte(jwtSecret),
		tokenTTL:    tokenTTL,
	}
}

// LoginRequest is the body of the login endpoint
type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// TokenResponse is returned by the login endpoint
type TokenResponse struct {
	AccessToken string              `json:"access_token"`
	TokenType   string              `json:"token_type"`
	ExpiresIn   int64               `json:"expires_in"`
	User        models.UserResponse `json:"user"`
}

// Register godoc
// @Summary Register a user
// @Description Create a new account
// @Tags auth
// @Accept json
// @Produce json
// @Param user body services.RegisterInput true "Account details"
// @Success 201 {object} models.UserResponse
// @Failure 400 {object} models.APIError
// @Failure 409 {object} models.APIError
// @Router /api/auth/register [post]
func (ac *AuthController) Register(c *gin.Context) {
	var req services.RegisterInput
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.userService.CreateUser(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.NewUserResponse(*user, false))
}

// Login godoc
// @Summary Obtain an access token
// @Description Exchange email and password for a bearer token
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body LoginRequest true "Credentials"
// @Success 200 {object} TokenResponse
// @Failure 400 {object} models.APIError
// @Failure 401 {object} models.APIError
// @Router /api/auth/token/login [post]
func (ac *AuthController) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	user, err := ac.userService.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		respondError(c, err)
		return
	}

	token, expiresAt, err := auth.IssueUserToken(ac.jwtSecret, user, ac.tokenTTL)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		User:        models.NewUserResponse(*user, false),
	})
}

// Me godoc
// @Summary Current user
// @Description Profile of the authenticated user
// @Tags users
// @Produce json
// @Success 200 {object} models.UserResponse
// @Failure 401 {object} models.OAuth2Error
// @Security BearerAuth
// @Router /api/users/me [get]
func (ac *AuthController) Me(c *gin.Context) {
	userID := middleware.CurrentUserID(c)
	profile, err := ac.userService.GetProfile(c.Request.Context(), userID, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}
