// Package server wires the controllers, middleware and documentation into the gin engine.
package server

import (
	"net/http"
	"time"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/auth"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/controllers"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/middleware"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// Dependencies are the collaborators the router needs besides the configuration
type Dependencies struct {
	DB      *gorm.DB
	Images  storage.ImageStore
	Limiter *middleware.RateLimiter
	// MediaDir is served under the configured media URL; empty when images live in S3
	MediaDir string
}

// NewRouter builds the services and controllers on top of the database and registers every route
func NewRouter(cfg *config.Config, deps Dependencies) *gin.Engine {
	tokenTTL := time.Duration(cfg.TokenTTLHours) * time.Hour
	jwtSecret := []byte(cfg.JWTSecret)

	userService := services.NewUserService(deps.DB, deps.Images)
	relationService := services.NewRelationService(deps.DB)
	recipeService := services.NewRecipeService(deps.DB, deps.Images)
	shoppingService := services.NewShoppingService(deps.DB)
	catalogService := services.NewCatalogService(deps.DB)
	clientService := services.NewClientService(deps.DB)
	loader := services.NewIngredientLoader(deps.DB)
	oauthService := auth.NewOAuthService(deps.DB, cfg.JWTSecret, tokenTTL)

	authController := controllers.NewAuthController(userService, cfg.JWTSecret, tokenTTL)
	userController := controllers.NewUserController(userService, relationService, cfg.PublicBaseURL)
	catalogController := controllers.NewCatalogController(catalogService, loader)
	recipeController := controllers.NewRecipeController(
		recipeService,
		relationService,
		shoppingService,
		services.PDFOptions{FontPath: cfg.PDFFontPath, Title: "Shopping list"},
		cfg.PublicBaseURL,
	)
	clientController := controllers.NewClientController(clientService)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(), middleware.CORS(cfg.CORSAllowedOrigins))

	router.GET("/health", healthCheckHandler)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	if deps.MediaDir != "" {
		router.Static(cfg.MediaURL, deps.MediaDir)
	}

	limited := deps.Limiter.Middleware()
	requireAuth := middleware.OAuth2Auth(jwtSecret)
	optionalAuth := middleware.OptionalAuth(jwtSecret)

	api := router.Group("/api")
	{
		authAPI := api.Group("/auth")
		{
			authAPI.POST("/register", limited, authController.Register)
			authAPI.POST("/token/login", limited, authController.Login)
		}
		api.POST("/oauth/token", limited, oauthService.HandleToken)

		users := api.Group("/users")
		{
			users.GET("", optionalAuth, userController.ListUsers)
			users.GET("/me", requireAuth, authController.Me)
			users.PUT("/me/avatar", requireAuth, limited, userController.SetAvatar)
			users.DELETE("/me/avatar", requireAuth, limited, userController.DeleteAvatar)
			users.GET("/subscriptions", requireAuth, userController.Subscriptions)
			users.GET("/:id", optionalAuth, userController.GetUser)
			users.POST("/:id/subscribe", requireAuth, limited, userController.Subscribe)
			users.DELETE("/:id/subscribe", requireAuth, limited, userController.Unsubscribe)
		}

		api.GET("/tags", catalogController.ListTags)
		api.GET("/tags/:id", catalogController.GetTag)
		api.GET("/ingredients", catalogController.ListIngredients)
		api.GET("/ingredients/:id", catalogController.GetIngredient)

		recipes := api.Group("/recipes")
		{
			recipes.GET("", optionalAuth, recipeController.ListRecipes)
			recipes.POST("", requireAuth, limited, recipeController.CreateRecipe)
			recipes.GET("/download_shopping_cart", requireAuth, recipeController.DownloadShoppingCart)
			recipes.GET("/:id", optionalAuth, recipeController.GetRecipe)
			recipes.PATCH("/:id", requireAuth, limited, recipeController.UpdateRecipe)
			recipes.DELETE("/:id", requireAuth, limited, recipeController.DeleteRecipe)
			recipes.GET("/:id/get-link", recipeController.GetLink)
			recipes.POST("/:id/favorite", requireAuth, limited, recipeController.AddFavorite)
			recipes.DELETE("/:id/favorite", requireAuth, limited, recipeController.RemoveFavorite)
			recipes.POST("/:id/shopping_cart", requireAuth, limited, recipeController.AddToCart)
			recipes.DELETE("/:id/shopping_cart", requireAuth, limited, recipeController.RemoveFromCart)
		}

		admin := api.Group("/admin")
		admin.Use(requireAuth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/ingredients/import", catalogController.ImportIngredients)
			admin.POST("/tags", catalogController.CreateTag)
			admin.POST("/clients", clientController.CreateClient)
			admin.GET("/clients", clientController.ListClients)
			admin.DELETE("/clients/:id", clientController.DeleteClient)
		}
	}

	return router
}

// healthCheckHandler handles the health check endpoint
// @Summary Health check
// @Description Check if the service is running
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheckHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"service":   "gin-foodgram-api",
	})
}
