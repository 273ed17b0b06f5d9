package models

// UserResponse is the public view of a user
type UserResponse struct {
	ID           uint   `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	Avatar       string `json:"avatar"`
	IsSubscribed bool   `json:"is_subscribed"`
}

// RecipeIngredientResponse is an ingredient line of a recipe
type RecipeIngredientResponse struct {
	ID              uint   `json:"id"`
	Name            string `json:"name"`
	MeasurementUnit string `json:"measurement_unit"`
	Amount          int    `json:"amount"`
}

// RecipeResponse is the full view of a recipe for a given viewer
type RecipeResponse struct {
	ID               uint                       `json:"id"`
	Tags             []Tag                      `json:"tags"`
	Author           UserResponse               `json:"author"`
	Ingredients      []RecipeIngredientResponse `json:"ingredients"`
	IsFavorited      bool                       `json:"is_favorited"`
	IsInShoppingCart bool                       `json:"is_in_shopping_cart"`
	Name             string                     `json:"name"`
	Image            string                     `json:"image"`
	Text             string                     `json:"text"`
	CookingTime      int                        `json:"cooking_time"`
}

// RecipeShortResponse is the compact view returned by favorite/cart actions and subscriptions
type RecipeShortResponse struct {
	ID          uint   `json:"id"`
	Name        string `json:"name"`
	Image       string `json:"image"`
	CookingTime int    `json:"cooking_time"`
}

// AuthorSubscriptionResponse is an author followed by the viewer, with a preview of their recipes
type AuthorSubscriptionResponse struct {
	UserResponse
	RecipesCount int64                 `json:"recipes_count"`
	Recipes      []RecipeShortResponse `json:"recipes"`
}

// Page is a paginated list response
type Page[T any] struct {
	Count    int64   `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

// NewUserResponse maps a user to its public view
func NewUserResponse(u User, isSubscribed bool) UserResponse {
	return UserResponse{
		ID:           u.ID,
		Email:        u.Email,
		Username:     u.Username,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		Avatar:       u.Avatar,
		IsSubscribed: isSubscribed,
	}
}

// NewRecipeShortResponse maps a recipe to its compact view
func NewRecipeShortResponse(r Recipe) RecipeShortResponse {
	return RecipeShortResponse{
		ID:          r.ID,
		Name:        r.Name,
		Image:       r.Image,
		CookingTime: r.CookingTime,
	}
}
