package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/config"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/controllers"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/services"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/testhelpers"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const pixel = services.SampleImage

type apiClient struct {
	t      *testing.T
	router *gin.Engine
}

func newAPI(t *testing.T) (*apiClient, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testhelpers.SetupSQLiteDB(t)
	mediaDir := t.TempDir()
	images, err := storage.NewLocalStore(mediaDir, "/media")
	require.NoError(t, err)

	cfg := &config.Config{
		JWTSecret:          "router-test-secret",
		TokenTTLHours:      1,
		CORSAllowedOrigins: []string{"http://localhost:3000"},
		MediaURL:           "/media",
		PublicBaseURL:      "http://foodgram.test",
	}
	router := NewRouter(cfg, Dependencies{DB: db, Images: images, MediaDir: mediaDir})
	return &apiClient{t: t, router: router}, db
}

func (a *apiClient) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(a.t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func (a *apiClient) login(email, password string) string {
	a.t.Helper()
	w := a.do(http.MethodPost, "/api/auth/token/login", "", controllers.LoginRequest{Email: email, Password: password})
	require.Equal(a.t, http.StatusOK, w.Code, w.Body.String())

	var resp controllers.TokenResponse
	require.NoError(a.t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(a.t, resp.AccessToken)
	return resp.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (a *apiClient) importIngredients(token, filename, content string) *httptest.ResponseRecorder {
	a.t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(a.t, err)
	_, err = part.Write([]byte(content))
	require.NoError(a.t, err)
	require.NoError(a.t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/ingredients/import", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func TestHealthAndMetrics(t *testing.T) {
	api, _ := newAPI(t)

	w := api.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "healthy")

	w = api.do(http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "foodgram_http_requests_total")
}

func TestRegisterAndLogin(t *testing.T) {
	api, _ := newAPI(t)

	register := map[string]string{
		"email":      "Alice@Example.com",
		"username":   "alice",
		"first_name": "Alice",
		"last_name":  "Liddell",
		"password":   "wonderland42",
	}
	w := api.do(http.MethodPost, "/api/auth/register", "", register)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	user := decode[models.UserResponse](t, w)
	assert.Equal(t, "alice@example.com", user.Email)

	w = api.do(http.MethodPost, "/api/auth/register", "", register)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodPost, "/api/auth/register", "", map[string]string{"email": "not-an-email"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	apiErr := decode[models.APIError](t, w)
	assert.Equal(t, models.ErrValidationFailed, apiErr.Code)
	assert.Contains(t, apiErr.Details, "email")

	w = api.do(http.MethodPost, "/api/auth/token/login", "", controllers.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	token := api.login("alice@example.com", "wonderland42")
	w = api.do(http.MethodGet, "/api/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[models.UserResponse](t, w).Username)

	w = api.do(http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestShoppingCartScenario(t *testing.T) {
	api, db := newAPI(t)

	admin := testhelpers.CreateUser(t, db, "admin")
	require.NoError(t, db.Model(admin).Update("role", models.RoleAdmin).Error)
	testhelpers.CreateUser(t, db, "alice")
	testhelpers.CreateUser(t, db, "mallory")

	adminToken := api.login("admin@example.com", "password123")
	aliceToken := api.login("alice@example.com", "password123")
	malloryToken := api.login("mallory@example.com", "password123")

	// Catalog
	w := api.do(http.MethodPost, "/api/admin/tags", adminToken, services.TagInput{Name: "Breakfast", Color: "#ffaa00", Slug: "breakfast"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	tag := decode[models.Tag](t, w)

	w = api.do(http.MethodPost, "/api/admin/tags", aliceToken, services.TagInput{Name: "Lunch", Color: "#00aa00", Slug: "lunch"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	dataset := `[
		{"name": "flour", "measurement_unit": "g"},
		{"name": "egg", "measurement_unit": "pc"},
		{"name": "milk", "measurement_unit": "ml"},
		{"name": "flour", "measurement_unit": "g"},
		{"name": "salt"}
	]`
	w = api.importIngredients(adminToken, "ingredients.json", dataset)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := decode[services.LoadSummary](t, w)
	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 1, summary.Skipped)
	assert.Equal(t, 1, summary.Failed)

	// A second import of the same file changes nothing
	w = api.importIngredients(adminToken, "ingredients.json", dataset)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, decode[services.LoadSummary](t, w).Inserted)

	w = api.importIngredients(adminToken, "ingredients.json", `{"broken":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.importIngredients(aliceToken, "ingredients.json", dataset)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = api.do(http.MethodGet, "/api/ingredients", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	ids := map[string]uint{}
	for _, ing := range decode[[]models.Ingredient](t, w) {
		ids[ing.Name] = ing.ID
	}
	require.Len(t, ids, 3)

	w = api.do(http.MethodGet, "/api/ingredients?name=FL", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Ingredient](t, w), 1)

	// Recipes
	createRecipe := func(name string, lines ...services.RecipeIngredientInput) models.RecipeResponse {
		t.Helper()
		w := api.do(http.MethodPost, "/api/recipes", aliceToken, services.RecipeInput{
			Name:        name,
			Text:        "Mix and cook.",
			CookingTime: 10,
			Image:       pixel,
			Tags:        []uint{tag.ID},
			Ingredients: lines,
		})
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
		return decode[models.RecipeResponse](t, w)
	}
	recipeA := createRecipe("Pancakes",
		services.RecipeIngredientInput{ID: ids["flour"], Amount: 200},
		services.RecipeIngredientInput{ID: ids["egg"], Amount: 2},
	)
	recipeB := createRecipe("Crepes",
		services.RecipeIngredientInput{ID: ids["flour"], Amount: 100},
		services.RecipeIngredientInput{ID: ids["milk"], Amount: 50},
	)

	w = api.do(http.MethodPost, "/api/recipes", aliceToken, services.RecipeInput{Name: "Empty", Text: "x", CookingTime: 1, Image: pixel})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Cart
	for _, id := range []uint{recipeA.ID, recipeB.ID} {
		w = api.do(http.MethodPost, fmt.Sprintf("/api/recipes/%d/shopping_cart", id), aliceToken, nil)
		require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	}
	w = api.do(http.MethodPost, fmt.Sprintf("/api/recipes/%d/shopping_cart", recipeA.ID), aliceToken, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "egg (pc) — 2\nflour (g) — 300\nmilk (ml) — 50\n", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Disposition"), "shopping_list.txt")

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart?format=json", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []services.ShoppingItem{
		{Name: "egg", MeasurementUnit: "pc", Amount: 2},
		{Name: "flour", MeasurementUnit: "g", Amount: 300},
		{Name: "milk", MeasurementUnit: "ml", Amount: 50},
	}, decode[services.ShoppingList](t, w).Items)

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart?format=pdf", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.True(t, bytes.HasPrefix(w.Body.Bytes(), []byte("%PDF")))

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart?format=xml", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart", malloryToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())

	// Listing with viewer annotations
	w = api.do(http.MethodGet, "/api/recipes?is_in_shopping_cart=1&limit=1", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[models.Page[models.RecipeResponse]](t, w)
	assert.Equal(t, int64(2), page.Count)
	require.Len(t, page.Results, 1)
	assert.True(t, page.Results[0].IsInShoppingCart)
	require.NotNil(t, page.Next)
	assert.Contains(t, *page.Next, "http://foodgram.test/api/recipes?")
	assert.Nil(t, page.Previous)

	w = api.do(http.MethodGet, "/api/recipes?tags=breakfast", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[models.Page[models.RecipeResponse]](t, w).Count)

	w = api.do(http.MethodGet, "/api/recipes?is_favorited=maybe", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Favorites
	favPath := fmt.Sprintf("/api/recipes/%d/favorite", recipeA.ID)
	assert.Equal(t, http.StatusCreated, api.do(http.MethodPost, favPath, malloryToken, nil).Code)
	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, favPath, malloryToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, favPath, malloryToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, favPath, malloryToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/recipes/9999/favorite", malloryToken, nil).Code)

	// Ownership
	recipePath := fmt.Sprintf("/api/recipes/%d", recipeB.ID)
	update := services.RecipeInput{
		Name:        "Thin crepes",
		Text:        "Mix and cook.",
		CookingTime: 12,
		Ingredients: []services.RecipeIngredientInput{{ID: ids["flour"], Amount: 120}, {ID: ids["milk"], Amount: 60}},
	}
	assert.Equal(t, http.StatusForbidden, api.do(http.MethodPatch, recipePath, malloryToken, update).Code)
	w = api.do(http.MethodPatch, recipePath, adminToken, update)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Thin crepes", decode[models.RecipeResponse](t, w).Name)

	w = api.do(http.MethodGet, recipePath+"/get-link", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, fmt.Sprintf("http://foodgram.test/api/recipes/%d/", recipeB.ID), decode[controllers.ShortLinkResponse](t, w).ShortLink)

	assert.Equal(t, http.StatusForbidden, api.do(http.MethodDelete, recipePath, malloryToken, nil).Code)
	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, recipePath, aliceToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, recipePath, "", nil).Code)

	w = api.do(http.MethodGet, "/api/recipes/download_shopping_cart?format=json", aliceToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []services.ShoppingItem{
		{Name: "egg", MeasurementUnit: "pc", Amount: 2},
		{Name: "flour", MeasurementUnit: "g", Amount: 200},
	}, decode[services.ShoppingList](t, w).Items)
}

func TestSubscriptionsEndpoints(t *testing.T) {
	api, db := newAPI(t)

	author := testhelpers.CreateUser(t, db, "author")
	testhelpers.CreateUser(t, db, "reader")
	flour := testhelpers.CreateIngredient(t, db, "flour", "g")
	testhelpers.CreateRecipe(t, db, author, "Bread", map[*models.Ingredient]int{flour: 500})
	testhelpers.CreateRecipe(t, db, author, "Buns", map[*models.Ingredient]int{flour: 300})

	authorToken := api.login("author@example.com", "password123")
	readerToken := api.login("reader@example.com", "password123")

	subscribePath := fmt.Sprintf("/api/users/%d/subscribe", author.ID)

	w := api.do(http.MethodPost, subscribePath, authorToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = api.do(http.MethodPost, subscribePath+"?recipes_limit=1", readerToken, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	sub := decode[models.AuthorSubscriptionResponse](t, w)
	assert.True(t, sub.IsSubscribed)
	assert.Equal(t, int64(2), sub.RecipesCount)
	assert.Len(t, sub.Recipes, 1)

	assert.Equal(t, http.StatusConflict, api.do(http.MethodPost, subscribePath, readerToken, nil).Code)

	w = api.do(http.MethodGet, "/api/users/subscriptions", readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	subs := decode[models.Page[models.AuthorSubscriptionResponse]](t, w)
	assert.Equal(t, int64(1), subs.Count)
	require.Len(t, subs.Results, 1)
	assert.Len(t, subs.Results[0].Recipes, 2)

	w = api.do(http.MethodGet, fmt.Sprintf("/api/users/%d", author.ID), readerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, decode[models.UserResponse](t, w).IsSubscribed)

	w = api.do(http.MethodGet, "/api/users", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(2), decode[models.Page[models.UserResponse]](t, w).Count)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, subscribePath, readerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, subscribePath, readerToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPost, "/api/users/9999/subscribe", readerToken, nil).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/users/abc/subscribe", readerToken, nil).Code)
}

func TestAvatarAndClients(t *testing.T) {
	api, db := newAPI(t)

	admin := testhelpers.CreateUser(t, db, "admin")
	require.NoError(t, db.Model(admin).Update("role", models.RoleAdmin).Error)
	token := api.login("admin@example.com", "password123")

	w := api.do(http.MethodPut, "/api/users/me/avatar", token, controllers.AvatarRequest{Avatar: pixel})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	avatar := decode[controllers.AvatarRequest](t, w).Avatar
	assert.Contains(t, avatar, "/media/users/avatars/")

	w = api.do(http.MethodGet, avatar, "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = api.do(http.MethodPut, "/api/users/me/avatar", token, controllers.AvatarRequest{Avatar: "data:text/plain;base64,aGVsbG8="})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/users/me/avatar", token, nil).Code)

	// A registered client can trade its credentials for a token accepted by the API
	w = api.do(http.MethodPost, "/api/admin/clients", token, services.ClientInput{Name: "importer"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[controllers.ClientCreatedResponse](t, w)
	require.NotEmpty(t, created.ClientSecret)

	form := fmt.Sprintf("grant_type=client_credentials&client_id=%s&client_secret=%s", created.ClientID, created.ClientSecret)
	req := httptest.NewRequest(http.MethodPost, "/api/oauth/token", bytes.NewBufferString(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	api.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var tokenResp map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tokenResp))
	clientToken := tokenResp["access_token"].(string)

	w = api.do(http.MethodGet, "/api/admin/clients", clientToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.OAuthClient](t, w), 1)

	assert.Equal(t, http.StatusNoContent, api.do(http.MethodDelete, "/api/admin/clients/"+created.ClientID, token, nil).Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodDelete, "/api/admin/clients/"+created.ClientID, token, nil).Code)
}
