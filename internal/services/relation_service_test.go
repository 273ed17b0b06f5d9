package services

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFavoriteAddTwiceConflicts(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	user := testhelpers.CreateUser(t, db, "fan")
	flour := testhelpers.CreateIngredient(t, db, "flour", "g")
	recipe := testhelpers.CreateRecipe(t, db, user, "Bread", map[*models.Ingredient]int{flour: 500})
	svc := NewRelationService(db)
	ctx := context.Background()

	added, err := svc.AddFavorite(ctx, user.ID, recipe.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bread", added.Name)

	_, err = svc.AddFavorite(ctx, user.ID, recipe.ID)
	assert.ErrorIs(t, err, ErrConflict)

	require.NoError(t, svc.RemoveFavorite(ctx, user.ID, recipe.ID))
	assert.ErrorIs(t, svc.RemoveFavorite(ctx, user.ID, recipe.ID), ErrNotFound)
}

func TestCartAddAndRemove(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	user := testhelpers.CreateUser(t, db, "cook")
	egg := testhelpers.CreateIngredient(t, db, "egg", "pc")
	recipe := testhelpers.CreateRecipe(t, db, user, "Omelette", map[*models.Ingredient]int{egg: 3})
	svc := NewRelationService(db)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, user.ID, recipe.ID)
	require.NoError(t, err)
	_, err = svc.AddToCart(ctx, user.ID, recipe.ID)
	assert.ErrorIs(t, err, ErrConflict)

	var count int64
	require.NoError(t, db.Model(&models.ShoppingCart{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	require.NoError(t, svc.RemoveFromCart(ctx, user.ID, recipe.ID))
	assert.ErrorIs(t, svc.RemoveFromCart(ctx, user.ID, recipe.ID), ErrNotFound)
}

func TestRelationsOnUnknownRecipe(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	user := testhelpers.CreateUser(t, db, "lost")
	svc := NewRelationService(db)
	ctx := context.Background()

	_, err := svc.AddFavorite(ctx, user.ID, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = svc.AddToCart(ctx, user.ID, 404)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, svc.RemoveFromCart(ctx, user.ID, 404), ErrNotFound)
}

func TestSubscribe(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	follower := testhelpers.CreateUser(t, db, "follower")
	author := testhelpers.CreateUser(t, db, "author")
	salt := testhelpers.CreateIngredient(t, db, "salt", "g")
	testhelpers.CreateRecipe(t, db, author, "First", map[*models.Ingredient]int{salt: 1})
	testhelpers.CreateRecipe(t, db, author, "Second", map[*models.Ingredient]int{salt: 2})
	testhelpers.CreateRecipe(t, db, author, "Third", map[*models.Ingredient]int{salt: 3})
	svc := NewRelationService(db)
	ctx := context.Background()

	t.Run("self subscription is a validation error", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, follower.ID, follower.ID, -1)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Contains(t, verr.Fields, "author")
	})

	t.Run("unknown author is not found", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, follower.ID, 9999, -1)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("subscribe returns the author with a recipe preview", func(t *testing.T) {
		resp, err := svc.Subscribe(ctx, follower.ID, author.ID, 2)
		require.NoError(t, err)
		assert.True(t, resp.IsSubscribed)
		assert.Equal(t, int64(3), resp.RecipesCount)
		assert.Len(t, resp.Recipes, 2)
	})

	t.Run("subscribing twice conflicts", func(t *testing.T) {
		_, err := svc.Subscribe(ctx, follower.ID, author.ID, -1)
		assert.ErrorIs(t, err, ErrConflict)
	})

	t.Run("list subscriptions", func(t *testing.T) {
		authors, total, err := svc.ListSubscriptions(ctx, follower.ID, Pagination{Page: 1, Limit: 10}, -1)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)
		require.Len(t, authors, 1)
		assert.Equal(t, author.ID, authors[0].ID)
		assert.Len(t, authors[0].Recipes, 3)

		authors, _, err = svc.ListSubscriptions(ctx, follower.ID, Pagination{Page: 1}, 0)
		require.NoError(t, err)
		assert.Empty(t, authors[0].Recipes)
	})

	t.Run("unsubscribe twice is not found", func(t *testing.T) {
		require.NoError(t, svc.Unsubscribe(ctx, follower.ID, author.ID))
		assert.ErrorIs(t, svc.Unsubscribe(ctx, follower.ID, author.ID), ErrNotFound)
	})
}

func TestPaginationNormalize(t *testing.T) {
	p := Pagination{}.Normalize()
	assert.Equal(t, Pagination{Page: 1, Limit: DefaultPageSize}, p)
	assert.Equal(t, MaxPageSize, Pagination{Limit: 1000}.Normalize().Limit)
	assert.Equal(t, 20, Pagination{Page: 3, Limit: 10}.Offset())
}
