package services

import (
	"context"
	"testing"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/testhelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientLifecycle(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	owner := testhelpers.CreateUser(t, db, "owner")
	svc := NewClientService(db)
	ctx := context.Background()

	client, secret, err := svc.CreateClient(ctx, owner.ID, ClientInput{Name: "importer", Domain: "http://localhost"})
	require.NoError(t, err)
	assert.NotEmpty(t, secret)
	assert.NotEqual(t, secret, client.Secret)
	assert.True(t, client.VerifyPassword(secret))
	assert.Equal(t, "client_credentials", client.GrantTypes)

	clients, err := svc.GetClientsByUserID(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, clients, 1)

	got, err := svc.GetClientByID(ctx, client.ID)
	require.NoError(t, err)
	assert.Equal(t, "importer", got.Name)

	assert.ErrorIs(t, svc.DeleteClient(ctx, client.ID, owner.ID+1), ErrNotFound)
	require.NoError(t, svc.DeleteClient(ctx, client.ID, owner.ID))
	_, err = svc.GetClientByID(ctx, client.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, _, err = svc.CreateClient(ctx, owner.ID, ClientInput{Name: "", Domain: "not a url"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
}

func TestEnsureClientIsIdempotent(t *testing.T) {
	db := testhelpers.SetupSQLiteDB(t)
	owner := testhelpers.CreateUser(t, db, "dev")
	svc := NewClientService(db)
	ctx := context.Background()

	created, err := svc.EnsureClient(ctx, &models.OAuthClient{ID: "dev-client", Name: "dev", UserID: owner.ID}, "dev-secret-123")
	require.NoError(t, err)
	assert.True(t, created)

	again := &models.OAuthClient{ID: "dev-client", Name: "renamed", UserID: owner.ID}
	created, err = svc.EnsureClient(ctx, again, "other")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "dev", again.Name)
	assert.True(t, again.VerifyPassword("dev-secret-123"))
}
