package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// ClientInput describes a machine client to register
type ClientInput struct {
	Name   string `json:"name" validate:"required,max=128"`
	Domain string `json:"domain" validate:"omitempty,url"`
	Scopes string `json:"scopes"`
}

type ClientService interface {
	// CreateClient registers a client acting on behalf of userID. The plain secret is
	// returned once; only its bcrypt hash is stored.
	CreateClient(ctx context.Context, userID uint, input ClientInput) (*models.OAuthClient, string, error)
	// EnsureClient creates the client with a fixed id and secret unless it already exists
	EnsureClient(ctx context.Context, client *models.OAuthClient, secret string) (bool, error)
	GetClientsByUserID(ctx context.Context, userID uint) ([]models.OAuthClient, error)
	GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error)
	DeleteClient(ctx context.Context, clientID string, userID uint) error
}

type clientService struct {
	db *gorm.DB
}

func NewClientService(db *gorm.DB) ClientService {
	return &clientService{db: db}
}

func (s *clientService) CreateClient(ctx context.Context, userID uint, input ClientInput) (*models.OAuthClient, string, error) {
	input.Name = strings.TrimSpace(input.Name)
	if fields := validateStruct(input); fields != nil {
		return nil, "", &ValidationError{Fields: fields}
	}

	secret := uuid.New().String()
	client := &models.OAuthClient{
		ID:         uuid.New().String(),
		Name:       input.Name,
		Domain:     input.Domain,
		Scopes:     input.Scopes,
		GrantTypes: "client_credentials",
		UserID:     userID,
	}
	if _, err := s.EnsureClient(ctx, client, secret); err != nil {
		return nil, "", err
	}
	return client, secret, nil
}

func (s *clientService) EnsureClient(ctx context.Context, client *models.OAuthClient, secret string) (bool, error) {
	var existing models.OAuthClient
	err := s.db.WithContext(ctx).Where("id = ?", client.ID).First(&existing).Error
	if err == nil {
		*client = existing
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, fmt.Errorf("look up client: %w", err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	if err != nil {
		return false, fmt.Errorf("hash client secret: %w", err)
	}
	client.Secret = string(hashed)

	if err := s.db.WithContext(ctx).Create(client).Error; err != nil {
		return false, translateError(err, "create client")
	}
	return true, nil
}

func (s *clientService) GetClientsByUserID(ctx context.Context, userID uint) ([]models.OAuthClient, error) {
	clients := []models.OAuthClient{}
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at").Find(&clients).Error; err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}
	return clients, nil
}

func (s *clientService) GetClientByID(ctx context.Context, id string) (*models.OAuthClient, error) {
	var client models.OAuthClient
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&client).Error; err != nil {
		return nil, translateError(err, "client")
	}
	return &client, nil
}

func (s *clientService) DeleteClient(ctx context.Context, clientID string, userID uint) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", clientID, userID).Delete(&models.OAuthClient{})
	if result.Error != nil {
		return fmt.Errorf("delete client: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("client_not_found: %w", ErrNotFound)
	}
	return nil
}
