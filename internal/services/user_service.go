package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/franciscosanchezn/gin-foodgram-api/internal/models"
	"github.com/franciscosanchezn/gin-foodgram-api/internal/storage"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const avatarPrefix = "users/avatars"

// ErrInvalidCredentials is returned when the email or password does not match
var ErrInvalidCredentials = errors.New("invalid credentials")

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// RegisterInput is the payload of a new account
type RegisterInput struct {
	Email     string `json:"email" validate:"required,email,max=254"`
	Username  string `json:"username" validate:"required,max=150"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name" validate:"required,max=150"`
	Password  string `json:"password" validate:"required,min=8,max=128"`
}

type UserService interface {
	CreateUser(ctx context.Context, input RegisterInput) (*models.User, error)
	// Authenticate returns the user owning the email when the password matches
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByID(ctx context.Context, id uint) (*models.User, error)
	// GetProfile returns the public view of a user as seen by the viewer
	GetProfile(ctx context.Context, id, viewerID uint) (*models.UserResponse, error)
	ListUsers(ctx context.Context, page Pagination, viewerID uint) ([]models.UserResponse, int64, error)
	SetAvatar(ctx context.Context, userID uint, dataURI string) (string, error)
	DeleteAvatar(ctx context.Context, userID uint) error
}

type userService struct {
	db     *gorm.DB
	images storage.ImageStore
}

func NewUserService(db *gorm.DB, images storage.ImageStore) UserService {
	return &userService{db: db, images: images}
}

func (s *userService) CreateUser(ctx context.Context, input RegisterInput) (*models.User, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Username = strings.TrimSpace(input.Username)

	fields := fieldErrors(validateStruct(input))
	if fields == nil {
		fields = fieldErrors{}
	}
	if input.Username != "" && !usernamePattern.MatchString(input.Username) {
		fields.add("username", "may contain only letters, digits and @/./+/-/_")
	}
	if strings.EqualFold(input.Username, "me") {
		fields.add("username", "is reserved")
	}
	if err := fields.err(); err != nil {
		return nil, err
	}

	user := &models.User{
		Email:     input.Email,
		Username:  input.Username,
		FirstName: input.FirstName,
		LastName:  input.LastName,
		Password:  input.Password,
		Role:      models.RoleUser,
	}
	if err := user.HashPassword(); err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&models.User{}).Where("email = ? OR username = ?", user.Email, user.Username).Count(&existing).Error; err != nil {
			return fmt.Errorf("check existing user: %w", err)
		}
		if existing > 0 {
			return fmt.Errorf("user_already_exists: %w", ErrConflict)
		}
		return translateError(tx.Create(user).Error, "create user")
	})
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{"user_id": user.ID, "username": user.Username}).Info("User registered")
	return user, nil
}

func (s *userService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !user.CheckPassword(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func (s *userService) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return &user, nil
}

func (s *userService) GetUserByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, translateError(err, "user")
	}
	return &user, nil
}

func (s *userService) GetProfile(ctx context.Context, id, viewerID uint) (*models.UserResponse, error) {
	user, err := s.GetUserByID(ctx, id)
	if err != nil {
		return nil, err
	}

	subscribed, err := s.subscribedTo(s.db.WithContext(ctx), viewerID, []uint{id})
	if err != nil {
		return nil, err
	}
	resp := models.NewUserResponse(*user, subscribed[id])
	return &resp, nil
}

func (s *userService) ListUsers(ctx context.Context, page Pagination, viewerID uint) ([]models.UserResponse, int64, error) {
	page = page.Normalize()
	db := s.db.WithContext(ctx)

	var total int64
	if err := db.Model(&models.User{}).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count users: %w", err)
	}

	var users []models.User
	if err := db.Order("id").Offset(page.Offset()).Limit(page.Limit).Find(&users).Error; err != nil {
		return nil, 0, fmt.Errorf("list users: %w", err)
	}

	ids := make([]uint, len(users))
	for i, u := range users {
		ids[i] = u.ID
	}
	subscribed, err := s.subscribedTo(db, viewerID, ids)
	if err != nil {
		return nil, 0, err
	}

	out := make([]models.UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, models.NewUserResponse(u, subscribed[u.ID]))
	}
	return out, total, nil
}

func (s *userService) subscribedTo(db *gorm.DB, viewerID uint, authorIDs []uint) (map[uint]bool, error) {
	if viewerID == 0 || len(authorIDs) == 0 {
		return map[uint]bool{}, nil
	}
	return memberSet(db, &models.Subscription{}, "author_id", viewerID, authorIDs)
}

func (s *userService) SetAvatar(ctx context.Context, userID uint, dataURI string) (string, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(dataURI) == "" {
		return "", NewValidationError("avatar", "required")
	}

	url, err := s.images.Save(ctx, avatarPrefix, dataURI)
	if errors.Is(err, storage.ErrInvalidImage) {
		return "", NewValidationError("avatar", err.Error())
	}
	if err != nil {
		return "", fmt.Errorf("store avatar: %w", err)
	}

	previous := user.Avatar
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", url).Error; err != nil {
		s.removeImage(ctx, url)
		return "", fmt.Errorf("update avatar: %w", err)
	}
	s.removeImage(ctx, previous)
	return url, nil
}

func (s *userService) DeleteAvatar(ctx context.Context, userID uint) error {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return err
	}
	if user.Avatar == "" {
		return nil
	}

	previous := user.Avatar
	if err := s.db.WithContext(ctx).Model(user).Update("avatar", "").Error; err != nil {
		return fmt.Errorf("clear avatar: %w", err)
	}
	s.removeImage(ctx, previous)
	return nil
}

func (s *userService) removeImage(ctx context.Context, url string) {
	if url == "" {
		return
	}
	if err := s.images.Delete(ctx, url); err != nil {
		log.WithError(err).WithField("image", url).Warn("Failed to delete avatar")
	}
}
