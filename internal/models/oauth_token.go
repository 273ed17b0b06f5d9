package models

import (
	"time"
)

// OAuthToken records an access token issued through the OAuth2 token endpoint
type OAuthToken struct {
	ID          uint   `gorm:"primaryKey"`
	ClientID    string `gorm:"not null;index"`
	UserID      string `gorm:"index"`
	AccessToken string `gorm:"uniqueIndex;not null"`
	Scopes      string
	ExpiresAt   time.Time `gorm:"not null"`
	CreatedAt   time.Time
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}
