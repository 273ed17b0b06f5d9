package models

import (
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OAuthClient is a registered machine client allowed to use the client_credentials grant.
// Tokens issued to it act on behalf of UserID.
type OAuthClient struct {
	ID         string         `gorm:"primaryKey" json:"client_id"`
	Secret     string         `gorm:"not null" json:"-"`
	Name       string         `json:"name"`
	Domain     string         `json:"domain"`
	UserID     uint           `gorm:"index" json:"user_id"`
	Scopes     string         `json:"scopes"`
	GrantTypes string         `json:"grant_types"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"-"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// GetID implements oauth2.ClientInfo
func (c *OAuthClient) GetID() string { return c.ID }

// GetSecret implements oauth2.ClientInfo. The value is a bcrypt hash.
func (c *OAuthClient) GetSecret() string { return c.Secret }

// GetDomain implements oauth2.ClientInfo
func (c *OAuthClient) GetDomain() string { return c.Domain }

// IsPublic implements oauth2.ClientInfo. Every client here is confidential.
func (c *OAuthClient) IsPublic() bool { return false }

// GetUserID implements oauth2.ClientInfo
func (c *OAuthClient) GetUserID() string {
	if c.UserID == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(c.UserID), 10)
}

// VerifyPassword implements oauth2.ClientPasswordVerifier against the stored bcrypt hash
func (c *OAuthClient) VerifyPassword(secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}
