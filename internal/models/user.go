package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Roles a user can hold. The role travels in the "role" claim of access tokens.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is an account that authors recipes and owns favorites, cart entries and subscriptions
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Email     string    `gorm:"uniqueIndex;size:254;not null" json:"email"`
	Username  string    `gorm:"uniqueIndex;size:150;not null" json:"username"`
	FirstName string    `gorm:"size:150;not null" json:"first_name"`
	LastName  string    `gorm:"size:150;not null" json:"last_name"`
	Password  string    `gorm:"not null" json:"-"`
	Role      string    `gorm:"size:16;default:'user'" json:"-"`
	Avatar    string    `gorm:"size:512" json:"avatar"`
	CreatedAt time.Time `json:"-"`
	UpdatedAt time.Time `json:"-"`
}

// HashPassword replaces the plain password with its bcrypt hash
func (u *User) HashPassword() error {
	hash, err := bcrypt.GenerateFromPassword([]byte(u.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hash)
	return nil
}

// CheckPassword reports whether the plain password matches the stored hash
func (u *User) CheckPassword(password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)) == nil
}

// IsAdmin reports whether the user holds the admin role
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Subscription links a follower to an author whose recipes they follow
type Subscription struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"not null;uniqueIndex:idx_subscription_user_author"`
	AuthorID  uint      `gorm:"not null;index;uniqueIndex:idx_subscription_user_author;check:chk_subscription_not_self,user_id <> author_id"`
	User      User      `gorm:"constraint:OnDelete:CASCADE"`
	Author    User      `gorm:"constraint:OnDelete:CASCADE"`
	CreatedAt time.Time
}
