package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserRole enumerates the roles a user account can hold.
type UserRole string

const (
	RoleAdmin   UserRole = "admin"
	RoleStudent UserRole = "student"
)

// User is a registered account. Username and email are globally unique.
type User struct {
	ID             string    `gorm:"primaryKey;size:36" json:"id"`
	Username       string    `gorm:"size:150;not null;uniqueIndex:idx_users_username" json:"username"`
	Email          string    `gorm:"size:255;not null;uniqueIndex:idx_users_email" json:"email"`
	HashedPassword string    `gorm:"size:255;not null" json:"-"`
	Role           UserRole  `gorm:"size:16;not null" json:"role"`
	CreatedAt      time.Time `json:"created_at"`
}

// BeforeCreate assigns an identifier when none was provided.
func (u *User) BeforeCreate(*gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
