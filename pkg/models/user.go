package models

import (
	"time"
)

// User represents an account holder
type User struct {
	ID               uint       `json:"id" gorm:"primaryKey"`
	Email            string     `json:"email" gorm:"size:255;not null;uniqueIndex:ix_users_email"`
	HashedPassword   string     `json:"-" gorm:"column:hashed_password;size:255;not null"`
	FullName         *string    `json:"full_name" gorm:"size:255"`
	IsActive         bool       `json:"is_active" gorm:"not null;default:true"`
	IsAdmin          bool       `json:"is_admin" gorm:"not null;default:false"`
	IsStarter        bool       `json:"is_starter" gorm:"not null;default:false"`
	TwoFactorSecret  *string    `json:"-" gorm:"size:64"`
	TwoFactorEnabled bool       `json:"two_factor_enabled" gorm:"not null;default:false"`
	ResetToken       *string    `json:"-" gorm:"size:255;index:ix_users_reset_token"`
	ResetTokenExpiry *time.Time `json:"-" gorm:"column:reset_token_expires"`
	MagicLinkToken   *string    `json:"-" gorm:"size:255;index:ix_users_magic_link_token"`
	MagicLinkExpiry  *time.Time `json:"-" gorm:"column:magic_link_expires"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (User) TableName() string { return "users" }

// DisplayName falls back to the email when no full name is set.
func (u *User) DisplayName() string {
	if u.FullName != nil && *u.FullName != "" {
		return *u.FullName
	}
	return u.Email
}

// UserCreate is the registration payload
type UserCreate struct {
	Email    string  `json:"email" validate:"required,email,max=255"`
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
}

// UserUpdate is the self-service profile update payload
type UserUpdate struct {
	FullName *string `json:"full_name" validate:"omitempty,max=255"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
}

// UserResponse is the public view of a user
type UserResponse struct {
	ID               uint      `json:"id"`
	Email            string    `json:"email"`
	FullName         *string   `json:"full_name"`
	IsActive         bool      `json:"is_active"`
	IsAdmin          bool      `json:"is_admin"`
	IsStarter        bool      `json:"is_starter"`
	TwoFactorEnabled bool      `json:"two_factor_enabled"`
	CreatedAt        time.Time `json:"created_at"`
}

func NewUserResponse(u *User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Email:            u.Email,
		FullName:         u.FullName,
		IsActive:         u.IsActive,
		IsAdmin:          u.IsAdmin,
		IsStarter:        u.IsStarter,
		TwoFactorEnabled: u.TwoFactorEnabled,
		CreatedAt:        u.CreatedAt,
	}
}

// UserListResponse is a page of users for admins
type UserListResponse struct {
	Users []UserResponse `json:"users"`
	Total int64          `json:"total"`
}

// AdminUserUpdate toggles role flags; nil fields are left untouched.
type AdminUserUpdate struct {
	IsActive *bool `json:"is_active"`
	IsAdmin  *bool `json:"is_admin"`
}

// UserFilter narrows admin user listings
type UserFilter struct {
	Search string
	Limit  int
	Offset int
}
