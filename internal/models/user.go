package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin  UserRole = "admin"
	RoleViewer UserRole = "viewer"
)

// User represents a partner account stored in the users table.
type User struct {
	ID            string    `db:"id" json:"id"`
	Email         string    `db:"email" json:"email"`
	PasswordHash  string    `db:"password_hash" json:"-"`
	DisplayName   *string   `db:"display_name" json:"display_name,omitempty"`
	AvatarURL     *string   `db:"avatar_url" json:"avatar_url,omitempty"`
	Role          UserRole  `db:"role" json:"role"`
	Contributions int       `db:"contributions" json:"contributions"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Author returns the display identity stamped on memories created by u.
func (u *User) Author() *Author {
	if u == nil {
		return nil
	}
	name := u.Email
	if u.DisplayName != nil && *u.DisplayName != "" {
		name = *u.DisplayName
	}
	author := &Author{Name: name}
	if u.AvatarURL != nil {
		author.AvatarURL = *u.AvatarURL
	}
	return author
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
