package model

import (
	"time"

	"gorm.io/gorm"
)

// User is a researcher known to the data commons. A zero ID means the
// identity has a valid token but has not registered yet.
type User struct {
	gorm.Model
	Email        string     `gorm:"uniqueIndex;type:varchar(256);not null" json:"email"`
	FirstName    string     `gorm:"type:varchar(128)" json:"first_name,omitempty"`
	LastName     string     `gorm:"type:varchar(128)" json:"last_name,omitempty"`
	Organization string     `gorm:"type:varchar(64)" json:"organization,omitempty"`
	Role         *Role      `gorm:"type:varchar(32);index" json:"role,omitempty"`
	ApprovalDate *time.Time `json:"approval_date,omitempty"`
	Disabled     bool       `gorm:"not null;default:false" json:"disabled"`
	AccessedAt   time.Time  `gorm:"not null" json:"accessed_at"`
}

// Unregistered builds the in-memory identity for a token holder with no
// user row. It is never persisted.
func Unregistered(email string) *User {
	return &User{Email: email}
}

// IsRegistered reports whether u is backed by a database row.
func (u *User) IsRegistered() bool {
	return u != nil && u.ID != 0
}

// IsApproved reports whether an admin has approved u.
func (u *User) IsApproved() bool {
	return u.ApprovalDate != nil
}

// HasRole reports whether u holds one of roles.
func (u *User) HasRole(roles ...Role) bool {
	if u.Role == nil {
		return false
	}
	for _, r := range roles {
		if *u.Role == r {
			return true
		}
	}
	return false
}
