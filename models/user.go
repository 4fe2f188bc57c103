package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleMachinist = "machinist"
	RoleManager   = "manager"
	RoleViewer    = "viewer"
)

// User represents a shop operator (machinist, manager or read-only viewer)
type User struct {
	ID        string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Auth0ID   string         `gorm:"uniqueIndex;not null" json:"auth0_id"` // Auth0 user ID (from 'sub' claim)
	Name      string         `gorm:"not null" json:"name"`
	Email     string         `gorm:"uniqueIndex;not null" json:"email"`
	Role      string         `gorm:"not null;default:'viewer'" json:"role"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for the User model
func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	assignID(&u.ID)
	return nil
}

// CanOperate reports whether the user may run timers, move parts and edit charges
func (u *User) CanOperate() bool {
	return u.Role == RoleMachinist || u.Role == RoleManager
}
