// Package domain holds the user model consumed by authorization and
// notification fan-out. Identity and authentication live outside this
// service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User is the platform account record. SuperAdmin is a platform-wide
// flag that bypasses every organization-level admin check.
type User struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	Email       string       `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	DisplayName string       `gorm:"type:text;not null" json:"display_name"`
	SuperAdmin  bool         `gorm:"column:super_admin;not null;default:false" json:"super_admin"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (User) TableName() string { return "users" }
