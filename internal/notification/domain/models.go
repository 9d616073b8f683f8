// Package domain holds per-user notification rows. Rows are written by
// in-process triggers; delivery to an external channel is a separate
// concern layered on top of this table.
package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	joinparentdomain "github.com/assemblee/assemblee/internal/joinparent/domain"
)

// Kind identifies the trigger that produced a notification.
type Kind string

const (
	KindJoinParentRequestReceived Kind = "join-parent-request-received"
	KindOrgJoinedParent           Kind = "org-joined-parent"
)

// Notification is one message addressed to one user.
type Notification struct {
	ID        snowflake.ID      `gorm:"primaryKey" json:"id"`
	UserID    snowflake.ID      `gorm:"column:user_id;not null;index" json:"user_id"`
	Kind      Kind              `gorm:"type:text;not null" json:"kind"`
	Payload   datatypes.JSONMap `gorm:"type:jsonb" json:"payload"`
	ReadAt    *time.Time        `json:"read_at"`
	CreatedAt time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (Notification) TableName() string { return "notifications" }

// Repository is the persistence port for notifications.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	SaveAll(ctx context.Context, notifications []Notification) error
	FindByUserID(ctx context.Context, userID snowflake.ID, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, id, userID snowflake.ID, at time.Time) error
}

// Service is the notification fan-out surface. It satisfies the
// join-parent Notifier port.
type Service interface {
	joinparentdomain.Notifier

	ListForUser(ctx context.Context, userID snowflake.ID, limit int) ([]Notification, error)
	MarkRead(ctx context.Context, userID snowflake.ID, notificationID string) error
}
