package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for users. IsSuperAdmin must hit
// storage on every call; admin grants can change between requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, user User) error
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	IsSuperAdmin(ctx context.Context, userID snowflake.ID) (bool, error)
}
