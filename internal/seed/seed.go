// Package seed bootstraps the superadmin account for local and
// self-hosted environments.
package seed

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	userdomain "github.com/assemblee/assemblee/internal/user/domain"
)

// EnsureSuperAdmin creates the superadmin user for email if no such
// user exists yet. An existing user with the email is promoted.
func EnsureSuperAdmin(db *gorm.DB, email string) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user userdomain.User
		err := tx.WithContext(ctx).Where("email = ?", email).First(&user).Error
		if err == nil {
			if user.SuperAdmin {
				return nil
			}
			return tx.WithContext(ctx).
				Exec(`UPDATE users SET super_admin = ? WHERE id = ?`, true, user.ID).Error
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}

		user = userdomain.User{
			ID:          node.Generate(),
			Email:       email,
			DisplayName: "Superadmin",
			SuperAdmin:  true,
			CreatedAt:   time.Now().UTC(),
		}
		return tx.WithContext(ctx).Create(&user).Error
	})
}
