package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows history queries. Zero values mean "no bound".
// BeforeID breaks ties between rows created at the same instant.
type ListFilter struct {
	CreatedBefore time.Time
	BeforeID      snowflake.ID
	Limit         int
}

// Repository is the persistence port for join-parent requests. Find
// methods return (nil, nil) when no row matches.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Save(ctx context.Context, request JoinParentRequest) error
	Update(ctx context.Context, request JoinParentRequest) error
	Delete(ctx context.Context, id snowflake.ID) error

	FindByID(ctx context.Context, id snowflake.ID) (*JoinParentRequest, error)

	// FindPendingByChildOrgID returns the single open request for a
	// child organization; at most one may be pending at any time.
	FindPendingByChildOrgID(ctx context.Context, childOrgID snowflake.ID) (*JoinParentRequest, error)
	FindPendingByParentOrgID(ctx context.Context, parentOrgID snowflake.ID) ([]JoinParentRequest, error)

	FindAllByChildOrgID(ctx context.Context, childOrgID snowflake.ID, filter ListFilter) ([]JoinParentRequest, error)
	FindAllByParentOrgID(ctx context.Context, parentOrgID snowflake.ID, filter ListFilter) ([]JoinParentRequest, error)
}
