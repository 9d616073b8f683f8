package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Service exposes the organization use cases. Identifiers cross the
// boundary as strings; userID comes from the authenticated session.
type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*OrganizationResponse, error)
	GetByID(ctx context.Context, id string) (*OrganizationResponse, error)
	Archive(ctx context.Context, userID snowflake.ID, orgID string) error

	// Join files a membership request for the calling user. It is
	// refused while the user has a pending request anywhere in the
	// organization's ancestor or descendant chain.
	Join(ctx context.Context, userID snowflake.ID, orgID string) error

	// CancelJoin withdraws the user's own pending membership request.
	CancelJoin(ctx context.Context, userID snowflake.ID, orgID string) error
}

type CreateOrganizationRequest struct {
	Name        string
	Description string
	ParentID    string
}

type OrganizationResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description string    `json:"description"`
	ParentID    string    `json:"parent_id,omitempty"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"created_at"`
}
