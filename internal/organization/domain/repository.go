package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// Repository is the persistence port for organizations, memberships and
// hierarchy traversal. Find methods return (nil, nil) when no row
// matches; errors are reserved for storage faults.
//
// AncestorIDs and DescendantIDs read persisted parent pointers at call
// time. There is no caching layer: parent pointers change rarely, but a
// stale read could silently admit a cycle.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, org Organization) error
	Update(ctx context.Context, org Organization) error
	FindByID(ctx context.Context, id snowflake.ID) (*Organization, error)
	FindByName(ctx context.Context, name string) (*Organization, error)
	FindByParentID(ctx context.Context, parentID snowflake.ID) ([]Organization, error)

	// AncestorIDs walks parent pointers upward and returns
	// [parent, grandparent, ...]. The walk is capped; exhausting the
	// cap means the stored hierarchy is corrupt and yields an error.
	AncestorIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)

	// DescendantIDs runs a breadth-first traversal over the child
	// relation and returns every organization reachable downward, in
	// discovery order, excluding orgID itself.
	DescendantIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)

	// SetParentID is the only write path for the parent pointer. It is
	// called exclusively from join-parent request acceptance.
	SetParentID(ctx context.Context, orgID, parentID snowflake.ID) error

	IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	IsAdmin(ctx context.Context, orgID, userID snowflake.ID) (bool, error)
	AdminUserIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error)
	AcceptedMemberUserIDs(ctx context.Context, orgIDs []snowflake.ID) ([]snowflake.ID, error)

	AddMember(ctx context.Context, member OrganizationMember) error
	RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error
	FindMembership(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	PendingMembershipOrgIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error)
}
