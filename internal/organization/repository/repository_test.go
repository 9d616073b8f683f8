package repository

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/organization/domain"
)

func newTestRepo(t *testing.T) (domain.Repository, *gorm.DB, *snowflake.Node) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&domain.Organization{}, &domain.OrganizationMember{}))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticHierarchyConfigHolder(config.DefaultHierarchyConfig())
	return NewRepository(db, holder), db, node
}

func createOrg(t *testing.T, db *gorm.DB, node *snowflake.Node, name string, parentID *snowflake.ID) snowflake.ID {
	t.Helper()
	id := node.Generate()
	err := db.Exec(
		`INSERT INTO organizations (id, name, slug, description, parent_id, created_by, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '{}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, name, name, "test org", parentID, node.Generate(),
	).Error
	require.NoError(t, err)
	return id
}

func TestAncestorIDsWalkOrder(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	root := createOrg(t, db, node, "root", nil)
	mid := createOrg(t, db, node, "mid", &root)
	leaf := createOrg(t, db, node, "leaf", &mid)

	ancestors, err := repo.AncestorIDs(ctx, leaf)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{mid, root}, ancestors)

	ancestors, err = repo.AncestorIDs(ctx, root)
	require.NoError(t, err)
	assert.Empty(t, ancestors)
}

func TestDescendantIDsBreadthFirst(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	root := createOrg(t, db, node, "root", nil)
	childA := createOrg(t, db, node, "child-a", &root)
	childB := createOrg(t, db, node, "child-b", &root)
	grandchild := createOrg(t, db, node, "grandchild", &childA)

	descendants, err := repo.DescendantIDs(ctx, root)
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{childA, childB, grandchild}, descendants)
	// Level one comes before level two.
	assert.Equal(t, grandchild, descendants[len(descendants)-1])

	descendants, err = repo.DescendantIDs(ctx, grandchild)
	require.NoError(t, err)
	assert.Empty(t, descendants)
}

func TestAncestorIDsDetectsCorruptHierarchy(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	a := createOrg(t, db, node, "a", nil)
	b := createOrg(t, db, node, "b", &a)
	// Wire a stored cycle directly, bypassing the service guards.
	require.NoError(t, db.Exec(`UPDATE organizations SET parent_id = ? WHERE id = ?`, b, a).Error)

	_, err := repo.AncestorIDs(ctx, a)
	assert.Error(t, err)
}

func TestDescendantIDsDetectsCorruptHierarchy(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	a := createOrg(t, db, node, "a", nil)
	b := createOrg(t, db, node, "b", &a)
	require.NoError(t, db.Exec(`UPDATE organizations SET parent_id = ? WHERE id = ?`, b, a).Error)

	_, err := repo.DescendantIDs(ctx, a)
	assert.Error(t, err)
}

func TestMembershipQueries(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	org := createOrg(t, db, node, "org", nil)
	admin := node.Generate()
	member := node.Generate()
	pending := node.Generate()

	require.NoError(t, repo.AddMember(ctx, domain.OrganizationMember{
		ID: node.Generate(), OrgID: org, UserID: admin,
		Role: domain.RoleAdmin, Status: domain.MembershipAccepted,
	}))
	require.NoError(t, repo.AddMember(ctx, domain.OrganizationMember{
		ID: node.Generate(), OrgID: org, UserID: member,
		Role: domain.RoleMember, Status: domain.MembershipAccepted,
	}))
	require.NoError(t, repo.AddMember(ctx, domain.OrganizationMember{
		ID: node.Generate(), OrgID: org, UserID: pending,
		Role: domain.RoleMember, Status: domain.MembershipPending,
	}))

	isAdmin, err := repo.IsAdmin(ctx, org, admin)
	require.NoError(t, err)
	assert.True(t, isAdmin)

	isAdmin, err = repo.IsAdmin(ctx, org, member)
	require.NoError(t, err)
	assert.False(t, isAdmin)

	admins, err := repo.AdminUserIDs(ctx, org)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{admin}, admins)

	accepted, err := repo.AcceptedMemberUserIDs(ctx, []snowflake.ID{org})
	require.NoError(t, err)
	assert.ElementsMatch(t, []snowflake.ID{admin, member}, accepted)

	pendingOrgs, err := repo.PendingMembershipOrgIDs(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, []snowflake.ID{org}, pendingOrgs)

	membership, err := repo.FindMembership(ctx, org, pending)
	require.NoError(t, err)
	require.NotNil(t, membership)
	assert.Equal(t, domain.MembershipPending, membership.Status)

	require.NoError(t, repo.RemoveMember(ctx, org, pending))
	membership, err = repo.FindMembership(ctx, org, pending)
	require.NoError(t, err)
	assert.Nil(t, membership)
}

func TestSetParentID(t *testing.T) {
	repo, db, node := newTestRepo(t)
	ctx := context.Background()

	root := createOrg(t, db, node, "root", nil)
	orphan := createOrg(t, db, node, "orphan", nil)

	require.NoError(t, repo.SetParentID(ctx, orphan, root))

	org, err := repo.FindByID(ctx, orphan)
	require.NoError(t, err)
	require.NotNil(t, org)
	require.NotNil(t, org.ParentID)
	assert.Equal(t, root, *org.ParentID)
}
