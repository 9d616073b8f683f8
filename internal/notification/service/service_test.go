package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/clock"
	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/notification/domain"
	"github.com/assemblee/assemblee/internal/notification/repository"
	orgdomain "github.com/assemblee/assemblee/internal/organization/domain"
	orgrepository "github.com/assemblee/assemblee/internal/organization/repository"
)

type fixture struct {
	svc   domain.Service
	orgs  orgdomain.Repository
	db    *gorm.DB
	node  *snowflake.Node
	clock *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&domain.Notification{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticHierarchyConfigHolder(config.DefaultHierarchyConfig())
	orgs := orgrepository.NewRepository(db, holder)
	clk := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))

	return &fixture{
		svc:   NewService(repository.NewRepository(db), orgs, node, clk, nil),
		orgs:  orgs,
		db:    db,
		node:  node,
		clock: clk,
	}
}

func (f *fixture) createOrg(t *testing.T, name string, parentID *snowflake.ID) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.db.Exec(
		`INSERT INTO organizations (id, name, slug, description, parent_id, created_by, metadata, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, '{}', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)`,
		id, name, name, "test org", parentID, f.node.Generate(),
	).Error)
	return id
}

func (f *fixture) addMember(t *testing.T, orgID snowflake.ID, role orgdomain.MemberRole, status orgdomain.MembershipStatus) snowflake.ID {
	t.Helper()
	userID := f.node.Generate()
	require.NoError(t, f.orgs.AddMember(context.Background(), orgdomain.OrganizationMember{
		ID: f.node.Generate(), OrgID: orgID, UserID: userID,
		Role: role, Status: status,
	}))
	return userID
}

func TestJoinParentRequestReceivedNotifiesParentAdmins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	child := f.createOrg(t, "child", nil)
	parent := f.createOrg(t, "parent", nil)
	admin := f.addMember(t, parent, orgdomain.RoleAdmin, orgdomain.MembershipAccepted)
	member := f.addMember(t, parent, orgdomain.RoleMember, orgdomain.MembershipAccepted)

	require.NoError(t, f.svc.JoinParentRequestReceived(ctx, child, parent))

	items, err := f.svc.ListForUser(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, domain.KindJoinParentRequestReceived, items[0].Kind)
	assert.Equal(t, "child", items[0].Payload["child_org_name"])
	assert.Equal(t, "parent", items[0].Payload["parent_org_name"])

	// Plain members are not notified about incoming requests.
	items, err = f.svc.ListForUser(ctx, member, 10)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestOrgJoinedParentNotifiesChildSubtreeMembers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	parent := f.createOrg(t, "parent", nil)
	child := f.createOrg(t, "child", nil)
	grandchild := f.createOrg(t, "grandchild", &child)

	childMember := f.addMember(t, child, orgdomain.RoleMember, orgdomain.MembershipAccepted)
	grandchildMember := f.addMember(t, grandchild, orgdomain.RoleMember, orgdomain.MembershipAccepted)
	pendingMember := f.addMember(t, child, orgdomain.RoleMember, orgdomain.MembershipPending)
	parentMember := f.addMember(t, parent, orgdomain.RoleMember, orgdomain.MembershipAccepted)

	require.NoError(t, f.svc.OrgJoinedParent(ctx, child, parent))

	for _, userID := range []snowflake.ID{childMember, grandchildMember} {
		items, err := f.svc.ListForUser(ctx, userID, 10)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, domain.KindOrgJoinedParent, items[0].Kind)
	}

	for _, userID := range []snowflake.ID{pendingMember, parentMember} {
		items, err := f.svc.ListForUser(ctx, userID, 10)
		require.NoError(t, err)
		assert.Empty(t, items)
	}
}

func TestMarkRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	child := f.createOrg(t, "child", nil)
	parent := f.createOrg(t, "parent", nil)
	admin := f.addMember(t, parent, orgdomain.RoleAdmin, orgdomain.MembershipAccepted)

	require.NoError(t, f.svc.JoinParentRequestReceived(ctx, child, parent))

	items, err := f.svc.ListForUser(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Nil(t, items[0].ReadAt)

	require.NoError(t, f.svc.MarkRead(ctx, admin, items[0].ID.String()))

	items, err = f.svc.ListForUser(ctx, admin, 10)
	require.NoError(t, err)
	require.NotNil(t, items[0].ReadAt)
	firstRead := *items[0].ReadAt

	// Re-reading is idempotent and keeps the original read time.
	f.clock.Advance(time.Minute)
	require.NoError(t, f.svc.MarkRead(ctx, admin, items[0].ID.String()))
	items, err = f.svc.ListForUser(ctx, admin, 10)
	require.NoError(t, err)
	require.NotNil(t, items[0].ReadAt)
	assert.True(t, firstRead.Equal(*items[0].ReadAt))

	assert.ErrorIs(t, f.svc.MarkRead(ctx, admin, "not-an-id"), domain.ErrNotFound)
}

func TestMarkReadRejectsForeignOrUnknownNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	child := f.createOrg(t, "child", nil)
	parent := f.createOrg(t, "parent", nil)
	admin := f.addMember(t, parent, orgdomain.RoleAdmin, orgdomain.MembershipAccepted)
	stranger := f.node.Generate()

	require.NoError(t, f.svc.JoinParentRequestReceived(ctx, child, parent))

	items, err := f.svc.ListForUser(ctx, admin, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	// Another user's notification cannot be marked, and stays unread.
	assert.ErrorIs(t, f.svc.MarkRead(ctx, stranger, items[0].ID.String()), domain.ErrNotFound)
	items, err = f.svc.ListForUser(ctx, admin, 10)
	require.NoError(t, err)
	assert.Nil(t, items[0].ReadAt)

	assert.ErrorIs(t, f.svc.MarkRead(ctx, admin, f.node.Generate().String()), domain.ErrNotFound)
}
