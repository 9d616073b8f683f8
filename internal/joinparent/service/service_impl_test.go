package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/clock"
	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/joinparent/domain"
	"github.com/assemblee/assemblee/internal/joinparent/repository"
	orgdomain "github.com/assemblee/assemblee/internal/organization/domain"
	orgrepository "github.com/assemblee/assemblee/internal/organization/repository"
	orgservice "github.com/assemblee/assemblee/internal/organization/service"
	userdomain "github.com/assemblee/assemblee/internal/user/domain"
	userrepository "github.com/assemblee/assemblee/internal/user/repository"
	"github.com/assemblee/assemblee/pkg/db/pagination"
)

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) JoinParentRequestReceived(ctx context.Context, childOrgID, parentOrgID snowflake.ID) error {
	args := m.Called(ctx, childOrgID, parentOrgID)
	return args.Error(0)
}

func (m *mockNotifier) OrgJoinedParent(ctx context.Context, childOrgID, parentOrgID snowflake.ID) error {
	args := m.Called(ctx, childOrgID, parentOrgID)
	return args.Error(0)
}

type fixture struct {
	svc      domain.Service
	orgSvc   orgdomain.Service
	repo     domain.Repository
	orgs     orgdomain.Repository
	users    userdomain.Repository
	notifier *mockNotifier
	db       *gorm.DB
	node     *snowflake.Node
	clock    *clock.FakeClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&orgdomain.Organization{},
		&orgdomain.OrganizationMember{},
		&userdomain.User{},
		&domain.JoinParentRequest{},
	))

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	holder := config.NewStaticHierarchyConfigHolder(config.DefaultHierarchyConfig())
	orgs := orgrepository.NewRepository(db, holder)
	users := userrepository.NewRepository(db)
	repo := repository.NewRepository(db)
	clk := clock.NewFakeClock(time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC))
	notifier := &mockNotifier{}

	return &fixture{
		svc:      NewService(db, repo, orgs, users, holder, node, clk, nil, notifier),
		orgSvc:   orgservice.NewService(db, orgs, users, holder, node, clk, nil),
		repo:     repo,
		orgs:     orgs,
		users:    users,
		notifier: notifier,
		db:       db,
		node:     node,
		clock:    clk,
	}
}

func (f *fixture) createUser(t *testing.T, superAdmin bool) snowflake.ID {
	t.Helper()
	id := f.node.Generate()
	require.NoError(t, f.users.Create(context.Background(), userdomain.User{
		ID:          id,
		Email:       id.String() + "@example.com",
		DisplayName: "user " + id.String(),
		SuperAdmin:  superAdmin,
		CreatedAt:   f.clock.Now(),
	}))
	return id
}

func (f *fixture) createOrg(t *testing.T, admin snowflake.ID, name, parentID string) string {
	t.Helper()
	resp, err := f.orgSvc.Create(context.Background(), admin, orgdomain.CreateOrganizationRequest{
		Name:        name,
		Description: "an organization",
		ParentID:    parentID,
	})
	require.NoError(t, err)
	return resp.ID
}

func (f *fixture) request(t *testing.T, admin snowflake.ID, childID, parentID string) *domain.JoinParentRequestResponse {
	t.Helper()
	f.notifier.On("JoinParentRequestReceived", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	resp, err := f.svc.Request(context.Background(), admin, domain.RequestJoinParent{
		ChildOrgID:  childID,
		ParentOrgID: parentID,
		Message:     "we would like to join",
	})
	require.NoError(t, err)
	return resp
}

func mustParse(t *testing.T, raw string) snowflake.ID {
	t.Helper()
	id, err := snowflake.ParseString(raw)
	require.NoError(t, err)
	return id
}

func TestRequestHappyPath(t *testing.T) {
	f := newFixture(t)
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")

	resp := f.request(t, childAdmin, child, parent)
	assert.Equal(t, domain.StatusPending, resp.Status)
	assert.Equal(t, child, resp.ChildOrgID)
	assert.Equal(t, parent, resp.ParentOrgID)
	assert.Equal(t, childAdmin.String(), resp.RequestingAdminID)
	assert.Equal(t, "we would like to join", resp.Message)
	assert.Empty(t, resp.HandlingAdminID)
	assert.Nil(t, resp.HandledAt)

	f.notifier.AssertCalled(t, "JoinParentRequestReceived",
		mock.Anything, mustParse(t, child), mustParse(t, parent))
}

func TestRequestAuthorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)
	super := f.createUser(t, true)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")

	// Admin standing on the parent grants nothing on the child.
	_, err := f.svc.Request(ctx, parentAdmin, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: parent, Message: "hi",
	})
	assert.ErrorIs(t, err, orgdomain.ErrNotAdmin)

	f.notifier.On("JoinParentRequestReceived", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	_, err = f.svc.Request(ctx, super, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: parent, Message: "hi",
	})
	assert.NoError(t, err)
}

func TestRequestGuards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")

	_, err := f.svc.Request(ctx, childAdmin, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: child, Message: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrSameOrganization)

	_, err = f.svc.Request(ctx, childAdmin, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: f.node.Generate().String(), Message: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrParentNotFound)

	_, err = f.svc.Request(ctx, childAdmin, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: parent, Message: "   ",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidMessage)

	require.NoError(t, f.orgSvc.Archive(ctx, parentAdmin, parent))
	_, err = f.svc.Request(ctx, childAdmin, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: parent, Message: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrParentArchived)
}

func TestRequestOnePendingPerChild(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parentA := f.createOrg(t, parentAdmin, "Parent A", "")
	parentB := f.createOrg(t, parentAdmin, "Parent B", "")

	f.request(t, childAdmin, child, parentA)

	_, err := f.svc.Request(ctx, childAdmin, domain.RequestJoinParent{
		ChildOrgID: child, ParentOrgID: parentB, Message: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrPendingRequestExists)
}

func TestRequestRejectsDescendantParent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, false)

	root := f.createOrg(t, admin, "Root", "")
	mid := f.createOrg(t, admin, "Mid", root)
	leaf := f.createOrg(t, admin, "Leaf", mid)

	// Root may not attach under its own grandchild.
	_, err := f.svc.Request(ctx, admin, domain.RequestJoinParent{
		ChildOrgID: root, ParentOrgID: leaf, Message: "hi",
	})
	assert.ErrorIs(t, err, domain.ErrCannotJoinOwnDescendant)
}

func TestHandleReject(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")
	created := f.request(t, childAdmin, child, parent)

	_, err := f.svc.Handle(ctx, parentAdmin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: domain.ActionReject,
	})
	assert.ErrorIs(t, err, domain.ErrRejectionReasonRequired)

	resp, err := f.svc.Handle(ctx, parentAdmin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: domain.ActionReject, RejectionReason: "not a fit",
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, resp.Status)
	assert.Equal(t, "not a fit", resp.RejectionReason)
	assert.Equal(t, parentAdmin.String(), resp.HandlingAdminID)
	require.NotNil(t, resp.HandledAt)

	// Rejection does not move the parent pointer.
	org, err := f.orgs.FindByID(ctx, mustParse(t, child))
	require.NoError(t, err)
	assert.Nil(t, org.ParentID)

	// Terminal requests cannot be handled again.
	_, err = f.svc.Handle(ctx, parentAdmin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: domain.ActionAccept,
	})
	assert.ErrorIs(t, err, domain.ErrRequestNotPending)
}

func TestHandleAccept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")
	created := f.request(t, childAdmin, child, parent)

	// Only a parent-side admin may handle the request.
	_, err := f.svc.Handle(ctx, childAdmin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: domain.ActionAccept,
	})
	assert.ErrorIs(t, err, orgdomain.ErrNotAdmin)

	f.notifier.On("OrgJoinedParent", mock.Anything, mustParse(t, child), mustParse(t, parent)).Return(nil).Once()
	resp, err := f.svc.Handle(ctx, parentAdmin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: domain.ActionAccept,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAccepted, resp.Status)
	assert.Equal(t, parentAdmin.String(), resp.HandlingAdminID)

	org, err := f.orgs.FindByID(ctx, mustParse(t, child))
	require.NoError(t, err)
	require.NotNil(t, org.ParentID)
	assert.Equal(t, mustParse(t, parent), *org.ParentID)

	f.notifier.AssertExpectations(t)
}

func TestHandleAcceptRechecksHierarchy(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.createUser(t, false)

	child := f.createOrg(t, admin, "Child", "")
	parent := f.createOrg(t, admin, "Parent", "")
	created := f.request(t, admin, child, parent)

	// The hierarchy shifts after the request is filed: parent becomes
	// a descendant of child. Accepting now would close a loop.
	require.NoError(t, f.orgs.SetParentID(ctx, mustParse(t, parent), mustParse(t, child)))

	_, err := f.svc.Handle(ctx, admin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: domain.ActionAccept,
	})
	assert.ErrorIs(t, err, domain.ErrCannotJoinOwnDescendant)

	// The request survives untouched and the pointer did not move.
	request, err := f.repo.FindByID(ctx, mustParse(t, created.ID))
	require.NoError(t, err)
	require.NotNil(t, request)
	assert.True(t, request.Pending())

	org, err := f.orgs.FindByID(ctx, mustParse(t, child))
	require.NoError(t, err)
	assert.Nil(t, org.ParentID)
}

func TestHandleInvalidAction(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")
	created := f.request(t, childAdmin, child, parent)

	_, err := f.svc.Handle(ctx, parentAdmin, domain.HandleJoinParentRequest{
		RequestID: created.ID, Action: "defer",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidAction)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")
	created := f.request(t, childAdmin, child, parent)

	// Parent-side admins cannot withdraw the child's request.
	assert.ErrorIs(t, f.svc.Cancel(ctx, parentAdmin, created.ID), orgdomain.ErrNotAdmin)

	require.NoError(t, f.svc.Cancel(ctx, childAdmin, created.ID))

	// Cancellation removes the row entirely.
	request, err := f.repo.FindByID(ctx, mustParse(t, created.ID))
	require.NoError(t, err)
	assert.Nil(t, request)

	assert.ErrorIs(t, f.svc.Cancel(ctx, childAdmin, created.ID), domain.ErrRequestNotFound)

	// With the slot free, a new request may be filed.
	f.request(t, childAdmin, child, parent)
}

func TestForChildOrg(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	childAdmin := f.createUser(t, false)
	parentAdmin := f.createUser(t, false)

	child := f.createOrg(t, childAdmin, "Child", "")
	parent := f.createOrg(t, parentAdmin, "Parent", "")

	resp, err := f.svc.ForChildOrg(ctx, childAdmin, child)
	require.NoError(t, err)
	assert.Nil(t, resp)

	created := f.request(t, childAdmin, child, parent)
	resp, err = f.svc.ForChildOrg(ctx, childAdmin, child)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, created.ID, resp.ID)
}

func TestIncoming(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parentAdmin := f.createUser(t, false)
	childAdminA := f.createUser(t, false)
	childAdminB := f.createUser(t, false)

	parent := f.createOrg(t, parentAdmin, "Parent", "")
	childA := f.createOrg(t, childAdminA, "Child A", "")
	childB := f.createOrg(t, childAdminB, "Child B", "")

	f.request(t, childAdminA, childA, parent)
	f.clock.Advance(time.Minute)
	f.request(t, childAdminB, childB, parent)

	// Child-side admins have no standing on incoming lists.
	_, err := f.svc.Incoming(ctx, childAdminA, parent)
	assert.ErrorIs(t, err, orgdomain.ErrNotAdmin)

	items, err := f.svc.Incoming(ctx, parentAdmin, parent)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, childA, items[0].ChildOrgID)
	assert.Equal(t, childB, items[1].ChildOrgID)
}

func TestAllPaginates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parentAdmin := f.createUser(t, false)

	parent := f.createOrg(t, parentAdmin, "Parent", "")
	for i := 0; i < 3; i++ {
		childAdmin := f.createUser(t, false)
		child := f.createOrg(t, childAdmin, "Child "+f.node.Generate().String(), "")
		created := f.request(t, childAdmin, child, parent)
		f.clock.Advance(time.Minute)

		_, err := f.svc.Handle(ctx, parentAdmin, domain.HandleJoinParentRequest{
			RequestID: created.ID, Action: domain.ActionReject, RejectionReason: "no",
		})
		require.NoError(t, err)
		f.clock.Advance(time.Minute)
	}

	page, err := f.svc.All(ctx, parentAdmin, parent, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Requests, 2)
	assert.True(t, page.PageInfo.HasMore)
	require.NotEmpty(t, page.PageInfo.NextPageToken)
	// Newest first.
	assert.True(t, page.Requests[0].CreatedAt.After(page.Requests[1].CreatedAt))

	next, err := f.svc.All(ctx, parentAdmin, parent, pagination.Pagination{
		PageSize:  2,
		PageToken: page.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, next.Requests, 1)
	assert.False(t, next.PageInfo.HasMore)
	assert.True(t, page.Requests[1].CreatedAt.After(next.Requests[0].CreatedAt))
}

func TestAllPaginatesRowsSharingTimestamp(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	parentAdmin := f.createUser(t, false)
	parent := f.createOrg(t, parentAdmin, "Parent", "")

	// The clock never advances, so all three rows share one created_at.
	for i := 0; i < 3; i++ {
		childAdmin := f.createUser(t, false)
		child := f.createOrg(t, childAdmin, "Child "+f.node.Generate().String(), "")
		f.request(t, childAdmin, child, parent)
	}

	page, err := f.svc.All(ctx, parentAdmin, parent, pagination.Pagination{PageSize: 2})
	require.NoError(t, err)
	require.Len(t, page.Requests, 2)
	require.True(t, page.PageInfo.HasMore)

	next, err := f.svc.All(ctx, parentAdmin, parent, pagination.Pagination{
		PageSize:  2,
		PageToken: page.PageInfo.NextPageToken,
	})
	require.NoError(t, err)
	require.Len(t, next.Requests, 1)
	assert.False(t, next.PageInfo.HasMore)

	seen := map[string]bool{}
	for _, r := range append(page.Requests, next.Requests...) {
		assert.False(t, seen[r.ID], "request %s listed twice", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, seen, 3)
}
