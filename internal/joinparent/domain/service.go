package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"

	"github.com/assemblee/assemblee/pkg/db/pagination"
)

// Action selects the branch taken when handling a pending request.
type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

// Service exposes the join-parent use cases. Every operation applies
// the two-tier authorization rule: superadmin bypass, otherwise admin
// standing on the child org (child-side actions) or the parent org
// (parent-side actions), checked fresh on every call.
type Service interface {
	// Request files a proposal that childOrg attach under parentOrg.
	Request(ctx context.Context, userID snowflake.ID, req RequestJoinParent) (*JoinParentRequestResponse, error)

	// Handle accepts or rejects a pending request. Acceptance re-runs
	// the descendant cycle check: the hierarchy may have shifted since
	// the request was filed.
	Handle(ctx context.Context, userID snowflake.ID, req HandleJoinParentRequest) (*JoinParentRequestResponse, error)

	// Cancel withdraws a pending request; the row is hard-deleted.
	Cancel(ctx context.Context, userID snowflake.ID, requestID string) error

	// Incoming returns the pending requests targeting parentOrg.
	Incoming(ctx context.Context, userID snowflake.ID, parentOrgID string) ([]JoinParentRequestResponse, error)

	// All returns the request history where the organization appears
	// on either side, newest first.
	All(ctx context.Context, userID snowflake.ID, orgID string, page pagination.Pagination) (*JoinParentRequestListResponse, error)

	// ForChildOrg returns the child organization's open request, or
	// nil when none is pending.
	ForChildOrg(ctx context.Context, userID snowflake.ID, childOrgID string) (*JoinParentRequestResponse, error)
}

// Notifier is implemented outside this package. Both triggers run
// post-commit and are best-effort: a failure is logged, never
// propagated into the primary operation.
type Notifier interface {
	// JoinParentRequestReceived notifies the parent org's admins that
	// a request arrived.
	JoinParentRequestReceived(ctx context.Context, childOrgID, parentOrgID snowflake.ID) error

	// OrgJoinedParent notifies accepted members of the child org and
	// its descendants that the attachment happened.
	OrgJoinedParent(ctx context.Context, childOrgID, parentOrgID snowflake.ID) error
}

type RequestJoinParent struct {
	ChildOrgID  string
	ParentOrgID string
	Message     string
}

type HandleJoinParentRequest struct {
	RequestID       string
	Action          Action
	RejectionReason string
}

type JoinParentRequestResponse struct {
	ID                string     `json:"id"`
	ChildOrgID        string     `json:"child_org_id"`
	ParentOrgID       string     `json:"parent_org_id"`
	RequestingAdminID string     `json:"requesting_admin_id"`
	HandlingAdminID   string     `json:"handling_admin_id,omitempty"`
	Message           string     `json:"message"`
	Status            Status     `json:"status"`
	RejectionReason   string     `json:"rejection_reason,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	HandledAt         *time.Time `json:"handled_at,omitempty"`
}

type JoinParentRequestListResponse struct {
	Requests []JoinParentRequestResponse `json:"requests"`
	PageInfo pagination.PageInfo         `json:"page_info"`
}
