package domain

import "errors"

// Error codes are opaque dot-delimited identifiers. The HTTP layer maps
// them to status codes and the frontend localizes them.
var (
	ErrInvalidUser             = errors.New("organization.errors.invalidUser")
	ErrInvalidOrganization     = errors.New("organization.errors.invalidOrganization")
	ErrInvalidName             = errors.New("organization.errors.invalidName")
	ErrInvalidDescription      = errors.New("organization.errors.invalidDescription")
	ErrNameTaken               = errors.New("organization.errors.nameTaken")
	ErrNotFound                = errors.New("organization.errors.notFound")
	ErrArchived                = errors.New("organization.errors.archived")
	ErrParentNotFound          = errors.New("organization.errors.parentNotFound")
	ErrParentArchived          = errors.New("organization.errors.parentArchived")
	ErrNotAdmin                = errors.New("organization.errors.notAdmin")
	ErrMembershipExists        = errors.New("organization.errors.membershipExists")
	ErrPendingHierarchyRequest = errors.New("organization.errors.pendingHierarchyRequest")
	ErrJoinRequestNotFound     = errors.New("organization.errors.joinRequestNotFound")
	ErrJoinRequestNotPending   = errors.New("organization.errors.joinRequestNotPending")
)
