package domain

import "errors"

// Error codes are opaque dot-delimited identifiers localized by the
// presentation layer.
var (
	ErrRequestNotFound         = errors.New("organization.errors.joinParent.requestNotFound")
	ErrRequestNotPending       = errors.New("organization.errors.joinParent.requestNotPending")
	ErrSameOrganization        = errors.New("organization.errors.joinParent.sameOrganization")
	ErrChildOrgNotFound        = errors.New("organization.errors.joinParent.childOrgNotFound")
	ErrChildOrgArchived        = errors.New("organization.errors.joinParent.childOrgArchived")
	ErrParentNotFound          = errors.New("organization.errors.joinParent.parentNotFound")
	ErrParentArchived          = errors.New("organization.errors.joinParent.parentArchived")
	ErrPendingRequestExists    = errors.New("organization.errors.joinParent.pendingRequestExists")
	ErrCannotJoinOwnDescendant = errors.New("organization.errors.joinParent.cannotJoinOwnDescendant")
	ErrRejectionReasonRequired = errors.New("organization.errors.joinParent.rejectionReasonRequired")
	ErrInvalidMessage          = errors.New("organization.errors.joinParent.invalidMessage")
	ErrInvalidRequest          = errors.New("organization.errors.joinParent.invalidRequest")
	ErrInvalidAction           = errors.New("organization.errors.joinParent.invalidAction")
)
