// Package domain contains the join-parent request entity and its state
// machine. A request is the only record of an in-flight hierarchy
// change: accepting it is the sole mechanism by which an organization's
// parent pointer moves.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
)

// Status is the request state. Pending is the only non-terminal state.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusAccepted Status = "ACCEPTED"
	StatusRejected Status = "REJECTED"
)

// JoinParentRequest is a child organization's proposal to attach under
// a parent organization.
type JoinParentRequest struct {
	ID                snowflake.ID  `gorm:"primaryKey" json:"id"`
	ChildOrgID        snowflake.ID  `gorm:"column:child_org_id;not null;index" json:"child_org_id"`
	ParentOrgID       snowflake.ID  `gorm:"column:parent_org_id;not null;index" json:"parent_org_id"`
	RequestingAdminID snowflake.ID  `gorm:"column:requesting_admin_id;not null" json:"requesting_admin_id"`
	HandlingAdminID   *snowflake.ID `gorm:"column:handling_admin_id" json:"handling_admin_id"`
	Message           string        `gorm:"type:text;not null" json:"message"`
	Status            Status        `gorm:"type:text;not null;index" json:"status"`
	RejectionReason   *string       `gorm:"column:rejection_reason" json:"rejection_reason"`
	CreatedAt         time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	HandledAt         *time.Time    `json:"handled_at"`
}

// TableName sets the database table name.
func (JoinParentRequest) TableName() string { return "join_parent_requests" }

// NewJoinParentRequest validates fresh input and builds a pending
// request. Rows loaded from storage are trusted as previously
// validated.
func NewJoinParentRequest(id, childOrgID, parentOrgID, requestingAdminID snowflake.ID, message string, maxMessageLength int, now time.Time) (*JoinParentRequest, error) {
	message = strings.TrimSpace(message)
	if message == "" || utf8.RuneCountInString(message) > maxMessageLength {
		return nil, ErrInvalidMessage
	}

	return &JoinParentRequest{
		ID:                id,
		ChildOrgID:        childOrgID,
		ParentOrgID:       parentOrgID,
		RequestingAdminID: requestingAdminID,
		Message:           message,
		Status:            StatusPending,
		CreatedAt:         now,
	}, nil
}

// Pending reports whether the request is still open.
func (r *JoinParentRequest) Pending() bool {
	return r.Status == StatusPending
}

// Accept transitions pending -> accepted. The transition is one-way;
// a non-pending request is left untouched.
func (r *JoinParentRequest) Accept(handlingAdminID snowflake.ID, now time.Time) error {
	if !r.Pending() {
		return ErrRequestNotPending
	}
	r.Status = StatusAccepted
	r.HandlingAdminID = &handlingAdminID
	r.HandledAt = &now
	return nil
}

// Reject transitions pending -> rejected. A non-empty reason is
// mandatory; a non-pending request is left untouched.
func (r *JoinParentRequest) Reject(handlingAdminID snowflake.ID, reason string, now time.Time) error {
	if !r.Pending() {
		return ErrRequestNotPending
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return ErrRejectionReasonRequired
	}
	r.Status = StatusRejected
	r.HandlingAdminID = &handlingAdminID
	r.RejectionReason = &reason
	r.HandledAt = &now
	return nil
}
