// Package domain contains the organization entity, membership rows and
// the ports the hierarchy subsystem is built on.
package domain

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	"gorm.io/datatypes"
)

// Organization is a node in the hierarchy forest. ParentID is nil for
// roots; it is only ever set through an accepted join-parent request.
type Organization struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	Name        string            `gorm:"type:text;not null;uniqueIndex:ux_organizations_name" json:"name"`
	Slug        string            `gorm:"type:text;not null" json:"slug"`
	Description string            `gorm:"type:text;not null" json:"description"`
	ParentID    *snowflake.ID     `gorm:"index" json:"parent_id"`
	CreatedByID snowflake.ID      `gorm:"column:created_by;not null" json:"created_by"`
	Metadata    datatypes.JSONMap `gorm:"type:jsonb;not null;default:'{}'" json:"metadata"`
	CreatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	ArchivedAt  *time.Time        `json:"archived_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// FieldLimits bounds organization field lengths. Callers derive it from
// the hierarchy config holder.
type FieldLimits struct {
	MaxNameLength        int
	MaxDescriptionLength int
}

// NewOrganization validates fresh input and builds an organization.
// Rows loaded from storage bypass this and are trusted as previously
// validated.
func NewOrganization(id snowflake.ID, name, description string, parentID *snowflake.ID, createdBy snowflake.ID, limits FieldLimits, now time.Time) (*Organization, error) {
	// Limits are counted in characters, not bytes.
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > limits.MaxNameLength {
		return nil, ErrInvalidName
	}

	description = strings.TrimSpace(description)
	if description == "" || utf8.RuneCountInString(description) > limits.MaxDescriptionLength {
		return nil, ErrInvalidDescription
	}

	if createdBy == 0 {
		return nil, ErrInvalidUser
	}

	return &Organization{
		ID:          id,
		Name:        name,
		Slug:        slug.Make(name),
		Description: description,
		ParentID:    parentID,
		CreatedByID: createdBy,
		Metadata:    datatypes.JSONMap{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Archived reports whether the organization is soft-deleted.
func (o *Organization) Archived() bool {
	return o.ArchivedAt != nil
}

// Archive stamps the archival time. Archived organizations refuse new
// joins and child requests but keep existing relationships.
func (o *Organization) Archive(now time.Time) error {
	if o.Archived() {
		return ErrArchived
	}
	o.ArchivedAt = &now
	o.UpdatedAt = now
	return nil
}

// MemberRole is the role a user holds inside an organization.
type MemberRole string

const (
	RoleAdmin  MemberRole = "ADMIN"
	RoleMember MemberRole = "MEMBER"
)

// MembershipStatus is the state of a membership row. A PENDING row is
// an open join request; an ACCEPTED row grants membership.
type MembershipStatus string

const (
	MembershipPending  MembershipStatus = "PENDING"
	MembershipAccepted MembershipStatus = "ACCEPTED"
	MembershipRejected MembershipStatus = "REJECTED"
)

// OrganizationMember represents a user's relationship to an organization.
type OrganizationMember struct {
	ID        snowflake.ID     `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_org_member,priority:1" json:"org_id"`
	UserID    snowflake.ID     `gorm:"not null;index;uniqueIndex:ux_org_member,priority:2" json:"user_id"`
	Role      MemberRole       `gorm:"type:text;not null" json:"role"`
	Status    MembershipStatus `gorm:"type:text;not null" json:"status"`
	CreatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }
