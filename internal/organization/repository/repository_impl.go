package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/organization/domain"
)

type repository struct {
	db        *gorm.DB
	hierarchy *config.HierarchyConfigHolder
}

func NewRepository(db *gorm.DB, hierarchy *config.HierarchyConfigHolder) domain.Repository {
	return &repository{db: db, hierarchy: hierarchy}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx, hierarchy: r.hierarchy}
}

func (r *repository) Create(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Create(&org).Error
}

func (r *repository) Update(ctx context.Context, org domain.Organization) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations
		 SET name = ?, slug = ?, description = ?, metadata = ?, archived_at = ?, updated_at = ?
		 WHERE id = ?`,
		org.Name,
		org.Slug,
		org.Description,
		org.Metadata,
		org.ArchivedAt,
		org.UpdatedAt,
		org.ID,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindByName(ctx context.Context, name string) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "name = ?", name).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) FindByParentID(ctx context.Context, parentID snowflake.ID) ([]domain.Organization, error) {
	var orgs []domain.Organization
	err := r.db.WithContext(ctx).
		Where("parent_id = ?", parentID).
		Order("created_at ASC").
		Find(&orgs).Error
	if err != nil {
		return nil, err
	}
	return orgs, nil
}

func (r *repository) AncestorIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	maxDepth := r.hierarchy.Get().MaxDepth

	ids := make([]snowflake.ID, 0, 8)
	current := orgID
	for depth := 0; depth < maxDepth; depth++ {
		var row struct {
			ParentID *int64
		}
		tx := r.db.WithContext(ctx).Raw(
			`SELECT parent_id FROM organizations WHERE id = ?`, current,
		).Scan(&row)
		if tx.Error != nil {
			return nil, tx.Error
		}
		if tx.RowsAffected == 0 || row.ParentID == nil {
			return ids, nil
		}

		parent := snowflake.ID(*row.ParentID)
		ids = append(ids, parent)
		current = parent
	}

	// The walk must terminate even if storage holds a cycle.
	return nil, fmt.Errorf("ancestor walk for organization %s exceeded %d levels: hierarchy is corrupt", orgID, maxDepth)
}

func (r *repository) DescendantIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	maxDepth := r.hierarchy.Get().MaxDepth

	seen := map[snowflake.ID]struct{}{orgID: {}}
	out := make([]snowflake.ID, 0, 8)
	frontier := []snowflake.ID{orgID}

	for level := 0; len(frontier) > 0; level++ {
		if level >= maxDepth {
			return nil, fmt.Errorf("descendant traversal for organization %s exceeded %d levels: hierarchy is corrupt", orgID, maxDepth)
		}

		var children []int64
		err := r.db.WithContext(ctx).Raw(
			`SELECT id FROM organizations WHERE parent_id IN ? ORDER BY id`, frontier,
		).Scan(&children).Error
		if err != nil {
			return nil, err
		}

		next := make([]snowflake.ID, 0, len(children))
		for _, raw := range children {
			child := snowflake.ID(raw)
			if _, ok := seen[child]; ok {
				return nil, fmt.Errorf("descendant traversal for organization %s revisited %s: hierarchy is corrupt", orgID, child)
			}
			seen[child] = struct{}{}
			out = append(out, child)
			next = append(next, child)
		}
		frontier = next
	}

	return out, nil
}

func (r *repository) SetParentID(ctx context.Context, orgID, parentID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organizations SET parent_id = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		parentID, orgID,
	).Error
}

func (r *repository) IsMember(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organization_members
		 WHERE org_id = ? AND user_id = ? AND status = ?`,
		orgID, userID, domain.MembershipAccepted,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) IsAdmin(ctx context.Context, orgID, userID snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM organization_members
		 WHERE org_id = ? AND user_id = ? AND role = ? AND status = ?`,
		orgID, userID, domain.RoleAdmin, domain.MembershipAccepted,
	).Scan(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) AdminUserIDs(ctx context.Context, orgID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT user_id FROM organization_members
		 WHERE org_id = ? AND role = ? AND status = ?
		 ORDER BY user_id`,
		orgID, domain.RoleAdmin, domain.MembershipAccepted,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) AcceptedMemberUserIDs(ctx context.Context, orgIDs []snowflake.ID) ([]snowflake.ID, error) {
	if len(orgIDs) == 0 {
		return nil, nil
	}
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT DISTINCT user_id FROM organization_members
		 WHERE org_id IN ? AND status = ?
		 ORDER BY user_id`,
		orgIDs, domain.MembershipAccepted,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *repository) AddMember(ctx context.Context, member domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO organization_members (id, org_id, user_id, role, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		member.ID,
		member.OrgID,
		member.UserID,
		member.Role,
		member.Status,
		member.CreatedAt,
		member.UpdatedAt,
	).Error
}

func (r *repository) RemoveMember(ctx context.Context, orgID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID, userID,
	).Error
}

func (r *repository) FindMembership(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).
		First(&member, "org_id = ? AND user_id = ?", orgID, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) PendingMembershipOrgIDs(ctx context.Context, userID snowflake.ID) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := r.db.WithContext(ctx).Raw(
		`SELECT org_id FROM organization_members
		 WHERE user_id = ? AND status = ?
		 ORDER BY org_id`,
		userID, domain.MembershipPending,
	).Scan(&ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}
