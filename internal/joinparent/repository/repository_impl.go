package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/joinparent/domain"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Save(ctx context.Context, request domain.JoinParentRequest) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO join_parent_requests
		 (id, child_org_id, parent_org_id, requesting_admin_id, handling_admin_id, message, status, rejection_reason, created_at, handled_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		request.ID,
		request.ChildOrgID,
		request.ParentOrgID,
		request.RequestingAdminID,
		request.HandlingAdminID,
		request.Message,
		request.Status,
		request.RejectionReason,
		request.CreatedAt,
		request.HandledAt,
	).Error
}

func (r *repository) Update(ctx context.Context, request domain.JoinParentRequest) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE join_parent_requests
		 SET status = ?, handling_admin_id = ?, rejection_reason = ?, handled_at = ?
		 WHERE id = ?`,
		request.Status,
		request.HandlingAdminID,
		request.RejectionReason,
		request.HandledAt,
		request.ID,
	).Error
}

func (r *repository) Delete(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM join_parent_requests WHERE id = ?`, id,
	).Error
}

func (r *repository) FindByID(ctx context.Context, id snowflake.ID) (*domain.JoinParentRequest, error) {
	var request domain.JoinParentRequest
	err := r.db.WithContext(ctx).First(&request, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindPendingByChildOrgID(ctx context.Context, childOrgID snowflake.ID) (*domain.JoinParentRequest, error) {
	var request domain.JoinParentRequest
	err := r.db.WithContext(ctx).
		First(&request, "child_org_id = ? AND status = ?", childOrgID, domain.StatusPending).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindPendingByParentOrgID(ctx context.Context, parentOrgID snowflake.ID) ([]domain.JoinParentRequest, error) {
	var requests []domain.JoinParentRequest
	err := r.db.WithContext(ctx).
		Where("parent_org_id = ? AND status = ?", parentOrgID, domain.StatusPending).
		Order("created_at ASC").
		Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}

func (r *repository) FindAllByChildOrgID(ctx context.Context, childOrgID snowflake.ID, filter domain.ListFilter) ([]domain.JoinParentRequest, error) {
	return r.findAll(ctx, "child_org_id = ?", childOrgID, filter)
}

func (r *repository) FindAllByParentOrgID(ctx context.Context, parentOrgID snowflake.ID, filter domain.ListFilter) ([]domain.JoinParentRequest, error) {
	return r.findAll(ctx, "parent_org_id = ?", parentOrgID, filter)
}

func (r *repository) findAll(ctx context.Context, cond string, orgID snowflake.ID, filter domain.ListFilter) ([]domain.JoinParentRequest, error) {
	query := r.db.WithContext(ctx).Where(cond, orgID)
	if !filter.CreatedBefore.IsZero() {
		// Tuple comparison keeps rows sharing a timestamp from being
		// skipped or repeated across page boundaries.
		query = query.Where(
			"(created_at < ? OR (created_at = ? AND id < ?))",
			filter.CreatedBefore, filter.CreatedBefore, filter.BeforeID,
		)
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}

	var requests []domain.JoinParentRequest
	err := query.Order("created_at DESC, id DESC").Find(&requests).Error
	if err != nil {
		return nil, err
	}
	return requests, nil
}
