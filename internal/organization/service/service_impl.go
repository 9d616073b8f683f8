package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/clock"
	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/observability/metrics"
	"github.com/assemblee/assemblee/internal/organization/domain"
	userdomain "github.com/assemblee/assemblee/internal/user/domain"
	"github.com/assemblee/assemblee/pkg/db"
)

type service struct {
	db        *gorm.DB
	repo      domain.Repository
	users     userdomain.Repository
	hierarchy *config.HierarchyConfigHolder
	genID     *snowflake.Node
	clock     clock.Clock
	metrics   *metrics.Metrics
}

func NewService(
	conn *gorm.DB,
	repo domain.Repository,
	users userdomain.Repository,
	hierarchy *config.HierarchyConfigHolder,
	genID *snowflake.Node,
	clk clock.Clock,
	m *metrics.Metrics,
) domain.Service {
	return &service{
		db:        conn,
		repo:      repo,
		users:     users,
		hierarchy: hierarchy,
		genID:     genID,
		clock:     clk,
		metrics:   m,
	}
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.OrganizationResponse, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	var parentID *snowflake.ID
	if raw := strings.TrimSpace(req.ParentID); raw != "" {
		parsed, err := snowflake.ParseString(raw)
		if err != nil {
			return nil, domain.ErrParentNotFound
		}

		parent, err := s.repo.FindByID(ctx, parsed)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			return nil, domain.ErrParentNotFound
		}
		if parent.Archived() {
			return nil, domain.ErrParentArchived
		}

		// Creating under a parent requires admin standing on the parent.
		if err := s.authorizeOrgAdmin(ctx, userID, parent.ID); err != nil {
			return nil, err
		}
		parentID = &parsed
	}

	name := strings.TrimSpace(req.Name)
	existing, err := s.repo.FindByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, domain.ErrNameTaken
	}

	limits := s.hierarchy.Get()
	now := s.clock.Now()
	org, err := domain.NewOrganization(
		s.genID.Generate(),
		name,
		req.Description,
		parentID,
		userID,
		domain.FieldLimits{
			MaxNameLength:        limits.MaxNameLength,
			MaxDescriptionLength: limits.MaxDescriptionLength,
		},
		now,
	)
	if err != nil {
		return nil, err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Create(ctx, *org); err != nil {
			return err
		}

		// The creator is granted admin rights on the new organization.
		member := domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      domain.RoleAdmin,
			Status:    domain.MembershipAccepted,
			CreatedAt: now,
			UpdatedAt: now,
		}
		return repo.AddMember(ctx, member)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrNameTaken
		}
		return nil, err
	}

	s.metrics.RecordOrganizationCreated(ctx)

	return toResponse(org), nil
}

func (s *service) GetByID(ctx context.Context, id string) (*domain.OrganizationResponse, error) {
	org, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return toResponse(org), nil
}

func (s *service) Archive(ctx context.Context, userID snowflake.ID, orgID string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}

	org, err := s.load(ctx, orgID)
	if err != nil {
		return err
	}

	if err := s.authorizeOrgAdmin(ctx, userID, org.ID); err != nil {
		return err
	}

	if err := org.Archive(s.clock.Now()); err != nil {
		return err
	}

	return s.repo.Update(ctx, *org)
}

func (s *service) Join(ctx context.Context, userID snowflake.ID, orgID string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}

	org, err := s.load(ctx, orgID)
	if err != nil {
		return err
	}
	if org.Archived() {
		return domain.ErrArchived
	}

	existing, err := s.repo.FindMembership(ctx, org.ID, userID)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrMembershipExists
	}

	// A pending request anywhere in the ancestor or descendant chain
	// blocks a new one: a user may not pursue membership at two levels
	// of the same tree at once. Accepted memberships elsewhere in the
	// chain are fine.
	pendingOrgIDs, err := s.repo.PendingMembershipOrgIDs(ctx, userID)
	if err != nil {
		return err
	}
	if len(pendingOrgIDs) > 0 {
		ancestors, err := s.repo.AncestorIDs(ctx, org.ID)
		if err != nil {
			return err
		}
		descendants, err := s.repo.DescendantIDs(ctx, org.ID)
		if err != nil {
			return err
		}

		chain := make(map[snowflake.ID]struct{}, len(ancestors)+len(descendants))
		for _, id := range ancestors {
			chain[id] = struct{}{}
		}
		for _, id := range descendants {
			chain[id] = struct{}{}
		}
		for _, id := range pendingOrgIDs {
			if _, ok := chain[id]; ok {
				return domain.ErrPendingHierarchyRequest
			}
		}
	}

	now := s.clock.Now()
	member := domain.OrganizationMember{
		ID:        s.genID.Generate(),
		OrgID:     org.ID,
		UserID:    userID,
		Role:      domain.RoleMember,
		Status:    domain.MembershipPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.AddMember(ctx, member); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrMembershipExists
		}
		return err
	}

	s.metrics.RecordMembershipRequest(ctx)
	return nil
}

func (s *service) CancelJoin(ctx context.Context, userID snowflake.ID, orgID string) error {
	if userID == 0 {
		return domain.ErrInvalidUser
	}

	parsed, err := parseOrgID(orgID)
	if err != nil {
		return err
	}

	member, err := s.repo.FindMembership(ctx, parsed, userID)
	if err != nil {
		return err
	}
	if member == nil {
		return domain.ErrJoinRequestNotFound
	}
	if member.Status != domain.MembershipPending {
		return domain.ErrJoinRequestNotPending
	}

	// A withdrawn request carries no historical value; hard delete.
	return s.repo.RemoveMember(ctx, parsed, userID)
}

func (s *service) load(ctx context.Context, orgID string) (*domain.Organization, error) {
	parsed, err := parseOrgID(orgID)
	if err != nil {
		return nil, err
	}

	org, err := s.repo.FindByID(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrNotFound
	}
	return org, nil
}

// authorizeOrgAdmin applies the two-tier rule: superadmins bypass, all
// other callers must hold admin standing on the organization. Both
// checks go to storage on every call.
func (s *service) authorizeOrgAdmin(ctx context.Context, userID, orgID snowflake.ID) error {
	super, err := s.users.IsSuperAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if super {
		return nil
	}

	admin, err := s.repo.IsAdmin(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return domain.ErrNotAdmin
	}
	return nil
}

func parseOrgID(raw string) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, domain.ErrInvalidOrganization
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, domain.ErrInvalidOrganization
	}
	return parsed, nil
}

func toResponse(org *domain.Organization) *domain.OrganizationResponse {
	resp := &domain.OrganizationResponse{
		ID:          org.ID.String(),
		Name:        org.Name,
		Slug:        org.Slug,
		Description: org.Description,
		Archived:    org.Archived(),
		CreatedAt:   org.CreatedAt,
	}
	if org.ParentID != nil {
		resp.ParentID = org.ParentID.String()
	}
	return resp
}
