package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"

	"github.com/assemblee/assemblee/internal/clock"
	"github.com/assemblee/assemblee/internal/notification/domain"
	"github.com/assemblee/assemblee/internal/observability/metrics"
	orgdomain "github.com/assemblee/assemblee/internal/organization/domain"
)

type service struct {
	repo    domain.Repository
	orgs    orgdomain.Repository
	genID   *snowflake.Node
	clock   clock.Clock
	metrics *metrics.Metrics
}

func NewService(
	repo domain.Repository,
	orgs orgdomain.Repository,
	genID *snowflake.Node,
	clk clock.Clock,
	m *metrics.Metrics,
) domain.Service {
	return &service{
		repo:    repo,
		orgs:    orgs,
		genID:   genID,
		clock:   clk,
		metrics: m,
	}
}

// JoinParentRequestReceived fans out to the admins of the organization
// the request targets.
func (s *service) JoinParentRequestReceived(ctx context.Context, childOrgID, parentOrgID snowflake.ID) error {
	payload, err := s.orgPayload(ctx, childOrgID, parentOrgID)
	if err != nil {
		return err
	}

	recipients, err := s.orgs.AdminUserIDs(ctx, parentOrgID)
	if err != nil {
		return err
	}

	return s.fanOut(ctx, domain.KindJoinParentRequestReceived, recipients, payload)
}

// OrgJoinedParent fans out to every accepted member of the child
// organization and of its descendants; their position in the wider
// hierarchy changed too.
func (s *service) OrgJoinedParent(ctx context.Context, childOrgID, parentOrgID snowflake.ID) error {
	payload, err := s.orgPayload(ctx, childOrgID, parentOrgID)
	if err != nil {
		return err
	}

	descendants, err := s.orgs.DescendantIDs(ctx, childOrgID)
	if err != nil {
		return err
	}
	orgIDs := append([]snowflake.ID{childOrgID}, descendants...)

	recipients, err := s.orgs.AcceptedMemberUserIDs(ctx, orgIDs)
	if err != nil {
		return err
	}

	return s.fanOut(ctx, domain.KindOrgJoinedParent, recipients, payload)
}

func (s *service) ListForUser(ctx context.Context, userID snowflake.ID, limit int) ([]domain.Notification, error) {
	return s.repo.FindByUserID(ctx, userID, limit)
}

func (s *service) MarkRead(ctx context.Context, userID snowflake.ID, notificationID string) error {
	raw := strings.TrimSpace(notificationID)
	if raw == "" {
		return domain.ErrNotFound
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil {
		return domain.ErrNotFound
	}
	return s.repo.MarkRead(ctx, parsed, userID, s.clock.Now())
}

func (s *service) fanOut(ctx context.Context, kind domain.Kind, recipients []snowflake.ID, payload datatypes.JSONMap) error {
	notifications := make([]domain.Notification, 0, len(recipients))
	now := s.clock.Now()
	for _, userID := range recipients {
		notifications = append(notifications, domain.Notification{
			ID:        s.genID.Generate(),
			UserID:    userID,
			Kind:      kind,
			Payload:   payload,
			CreatedAt: now,
		})
	}

	if err := s.repo.SaveAll(ctx, notifications); err != nil {
		return err
	}

	s.metrics.RecordNotificationFanout(ctx, string(kind), len(notifications))
	return nil
}

func (s *service) orgPayload(ctx context.Context, childOrgID, parentOrgID snowflake.ID) (datatypes.JSONMap, error) {
	payload := datatypes.JSONMap{
		"child_org_id":  childOrgID.String(),
		"parent_org_id": parentOrgID.String(),
	}

	if child, err := s.orgs.FindByID(ctx, childOrgID); err != nil {
		return nil, err
	} else if child != nil {
		payload["child_org_name"] = child.Name
	}

	if parent, err := s.orgs.FindByID(ctx, parentOrgID); err != nil {
		return nil, err
	} else if parent != nil {
		payload["parent_org_name"] = parent.Name
	}

	return payload, nil
}
