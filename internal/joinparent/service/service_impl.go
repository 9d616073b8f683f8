package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/assemblee/assemblee/internal/clock"
	"github.com/assemblee/assemblee/internal/config"
	"github.com/assemblee/assemblee/internal/joinparent/domain"
	"github.com/assemblee/assemblee/internal/observability/logger"
	"github.com/assemblee/assemblee/internal/observability/metrics"
	orgdomain "github.com/assemblee/assemblee/internal/organization/domain"
	userdomain "github.com/assemblee/assemblee/internal/user/domain"
	"github.com/assemblee/assemblee/pkg/db/pagination"
)

const (
	defaultPageSize = 10
	maxPageSize     = 250
)

type service struct {
	db        *gorm.DB
	repo      domain.Repository
	orgs      orgdomain.Repository
	users     userdomain.Repository
	hierarchy *config.HierarchyConfigHolder
	genID     *snowflake.Node
	clock     clock.Clock
	metrics   *metrics.Metrics
	notifier  domain.Notifier
}

func NewService(
	conn *gorm.DB,
	repo domain.Repository,
	orgs orgdomain.Repository,
	users userdomain.Repository,
	hierarchy *config.HierarchyConfigHolder,
	genID *snowflake.Node,
	clk clock.Clock,
	m *metrics.Metrics,
	notifier domain.Notifier,
) domain.Service {
	return &service{
		db:        conn,
		repo:      repo,
		orgs:      orgs,
		users:     users,
		hierarchy: hierarchy,
		genID:     genID,
		clock:     clk,
		metrics:   m,
		notifier:  notifier,
	}
}

func (s *service) Request(ctx context.Context, userID snowflake.ID, req domain.RequestJoinParent) (*domain.JoinParentRequestResponse, error) {
	childID, err := parseID(req.ChildOrgID, domain.ErrChildOrgNotFound)
	if err != nil {
		return nil, err
	}
	parentID, err := parseID(req.ParentOrgID, domain.ErrParentNotFound)
	if err != nil {
		return nil, err
	}

	if err := s.authorizeOrgAdmin(ctx, userID, childID); err != nil {
		return nil, err
	}

	child, err := s.orgs.FindByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, domain.ErrChildOrgNotFound
	}
	if child.Archived() {
		return nil, domain.ErrChildOrgArchived
	}

	if childID == parentID {
		return nil, domain.ErrSameOrganization
	}

	parent, err := s.orgs.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, domain.ErrParentNotFound
	}
	if parent.Archived() {
		return nil, domain.ErrParentArchived
	}

	pending, err := s.repo.FindPendingByChildOrgID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if pending != nil {
		return nil, domain.ErrPendingRequestExists
	}

	// Attaching under one of our own descendants would close a loop.
	inSubtree, err := s.parentInSubtree(ctx, s.orgs, childID, parentID)
	if err != nil {
		return nil, err
	}
	if inSubtree {
		s.metrics.RecordCycleRejection(ctx, "request")
		return nil, domain.ErrCannotJoinOwnDescendant
	}

	request, err := domain.NewJoinParentRequest(
		s.genID.Generate(),
		childID,
		parentID,
		userID,
		req.Message,
		s.hierarchy.Get().MaxMessageLength,
		s.clock.Now(),
	)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, *request); err != nil {
		return nil, err
	}

	s.metrics.RecordJoinParentRequested(ctx)
	s.notify(ctx, "join-parent request received", func() error {
		return s.notifier.JoinParentRequestReceived(ctx, childID, parentID)
	})

	return toResponse(request), nil
}

func (s *service) Handle(ctx context.Context, userID snowflake.ID, req domain.HandleJoinParentRequest) (*domain.JoinParentRequestResponse, error) {
	requestID, err := parseID(req.RequestID, domain.ErrRequestNotFound)
	if err != nil {
		return nil, err
	}

	request, err := s.repo.FindByID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, domain.ErrRequestNotFound
	}
	if !request.Pending() {
		return nil, domain.ErrRequestNotPending
	}

	if err := s.authorizeOrgAdmin(ctx, userID, request.ParentOrgID); err != nil {
		return nil, err
	}

	switch req.Action {
	case domain.ActionAccept:
		return s.accept(ctx, userID, request)
	case domain.ActionReject:
		return s.reject(ctx, userID, request, req.RejectionReason)
	default:
		return nil, domain.ErrInvalidAction
	}
}

// accept runs the transition, the parent-pointer write and the cycle
// re-check in one transaction. The hierarchy may have shifted between
// request time and now, so the request-time check cannot be trusted.
func (s *service) accept(ctx context.Context, userID snowflake.ID, request *domain.JoinParentRequest) (*domain.JoinParentRequestResponse, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		orgs := s.orgs.WithTx(tx)

		current, err := repo.FindByID(ctx, request.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return domain.ErrRequestNotFound
		}
		if !current.Pending() {
			return domain.ErrRequestNotPending
		}
		request = current

		child, err := orgs.FindByID(ctx, request.ChildOrgID)
		if err != nil {
			return err
		}
		if child == nil {
			return domain.ErrChildOrgNotFound
		}
		if child.Archived() {
			return domain.ErrChildOrgArchived
		}

		parent, err := orgs.FindByID(ctx, request.ParentOrgID)
		if err != nil {
			return err
		}
		if parent == nil {
			return domain.ErrParentNotFound
		}
		if parent.Archived() {
			return domain.ErrParentArchived
		}

		inSubtree, err := s.parentInSubtree(ctx, orgs, request.ChildOrgID, request.ParentOrgID)
		if err != nil {
			return err
		}
		if inSubtree {
			s.metrics.RecordCycleRejection(ctx, "accept")
			return domain.ErrCannotJoinOwnDescendant
		}

		if err := request.Accept(userID, s.clock.Now()); err != nil {
			return err
		}
		if err := repo.Update(ctx, *request); err != nil {
			return err
		}
		return orgs.SetParentID(ctx, request.ChildOrgID, request.ParentOrgID)
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordJoinParentHandled(ctx, "accepted")
	s.notify(ctx, "org joined parent", func() error {
		return s.notifier.OrgJoinedParent(ctx, request.ChildOrgID, request.ParentOrgID)
	})

	return toResponse(request), nil
}

func (s *service) reject(ctx context.Context, userID snowflake.ID, request *domain.JoinParentRequest, reason string) (*domain.JoinParentRequestResponse, error) {
	if err := request.Reject(userID, reason, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, *request); err != nil {
		return nil, err
	}

	s.metrics.RecordJoinParentHandled(ctx, "rejected")
	return toResponse(request), nil
}

func (s *service) Cancel(ctx context.Context, userID snowflake.ID, requestID string) error {
	parsed, err := parseID(requestID, domain.ErrRequestNotFound)
	if err != nil {
		return err
	}

	request, err := s.repo.FindByID(ctx, parsed)
	if err != nil {
		return err
	}
	if request == nil {
		return domain.ErrRequestNotFound
	}

	if err := s.authorizeOrgAdmin(ctx, userID, request.ChildOrgID); err != nil {
		return err
	}
	if !request.Pending() {
		return domain.ErrRequestNotPending
	}

	// Cancellation leaves no trace; only pending rows may be removed.
	return s.repo.Delete(ctx, request.ID)
}

func (s *service) Incoming(ctx context.Context, userID snowflake.ID, parentOrgID string) ([]domain.JoinParentRequestResponse, error) {
	parentID, err := parseID(parentOrgID, domain.ErrParentNotFound)
	if err != nil {
		return nil, err
	}

	parent, err := s.orgs.FindByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent == nil {
		return nil, domain.ErrParentNotFound
	}

	if err := s.authorizeOrgAdmin(ctx, userID, parentID); err != nil {
		return nil, err
	}

	requests, err := s.repo.FindPendingByParentOrgID(ctx, parentID)
	if err != nil {
		return nil, err
	}

	responses := make([]domain.JoinParentRequestResponse, 0, len(requests))
	for i := range requests {
		responses = append(responses, *toResponse(&requests[i]))
	}
	return responses, nil
}

func (s *service) All(ctx context.Context, userID snowflake.ID, orgID string, page pagination.Pagination) (*domain.JoinParentRequestListResponse, error) {
	parsed, err := parseID(orgID, orgdomain.ErrNotFound)
	if err != nil {
		return nil, err
	}

	org, err := s.orgs.FindByID(ctx, parsed)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, orgdomain.ErrNotFound
	}

	if err := s.authorizeOrgAdmin(ctx, userID, parsed); err != nil {
		return nil, err
	}

	size := page.PageSize
	if size <= 0 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	filter := domain.ListFilter{Limit: size + 1}
	if token := strings.TrimSpace(page.PageToken); token != "" {
		cursor, err := pagination.DecodeCursor(token)
		if err != nil {
			return nil, domain.ErrInvalidRequest
		}
		createdBefore, err := time.Parse(time.RFC3339Nano, cursor.CreatedAt)
		if err != nil {
			return nil, domain.ErrInvalidRequest
		}
		beforeID, err := snowflake.ParseString(cursor.ID)
		if err != nil {
			return nil, domain.ErrInvalidRequest
		}
		filter.CreatedBefore = createdBefore
		filter.BeforeID = beforeID
	}

	asChild, err := s.repo.FindAllByChildOrgID(ctx, parsed, filter)
	if err != nil {
		return nil, err
	}
	asParent, err := s.repo.FindAllByParentOrgID(ctx, parsed, filter)
	if err != nil {
		return nil, err
	}

	merged := append(asChild, asParent...)
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].CreatedAt.Equal(merged[j].CreatedAt) {
			return merged[i].ID > merged[j].ID
		}
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})

	hasMore := len(merged) > size
	if hasMore {
		merged = merged[:size]
	}

	result := &domain.JoinParentRequestListResponse{
		Requests: make([]domain.JoinParentRequestResponse, 0, len(merged)),
	}
	for i := range merged {
		result.Requests = append(result.Requests, *toResponse(&merged[i]))
	}
	result.PageInfo.HasMore = hasMore

	if hasMore && len(merged) > 0 {
		last := merged[len(merged)-1]
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        last.ID.String(),
			CreatedAt: last.CreatedAt.Format(time.RFC3339Nano),
		})
		if err != nil {
			return nil, err
		}
		result.PageInfo.NextPageToken = token
	}

	return result, nil
}

func (s *service) ForChildOrg(ctx context.Context, userID snowflake.ID, childOrgID string) (*domain.JoinParentRequestResponse, error) {
	childID, err := parseID(childOrgID, domain.ErrChildOrgNotFound)
	if err != nil {
		return nil, err
	}

	child, err := s.orgs.FindByID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if child == nil {
		return nil, domain.ErrChildOrgNotFound
	}

	if err := s.authorizeOrgAdmin(ctx, userID, childID); err != nil {
		return nil, err
	}

	request, err := s.repo.FindPendingByChildOrgID(ctx, childID)
	if err != nil {
		return nil, err
	}
	if request == nil {
		return nil, nil
	}
	return toResponse(request), nil
}

// parentInSubtree reports whether parentID sits inside childID's
// subtree, childID itself included.
func (s *service) parentInSubtree(ctx context.Context, orgs orgdomain.Repository, childID, parentID snowflake.ID) (bool, error) {
	if childID == parentID {
		return true, nil
	}
	descendants, err := orgs.DescendantIDs(ctx, childID)
	if err != nil {
		return false, err
	}
	for _, id := range descendants {
		if id == parentID {
			return true, nil
		}
	}
	return false, nil
}

// authorizeOrgAdmin applies the two-tier rule. Both checks go to
// storage on every call; admin standing is never cached.
func (s *service) authorizeOrgAdmin(ctx context.Context, userID, orgID snowflake.ID) error {
	super, err := s.users.IsSuperAdmin(ctx, userID)
	if err != nil {
		return err
	}
	if super {
		return nil
	}

	admin, err := s.orgs.IsAdmin(ctx, orgID, userID)
	if err != nil {
		return err
	}
	if !admin {
		return orgdomain.ErrNotAdmin
	}
	return nil
}

// notify runs a notification trigger best-effort. The primary
// operation already committed; a delivery failure only gets logged.
func (s *service) notify(ctx context.Context, name string, fn func() error) {
	if s.notifier == nil {
		return
	}
	if err := fn(); err != nil {
		logger.FromContext(ctx).Warn("notification trigger failed",
			zap.String("trigger", name),
			zap.Error(err),
		)
	}
}

func parseID(raw string, notFound error) (snowflake.ID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, notFound
	}
	parsed, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, notFound
	}
	return parsed, nil
}

func toResponse(request *domain.JoinParentRequest) *domain.JoinParentRequestResponse {
	resp := &domain.JoinParentRequestResponse{
		ID:                request.ID.String(),
		ChildOrgID:        request.ChildOrgID.String(),
		ParentOrgID:       request.ParentOrgID.String(),
		RequestingAdminID: request.RequestingAdminID.String(),
		Message:           request.Message,
		Status:            request.Status,
		CreatedAt:         request.CreatedAt,
		HandledAt:         request.HandledAt,
	}
	if request.HandlingAdminID != nil {
		resp.HandlingAdminID = request.HandlingAdminID.String()
	}
	if request.RejectionReason != nil {
		resp.RejectionReason = *request.RejectionReason
	}
	return resp
}
