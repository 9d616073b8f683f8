package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	joinparentdomain "github.com/assemblee/assemblee/internal/joinparent/domain"
	"github.com/assemblee/assemblee/pkg/db/pagination"
)

type createJoinParentRequest struct {
	ChildOrgID  string `json:"child_org_id"`
	ParentOrgID string `json:"parent_org_id"`
	Message     string `json:"message"`
}

type handleJoinParentRequest struct {
	Action          string `json:"action"`
	RejectionReason string `json:"rejection_reason"`
}

func (s *Server) CreateJoinParentRequest(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req createJoinParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.joinParentSvc.Request(c.Request.Context(), userID, joinparentdomain.RequestJoinParent{
		ChildOrgID:  strings.TrimSpace(req.ChildOrgID),
		ParentOrgID: strings.TrimSpace(req.ParentOrgID),
		Message:     req.Message,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

func (s *Server) HandleJoinParentRequest(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req handleJoinParentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.joinParentSvc.Handle(c.Request.Context(), userID, joinparentdomain.HandleJoinParentRequest{
		RequestID:       c.Param("request_id"),
		Action:          joinparentdomain.Action(strings.ToLower(strings.TrimSpace(req.Action))),
		RejectionReason: req.RejectionReason,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) CancelJoinParentRequest(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	if err := s.joinParentSvc.Cancel(c.Request.Context(), userID, c.Param("request_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetJoinParentRequest(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	resp, err := s.joinParentSvc.ForChildOrg(c.Request.Context(), userID, c.Param("org_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if resp == nil {
		c.JSON(http.StatusOK, gin.H{"request": nil})
		return
	}

	c.JSON(http.StatusOK, gin.H{"request": resp})
}

func (s *Server) ListIncomingJoinParentRequests(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	items, err := s.joinParentSvc.Incoming(c.Request.Context(), userID, c.Param("org_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListJoinParentHistory(c *gin.Context) {
	userID, ok := s.userIDFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.joinParentSvc.All(c.Request.Context(), userID, c.Param("org_id"), page)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}
