package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	joinparentdomain "github.com/assemblee/assemblee/internal/joinparent/domain"
	notificationdomain "github.com/assemblee/assemblee/internal/notification/domain"
	organizationdomain "github.com/assemblee/assemblee/internal/organization/domain"
)

// errorPayload carries the opaque domain error code. Clients localize
// the code; the message is a fallback for humans reading raw traffic.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized   = errors.New("organization.errors.unauthorized")
	ErrInvalidRequest = errors.New("organization.errors.invalidRequest")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case err == nil:
		return http.StatusInternalServerError, errorPayload{
			Code:    "organization.errors.internal",
			Message: "internal server error",
		}
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized, errorPayload{
			Code:    ErrUnauthorized.Error(),
			Message: "unauthorized",
		}
	case errors.Is(err, organizationdomain.ErrNotAdmin):
		return http.StatusForbidden, errorPayload{
			Code:    err.Error(),
			Message: "forbidden",
		}
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Code:    err.Error(),
			Message: "invalid request",
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Code:    err.Error(),
			Message: "not found",
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Code:    err.Error(),
			Message: "conflict",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Code:    "organization.errors.internal",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, organizationdomain.ErrInvalidUser),
		errors.Is(err, organizationdomain.ErrInvalidOrganization),
		errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidDescription),
		errors.Is(err, joinparentdomain.ErrInvalidMessage),
		errors.Is(err, joinparentdomain.ErrInvalidRequest),
		errors.Is(err, joinparentdomain.ErrInvalidAction),
		errors.Is(err, joinparentdomain.ErrRejectionReasonRequired):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, organizationdomain.ErrParentNotFound),
		errors.Is(err, organizationdomain.ErrJoinRequestNotFound),
		errors.Is(err, joinparentdomain.ErrRequestNotFound),
		errors.Is(err, joinparentdomain.ErrChildOrgNotFound),
		errors.Is(err, joinparentdomain.ErrParentNotFound),
		errors.Is(err, notificationdomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrNameTaken),
		errors.Is(err, organizationdomain.ErrArchived),
		errors.Is(err, organizationdomain.ErrParentArchived),
		errors.Is(err, organizationdomain.ErrMembershipExists),
		errors.Is(err, organizationdomain.ErrPendingHierarchyRequest),
		errors.Is(err, organizationdomain.ErrJoinRequestNotPending),
		errors.Is(err, joinparentdomain.ErrRequestNotPending),
		errors.Is(err, joinparentdomain.ErrSameOrganization),
		errors.Is(err, joinparentdomain.ErrChildOrgArchived),
		errors.Is(err, joinparentdomain.ErrParentArchived),
		errors.Is(err, joinparentdomain.ErrPendingRequestExists),
		errors.Is(err, joinparentdomain.ErrCannotJoinOwnDescendant):
		return true
	default:
		return false
	}
}

func classifyErrorForLog(err error) (string, string) {
	switch {
	case err == nil:
		return "", ""
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized", err.Error()
	case errors.Is(err, organizationdomain.ErrNotAdmin):
		return "forbidden", err.Error()
	case isValidationError(err):
		return "validation", err.Error()
	case isNotFoundError(err):
		return "not_found", err.Error()
	case isConflictError(err):
		return "conflict", err.Error()
	default:
		return "internal", err.Error()
	}
}
