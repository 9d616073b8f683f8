package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	joinparentdomain "github.com/assemblee/assemblee/internal/joinparent/domain"
	organizationdomain "github.com/assemblee/assemblee/internal/organization/domain"
)

func TestMapError(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{ErrUnauthorized, http.StatusUnauthorized},
		{organizationdomain.ErrNotAdmin, http.StatusForbidden},
		{organizationdomain.ErrInvalidName, http.StatusBadRequest},
		{joinparentdomain.ErrInvalidMessage, http.StatusBadRequest},
		{joinparentdomain.ErrRejectionReasonRequired, http.StatusBadRequest},
		{organizationdomain.ErrNotFound, http.StatusNotFound},
		{joinparentdomain.ErrRequestNotFound, http.StatusNotFound},
		{organizationdomain.ErrNameTaken, http.StatusConflict},
		{joinparentdomain.ErrPendingRequestExists, http.StatusConflict},
		{joinparentdomain.ErrCannotJoinOwnDescendant, http.StatusConflict},
		{joinparentdomain.ErrRequestNotPending, http.StatusConflict},
		{errors.New("storage exploded"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, "error %v", tc.err)
		assert.NotEmpty(t, payload.Code)
	}
}

func TestMapErrorHidesInternalDetails(t *testing.T) {
	_, payload := mapError(errors.New("pq: connection refused"))
	assert.Equal(t, "organization.errors.internal", payload.Code)
	assert.NotContains(t, payload.Message, "connection refused")
}

func TestAuthRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := &Server{}
	r := gin.New()
	r.Use(ErrorHandlingMiddleware())
	r.GET("/ping", s.AuthRequired(), func(c *gin.Context) {
		userID, ok := s.userIDFromContext(c)
		assert.True(t, ok)
		c.JSON(http.StatusOK, gin.H{"user_id": userID.String()})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderUser, "not-a-snowflake")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(HeaderUser, "1234567890")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
