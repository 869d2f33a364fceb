package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/forum-api/internal/domain"
	jwtinfra "github.com/forum-api/internal/infrastructure/jwt"
	"github.com/forum-api/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockProfileSvc struct{ mock.Mock }

func (m *mockProfileSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	args := m.Called(ctx, userID)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockProfileSvc) Update(ctx context.Context, userID string, req domain.UpdateUserRequest) (*domain.User, error) {
	args := m.Called(ctx, userID, req)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

// asUser builds a request carrying an authenticated subject and a chi {id}
// route param, the way the router delivers requests to the handler.
func asUser(t *testing.T, callerID, method, targetID string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, "/v1/users/"+targetID, &buf)

	claims := &jwtinfra.Claims{
		TokenType:        jwtinfra.TypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{Subject: callerID},
	}
	ctx := context.WithValue(req.Context(), middleware.ClaimsKey, claims)

	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", targetID)
	ctx = context.WithValue(ctx, chi.RouteCtxKey, rctx)

	return req.WithContext(ctx)
}

func TestUserGet_OK(t *testing.T) {
	svc := &mockProfileSvc{}
	h := NewUserHandler(svc, &mockAuthSvc{})

	svc.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Username: "gopher"}, nil)

	rr := httptest.NewRecorder()
	h.Get(rr, asUser(t, "u1", http.MethodGet, "u1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "gopher")
}

func TestUserGet_NotFound(t *testing.T) {
	svc := &mockProfileSvc{}
	h := NewUserHandler(svc, &mockAuthSvc{})

	svc.On("Get", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)

	rr := httptest.NewRecorder()
	h.Get(rr, asUser(t, "u1", http.MethodGet, "ghost", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUserUpdate_Self(t *testing.T) {
	svc := &mockProfileSvc{}
	h := NewUserHandler(svc, &mockAuthSvc{})

	svc.On("Update", mock.Anything, "u1", mock.AnythingOfType("domain.UpdateUserRequest")).
		Return(&domain.User{UserID: "u1", Username: "rob"}, nil)

	rr := httptest.NewRecorder()
	h.Update(rr, asUser(t, "u1", http.MethodPut, "u1", map[string]string{"username": "rob"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestUserUpdate_OtherUserForbiddenForNonAdmin(t *testing.T) {
	svc := &mockProfileSvc{}
	h := NewUserHandler(svc, &mockAuthSvc{})

	// Caller role lookup comes back as a plain user.
	svc.On("Get", mock.Anything, "u1").Return(&domain.User{UserID: "u1", Role: domain.RoleUser}, nil)

	rr := httptest.NewRecorder()
	h.Update(rr, asUser(t, "u1", http.MethodPut, "u2", map[string]string{"username": "rob"}))

	assert.Equal(t, http.StatusForbidden, rr.Code)
	svc.AssertNotCalled(t, "Update", mock.Anything, mock.Anything, mock.Anything)
}

func TestUserUpdate_OtherUserAllowedForAdmin(t *testing.T) {
	svc := &mockProfileSvc{}
	h := NewUserHandler(svc, &mockAuthSvc{})

	svc.On("Get", mock.Anything, "admin-1").Return(&domain.User{UserID: "admin-1", Role: domain.RoleAdmin}, nil)
	svc.On("Update", mock.Anything, "u2", mock.Anything).
		Return(&domain.User{UserID: "u2", Username: "rob"}, nil)

	rr := httptest.NewRecorder()
	h.Update(rr, asUser(t, "admin-1", http.MethodPut, "u2", map[string]string{"username": "rob"}))

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestUserSuspend_OK(t *testing.T) {
	authSvc := &mockAuthSvc{}
	h := NewUserHandler(&mockProfileSvc{}, authSvc)

	authSvc.On("Suspend", mock.Anything, "u2").Return(nil)

	rr := httptest.NewRecorder()
	req := asUser(t, "admin-1", http.MethodPost, "u2", nil)
	h.Suspend(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	authSvc.AssertExpectations(t)
}

func TestUserSuspend_UnknownUser(t *testing.T) {
	authSvc := &mockAuthSvc{}
	h := NewUserHandler(&mockProfileSvc{}, authSvc)

	authSvc.On("Suspend", mock.Anything, "ghost").Return(domain.ErrNotFound)

	rr := httptest.NewRecorder()
	h.Suspend(rr, asUser(t, "admin-1", http.MethodPost, "ghost", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
