package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fern-folio/bookstore-api/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAuthSvc struct{ mock.Mock }

func (m *mockAuthSvc) Login(ctx context.Context, req domain.LoginRequest) (string, *domain.User, error) {
	args := m.Called(ctx, req)
	u, _ := args.Get(1).(*domain.User)
	return args.String(0), u, args.Error(2)
}

type mockRegistrationSvc struct{ mock.Mock }

func (m *mockRegistrationSvc) Register(ctx context.Context, req domain.RegisterRequest) (*domain.PendingRegistration, error) {
	args := m.Called(ctx, req)
	if p, _ := args.Get(0).(*domain.PendingRegistration); p != nil {
		return p, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) Verify(ctx context.Context, token string) (*domain.User, error) {
	args := m.Called(ctx, token)
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockRegistrationSvc) ResendVerification(ctx context.Context, email string) error {
	return m.Called(ctx, email).Error(0)
}

func jsonReq(method, target string, v interface{}) *http.Request {
	body, _ := json.Marshal(v)
	return httptest.NewRequest(method, target, bytes.NewReader(body))
}

func TestLogin_ReturnsBearerToken(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, domain.LoginRequest{Email: "alice@example.com", Password: "pw"}).
		Return("tok", &domain.User{UserID: "u1"}, nil)
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/v1/sessions/login", domain.LoginRequest{Email: "alice@example.com", Password: "pw"}))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"access_token":"tok","token_type":"bearer"}`, rr.Body.String())
}

func TestLogin_BadCredentials(t *testing.T) {
	svc := &mockAuthSvc{}
	svc.On("Login", mock.Anything, mock.Anything).Return("", nil, domain.ErrUnauthorized)
	h := NewSessionHandler(svc)

	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/v1/sessions/login", domain.LoginRequest{Email: "alice@example.com", Password: "pw"}))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLogin_ValidationFailure(t *testing.T) {
	h := NewSessionHandler(&mockAuthSvc{})
	rr := httptest.NewRecorder()
	h.Login(rr, jsonReq(http.MethodPost, "/v1/sessions/login", domain.LoginRequest{Email: "not-an-email"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestRegister_Accepted(t *testing.T) {
	svc := &mockRegistrationSvc{}
	req := domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "s3cretpass"}
	svc.On("Register", mock.Anything, req).Return(&domain.PendingRegistration{Email: req.Email}, nil)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(http.MethodPost, "/v1/users/register", req))

	assert.Equal(t, http.StatusAccepted, rr.Code)
	var resp MessageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Message)
	svc.AssertExpectations(t)
}

func TestRegister_Duplicate(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("Register", mock.Anything, mock.Anything).Return(nil, domain.ErrDuplicateRegistration)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(http.MethodPost, "/v1/users/register",
		domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "s3cretpass"}))

	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestRegister_ShortPassword(t *testing.T) {
	h := NewRegistrationHandler(&mockRegistrationSvc{})
	rr := httptest.NewRecorder()
	h.Register(rr, jsonReq(http.MethodPost, "/v1/users/register",
		domain.RegisterRequest{Name: "Alice", Email: "alice@example.com", Password: "short"}))
	assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)
}

func TestVerify_StatusCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"ok", nil, http.StatusOK},
		{"unknown", domain.ErrTokenNotFound, http.StatusBadRequest},
		{"expired", domain.ErrTokenExpired, http.StatusGone},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockRegistrationSvc{}
			if tc.err == nil {
				svc.On("Verify", mock.Anything, "tok").Return(&domain.User{UserID: "u1", Verified: true}, nil)
			} else {
				svc.On("Verify", mock.Anything, "tok").Return(nil, tc.err)
			}
			h := NewRegistrationHandler(svc)

			rr := httptest.NewRecorder()
			h.Verify(rr, withParam(httptest.NewRequest(http.MethodGet, "/v1/users/verify/tok", nil), "token", "tok"))
			assert.Equal(t, tc.want, rr.Code)
		})
	}
}

func TestResend_NotFound(t *testing.T) {
	svc := &mockRegistrationSvc{}
	svc.On("ResendVerification", mock.Anything, "alice@example.com").Return(domain.ErrNotFound)
	h := NewRegistrationHandler(svc)

	rr := httptest.NewRecorder()
	h.Resend(rr, jsonReq(http.MethodPost, "/v1/users/verify/resend",
		domain.ResendVerificationRequest{Email: "alice@example.com"}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestWriteServiceError_Mapping(t *testing.T) {
	cases := map[error]int{
		domain.ErrRateLimited:                              http.StatusTooManyRequests,
		domain.ErrDuplicateRegistration:                    http.StatusConflict,
		domain.ErrInsufficientStock:                        http.StatusConflict,
		domain.ErrTokenNotFound:                            http.StatusBadRequest,
		domain.ErrTokenExpired:                             http.StatusGone,
		domain.ErrForbidden:                                http.StatusForbidden,
		domain.ErrUpstream:                                 http.StatusBadGateway,
		errors.Join(errors.New("ctx"), domain.ErrNotFound): http.StatusNotFound,
		errors.New("boom"):                                 http.StatusInternalServerError,
	}
	for err, want := range cases {
		rr := httptest.NewRecorder()
		writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), err)
		assert.Equal(t, want, rr.Code, err.Error())
	}

	rr := httptest.NewRecorder()
	writeServiceError(rr, httptest.NewRequest(http.MethodGet, "/", nil), errors.New("dynamo: secret table name"))
	assert.NotContains(t, rr.Body.String(), "secret")
}

func TestHealthPing(t *testing.T) {
	r := chi.NewRouter()
	r.Get("/v1/health-check/{action}", NewHealthHandler().Ping)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/v1/health-check/ping", nil))
	assert.JSONEq(t, `{"message":"pong"}`, rr.Body.String())
}
