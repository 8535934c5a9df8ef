package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/electronicjova/storefront-backend/pkg/auth"
	"github.com/electronicjova/storefront-backend/pkg/config"
	"github.com/electronicjova/storefront-backend/pkg/enums"
	"github.com/electronicjova/storefront-backend/pkg/logger"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusUnauthorized, resp.Code)
}

func TestAuthSeedsIdentity(t *testing.T) {
	userID := uuid.New()
	token := mintTestToken(t, userID, enums.UserRoleCustomer)

	var captured auth.Identity
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, userID, captured.UserID)
	assert.Equal(t, enums.UserRoleCustomer, captured.Role)
	assert.Equal(t, "shopper@example.com", captured.Email)
}

func TestAuthAcceptsQueryTokenForEventStreams(t *testing.T) {
	token := mintTestToken(t, uuid.New(), enums.UserRoleCustomer)
	req := httptest.NewRequest(http.MethodGet, "/?access_token="+token, nil)
	resp := httptest.NewRecorder()
	Auth(testJWT, nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(enums.UserRoleAdmin, logger.Nop())(okHandler())

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusForbidden, resp.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), auth.Identity{UserID: uuid.New(), Role: enums.UserRoleCustomer}))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusForbidden, resp.Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithIdentity(req.Context(), auth.Identity{UserID: uuid.New(), Role: enums.UserRoleAdmin}))
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	assert.Equal(t, http.StatusOK, resp.Code)
}

func TestRecovererReturnsInternalError(t *testing.T) {
	handler := Recoverer(nil)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, resp.Code)
}

func TestRequestIDEchoesHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "req-1")
	resp := httptest.NewRecorder()
	RequestID(nil)(okHandler()).ServeHTTP(resp, req)
	assert.Equal(t, "req-1", resp.Header().Get(requestIDHeader))

	resp = httptest.NewRecorder()
	RequestID(nil)(okHandler()).ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, resp.Header().Get(requestIDHeader))
}

type recordedRequest struct {
	route  string
	status int
}

type fakeHTTPRecorder struct {
	seen []recordedRequest
}

func (f *fakeHTTPRecorder) ObserveHTTP(route, _ string, status int, _ time.Duration) {
	f.seen = append(f.seen, recordedRequest{route: route, status: status})
}

func TestMetricsRecordsRoutePattern(t *testing.T) {
	rec := &fakeHTTPRecorder{}
	handler := Metrics(rec)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	req := requestWithPattern(http.MethodPost, "/api/v1/checkout", "/api/v1/checkout", nil)
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.Len(t, rec.seen, 1)
	assert.Equal(t, "/api/v1/checkout", rec.seen[0].route)
	assert.Equal(t, http.StatusCreated, rec.seen[0].status)
}

func mintTestToken(t *testing.T, userID uuid.UUID, role enums.UserRole) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		UserID: userID,
		Email:  "shopper@example.com",
		Role:   role,
	})
	require.NoError(t, err)
	return token
}
