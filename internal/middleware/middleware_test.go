package middleware_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/domain/model"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/handler"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/infra/memory"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/middleware"
	"github.com/Kimbarona/dream-pack-store-be-sub000/internal/usecase"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const testSecret = "mw-secret"

// =====================
// helper
// =====================

type okResponse struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

func mustMakeJWT(t *testing.T, secret string, sub string, role string, method jwt.SigningMethod, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(method, jwt.MapClaims{
		"sub":  sub,
		"role": role,
		"iat":  time.Now().Unix(),
		"exp":  exp.Unix(),
	})
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func newEcho(mw ...echo.MiddlewareFunc) *echo.Echo {
	e := echo.New()
	e.HTTPErrorHandler = handler.ErrorHandler(zap.NewNop(), false)
	e.GET("/me", func(c echo.Context) error {
		id, _ := middleware.UserID(c)
		role, _ := c.Get(middleware.CtxUserRoleKey).(string)
		return c.JSON(http.StatusOK, okResponse{UserID: id, Role: role})
	}, mw...)
	return e
}

func runRequest(t *testing.T, e *echo.Echo, authHeader string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) handler.ErrorResponse {
	t.Helper()
	var r handler.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&r))
	return r
}

// =====================
// AuthJWT
// =====================

func TestAuthJWT(t *testing.T) {
	userID := uuid.NewString()
	future := time.Now().Add(time.Hour)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized},
		{"wrong secret", "Bearer " + mustMakeJWT(t, "other", userID, "USER", jwt.SigningMethodHS256, future), http.StatusUnauthorized},
		{"wrong alg", "Bearer " + mustMakeJWT(t, testSecret, userID, "USER", jwt.SigningMethodHS384, future), http.StatusUnauthorized},
		{"expired", "Bearer " + mustMakeJWT(t, testSecret, userID, "USER", jwt.SigningMethodHS256, time.Now().Add(-time.Minute)), http.StatusUnauthorized},
		{"sub not uuid", "Bearer " + mustMakeJWT(t, testSecret, "42", "USER", jwt.SigningMethodHS256, future), http.StatusUnauthorized},
		{"no role", "Bearer " + mustMakeJWT(t, testSecret, userID, "", jwt.SigningMethodHS256, future), http.StatusUnauthorized},
		{"ok", "Bearer " + mustMakeJWT(t, testSecret, userID, "USER", jwt.SigningMethodHS256, future), http.StatusOK},
	}

	e := newEcho(middleware.AuthJWT(testSecret))
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := runRequest(t, e, tc.header)
			require.Equal(t, tc.status, rec.Code)
			if tc.status != http.StatusOK {
				assert.Equal(t, usecase.CodeUnauthorized, decodeError(t, rec).Code)
				return
			}
			var body okResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, userID, body.UserID)
			assert.Equal(t, "USER", body.Role)
		})
	}
}

// =====================
// AdminRoleGuard / ActiveUserGuard
// =====================

func TestAdminRoleGuard(t *testing.T) {
	e := newEcho(middleware.AuthJWT(testSecret), middleware.AdminRoleGuard())
	future := time.Now().Add(time.Hour)

	rec := runRequest(t, e, "Bearer "+mustMakeJWT(t, testSecret, uuid.NewString(), "USER", jwt.SigningMethodHS256, future))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runRequest(t, e, "Bearer "+mustMakeJWT(t, testSecret, uuid.NewString(), "ADMIN", jwt.SigningMethodHS256, future))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestActiveUserGuard(t *testing.T) {
	users := memory.NewUserRepository(memory.NewStore())
	active := model.User{ID: uuid.NewString(), Email: "a@test.com", Role: model.RoleUser, IsActive: true}
	stopped := model.User{ID: uuid.NewString(), Email: "s@test.com", Role: model.RoleUser, IsActive: false}
	require.NoError(t, users.Create(context.Background(), active))
	require.NoError(t, users.Create(context.Background(), stopped))

	e := newEcho(middleware.AuthJWT(testSecret), middleware.ActiveUserGuard(users), middleware.AdminRoleGuard())
	future := time.Now().Add(time.Hour)

	// トークンが ADMIN を名乗っても DB のロールが使われる
	rec := runRequest(t, e, "Bearer "+mustMakeJWT(t, testSecret, active.ID, "ADMIN", jwt.SigningMethodHS256, future))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runRequest(t, e, "Bearer "+mustMakeJWT(t, testSecret, stopped.ID, "USER", jwt.SigningMethodHS256, future))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runRequest(t, e, "Bearer "+mustMakeJWT(t, testSecret, uuid.NewString(), "USER", jwt.SigningMethodHS256, future))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// =====================
// RateLimit
// =====================

func TestRateLimitByIP(t *testing.T) {
	l := middleware.NewKeyedRateLimiter(rate.Every(time.Hour), 2)
	e := newEcho(middleware.RateLimitByIP(l))

	call := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusOK, call("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, call("10.0.0.1"))
	// 別のIPは別のバケット
	assert.Equal(t, http.StatusOK, call("10.0.0.2"))
}

func TestRateLimitByUser(t *testing.T) {
	l := middleware.NewKeyedRateLimiter(rate.Every(time.Hour), 1)
	e := newEcho(middleware.AuthJWT(testSecret), middleware.RateLimitByUser(l))
	future := time.Now().Add(time.Hour)
	alice := "Bearer " + mustMakeJWT(t, testSecret, uuid.NewString(), "USER", jwt.SigningMethodHS256, future)
	bob := "Bearer " + mustMakeJWT(t, testSecret, uuid.NewString(), "USER", jwt.SigningMethodHS256, future)

	assert.Equal(t, http.StatusOK, runRequest(t, e, alice).Code)
	rec := runRequest(t, e, alice)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, usecase.CodeRateLimited, decodeError(t, rec).Code)
	assert.Equal(t, http.StatusOK, runRequest(t, e, bob).Code)
}

// =====================
// RequestLogger / RequestTimeout
// =====================

func TestRequestLogger_RequestID(t *testing.T) {
	e := newEcho(middleware.RequestLogger(zap.NewNop()))

	rec := runRequest(t, e, "")
	_, err := uuid.Parse(rec.Header().Get(middleware.HeaderRequestID))
	assert.NoError(t, err)

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set(middleware.HeaderRequestID, given)
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, given, rec.Header().Get(middleware.HeaderRequestID))
}

func TestRequestTimeout_SetsDeadline(t *testing.T) {
	e := echo.New()
	var hasDeadline bool
	e.GET("/t", func(c echo.Context) error {
		_, hasDeadline = c.Request().Context().Deadline()
		return c.NoContent(http.StatusNoContent)
	}, middleware.RequestTimeout(time.Second))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/t", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.True(t, hasDeadline)
}
