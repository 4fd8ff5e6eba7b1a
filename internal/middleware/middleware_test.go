package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-focus-api/internal/models"
	appErrors "github.com/noah-isme/sma-focus-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
	err    error
	got    string
}

func (s *stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	s.got = token
	return s.claims, s.err
}

type stubResolver map[string]string

func (s stubResolver) StudentIDForUser(_ context.Context, userID string) (string, error) {
	if userID == "broken" {
		return "", errors.New("db down")
	}
	return s[userID], nil
}

type recordingObserver struct {
	method, path string
	status       int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.method, r.path, r.status = method, path, status
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error *appErrors.Error `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher}

	tests := []struct {
		name      string
		header    string
		validator *stubValidator
		status    int
	}{
		{name: "missing header", validator: &stubValidator{}, status: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic abc", validator: &stubValidator{}, status: http.StatusUnauthorized},
		{name: "invalid token", header: "Bearer bad", validator: &stubValidator{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}, status: http.StatusUnauthorized},
		{name: "valid token", header: "bearer good", validator: &stubValidator{claims: claims}, status: http.StatusOK},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var seen *models.JWTClaims
			router := gin.New()
			router.GET("/", JWT(tc.validator), func(c *gin.Context) {
				seen = CurrentUser(c)
				c.Status(http.StatusOK)
			})
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			assert.Equal(t, tc.status, rec.Code)
			if tc.status == http.StatusOK {
				assert.Equal(t, "good", tc.validator.got)
				assert.Equal(t, claims, seen)
			} else {
				assert.Equal(t, "UNAUTHORIZED", errorCode(t, rec))
				assert.Nil(t, seen)
			}
		})
	}
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		claims *models.JWTClaims
		status int
	}{
		{claims: nil, status: http.StatusUnauthorized},
		{claims: &models.JWTClaims{Role: models.RoleStudent}, status: http.StatusForbidden},
		{claims: &models.JWTClaims{Role: models.RoleTeacher}, status: http.StatusNoContent},
		{claims: &models.JWTClaims{Role: models.RoleAdmin}, status: http.StatusNoContent},
	}
	for _, tc := range cases {
		router := gin.New()
		router.GET("/", withClaims(tc.claims), RequireRoles(models.RoleTeacher, models.RoleAdmin), func(c *gin.Context) {
			c.Status(http.StatusNoContent)
		})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, tc.status, rec.Code)
	}
}

func TestStudentSelf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	resolver := stubResolver{"user-s1": "s1"}
	cases := []struct {
		name   string
		claims *models.JWTClaims
		target string
		status int
	}{
		{name: "own record", claims: &models.JWTClaims{UserID: "user-s1", Role: models.RoleStudent}, target: "s1", status: http.StatusNoContent},
		{name: "other student", claims: &models.JWTClaims{UserID: "user-s1", Role: models.RoleStudent}, target: "s2", status: http.StatusForbidden},
		{name: "unlinked account", claims: &models.JWTClaims{UserID: "user-x", Role: models.RoleStudent}, target: "s1", status: http.StatusForbidden},
		{name: "resolver failure", claims: &models.JWTClaims{UserID: "broken", Role: models.RoleStudent}, target: "s1", status: http.StatusInternalServerError},
		{name: "teacher", claims: &models.JWTClaims{UserID: "t1", Role: models.RoleTeacher}, target: "s2", status: http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.GET("/focus/:studentId", withClaims(tc.claims), StudentSelf(resolver, "studentId"), func(c *gin.Context) {
				c.Status(http.StatusNoContent)
			})
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/focus/"+tc.target, nil))
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	router := gin.New()
	router.Use(WithResponseMeta())
	router.GET("/", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "HIT", rec.Header().Get("X-Cache"))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Contains(t, meta, "processing_time_ms")
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/analytics/class/:classId", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/analytics/class/c-42", nil))
	assert.Equal(t, "/analytics/class/:classId", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}
