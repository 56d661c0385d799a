package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/Aidin1998/crowdfund/internal/config"
	"github.com/Aidin1998/crowdfund/internal/database"
	"github.com/Aidin1998/crowdfund/internal/identities"
	"github.com/Aidin1998/crowdfund/internal/middleware/ratelimit"
	"github.com/Aidin1998/crowdfund/internal/notification"
	"github.com/Aidin1998/crowdfund/internal/projects"
	"github.com/Aidin1998/crowdfund/pkg/models"
	"github.com/Aidin1998/crowdfund/pkg/validation"
	"github.com/Aidin1998/crowdfund/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	db     *gorm.DB
	mail   *notification.MemoryMailer
}

func newTestServer(t *testing.T, limiter ratelimit.Limiter) *testServer {
	t.Helper()
	logger := zap.NewNop()
	db := testutil.NewDB(t)
	mail := &notification.MemoryMailer{}
	authCfg := testutil.AuthConfig()
	v := validation.NewValidator()

	identitiesSvc := identities.NewService(logger, db, authCfg, v,
		identities.WithNotifier(notification.NewNotifier(mail, "http://app.test", logger)),
		identities.WithPasswordCost(bcrypt.MinCost),
	)
	projectsSvc := projects.NewService(logger, db, v)
	tokens, err := identities.NewTokenValidator(authCfg)
	require.NoError(t, err)

	srv := NewServer(logger, config.ServerConfig{Port: 0}, identitiesSvc, projectsSvc, limiter, tokens, WithDatabase(db))
	return &testServer{router: srv.Router(), db: db, mail: mail}
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func (ts *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp models.LoginResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.AccessToken)
	return resp.AccessToken
}

func itoa(id uint) string { return strconv.FormatUint(uint64(id), 10) }

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func assertProblem(t *testing.T, w *httptest.ResponseRecorder, status int) map[string]any {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/problem+json")
	body := decode(t, w)
	assert.EqualValues(t, status, body["status"])
	assert.NotEmpty(t, body["title"])
	return body
}

func TestRootAndHealth(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "Crowdfund API", body["message"])
	assert.Equal(t, "/docs/index.html", body["docs"])
	assert.Equal(t, "1.0.0", body["version"])

	w = ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
}

func TestHealthReportsDatabase(t *testing.T) {
	ts := newTestServer(t, nil)
	require.NoError(t, database.Close(ts.db))

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "unhealthy", decode(t, w)["status"])
}

func TestUnknownRouteIsProblem(t *testing.T) {
	ts := newTestServer(t, nil)
	body := assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/nope", "", nil), http.StatusNotFound)
	assert.Equal(t, "/api/v1/nope", body["instance"])
}

func TestRegisterLoginAndProfile(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":     "Backer@Example.com",
		"full_name": "Backer",
		"password":  "password123",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "backer@example.com", created["email"])
	assert.NotContains(t, w.Body.String(), "hashed_password")

	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/auth/register", "", gin.H{
		"email":    "backer@example.com",
		"password": "password123",
	}), http.StatusConflict)

	token := ts.login(t, "backer@example.com", "password123")

	w = ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "backer@example.com", decode(t, w)["email"])

	w = ts.do(t, http.MethodPut, "/api/v1/users/me", token, gin.H{"full_name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Renamed", decode(t, w)["full_name"])
}

func TestAuthenticationErrors(t *testing.T) {
	ts := newTestServer(t, nil)

	w := ts.do(t, http.MethodGet, "/api/v1/users/me", "", nil)
	assertProblem(t, w, http.StatusUnauthorized)
	assert.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))

	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/users/me", "not-a-jwt", nil), http.StatusUnauthorized)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", gin.H{"email": "ghost@example.com", "password": "whatever1"})
	assertProblem(t, w, http.StatusUnauthorized)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/login", "", nil)
	assertProblem(t, w, http.StatusBadRequest)
}

func TestDeactivatedUserIsForbidden(t *testing.T) {
	ts := newTestServer(t, nil)
	user, password := testutil.CreateUser(t, ts.db)
	token := ts.login(t, user.Email, password)

	require.NoError(t, ts.db.Model(user).Update("is_active", false).Error)
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/users/me", token, nil), http.StatusForbidden)
}

func TestMagicLinkOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	user, _ := testutil.CreateUser(t, ts.db)

	w := ts.do(t, http.MethodPost, "/api/v1/auth/magic-link", "", gin.H{"email": user.Email})
	require.Equal(t, http.StatusOK, w.Code)
	unknown := ts.do(t, http.MethodPost, "/api/v1/auth/magic-link", "", gin.H{"email": "nobody@example.com"})
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, w.Body.String(), unknown.Body.String())

	msg, ok := ts.mail.Last(notification.KindMagicLink)
	require.True(t, ok)
	token := testutil.TokenFromLink(t, msg.TextBody)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/magic-link/verify", "", gin.H{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, decode(t, w)["access_token"])

	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/auth/magic-link/verify", "", gin.H{"token": token}), http.StatusUnauthorized)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t, nil)
	user, password := testutil.CreateUser(t, ts.db)
	admin, adminPassword := testutil.CreateUser(t, ts.db, testutil.Admin())

	userToken := ts.login(t, user.Email, password)
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/admin/users", userToken, nil), http.StatusForbidden)

	adminToken := ts.login(t, admin.Email, adminPassword)
	w := ts.do(t, http.MethodGet, "/api/v1/admin/users?limit=10", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 2, decode(t, w)["total"])

	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/admin/users/abc", adminToken, nil), http.StatusBadRequest)

	w = ts.do(t, http.MethodPatch, "/api/v1/admin/users/"+itoa(user.ID), adminToken, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, false, decode(t, w)["is_active"])
	_, ok := ts.mail.Last(notification.KindAccountDeactivated)
	assert.True(t, ok)

	assertProblem(t, ts.do(t, http.MethodDelete, "/api/v1/admin/users/"+itoa(admin.ID), adminToken, nil), http.StatusForbidden)

	w = ts.do(t, http.MethodDelete, "/api/v1/admin/users/"+itoa(user.ID), adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/admin/users/"+itoa(user.ID), adminToken, nil), http.StatusNotFound)
}

func TestAdminTestEmail(t *testing.T) {
	ts := newTestServer(t, nil)
	user, password := testutil.CreateUser(t, ts.db)
	admin, adminPassword := testutil.CreateUser(t, ts.db, testutil.Admin())
	body := gin.H{"email": "ops@example.com", "email_type": "account_activated", "user_name": "Ops"}

	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/admin/test-email", "", body), http.StatusUnauthorized)
	userToken := ts.login(t, user.Email, password)
	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/admin/test-email", userToken, body), http.StatusForbidden)

	adminToken := ts.login(t, admin.Email, adminPassword)
	w := ts.do(t, http.MethodPost, "/api/v1/admin/test-email", adminToken, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, decode(t, w)["message"], "ops@example.com")
	msg, ok := ts.mail.Last(notification.KindAccountActivated)
	require.True(t, ok)
	assert.Equal(t, "ops@example.com", msg.To)

	problem := assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/admin/test-email", adminToken,
		gin.H{"email": "ops@example.com", "email_type": "newsletter"}), http.StatusBadRequest)
	assert.NotEmpty(t, problem["errors"])
}

func TestProjectLifecycleOverHTTP(t *testing.T) {
	ts := newTestServer(t, nil)
	owner, password := testutil.CreateUser(t, ts.db)
	admin, adminPassword := testutil.CreateUser(t, ts.db, testutil.Admin())
	backer, backerPassword := testutil.CreateUser(t, ts.db)
	ownerToken := ts.login(t, owner.Email, password)
	adminToken := ts.login(t, admin.Email, adminPassword)
	backerToken := ts.login(t, backer.Email, backerPassword)

	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/projects/suggest-slug", ownerToken, nil), http.StatusBadRequest)
	w := ts.do(t, http.MethodGet, "/api/v1/projects/suggest-slug?title=Solar+Farm", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "solar-farm", decode(t, w)["slug"])

	w = ts.do(t, http.MethodPost, "/api/v1/projects", ownerToken, gin.H{
		"title":        "Solar Farm",
		"funding_goal": "1000",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode(t, w)
	assert.Equal(t, "solar-farm", created["slug"])
	assert.Equal(t, "draft", created["status"])
	id := itoa(uint(created["id"].(float64)))

	w = ts.do(t, http.MethodGet, "/api/v1/projects", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, decode(t, w)["total"])
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/projects/slug/solar-farm", "", nil), http.StatusNotFound)
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/projects?status=draft", "", nil), http.StatusBadRequest)
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/projects?status=bogus", "", nil), http.StatusBadRequest)

	w = ts.do(t, http.MethodGet, "/api/v1/projects/mine", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["total"])

	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/projects/"+id, backerToken, nil), http.StatusNotFound)
	assertProblem(t, ts.do(t, http.MethodPut, "/api/v1/projects/"+id, backerToken, gin.H{"title": "Mine now"}), http.StatusForbidden)

	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/submit", ownerToken, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "submitted", decode(t, w)["status"])
	assertProblem(t, ts.do(t, http.MethodPut, "/api/v1/projects/"+id, ownerToken, gin.H{"title": "Late edit"}), http.StatusForbidden)

	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/contributions", backerToken, gin.H{"amount": "10"}), http.StatusConflict)

	w = ts.do(t, http.MethodPatch, "/api/v1/admin/projects/"+id, adminToken, gin.H{"status": "financing"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	financing := decode(t, w)
	assert.Equal(t, "financing", financing["status"])
	assert.NotNil(t, financing["financing_start"])

	w = ts.do(t, http.MethodGet, "/api/v1/projects/slug/solar-farm", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/contributions", backerToken, gin.H{"amount": "250"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 25, decode(t, w)["progress"])

	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/projects/"+id+"/contributions", backerToken, gin.H{"amount": "-5"}), http.StatusBadRequest)

	w = ts.do(t, http.MethodDelete, "/api/v1/admin/projects/"+id, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assertProblem(t, ts.do(t, http.MethodGet, "/api/v1/admin/projects/"+id, adminToken, nil), http.StatusNotFound)
}

func TestAuthRoutesAreRateLimited(t *testing.T) {
	ts := newTestServer(t, ratelimit.NewLocalLimiter(1, time.Minute))
	body := gin.H{"email": "ghost@example.com", "password": "whatever1"}

	assertProblem(t, ts.do(t, http.MethodPost, "/api/v1/auth/login", "", body), http.StatusUnauthorized)
	w := ts.do(t, http.MethodPost, "/api/v1/auth/login", "", body)
	assertProblem(t, w, http.StatusTooManyRequests)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	// buckets are per route
	w = ts.do(t, http.MethodPost, "/api/v1/auth/magic-link", "", gin.H{"email": "ghost@example.com"})
	assert.Equal(t, http.StatusOK, w.Code)
}
