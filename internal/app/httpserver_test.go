package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Spok95/mini-hemis/internal/academic"
	"github.com/Spok95/mini-hemis/internal/models"
)

const secret = "s3cret"

func newTestRouter(t *testing.T, svc APIService, ping func(context.Context) error) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	return NewRouter(HTTPConfig{BotSecret: secret, CORSOrigins: []string{"*"}}, svc, ping, nil)
}

func do(r http.Handler, method, path, body string, withSecret bool) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if withSecret {
		req.Header.Set(headerBotSecret, secret)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r := newTestRouter(t, newFakeService(), func(context.Context) error { return nil })
	w := do(r, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Header().Get(headerRequestID))

	r = newTestRouter(t, newFakeService(), func(context.Context) error { return errors.New("conn refused") })
	w = do(r, http.MethodGet, "/healthz", "", false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	r := newTestRouter(t, newFakeService(), nil)
	w := do(r, http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "minihemis_")
}

func TestAPI_RequiresSecret(t *testing.T) {
	r := newTestRouter(t, newFakeService(), nil)
	w := do(r, http.MethodGet, "/api/bot/subscribers", "", false)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/bot/subscribers", nil)
	req.Header.Set(headerBotSecret, "wrong")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_EmptySecretDeniesAll(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := NewRouter(HTTPConfig{}, newFakeService(), nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/api/bot/subscribers", nil)
	req.Header.Set(headerBotSecret, "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAPI_Login(t *testing.T) {
	r := newTestRouter(t, newFakeService(), nil)

	w := do(r, http.MethodPost, "/api/auth/login", `{"login":"st-1","password":"pw"}`, true)
	require.Equal(t, http.StatusOK, w.Code)
	var resp identityResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "st-1", resp.Identity.Login)
	assert.Equal(t, "Karimov Aziz", resp.Profile.FullName)
	assert.NotContains(t, w.Body.String(), `"pw"`)

	w = do(r, http.MethodPost, "/api/auth/login", `{"login":"st-1","password":"bad"}`, true)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), academic.MsgAuthRequired)

	w = do(r, http.MethodPost, "/api/auth/login", `{"login":"st-1"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_IdentityRoutes(t *testing.T) {
	r := newTestRouter(t, newFakeService(), nil)

	w := do(r, http.MethodGet, "/api/identities/st-1/schedule", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var entries []models.ScheduleEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &entries))
	assert.Len(t, entries, 2)
	assert.Contains(t, w.Body.String(), `"dayOfWeek":1`)

	w = do(r, http.MethodGet, "/api/identities/st-1/profile", "", true)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/identities/ghost/schedule", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodGet, "/api/identities/down/schedule", "", true)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Contains(t, w.Body.String(), academic.MsgUpstreamDown)
}

func TestAPI_BotRoutes(t *testing.T) {
	svc := newFakeService()
	r := newTestRouter(t, svc, nil)

	w := do(r, http.MethodGet, "/api/bot/subscribers", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	w = do(r, http.MethodPost, "/api/bot/link-account", `{"login":"st-1","password":"pw","chatId":42}`, true)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/api/bot/subscribers", "", true)
	assert.JSONEq(t, `[42]`, w.Body.String())

	w = do(r, http.MethodGet, "/api/bot/schedule/42", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Math")

	w = do(r, http.MethodGet, "/api/bot/schedule/abc", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodGet, "/api/bot/schedule/7", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/api/bot/link-account", `{"login":"st-1","password":"pw"}`, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestID_Propagated(t *testing.T) {
	r := newTestRouter(t, newFakeService(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(headerRequestID, "req-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-1", w.Header().Get(headerRequestID))
}
