package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(r *gin.Engine, method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Events(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, deps := newTestHandler(t)
	r := NewRouter(h)

	w := serve(r, http.MethodPost, "/listening", `{"token":"verify-me","challenge":"abc123","type":"url_verification"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc123", w.Body.String())
	assert.Empty(t, w.Header().Get("X-Slack-No-Retry"))

	w = serve(r, http.MethodPost, "/listening", `{"token":"nope","event":{"type":"message","user":"U1","text":"help"}}`)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-Slack-No-Retry"))

	w = serve(r, http.MethodPost, "/listening", `{"token":"verify-me","team_id":"T1","event":{"type":"message","user":"U1","text":"help"}}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Onboarding Message Sent", w.Body.String())
	assert.Len(t, deps.messenger.posts, 1)

	w = serve(r, http.MethodPost, "/listening", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Install(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandler(t)
	r := NewRouter(h)

	w := serve(r, http.MethodGet, "/install", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "client_id=client-id")
	assert.Contains(t, w.Body.String(), "Add littlebot to your Slack workspace")
}

func TestRouter_Thanks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, deps := newTestHandler(t)
	r := NewRouter(h)

	w := serve(r, http.MethodGet, "/thanks?code=abc", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", deps.installer.code)
	assert.Contains(t, w.Body.String(), "Thanks for installing littlebot!")

	w = serve(r, http.MethodGet, "/thanks", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "Installation failed")

	deps.installer.err = errors.New("invalid_code")
	w = serve(r, http.MethodGet, "/thanks?code=bad", "")
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.NotContains(t, w.Body.String(), "invalid_code")
}

func TestRouter_Healthz(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := newTestHandler(t)

	w := serve(NewRouter(h), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestNewSlackHandler_RequiresToken(t *testing.T) {
	_, err := NewSlackHandler(Options{})
	assert.Error(t, err)
}

func TestLoadWelcome(t *testing.T) {
	w, err := loadWelcome()
	require.NoError(t, err)
	assert.NotEmpty(t, w.Text)
	assert.Contains(t, w.Attachments["pin"].Text, "Pin this message")
	assert.Contains(t, w.Attachments["share"].Text, "Share this Message")
}
