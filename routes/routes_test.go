package routes

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"opsdash/chat"
	"opsdash/config"
	"opsdash/docstore/memstore"
	"opsdash/handlers"
	"opsdash/middleware"
	"opsdash/websocket"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRouter(t *testing.T) (*gin.Engine, *config.Config) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.Config{
		JWTSecret:   "routes-secret",
		StoreDriver: "memory",
		ChatChannel: chat.DefaultChannel,
		CORSOrigins: []string{"http://localhost:3000"},
	}
	store := memstore.New()
	h := handlers.NewAdminChatHandler(
		chat.NewPoster(store, cfg.ChatChannel),
		chat.NewTracker(store),
		chat.NewReader(store, cfg.ChatChannel),
	)
	return SetupRouter(cfg, h, websocket.NewManager()), cfg
}

func TestHealth(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"store":"memory"`)
}

func TestAdminChatRequiresToken(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/admin-chat/messages", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminChatWithToken(t *testing.T) {
	router, cfg := newRouter(t)

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, middleware.Claims{
		AdminID: "admin-1",
		Name:    "Ada",
		Role:    "superadmin",
	}).SignedString([]byte(cfg.JWTSecret))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/admin-chat/messages", strings.NewReader(`{"text":"Rider 12 offline"}`))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"senderName":"Ada"`)
	assert.Contains(t, w.Body.String(), `"senderRole":"superadmin"`)
}

func TestNoRoute(t *testing.T) {
	router, _ := newRouter(t)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/riders", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Endpoint not found")
}
