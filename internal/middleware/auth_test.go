package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
	"github.com/nwaqas/finfortress/internal/cache"
)

func newAuthTestRouter(t *testing.T, tracker *unlock.Tracker) (*gin.Engine, *iauth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "finfortress"})
	require.NoError(t, err)

	r := gin.New()
	group := r.Group("/api", Auth(jwt))
	group.GET("/open", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user": c.GetString(CtxUserIDKey), "device": c.GetString(CtxDeviceIDKey)})
	})
	if tracker != nil {
		locked := group.Group("", RequireUnlock(tracker))
		locked.GET("/locked", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"ok": true})
		})
	}
	return r, jwt
}

func issueToken(t *testing.T, jwt *iauth.JWTService, userID, deviceID string) string {
	t.Helper()
	token, err := jwt.GenerateAccessToken(iauth.AccessTokenInput{UserID: userID, SessionID: "sess-1", DeviceID: deviceID})
	require.NoError(t, err)
	return token
}

func TestAuthRejectsMissingHeader(t *testing.T) {
	r, _ := newAuthTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/open", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRejectsGarbageToken(t *testing.T) {
	r, _ := newAuthTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/open", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Bearer", w.Header().Get("WWW-Authenticate"))
}

func TestAuthPropagatesClaims(t *testing.T) {
	r, jwt := newAuthTestRouter(t, nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/open", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwt, "user-1", "device-1"))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "user-1")
	require.Contains(t, w.Body.String(), "device-1")
}

func TestRequireUnlockBlocksWithoutGrant(t *testing.T) {
	tracker, err := unlock.NewTracker(cache.NewMemoryStore())
	require.NoError(t, err)
	r, jwt := newAuthTestRouter(t, tracker)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/locked", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwt, "user-1", "device-1"))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "auth.unlock_required")
}

func TestRequireUnlockPassesWithGrant(t *testing.T) {
	tracker, err := unlock.NewTracker(cache.NewMemoryStore())
	require.NoError(t, err)
	r, jwt := newAuthTestRouter(t, tracker)

	_, err = tracker.Issue(context.Background(), "user-1", "device-1")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/locked", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwt, "user-1", "device-1"))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireUnlockRejectsOtherDevicesGrant(t *testing.T) {
	tracker, err := unlock.NewTracker(cache.NewMemoryStore())
	require.NoError(t, err)
	r, jwt := newAuthTestRouter(t, tracker)

	_, err = tracker.Issue(context.Background(), "user-1", "device-2")
	require.NoError(t, err)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/locked", nil)
	req.Header.Set("Authorization", "Bearer "+issueToken(t, jwt, "user-1", "device-1"))
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

