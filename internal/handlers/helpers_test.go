package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/mfa"
	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
	"github.com/nwaqas/finfortress/internal/cache"
	"github.com/nwaqas/finfortress/internal/database/testutil"
	"github.com/nwaqas/finfortress/internal/middleware"
	"github.com/nwaqas/finfortress/internal/profile"
	"github.com/nwaqas/finfortress/internal/services"
)

type testEnv struct {
	router   *gin.Engine
	db       *gorm.DB
	jwt      *iauth.JWTService
	flow     *iauth.FlowService
	profiles *profile.MemoryStore
	sessions *iauth.SessionService
	local    *providers.LocalProvider
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)

	jwt, err := iauth.NewJWTService(iauth.JWTConfig{Secret: "test-secret", Issuer: "finfortress"})
	require.NoError(t, err)
	sessions, err := iauth.NewSessionService(db, jwt, iauth.SessionConfig{})
	require.NoError(t, err)
	local, err := providers.NewLocalProvider(db, providers.LocalConfig{})
	require.NoError(t, err)

	profiles := profile.NewMemoryStore()
	tracker, err := unlock.NewTracker(cache.NewMemoryStore())
	require.NoError(t, err)
	flow, err := iauth.NewFlowService(profiles, mfa.NewService(), tracker)
	require.NoError(t, err)

	authHandler, err := NewAuthHandler(db, local, sessions, flow)
	require.NoError(t, err)
	securityHandler, err := NewSecurityHandler(db, flow)
	require.NoError(t, err)

	ledger, err := services.NewLedgerService(db)
	require.NoError(t, err)
	ledgerHandler, err := NewLedgerHandler(db, ledger)
	require.NoError(t, err)

	assets, err := services.NewAssetService(db)
	require.NoError(t, err)
	loans, err := services.NewLoanService(db)
	require.NoError(t, err)
	funds, err := services.NewFundService(db)
	require.NoError(t, err)
	reports, err := services.NewReportService(db)
	require.NoError(t, err)
	reportHandler, err := NewReportHandler(reports, assets, loans, funds)
	require.NoError(t, err)

	r := gin.New()
	r.POST("/api/auth/register", authHandler.Register)
	r.POST("/api/auth/login", authHandler.Login)
	r.POST("/api/auth/refresh", authHandler.Refresh)

	authed := r.Group("/api", middleware.Auth(jwt))
	authed.POST("/auth/logout", authHandler.Logout)
	authed.GET("/auth/me", authHandler.Me)
	authed.GET("/security/status", securityHandler.Status)
	authed.POST("/security/pin", securityHandler.SetPin)
	authed.POST("/security/enroll/start", securityHandler.StartEnrollment)
	authed.GET("/security/enroll/qr", securityHandler.EnrollmentQR)
	authed.POST("/security/enroll/confirm", securityHandler.ConfirmEnrollment)
	authed.POST("/security/enroll/cancel", securityHandler.CancelEnrollment)
	authed.POST("/security/challenge", securityHandler.VerifyChallenge)
	authed.POST("/security/recovery/regenerate", securityHandler.RegenerateRecoveryCodes)
	authed.GET("/security/recovery/download", securityHandler.DownloadRecoveryCodes)
	authed.POST("/security/lock", securityHandler.Lock)

	locked := authed.Group("", middleware.RequireUnlock(tracker))
	locked.POST("/transactions", ledgerHandler.Record)
	locked.POST("/transactions/import", ledgerHandler.Import)
	locked.GET("/transactions", ledgerHandler.List)
	locked.GET("/transactions/:id", ledgerHandler.Get)
	locked.PATCH("/transactions/:id", ledgerHandler.Update)
	locked.DELETE("/transactions/:id", ledgerHandler.Delete)
	locked.GET("/reports/monthly", reportHandler.Monthly)
	locked.GET("/reports/export", reportHandler.Export)
	locked.GET("/dashboard", reportHandler.Dashboard)
	r.GET("/api/catalog", Catalog())

	return &testEnv{
		router:   r,
		db:       db,
		jwt:      jwt,
		flow:     flow,
		profiles: profiles,
		sessions: sessions,
		local:    local,
	}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var envelope struct {
		Success bool                   `json:"success"`
		Data    map[string]interface{} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.True(t, envelope.Success, "expected success envelope, got %s", w.Body.String())
	return envelope.Data
}

// registerAndLogin walks a fresh account through registration and password
// login, returning the access token and the reported unlock state.
func registerAndLogin(t *testing.T, env *testEnv, email, deviceID string) (string, string) {
	t.Helper()

	w := env.do(t, http.MethodPost, "/api/auth/register", "", gin.H{
		"email":    email,
		"password": "correct-horse-9",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = env.do(t, http.MethodPost, "/api/auth/login", "", gin.H{
		"email":     email,
		"password":  "correct-horse-9",
		"device_id": deviceID,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := decodeData(t, w)
	tokens := data["tokens"].(map[string]interface{})
	unlockInfo := data["unlock"].(map[string]interface{})
	return tokens["access_token"].(string), unlockInfo["state"].(string)
}

func codeForSecret(t *testing.T, secret string, at time.Time) string {
	t.Helper()
	code, err := totp.GenerateCodeCustom(secret, at, totp.ValidateOpts{
		Period:    30,
		Skew:      1,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	require.NoError(t, err)
	return code
}
