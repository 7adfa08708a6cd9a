package handlers

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/providers"
	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/internal/profile"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/metrics"
	"github.com/nwaqas/finfortress/pkg/response"
)

// AuthHandler manages registration, login, refresh, and logout. Login also
// resolves the unlock flow so the client learns in one round trip whether
// the device must enroll or verify a second factor.
type AuthHandler struct {
	db       *gorm.DB
	local    *providers.LocalProvider
	sessions *iauth.SessionService
	flow     *iauth.FlowService
}

func NewAuthHandler(db *gorm.DB, local *providers.LocalProvider, sessions *iauth.SessionService, flow *iauth.FlowService) (*AuthHandler, error) {
	if db == nil {
		return nil, stderrors.New("auth handler: db is required")
	}
	if local == nil {
		return nil, stderrors.New("auth handler: local provider is required")
	}
	if sessions == nil {
		return nil, stderrors.New("auth handler: session service is required")
	}
	if flow == nil {
		return nil, stderrors.New("auth handler: flow service is required")
	}
	return &AuthHandler{db: db, local: local, sessions: sessions, flow: flow}, nil
}

type registerRequest struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	DisplayName string `json:"display_name" validate:"max=120"`
	Currency    string `json:"currency" validate:"omitempty,len=3"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	DeviceID string `json:"device_id" validate:"required"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func userPayload(user *models.User) gin.H {
	return gin.H{
		"id":           user.ID,
		"email":        user.Email,
		"display_name": user.DisplayName,
		"currency":     user.Currency,
		"is_active":    user.IsActive,
	}
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, err := h.local.Register(providers.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
		Currency:    req.Currency,
	})
	if stderrors.Is(err, providers.ErrEmailTaken) {
		response.Error(c, errors.ErrConflict)
		return
	}
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	response.Created(c, userPayload(user))
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}
	deviceID := strings.TrimSpace(req.DeviceID)

	user, err := h.local.Authenticate(providers.AuthenticateInput{
		Email:     req.Email,
		Password:  req.Password,
		IPAddress: c.ClientIP(),
	})
	if err != nil {
		// Normalise auth errors to 401
		metrics.RecordAuthAttempt(false)
		response.Error(c, errors.ErrInvalidCredentials)
		return
	}

	pair, _, err := h.sessions.CreateSession(user.ID, iauth.SessionMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		DeviceID:  deviceID,
	})
	if err != nil {
		metrics.RecordAuthAttempt(false)
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}

	// Password success alone never unlocks the ledger: the flow decides
	// whether this device must enroll or answer a challenge.
	status, err := h.flow.Resolve(requestContext(c), profile.SecurityProfile{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, deviceID)
	if err != nil {
		metrics.RecordAuthAttempt(false)
		response.Error(c, err)
		return
	}

	metrics.RecordAuthAttempt(true)

	response.Success(c, gin.H{
		"tokens": tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken},
		"user":   userPayload(user),
		"unlock": gin.H{
			"state":       status.State,
			"pin_enabled": status.PinEnabled,
		},
	})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// POST /api/auth/refresh
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if !bindAndValidate(c, &req) {
		return
	}

	pair, _, err := h.sessions.RefreshSession(strings.TrimSpace(req.RefreshToken))
	if err != nil {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	response.Success(c, tokenResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	if sessionID := currentSessionID(c); sessionID != "" {
		if err := h.sessions.RevokeSession(sessionID); err != nil && !stderrors.Is(err, iauth.ErrSessionNotFound) {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			return
		}
	}
	if deviceID := currentDeviceID(c); deviceID != "" {
		// Logging out also drops the device's unlock grant.
		_ = h.flow.Lock(requestContext(c), currentUserID(c), deviceID)
	}
	response.NoContent(c)
}

// GET /api/auth/me
func (h *AuthHandler) Me(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var user models.User
	if err := h.db.WithContext(requestContext(c)).Take(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, errors.ErrNotFound)
		return
	}

	response.Success(c, userPayload(&user))
}
