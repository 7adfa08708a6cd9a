package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/internal/profile"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// SecurityHandler exposes the unlock flow: status, PIN management,
// authenticator enrollment, challenges, and recovery codes.
type SecurityHandler struct {
	db   *gorm.DB
	flow *iauth.FlowService
}

func NewSecurityHandler(db *gorm.DB, flow *iauth.FlowService) (*SecurityHandler, error) {
	if db == nil {
		return nil, stderrors.New("security handler: db is required")
	}
	if flow == nil {
		return nil, stderrors.New("security handler: flow service is required")
	}
	return &SecurityHandler{db: db, flow: flow}, nil
}

func (h *SecurityHandler) seedProfile(c *gin.Context) (profile.SecurityProfile, bool) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return profile.SecurityProfile{}, false
	}

	var user models.User
	if err := h.db.WithContext(requestContext(c)).Take(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, errors.ErrNotFound)
		return profile.SecurityProfile{}, false
	}

	return profile.SecurityProfile{
		UserID:      user.ID,
		Email:       user.Email,
		DisplayName: user.DisplayName,
	}, true
}

// GET /api/security/status
func (h *SecurityHandler) Status(c *gin.Context) {
	seed, ok := h.seedProfile(c)
	if !ok {
		return
	}

	status, err := h.flow.Resolve(requestContext(c), seed, currentDeviceID(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{
		"state":              status.State,
		"pin_enabled":        status.PinEnabled,
		"two_factor_enabled": status.Profile.TwoFactorEnabled,
	}
	if status.Grant != nil {
		payload["grant_expires_at"] = status.Grant.ExpiresAt
	}
	response.Success(c, payload)
}

type setPinRequest struct {
	Pin string `json:"pin" validate:"required,len=6,numeric"`
}

// POST /api/security/pin
func (h *SecurityHandler) SetPin(c *gin.Context) {
	var req setPinRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if _, ok := h.seedProfile(c); !ok {
		return
	}

	if err := h.flow.SetPin(requestContext(c), currentUserID(c), req.Pin); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// POST /api/security/enroll/start
func (h *SecurityHandler) StartEnrollment(c *gin.Context) {
	seed, ok := h.seedProfile(c)
	if !ok {
		return
	}

	ticket, err := h.flow.StartEnrollment(requestContext(c), seed.UserID, seed.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	// QRPNG serialises as base64; clients render it inline.
	response.Success(c, ticket)
}

// GET /api/security/enroll/qr
func (h *SecurityHandler) EnrollmentQR(c *gin.Context) {
	seed, ok := h.seedProfile(c)
	if !ok {
		return
	}

	ticket, err := h.flow.PendingTicket(seed.UserID, seed.Email)
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "image/png", ticket.QRPNG)
}

// POST /api/security/enroll/cancel
func (h *SecurityHandler) CancelEnrollment(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.flow.CancelEnrollment(userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// GET /api/security/recovery/download
//
// Serves the plaintext batch exactly once, right after enrollment or
// regeneration minted it.
func (h *SecurityHandler) DownloadRecoveryCodes(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	codes, ok := h.flow.TakeRecoveryCodes(userID)
	if !ok {
		response.Error(c, errors.New("auth.no_codes_pending", "No recovery codes awaiting download", 404))
		return
	}

	c.Header("Content-Disposition", `attachment; filename=finfortress-recovery-codes.txt`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(strings.Join(codes, "\n")+"\n"))
}

type confirmEnrollmentRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/security/enroll/confirm
func (h *SecurityHandler) ConfirmEnrollment(c *gin.Context) {
	var req confirmEnrollmentRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.flow.ConfirmEnrollment(requestContext(c), currentUserID(c), currentDeviceID(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, result)
}

type challengeRequest struct {
	Pin  string `json:"pin" validate:"required"`
	Code string `json:"code" validate:"required"`
}

// POST /api/security/challenge
func (h *SecurityHandler) VerifyChallenge(c *gin.Context) {
	var req challengeRequest
	if !bindAndValidate(c, &req) {
		return
	}

	grant, err := h.flow.VerifyChallenge(requestContext(c), currentUserID(c), currentDeviceID(c), req.Pin, req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"grant": grant})
}

type regenerateRequest struct {
	Code string `json:"code" validate:"required,len=6,numeric"`
}

// POST /api/security/recovery/regenerate
func (h *SecurityHandler) RegenerateRecoveryCodes(c *gin.Context) {
	var req regenerateRequest
	if !bindAndValidate(c, &req) {
		return
	}

	codes, err := h.flow.RegenerateRecoveryCodes(requestContext(c), currentUserID(c), req.Code)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, gin.H{"recovery_codes": codes})
}

// POST /api/security/lock
func (h *SecurityHandler) Lock(c *gin.Context) {
	deviceID := currentDeviceID(c)
	if deviceID == "" {
		response.Error(c, errors.NewBadRequest("device is not known"))
		return
	}

	if err := h.flow.Lock(requestContext(c), currentUserID(c), deviceID); err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.NoContent(c)
}
