package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/auditctx"
	iauth "github.com/nwaqas/finfortress/internal/auth"
	"github.com/nwaqas/finfortress/internal/auth/unlock"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

const (
	CtxClaimsKey    = "authClaims"
	CtxUserIDKey    = "userID"
	CtxSessionIDKey = "sessionID"
	CtxDeviceIDKey  = "deviceID"
)

// Auth enforces JWT authentication using the supplied JWT service.
func Auth(jwt *iauth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authz := c.GetHeader("Authorization")
		if len(authz) < 8 || !strings.EqualFold(authz[:7], "Bearer ") {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		token := strings.TrimSpace(authz[7:])
		claims, err := jwt.ValidateAccessToken(token)
		if err != nil {
			// Normalise all validation failures to 401
			c.Header("WWW-Authenticate", "Bearer")
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		c.Set(CtxClaimsKey, claims)
		c.Set(CtxUserIDKey, claims.UserID)
		if claims.SessionID != "" {
			c.Set(CtxSessionIDKey, claims.SessionID)
		}
		if claims.DeviceID != "" {
			c.Set(CtxDeviceIDKey, claims.DeviceID)
		}

		// Propagate the actor so audit trails can attribute changes.
		c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), auditctx.Actor{
			UserID:    claims.UserID,
			DeviceID:  claims.DeviceID,
			IPAddress: c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		}))

		c.Next()
	}
}

// RequireUnlock rejects requests whose device has no current unlock grant.
// It must run after Auth so the user and device are known. A missing or
// expired grant sends the client back through the second-factor challenge.
func RequireUnlock(tracker *unlock.Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetString(CtxUserIDKey)
		deviceID := c.GetString(CtxDeviceIDKey)
		if userID == "" || deviceID == "" {
			response.Error(c, errors.ErrUnlockRequired)
			c.Abort()
			return
		}

		ok, _, err := tracker.Check(c.Request.Context(), userID, deviceID)
		if err != nil || !ok {
			// Grant lookup failures never bypass the challenge.
			response.Error(c, errors.ErrUnlockRequired)
			c.Abort()
			return
		}

		c.Next()
	}
}
