package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/handlers"
	"github.com/nwaqas/finfortress/internal/security"
)

func registerSecurityRoutes(authed *gin.RouterGroup, deps Deps, challengeLimit gin.HandlerFunc) error {
	securityHandler, err := handlers.NewSecurityHandler(deps.DB, deps.Flow)
	if err != nil {
		return err
	}

	posture := security.NewPostureService(deps.DB, deps.JWT, deps.Config)

	security := authed.Group("/security")
	{
		security.GET("/status", securityHandler.Status)
		security.POST("/pin", securityHandler.SetPin)
		security.POST("/enroll/start", securityHandler.StartEnrollment)
		security.GET("/enroll/qr", securityHandler.EnrollmentQR)
		security.POST("/enroll/confirm", challengeLimit, securityHandler.ConfirmEnrollment)
		security.POST("/enroll/cancel", securityHandler.CancelEnrollment)
		security.POST("/challenge", challengeLimit, securityHandler.VerifyChallenge)
		security.POST("/recovery/regenerate", challengeLimit, securityHandler.RegenerateRecoveryCodes)
		security.GET("/recovery/download", securityHandler.DownloadRecoveryCodes)
		security.POST("/lock", securityHandler.Lock)
		security.GET("/posture", handlers.Posture(posture))
	}

	return nil
}
