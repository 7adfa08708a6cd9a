package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/security"
	"github.com/nwaqas/finfortress/pkg/response"
)

// Posture reports the deployment's security configuration checks.
func Posture(svc *security.PostureService) gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, svc.Run(requestContext(c)))
	}
}
