package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/handlers"
)

func registerAuthRoutes(engine *gin.Engine, authed *gin.RouterGroup, deps Deps) error {
	authHandler, err := handlers.NewAuthHandler(deps.DB, deps.Local, deps.Sessions, deps.Flow)
	if err != nil {
		return err
	}

	auth := engine.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
	}

	if deps.OIDC != nil && deps.SSO != nil && deps.StateCodec != nil {
		ssoHandler, err := handlers.NewSSOHandler(deps.OIDC, deps.SSO, deps.StateCodec)
		if err != nil {
			return err
		}
		auth.GET("/providers/oidc/login", ssoHandler.Begin)
		auth.GET("/providers/oidc/callback", ssoHandler.Callback)
	}

	authed.GET("/auth/me", authHandler.Me)
	authed.POST("/auth/logout", authHandler.Logout)

	return nil
}
