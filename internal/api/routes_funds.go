package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/handlers"
	"github.com/nwaqas/finfortress/internal/services"
)

func registerFundRoutes(vaulted *gin.RouterGroup, funds *services.FundService) error {
	fundHandler, err := handlers.NewFundHandler(funds)
	if err != nil {
		return err
	}

	fundGroup := vaulted.Group("/funds")
	{
		fundGroup.POST("", fundHandler.Create)
		fundGroup.GET("", fundHandler.List)
		fundGroup.POST("/seed", fundHandler.Seed)
		fundGroup.GET("/utilisation", fundHandler.Utilisation)
		fundGroup.PATCH("/:id", fundHandler.Update)
		fundGroup.DELETE("/:id", fundHandler.Delete)
	}

	return nil
}
