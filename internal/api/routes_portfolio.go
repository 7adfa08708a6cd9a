package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/handlers"
	"github.com/nwaqas/finfortress/internal/services"
)

func registerPortfolioRoutes(vaulted *gin.RouterGroup, assets *services.AssetService, loans *services.LoanService) error {
	assetHandler, err := handlers.NewAssetHandler(assets)
	if err != nil {
		return err
	}
	loanHandler, err := handlers.NewLoanHandler(loans)
	if err != nil {
		return err
	}

	assetGroup := vaulted.Group("/assets")
	{
		assetGroup.POST("", assetHandler.Create)
		assetGroup.GET("", assetHandler.List)
		assetGroup.GET("/summary", assetHandler.Summary)
		assetGroup.GET("/:id", assetHandler.Get)
		assetGroup.PATCH("/:id", assetHandler.Update)
		assetGroup.DELETE("/:id", assetHandler.Delete)
	}

	loanGroup := vaulted.Group("/loans")
	{
		loanGroup.POST("", loanHandler.Create)
		loanGroup.GET("", loanHandler.List)
		loanGroup.GET("/summary", loanHandler.Summary)
		loanGroup.GET("/:id", loanHandler.Get)
		loanGroup.POST("/:id/payments", loanHandler.RecordPayment)
		loanGroup.DELETE("/:id", loanHandler.Delete)
	}

	return nil
}
