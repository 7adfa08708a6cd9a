package api

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/handlers"
	"github.com/nwaqas/finfortress/internal/services"
)

func registerReportRoutes(vaulted *gin.RouterGroup, reports *services.ReportService, assets *services.AssetService, loans *services.LoanService, funds *services.FundService) error {
	reportHandler, err := handlers.NewReportHandler(reports, assets, loans, funds)
	if err != nil {
		return err
	}

	vaulted.GET("/dashboard", reportHandler.Dashboard)

	reportGroup := vaulted.Group("/reports")
	{
		reportGroup.GET("/monthly", reportHandler.Monthly)
		reportGroup.GET("/export", reportHandler.Export)
	}

	return nil
}
