package api

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/handlers"
	"github.com/nwaqas/finfortress/internal/services"
)

func registerLedgerRoutes(vaulted *gin.RouterGroup, db *gorm.DB, ledger *services.LedgerService) error {
	ledgerHandler, err := handlers.NewLedgerHandler(db, ledger)
	if err != nil {
		return err
	}

	transactions := vaulted.Group("/transactions")
	{
		transactions.POST("", ledgerHandler.Record)
		transactions.POST("/import", ledgerHandler.Import)
		transactions.GET("", ledgerHandler.List)
		transactions.GET("/:id", ledgerHandler.Get)
		transactions.PATCH("/:id", ledgerHandler.Update)
		transactions.DELETE("/:id", ledgerHandler.Delete)
	}

	return nil
}
