package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/services"
	"github.com/nwaqas/finfortress/pkg/response"
)

// Catalog serves the static pick-lists the client uses to build entry
// forms: flow types, heads per flow, account suggestions, and fund names.
func Catalog() gin.HandlerFunc {
	return func(c *gin.Context) {
		response.Success(c, gin.H{
			"flow_types":       services.FlowTypes,
			"flow_heads":       services.FlowHeads,
			"accounts":         services.AccountOptions,
			"fund_suggestions": services.BudgetFundSuggestions,
		})
	}
}
