package handlers

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nwaqas/finfortress/internal/services"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// ReportHandler exposes monthly summaries, the dashboard overview, and
// CSV export.
type ReportHandler struct {
	reports *services.ReportService
	assets  *services.AssetService
	loans   *services.LoanService
	funds   *services.FundService
}

func NewReportHandler(reports *services.ReportService, assets *services.AssetService, loans *services.LoanService, funds *services.FundService) (*ReportHandler, error) {
	if reports == nil {
		return nil, stderrors.New("report handler: report service is required")
	}
	if assets == nil || loans == nil || funds == nil {
		return nil, stderrors.New("report handler: asset, loan, and fund services are required")
	}
	return &ReportHandler{reports: reports, assets: assets, loans: loans, funds: funds}, nil
}

func monthOrCurrent(c *gin.Context) string {
	month := strings.TrimSpace(c.Query("month"))
	if month == "" {
		month = time.Now().Format("2006-01")
	}
	return month
}

// GET /api/reports/monthly?month=YYYY-MM
func (h *ReportHandler) Monthly(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	summary, err := h.reports.Monthly(requestContext(c), userID, monthOrCurrent(c))
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}
	response.Success(c, summary)
}

// GET /api/dashboard?month=YYYY-MM
func (h *ReportHandler) Dashboard(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	overview, err := h.reports.Overview(requestContext(c), userID, monthOrCurrent(c), h.assets, h.loans, h.funds)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}
	response.Success(c, overview)
}

// GET /api/reports/export?month=YYYY-MM
func (h *ReportHandler) Export(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	month := monthOrCurrent(c)
	raw, err := h.reports.ExportCSV(requestContext(c), userID, month)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	filename := fmt.Sprintf("transactions-%s.csv", month)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/csv", raw)
}
