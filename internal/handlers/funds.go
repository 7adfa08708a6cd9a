package handlers

import (
	stderrors "errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nwaqas/finfortress/internal/services"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// FundHandler exposes budget funds and their monthly utilisation.
type FundHandler struct {
	funds *services.FundService
}

func NewFundHandler(funds *services.FundService) (*FundHandler, error) {
	if funds == nil {
		return nil, stderrors.New("fund handler: fund service is required")
	}
	return &FundHandler{funds: funds}, nil
}

func mapFundError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, services.ErrFundNotFound):
		response.Error(c, errors.ErrNotFound)
	case stderrors.Is(err, services.ErrFundExists):
		response.Error(c, errors.ErrConflict)
	default:
		response.Error(c, errors.NewBadRequest(err.Error()))
	}
}

type fundRequest struct {
	Name       string `json:"name" validate:"required,max=120"`
	Head       string `json:"head" validate:"max=120"`
	MonthlyCap string `json:"monthly_cap"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
}

// POST /api/funds
func (h *FundHandler) Create(c *gin.Context) {
	var req fundRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	input := services.CreateFundInput{
		Name:     req.Name,
		Head:     req.Head,
		Currency: req.Currency,
	}
	if strings.TrimSpace(req.MonthlyCap) != "" {
		capValue, err := decimal.NewFromString(strings.TrimSpace(req.MonthlyCap))
		if err != nil {
			response.Error(c, errors.NewBadRequest("monthly_cap must be a decimal number"))
			return
		}
		input.MonthlyCap = capValue
	}

	fund, err := h.funds.Create(requestContext(c), userID, input)
	if err != nil {
		mapFundError(c, err)
		return
	}
	response.Created(c, fund)
}

// GET /api/funds
func (h *FundHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	funds, err := h.funds.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, funds)
}

// POST /api/funds/seed
func (h *FundHandler) Seed(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	funds, err := h.funds.SeedDefaults(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, funds)
}

// GET /api/funds/utilisation?month=YYYY-MM
func (h *FundHandler) Utilisation(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	month := strings.TrimSpace(c.Query("month"))
	usage, err := h.funds.Utilisation(requestContext(c), userID, month)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}
	response.Success(c, usage)
}

type updateFundRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	Head       *string `json:"head" validate:"omitempty,max=120"`
	MonthlyCap *string `json:"monthly_cap"`
	Archived   *bool   `json:"archived"`
}

// PATCH /api/funds/:id
func (h *FundHandler) Update(c *gin.Context) {
	var req updateFundRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	input := services.UpdateFundInput{
		Name:     req.Name,
		Head:     req.Head,
		Archived: req.Archived,
	}
	if req.MonthlyCap != nil {
		capValue, err := decimal.NewFromString(strings.TrimSpace(*req.MonthlyCap))
		if err != nil {
			response.Error(c, errors.NewBadRequest("monthly_cap must be a decimal number"))
			return
		}
		input.MonthlyCap = &capValue
	}

	fund, err := h.funds.Update(requestContext(c), userID, c.Param("id"), input)
	if err != nil {
		mapFundError(c, err)
		return
	}
	response.Success(c, fund)
}

// DELETE /api/funds/:id
func (h *FundHandler) Delete(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.funds.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		mapFundError(c, err)
		return
	}
	response.NoContent(c)
}
