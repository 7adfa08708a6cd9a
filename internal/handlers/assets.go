package handlers

import (
	stderrors "errors"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/nwaqas/finfortress/internal/services"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// AssetHandler exposes the asset register.
type AssetHandler struct {
	assets *services.AssetService
}

func NewAssetHandler(assets *services.AssetService) (*AssetHandler, error) {
	if assets == nil {
		return nil, stderrors.New("asset handler: asset service is required")
	}
	return &AssetHandler{assets: assets}, nil
}

func mapAssetError(c *gin.Context, err error) {
	if stderrors.Is(err, services.ErrAssetNotFound) {
		response.Error(c, errors.ErrNotFound)
		return
	}
	response.Error(c, errors.NewBadRequest(err.Error()))
}

type assetRequest struct {
	Name          string `json:"name" validate:"required,max=120"`
	Category      string `json:"category" validate:"max=60"`
	PurchaseValue string `json:"purchase_value" validate:"required"`
	CurrentValue  string `json:"current_value"`
	Currency      string `json:"currency" validate:"omitempty,len=3"`
	AcquiredAt    string `json:"acquired_at"`
	Note          string `json:"note" validate:"max=500"`
}

func (r assetRequest) toInput() (services.AssetInput, error) {
	purchase, err := decimal.NewFromString(strings.TrimSpace(r.PurchaseValue))
	if err != nil {
		return services.AssetInput{}, stderrors.New("purchase_value must be a decimal number")
	}

	input := services.AssetInput{
		Name:          r.Name,
		Category:      r.Category,
		PurchaseValue: purchase,
		Currency:      r.Currency,
		Note:          r.Note,
	}
	if strings.TrimSpace(r.CurrentValue) != "" {
		current, err := decimal.NewFromString(strings.TrimSpace(r.CurrentValue))
		if err != nil {
			return services.AssetInput{}, stderrors.New("current_value must be a decimal number")
		}
		input.CurrentValue = current
	}
	if strings.TrimSpace(r.AcquiredAt) != "" {
		at, err := time.Parse("2006-01-02", strings.TrimSpace(r.AcquiredAt))
		if err != nil {
			return services.AssetInput{}, stderrors.New("acquired_at must be YYYY-MM-DD")
		}
		input.AcquiredAt = &at
	}
	return input, nil
}

// POST /api/assets
func (h *AssetHandler) Create(c *gin.Context) {
	var req assetRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	input, err := req.toInput()
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	asset, err := h.assets.Create(requestContext(c), userID, input)
	if err != nil {
		mapAssetError(c, err)
		return
	}
	response.Created(c, asset)
}

// GET /api/assets
func (h *AssetHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	assets, err := h.assets.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, assets)
}

// GET /api/assets/summary
func (h *AssetHandler) Summary(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	summary, err := h.assets.Summary(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, summary)
}

// GET /api/assets/:id
func (h *AssetHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	asset, err := h.assets.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		mapAssetError(c, err)
		return
	}
	response.Success(c, asset)
}

type updateAssetRequest struct {
	Name         *string `json:"name" validate:"omitempty,max=120"`
	Category     *string `json:"category" validate:"omitempty,max=60"`
	CurrentValue *string `json:"current_value"`
	Note         *string `json:"note" validate:"omitempty,max=500"`
}

// PATCH /api/assets/:id
func (h *AssetHandler) Update(c *gin.Context) {
	var req updateAssetRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	input := services.UpdateAssetInput{
		Name:     req.Name,
		Category: req.Category,
		Note:     req.Note,
	}
	if req.CurrentValue != nil {
		current, err := decimal.NewFromString(strings.TrimSpace(*req.CurrentValue))
		if err != nil {
			response.Error(c, errors.NewBadRequest("current_value must be a decimal number"))
			return
		}
		input.CurrentValue = &current
	}

	asset, err := h.assets.Update(requestContext(c), userID, c.Param("id"), input)
	if err != nil {
		mapAssetError(c, err)
		return
	}
	response.Success(c, asset)
}

// DELETE /api/assets/:id
func (h *AssetHandler) Delete(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.assets.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		mapAssetError(c, err)
		return
	}
	response.NoContent(c)
}
