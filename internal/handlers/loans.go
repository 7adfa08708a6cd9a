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

// LoanHandler exposes loan tracking: money lent out and money borrowed.
type LoanHandler struct {
	loans *services.LoanService
}

func NewLoanHandler(loans *services.LoanService) (*LoanHandler, error) {
	if loans == nil {
		return nil, stderrors.New("loan handler: loan service is required")
	}
	return &LoanHandler{loans: loans}, nil
}

func mapLoanError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, services.ErrLoanNotFound):
		response.Error(c, errors.ErrNotFound)
	case stderrors.Is(err, services.ErrLoanSettled), stderrors.Is(err, services.ErrOverpayment):
		response.Error(c, errors.NewBadRequest(err.Error()))
	default:
		response.Error(c, errors.NewBadRequest(err.Error()))
	}
}

type createLoanRequest struct {
	Counterparty string `json:"counterparty" validate:"required,max=120"`
	Direction    string `json:"direction" validate:"required,oneof=given taken"`
	Principal    string `json:"principal" validate:"required"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
	IssuedAt     string `json:"issued_at"`
	DueAt        string `json:"due_at"`
	Note         string `json:"note" validate:"max=500"`
}

// POST /api/loans
func (h *LoanHandler) Create(c *gin.Context) {
	var req createLoanRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	principal, err := decimal.NewFromString(strings.TrimSpace(req.Principal))
	if err != nil {
		response.Error(c, errors.NewBadRequest("principal must be a decimal number"))
		return
	}

	input := services.CreateLoanInput{
		Counterparty: req.Counterparty,
		Direction:    req.Direction,
		Principal:    principal,
		Currency:     req.Currency,
		Note:         req.Note,
	}
	if strings.TrimSpace(req.IssuedAt) != "" {
		issuedAt, err := time.Parse("2006-01-02", strings.TrimSpace(req.IssuedAt))
		if err != nil {
			response.Error(c, errors.NewBadRequest("issued_at must be YYYY-MM-DD"))
			return
		}
		input.IssuedAt = issuedAt
	}
	if strings.TrimSpace(req.DueAt) != "" {
		dueAt, err := time.Parse("2006-01-02", strings.TrimSpace(req.DueAt))
		if err != nil {
			response.Error(c, errors.NewBadRequest("due_at must be YYYY-MM-DD"))
			return
		}
		input.DueAt = &dueAt
	}

	loan, err := h.loans.Create(requestContext(c), userID, input)
	if err != nil {
		mapLoanError(c, err)
		return
	}
	response.Created(c, loan)
}

// GET /api/loans
func (h *LoanHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	loans, err := h.loans.List(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, loans)
}

// GET /api/loans/summary
func (h *LoanHandler) Summary(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	summary, err := h.loans.Summary(requestContext(c), userID)
	if err != nil {
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
		return
	}
	response.Success(c, summary)
}

// GET /api/loans/:id
func (h *LoanHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	loan, err := h.loans.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		mapLoanError(c, err)
		return
	}
	response.Success(c, loan)
}

type recordPaymentRequest struct {
	Amount string `json:"amount" validate:"required"`
	Note   string `json:"note" validate:"max=500"`
}

// POST /api/loans/:id/payments
func (h *LoanHandler) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		response.Error(c, errors.NewBadRequest("amount must be a decimal number"))
		return
	}

	loan, err := h.loans.RecordPayment(requestContext(c), userID, c.Param("id"), amount, req.Note)
	if err != nil {
		mapLoanError(c, err)
		return
	}
	response.Success(c, loan)
}

// DELETE /api/loans/:id
func (h *LoanHandler) Delete(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	if err := h.loans.Delete(requestContext(c), userID, c.Param("id")); err != nil {
		mapLoanError(c, err)
		return
	}
	response.NoContent(c)
}

