package handlers

import (
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/internal/services"
	"github.com/nwaqas/finfortress/pkg/errors"
	"github.com/nwaqas/finfortress/pkg/response"
)

// LedgerHandler exposes transaction recording, listing, and corrections.
type LedgerHandler struct {
	db     *gorm.DB
	ledger *services.LedgerService
}

func NewLedgerHandler(db *gorm.DB, ledger *services.LedgerService) (*LedgerHandler, error) {
	if db == nil {
		return nil, stderrors.New("ledger handler: db is required")
	}
	if ledger == nil {
		return nil, stderrors.New("ledger handler: ledger service is required")
	}
	return &LedgerHandler{db: db, ledger: ledger}, nil
}

func (h *LedgerHandler) loadUser(c *gin.Context) (*models.User, bool) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return nil, false
	}

	var user models.User
	if err := h.db.WithContext(requestContext(c)).Take(&user, "id = ?", userID).Error; err != nil {
		response.Error(c, errors.ErrNotFound)
		return nil, false
	}
	return &user, true
}

func mapLedgerError(c *gin.Context, err error) {
	switch {
	case stderrors.Is(err, services.ErrTransactionNotFound):
		response.Error(c, errors.ErrNotFound)
	case stderrors.Is(err, services.ErrInvalidFlowType), stderrors.Is(err, services.ErrInvalidAmount):
		response.Error(c, errors.NewBadRequest(err.Error()))
	default:
		response.Error(c, errors.ErrInternalServer.WithInternal(err))
	}
}

type recordTransactionRequest struct {
	FlowType   string `json:"flow_type" validate:"required"`
	Head       string `json:"head" validate:"required,max=120"`
	Account    string `json:"account" validate:"required,max=120"`
	Amount     string `json:"amount" validate:"required"`
	Currency   string `json:"currency" validate:"omitempty,len=3"`
	Note       string `json:"note" validate:"max=500"`
	OccurredAt string `json:"occurred_at" validate:"required"`
}

func parseAmount(raw string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.TrimSpace(raw))
}

func parseOccurredAt(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

// POST /api/transactions
func (h *LedgerHandler) Record(c *gin.Context) {
	var req recordTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		response.Error(c, errors.NewBadRequest("amount must be a decimal number"))
		return
	}
	occurredAt, err := parseOccurredAt(req.OccurredAt)
	if err != nil {
		response.Error(c, errors.NewBadRequest("occurred_at must be RFC3339 or YYYY-MM-DD"))
		return
	}

	entry, err := h.ledger.Record(requestContext(c), user, services.RecordInput{
		FlowType:   req.FlowType,
		Head:       req.Head,
		Account:    req.Account,
		Amount:     amount,
		Currency:   req.Currency,
		Note:       req.Note,
		OccurredAt: occurredAt,
	})
	if err != nil {
		mapLedgerError(c, err)
		return
	}

	response.Created(c, entry)
}

type importTransactionsRequest struct {
	Rows []recordTransactionRequest `json:"rows" validate:"required,min=1,max=500,dive"`
}

// POST /api/transactions/import
func (h *LedgerHandler) Import(c *gin.Context) {
	var req importTransactionsRequest
	if !bindAndValidate(c, &req) {
		return
	}

	user, ok := h.loadUser(c)
	if !ok {
		return
	}

	inputs := make([]services.RecordInput, 0, len(req.Rows))
	for i, row := range req.Rows {
		amount, err := parseAmount(row.Amount)
		if err != nil {
			response.Error(c, errors.NewBadRequest(fmt.Sprintf("row %d: amount must be a decimal number", i+1)))
			return
		}
		occurredAt, err := parseOccurredAt(row.OccurredAt)
		if err != nil {
			response.Error(c, errors.NewBadRequest(fmt.Sprintf("row %d: occurred_at must be RFC3339 or YYYY-MM-DD", i+1)))
			return
		}
		inputs = append(inputs, services.RecordInput{
			FlowType:   row.FlowType,
			Head:       row.Head,
			Account:    row.Account,
			Amount:     amount,
			Currency:   row.Currency,
			Note:       row.Note,
			OccurredAt: occurredAt,
		})
	}

	entries, err := h.ledger.Import(requestContext(c), user, inputs)
	if err != nil {
		mapLedgerError(c, err)
		return
	}

	response.Created(c, gin.H{
		"imported":     len(entries),
		"transactions": entries,
	})
}

// GET /api/transactions
func (h *LedgerHandler) List(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	opts := services.ListOptions{
		Month:    strings.TrimSpace(c.Query("month")),
		FlowType: strings.TrimSpace(c.Query("flow_type")),
		Head:     strings.TrimSpace(c.Query("head")),
		Account:  strings.TrimSpace(c.Query("account")),
		Page:     parseIntQuery(c, "page", 1),
		PerPage:  parseIntQuery(c, "per_page", 50),
	}

	entries, total, err := h.ledger.List(requestContext(c), userID, opts)
	if err != nil {
		response.Error(c, errors.NewBadRequest(err.Error()))
		return
	}

	response.Paginated(c, entries, opts.Page, opts.PerPage, total)
}

// GET /api/transactions/:id
func (h *LedgerHandler) Get(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	entry, err := h.ledger.Get(requestContext(c), userID, c.Param("id"))
	if err != nil {
		mapLedgerError(c, err)
		return
	}
	response.Success(c, entry)
}

type updateTransactionRequest struct {
	Head       *string `json:"head" validate:"omitempty,max=120"`
	Account    *string `json:"account" validate:"omitempty,max=120"`
	Amount     *string `json:"amount"`
	Note       *string `json:"note" validate:"omitempty,max=500"`
	OccurredAt *string `json:"occurred_at"`
	ChangeNote string  `json:"change_note" validate:"max=500"`
}

// PATCH /api/transactions/:id
func (h *LedgerHandler) Update(c *gin.Context) {
	var req updateTransactionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	input := services.UpdateInput{
		Head:       req.Head,
		Account:    req.Account,
		Note:       req.Note,
		ChangeNote: req.ChangeNote,
	}
	if req.Amount != nil {
		amount, err := parseAmount(*req.Amount)
		if err != nil {
			response.Error(c, errors.NewBadRequest("amount must be a decimal number"))
			return
		}
		input.Amount = &amount
	}
	if req.OccurredAt != nil {
		occurredAt, err := parseOccurredAt(*req.OccurredAt)
		if err != nil {
			response.Error(c, errors.NewBadRequest("occurred_at must be RFC3339 or YYYY-MM-DD"))
			return
		}
		input.OccurredAt = &occurredAt
	}

	entry, err := h.ledger.Update(requestContext(c), userID, c.Param("id"), input)
	if err != nil {
		mapLedgerError(c, err)
		return
	}
	response.Success(c, entry)
}

type deleteTransactionRequest struct {
	Note string `json:"note" validate:"max=500"`
}

// DELETE /api/transactions/:id
func (h *LedgerHandler) Delete(c *gin.Context) {
	userID := currentUserID(c)
	if userID == "" {
		response.Error(c, errors.ErrUnauthorized)
		return
	}

	var req deleteTransactionRequest
	if c.Request.Body != nil && c.Request.ContentLength > 0 {
		if !bindAndValidate(c, &req) {
			return
		}
	}

	if err := h.ledger.Delete(requestContext(c), userID, c.Param("id"), req.Note); err != nil {
		mapLedgerError(c, err)
		return
	}
	response.NoContent(c)
}
