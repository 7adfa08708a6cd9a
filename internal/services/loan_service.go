package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/models"
)

var (
	// ErrLoanNotFound indicates the requested loan does not exist.
	ErrLoanNotFound = errors.New("loan service: loan not found")
	// ErrLoanSettled is returned when paying against a settled loan.
	ErrLoanSettled = errors.New("loan service: loan already settled")
	// ErrOverpayment is returned when a payment exceeds the outstanding balance.
	ErrOverpayment = errors.New("loan service: payment exceeds outstanding balance")
)

// LoanService tracks money lent and borrowed, and repayments against it.
type LoanService struct {
	db  *gorm.DB
	now func() time.Time
}

// LoanOption customises the loan service.
type LoanOption func(*LoanService)

// WithLoanClock injects a custom clock, primarily for testing.
func WithLoanClock(clock func() time.Time) LoanOption {
	return func(s *LoanService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewLoanService constructs a loan service.
func NewLoanService(db *gorm.DB, opts ...LoanOption) (*LoanService, error) {
	if db == nil {
		return nil, errors.New("loan service: db is required")
	}

	s := &LoanService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// CreateLoanInput captures the fields for a new loan.
type CreateLoanInput struct {
	Counterparty string
	Direction    string
	Principal    decimal.Decimal
	Currency     string
	IssuedAt     time.Time
	DueAt        *time.Time
	Note         string
}

// Create records a new loan.
func (s *LoanService) Create(ctx context.Context, userID string, input CreateLoanInput) (*models.Loan, error) {
	ctx = ensuredContext(ctx)

	counterparty := strings.TrimSpace(input.Counterparty)
	if counterparty == "" {
		return nil, errors.New("loan service: counterparty is required")
	}
	if input.Direction != models.LoanGiven && input.Direction != models.LoanTaken {
		return nil, fmt.Errorf("loan service: invalid direction %q", input.Direction)
	}
	if !input.Principal.IsPositive() {
		return nil, errors.New("loan service: principal must be positive")
	}

	issued := input.IssuedAt
	if issued.IsZero() {
		issued = s.now()
	}

	loan := models.Loan{
		UserID:       userID,
		Counterparty: counterparty,
		Direction:    input.Direction,
		Principal:    input.Principal,
		Repaid:       decimal.Zero,
		IssuedAt:     issued,
		DueAt:        input.DueAt,
		Note:         strings.TrimSpace(input.Note),
	}
	if c := strings.ToUpper(strings.TrimSpace(input.Currency)); c != "" {
		loan.Currency = c
	}

	if err := s.db.WithContext(ctx).Create(&loan).Error; err != nil {
		return nil, fmt.Errorf("loan service: create loan: %w", err)
	}
	return &loan, nil
}

// Get fetches one loan with its payments, scoped to the user.
func (s *LoanService) Get(ctx context.Context, userID, id string) (*models.Loan, error) {
	ctx = ensuredContext(ctx)

	var loan models.Loan
	err := s.db.WithContext(ctx).
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("paid_at ASC") }).
		Where("user_id = ?", userID).
		Take(&loan, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLoanNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("loan service: load loan: %w", err)
	}
	return &loan, nil
}

// List returns the user's loans, open ones first, newest issued first.
func (s *LoanService) List(ctx context.Context, userID string) ([]models.Loan, error) {
	ctx = ensuredContext(ctx)

	var loans []models.Loan
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("settled_at IS NOT NULL, issued_at DESC").
		Find(&loans).Error; err != nil {
		return nil, fmt.Errorf("loan service: list loans: %w", err)
	}
	return loans, nil
}

// RecordPayment applies a repayment inside one transaction, settling the
// loan automatically when the balance reaches zero.
func (s *LoanService) RecordPayment(ctx context.Context, userID, loanID string, amount decimal.Decimal, note string) (*models.Loan, error) {
	ctx = ensuredContext(ctx)

	if !amount.IsPositive() {
		return nil, errors.New("loan service: payment must be positive")
	}

	var loan models.Loan
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ?", userID).Take(&loan, "id = ?", loanID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrLoanNotFound
		}
		if err != nil {
			return fmt.Errorf("loan service: load loan: %w", err)
		}

		if loan.SettledAt != nil {
			return ErrLoanSettled
		}
		if amount.GreaterThan(loan.Outstanding()) {
			return ErrOverpayment
		}

		now := s.now()
		payment := models.LoanPayment{
			LoanID: loan.ID,
			Amount: amount,
			PaidAt: now,
			Note:   strings.TrimSpace(note),
		}
		if err := tx.Create(&payment).Error; err != nil {
			return fmt.Errorf("loan service: create payment: %w", err)
		}

		loan.Repaid = loan.Repaid.Add(amount)
		if loan.Outstanding().IsZero() {
			loan.SettledAt = &now
		}

		if err := tx.Save(&loan).Error; err != nil {
			return fmt.Errorf("loan service: update loan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &loan, nil
}

// Delete soft-deletes a loan.
func (s *LoanService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&models.Loan{})
	if result.Error != nil {
		return fmt.Errorf("loan service: delete loan: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrLoanNotFound
	}
	return nil
}

// LoanSummary aggregates open balances for dashboards.
type LoanSummary struct {
	OutstandingGiven decimal.Decimal `json:"outstanding_given"`
	OutstandingTaken decimal.Decimal `json:"outstanding_taken"`
	OpenCount        int             `json:"open_count"`
}

// Summary totals the open loan book in both directions.
func (s *LoanService) Summary(ctx context.Context, userID string) (*LoanSummary, error) {
	loans, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &LoanSummary{
		OutstandingGiven: decimal.Zero,
		OutstandingTaken: decimal.Zero,
	}
	for _, loan := range loans {
		if loan.SettledAt != nil {
			continue
		}
		summary.OpenCount++
		switch loan.Direction {
		case models.LoanGiven:
			summary.OutstandingGiven = summary.OutstandingGiven.Add(loan.Outstanding())
		case models.LoanTaken:
			summary.OutstandingTaken = summary.OutstandingTaken.Add(loan.Outstanding())
		}
	}

	return summary, nil
}
