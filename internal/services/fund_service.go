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

// ErrFundNotFound indicates the requested fund does not exist.
var ErrFundNotFound = errors.New("fund service: fund not found")

// ErrFundExists is returned when a fund name is already taken for the user.
var ErrFundExists = errors.New("fund service: fund already exists")

// defaultFundCount controls how many suggestions are seeded for new users.
const defaultFundCount = 6

// FundService manages budget envelopes and their monthly utilisation.
type FundService struct {
	db *gorm.DB
}

// NewFundService constructs a fund service.
func NewFundService(db *gorm.DB) (*FundService, error) {
	if db == nil {
		return nil, errors.New("fund service: db is required")
	}
	return &FundService{db: db}, nil
}

// SeedDefaults creates the starter envelopes for a user who has none.
// Existing funds are never touched.
func (s *FundService) SeedDefaults(ctx context.Context, userID string) ([]models.BudgetFund, error) {
	ctx = ensuredContext(ctx)

	var count int64
	if err := s.db.WithContext(ctx).Model(&models.BudgetFund{}).
		Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("fund service: count funds: %w", err)
	}
	if count > 0 {
		return s.List(ctx, userID)
	}

	funds := make([]models.BudgetFund, 0, defaultFundCount)
	for _, name := range BudgetFundSuggestions[:defaultFundCount] {
		funds = append(funds, models.BudgetFund{
			UserID: userID,
			Name:   name,
		})
	}

	if err := s.db.WithContext(ctx).Create(&funds).Error; err != nil {
		return nil, fmt.Errorf("fund service: seed funds: %w", err)
	}

	return funds, nil
}

// CreateFundInput captures the fields for a new envelope.
type CreateFundInput struct {
	Name       string
	Head       string
	MonthlyCap decimal.Decimal
	Currency   string
}

// Create adds a fund, enforcing name uniqueness per user.
func (s *FundService) Create(ctx context.Context, userID string, input CreateFundInput) (*models.BudgetFund, error) {
	ctx = ensuredContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("fund service: name is required")
	}

	fund := models.BudgetFund{
		UserID:     userID,
		Name:       name,
		Head:       strings.TrimSpace(input.Head),
		MonthlyCap: input.MonthlyCap,
	}
	if c := strings.ToUpper(strings.TrimSpace(input.Currency)); c != "" {
		fund.Currency = c
	}

	if err := s.db.WithContext(ctx).Create(&fund).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrFundExists
		}
		return nil, fmt.Errorf("fund service: create fund: %w", err)
	}

	return &fund, nil
}

// List returns the user's funds, active first, alphabetically.
func (s *FundService) List(ctx context.Context, userID string) ([]models.BudgetFund, error) {
	ctx = ensuredContext(ctx)

	var funds []models.BudgetFund
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("archived ASC, LOWER(name) ASC").
		Find(&funds).Error; err != nil {
		return nil, fmt.Errorf("fund service: list funds: %w", err)
	}
	return funds, nil
}

// UpdateFundInput describes mutable fund fields. A nil pointer means no change.
type UpdateFundInput struct {
	Name       *string
	Head       *string
	MonthlyCap *decimal.Decimal
	Archived   *bool
}

// Update applies changes to an existing fund.
func (s *FundService) Update(ctx context.Context, userID, id string, input UpdateFundInput) (*models.BudgetFund, error) {
	ctx = ensuredContext(ctx)

	var fund models.BudgetFund
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&fund, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrFundNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("fund service: load fund: %w", err)
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("fund service: name is required")
		}
		fund.Name = name
	}
	if input.Head != nil {
		fund.Head = strings.TrimSpace(*input.Head)
	}
	if input.MonthlyCap != nil {
		fund.MonthlyCap = *input.MonthlyCap
	}
	if input.Archived != nil {
		fund.Archived = *input.Archived
	}

	if err := s.db.WithContext(ctx).Save(&fund).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, ErrFundExists
		}
		return nil, fmt.Errorf("fund service: update fund: %w", err)
	}

	return &fund, nil
}

// Delete removes a fund.
func (s *FundService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&models.BudgetFund{})
	if result.Error != nil {
		return fmt.Errorf("fund service: delete fund: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrFundNotFound
	}
	return nil
}

// FundUtilisation reports spend against a fund's cap for one month.
type FundUtilisation struct {
	Fund    models.BudgetFund `json:"fund"`
	Spent   decimal.Decimal   `json:"spent"`
	Cap     decimal.Decimal   `json:"cap"`
	OverCap bool              `json:"over_cap"`
}

// Utilisation computes per-fund expense totals for the month. Funds
// with no head match simply report zero spend.
func (s *FundService) Utilisation(ctx context.Context, userID, month string) ([]FundUtilisation, error) {
	ctx = ensuredContext(ctx)

	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("fund service: invalid month %q", month)
	}
	end := start.AddDate(0, 1, 0)

	funds, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]FundUtilisation, 0, len(funds))
	for _, fund := range funds {
		util := FundUtilisation{Fund: fund, Spent: decimal.Zero, Cap: fund.MonthlyCap}

		if fund.Head != "" {
			var entries []models.Transaction
			if err := s.db.WithContext(ctx).
				Where("user_id = ? AND head = ? AND flow_type = ? AND occurred_at >= ? AND occurred_at < ?",
					userID, fund.Head, models.FlowExpense, start, end).
				Find(&entries).Error; err != nil {
				return nil, fmt.Errorf("fund service: sum spend: %w", err)
			}
			for _, e := range entries {
				util.Spent = util.Spent.Add(e.Amount)
			}
		}

		util.OverCap = fund.MonthlyCap.IsPositive() && util.Spent.GreaterThan(fund.MonthlyCap)
		out = append(out, util)
	}

	return out, nil
}
