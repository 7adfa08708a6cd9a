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

// ErrAssetNotFound indicates the requested asset does not exist.
var ErrAssetNotFound = errors.New("asset service: asset not found")

// AssetService manages the asset register.
type AssetService struct {
	db *gorm.DB
}

// NewAssetService constructs an asset service.
func NewAssetService(db *gorm.DB) (*AssetService, error) {
	if db == nil {
		return nil, errors.New("asset service: db is required")
	}
	return &AssetService{db: db}, nil
}

// AssetInput captures the fields for creating or replacing an asset.
type AssetInput struct {
	Name          string
	Category      string
	PurchaseValue decimal.Decimal
	CurrentValue  decimal.Decimal
	Currency      string
	AcquiredAt    *time.Time
	Note          string
}

// Create registers a new asset.
func (s *AssetService) Create(ctx context.Context, userID string, input AssetInput) (*models.Asset, error) {
	ctx = ensuredContext(ctx)

	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, errors.New("asset service: name is required")
	}

	asset := models.Asset{
		UserID:        userID,
		Name:          name,
		Category:      strings.TrimSpace(input.Category),
		PurchaseValue: input.PurchaseValue,
		CurrentValue:  input.CurrentValue,
		AcquiredAt:    input.AcquiredAt,
		Note:          strings.TrimSpace(input.Note),
	}
	if c := strings.ToUpper(strings.TrimSpace(input.Currency)); c != "" {
		asset.Currency = c
	}
	if asset.CurrentValue.IsZero() {
		asset.CurrentValue = asset.PurchaseValue
	}

	if err := s.db.WithContext(ctx).Create(&asset).Error; err != nil {
		return nil, fmt.Errorf("asset service: create asset: %w", err)
	}
	return &asset, nil
}

// List returns the user's assets grouped by category then name.
func (s *AssetService) List(ctx context.Context, userID string) ([]models.Asset, error) {
	ctx = ensuredContext(ctx)

	var assets []models.Asset
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("category ASC, LOWER(name) ASC").
		Find(&assets).Error; err != nil {
		return nil, fmt.Errorf("asset service: list assets: %w", err)
	}
	return assets, nil
}

// Get fetches one asset scoped to the user.
func (s *AssetService) Get(ctx context.Context, userID, id string) (*models.Asset, error) {
	ctx = ensuredContext(ctx)

	var asset models.Asset
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&asset, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAssetNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("asset service: load asset: %w", err)
	}
	return &asset, nil
}

// UpdateAssetInput describes mutable asset fields. A nil pointer means no change.
type UpdateAssetInput struct {
	Name          *string
	Category      *string
	PurchaseValue *decimal.Decimal
	CurrentValue  *decimal.Decimal
	AcquiredAt    *time.Time
	Note          *string
}

// Update applies changes to an existing asset.
func (s *AssetService) Update(ctx context.Context, userID, id string, input UpdateAssetInput) (*models.Asset, error) {
	asset, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, errors.New("asset service: name is required")
		}
		asset.Name = name
	}
	if input.Category != nil {
		asset.Category = strings.TrimSpace(*input.Category)
	}
	if input.PurchaseValue != nil {
		asset.PurchaseValue = *input.PurchaseValue
	}
	if input.CurrentValue != nil {
		asset.CurrentValue = *input.CurrentValue
	}
	if input.AcquiredAt != nil {
		asset.AcquiredAt = input.AcquiredAt
	}
	if input.Note != nil {
		asset.Note = strings.TrimSpace(*input.Note)
	}

	if err := s.db.WithContext(ensuredContext(ctx)).Save(asset).Error; err != nil {
		return nil, fmt.Errorf("asset service: update asset: %w", err)
	}
	return asset, nil
}

// Delete soft-deletes an asset.
func (s *AssetService) Delete(ctx context.Context, userID, id string) error {
	ctx = ensuredContext(ctx)

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND id = ?", userID, id).
		Delete(&models.Asset{})
	if result.Error != nil {
		return fmt.Errorf("asset service: delete asset: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrAssetNotFound
	}
	return nil
}

// AssetSummary aggregates the register for dashboards.
type AssetSummary struct {
	Count      int                        `json:"count"`
	TotalValue decimal.Decimal            `json:"total_value"`
	TotalGain  decimal.Decimal            `json:"total_gain"`
	ByCategory map[string]decimal.Decimal `json:"by_category"`
}

// Summary totals the register by current value and category.
func (s *AssetService) Summary(ctx context.Context, userID string) (*AssetSummary, error) {
	assets, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &AssetSummary{
		TotalValue: decimal.Zero,
		TotalGain:  decimal.Zero,
		ByCategory: make(map[string]decimal.Decimal),
	}
	for _, asset := range assets {
		summary.Count++
		summary.TotalValue = summary.TotalValue.Add(asset.CurrentValue)
		summary.TotalGain = summary.TotalGain.Add(asset.Appreciation())

		key := asset.Category
		if key == "" {
			key = "Uncategorised"
		}
		summary.ByCategory[key] = summary.ByCategory[key].Add(asset.CurrentValue)
	}

	return summary, nil
}
