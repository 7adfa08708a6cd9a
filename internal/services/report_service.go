package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/nwaqas/finfortress/internal/models"
)

// ReportService produces dashboard aggregates and exports.
type ReportService struct {
	db *gorm.DB
}

// NewReportService constructs a report service.
func NewReportService(db *gorm.DB) (*ReportService, error) {
	if db == nil {
		return nil, errors.New("report service: db is required")
	}
	return &ReportService{db: db}, nil
}

// MonthlySummary aggregates one month of ledger activity.
type MonthlySummary struct {
	Month    string                     `json:"month"`
	Inflow   decimal.Decimal            `json:"inflow"`
	Outflow  decimal.Decimal            `json:"outflow"`
	Net      decimal.Decimal            `json:"net"`
	Count    int                        `json:"count"`
	ByHead   map[string]decimal.Decimal `json:"by_head"`
	ByFlow   map[string]decimal.Decimal `json:"by_flow"`
	Accounts map[string]decimal.Decimal `json:"accounts"`
}

// Monthly computes inflow/outflow totals and breakdowns for a month.
func (s *ReportService) Monthly(ctx context.Context, userID, month string) (*MonthlySummary, error) {
	ctx = ensuredContext(ctx)

	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("report service: invalid month %q", month)
	}
	end := start.AddDate(0, 1, 0)

	var entries []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, start, end).
		Order("occurred_at ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("report service: load entries: %w", err)
	}

	summary := &MonthlySummary{
		Month:    month,
		Inflow:   decimal.Zero,
		Outflow:  decimal.Zero,
		Net:      decimal.Zero,
		ByHead:   make(map[string]decimal.Decimal),
		ByFlow:   make(map[string]decimal.Decimal),
		Accounts: make(map[string]decimal.Decimal),
	}

	for _, entry := range entries {
		summary.Count++
		signed := entry.SignedAmount()
		summary.Net = summary.Net.Add(signed)

		switch models.Impact(entry.FlowType) {
		case 1:
			summary.Inflow = summary.Inflow.Add(entry.Amount)
		case -1:
			summary.Outflow = summary.Outflow.Add(entry.Amount)
		}

		if entry.Head != "" {
			summary.ByHead[entry.Head] = summary.ByHead[entry.Head].Add(signed)
		}
		summary.ByFlow[entry.FlowType] = summary.ByFlow[entry.FlowType].Add(entry.Amount)
		if entry.Account != "" {
			summary.Accounts[entry.Account] = summary.Accounts[entry.Account].Add(signed)
		}
	}

	return summary, nil
}

// Overview is the landing dashboard payload.
type Overview struct {
	Month  *MonthlySummary   `json:"month"`
	Assets *AssetSummary     `json:"assets"`
	Loans  *LoanSummary      `json:"loans"`
	Funds  []FundUtilisation `json:"funds"`
}

// Overview combines the month summary with asset, loan, and fund state.
func (s *ReportService) Overview(ctx context.Context, userID, month string, assets *AssetService, loans *LoanService, funds *FundService) (*Overview, error) {
	monthly, err := s.Monthly(ctx, userID, month)
	if err != nil {
		return nil, err
	}

	assetSummary, err := assets.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}

	loanSummary, err := loans.Summary(ctx, userID)
	if err != nil {
		return nil, err
	}

	utilisation, err := funds.Utilisation(ctx, userID, month)
	if err != nil {
		return nil, err
	}

	return &Overview{
		Month:  monthly,
		Assets: assetSummary,
		Loans:  loanSummary,
		Funds:  utilisation,
	}, nil
}

var exportHeader = []string{"code", "occurred_at", "flow_type", "head", "account", "amount", "currency", "note"}

// ExportCSV renders a month of ledger entries as CSV, oldest first.
func (s *ReportService) ExportCSV(ctx context.Context, userID, month string) ([]byte, error) {
	ctx = ensuredContext(ctx)

	start, err := time.Parse("2006-01", month)
	if err != nil {
		return nil, fmt.Errorf("report service: invalid month %q", month)
	}
	end := start.AddDate(0, 1, 0)

	var entries []models.Transaction
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, start, end).
		Order("occurred_at ASC, code ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("report service: load entries: %w", err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(exportHeader); err != nil {
		return nil, fmt.Errorf("report service: write header: %w", err)
	}
	for _, entry := range entries {
		record := []string{
			entry.Code,
			entry.OccurredAt.UTC().Format(time.RFC3339),
			entry.FlowType,
			entry.Head,
			entry.Account,
			entry.Amount.String(),
			entry.Currency,
			entry.Note,
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("report service: write row: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("report service: flush csv: %w", err)
	}

	return buf.Bytes(), nil
}
