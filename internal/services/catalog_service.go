package services

import (
	"sort"

	"github.com/nwaqas/finfortress/internal/models"
)

// FlowType pairs a ledger flow value with its display label and balance impact.
type FlowType struct {
	Value  string `json:"value"`
	Label  string `json:"label"`
	Impact int    `json:"impact"`
}

// AccountOptions lists the payment accounts offered in entry forms.
var AccountOptions = []string{
	"Meezan Bank",
	"Alfalah Bank",
	"HBL Bank",
	"NayaPay Wallet",
	"SadaPay Wallet",
	"JazzCash",
	"EasyPaisa",
	"Cash Wallet",
	"Family Cash",
	"Investment Broker",
}

// FlowTypes enumerates every supported ledger flow.
var FlowTypes = []FlowType{
	{Value: models.FlowIncome, Label: "Income", Impact: 1},
	{Value: models.FlowExpense, Label: "Expense", Impact: -1},
	{Value: models.FlowLoanGiven, Label: "Loan Given", Impact: -1},
	{Value: models.FlowLoanTaken, Label: "Loan Taken", Impact: 1},
	{Value: models.FlowLoanRepaymentPaid, Label: "Loan Repayment Paid", Impact: -1},
	{Value: models.FlowLoanRepaymentReceived, Label: "Loan Repayment Received", Impact: 1},
	{Value: models.FlowAssetPurchase, Label: "Asset Purchase", Impact: -1},
	{Value: models.FlowAssetSale, Label: "Asset Sale", Impact: 1},
	{Value: models.FlowTransferIn, Label: "Transfer In", Impact: 1},
	{Value: models.FlowTransferOut, Label: "Transfer Out", Impact: -1},
	{Value: models.FlowAdjustment, Label: "Balance Adjustment", Impact: 0},
}

// FlowHeads maps each flow type to its selectable spending heads.
var FlowHeads = map[string][]string{
	models.FlowIncome: {
		"Salary",
		"Client Payment",
		"Business Income",
		"Freelancing",
		"Digital Marketing",
		"Investment Return",
		"Family Support",
		"Other Income",
	},
	models.FlowExpense: {
		"Food & Groceries",
		"Fuel & Transport",
		"Rent & Utilities",
		"Family Expense",
		"Kids Education",
		"Medical",
		"Travel",
		"Charity",
		"Personal Shopping",
		"Other Expense",
	},
	models.FlowLoanGiven:             {"Personal Loan Given", "Business Loan Given", "Family Loan Given"},
	models.FlowLoanTaken:             {"Personal Loan Taken", "Bank Loan Taken", "Credit Due"},
	models.FlowLoanRepaymentPaid:     {"Loan Installment Paid", "Loan Principal Paid", "Loan Interest Paid"},
	models.FlowLoanRepaymentReceived: {"Loan Installment Received", "Loan Principal Received", "Loan Interest Received"},
	models.FlowAssetPurchase:         {"Real Estate", "Gold", "Vehicle", "Electronics", "Investment Asset", "Other Asset"},
	models.FlowAssetSale:             {"Real Estate Sale", "Gold Sale", "Vehicle Sale", "Asset Liquidation"},
	models.FlowTransferIn:            {"From Another Account", "Cash Deposit", "Wallet Transfer In"},
	models.FlowTransferOut:           {"To Another Account", "Cash Withdrawal", "Wallet Transfer Out"},
	models.FlowAdjustment:            {"Opening Balance", "Correction"},
}

// BudgetFundSuggestions are offered when a user plans envelopes.
var BudgetFundSuggestions = []string{
	"Emergency Fund",
	"Family Education Fund",
	"Travel Fund",
	"Future Investment Fund",
	"Savings Fund",
	"Charity Fund",
	"Health Reserve",
	"Business Growth Fund",
}

// FlowByValue resolves a flow type, falling back to the first entry.
func FlowByValue(value string) FlowType {
	for _, ft := range FlowTypes {
		if ft.Value == value {
			return ft
		}
	}
	return FlowTypes[0]
}

// IsValidFlowType reports whether the value names a known flow.
func IsValidFlowType(value string) bool {
	for _, ft := range FlowTypes {
		if ft.Value == value {
			return true
		}
	}
	return false
}

// HeadsForFlow returns the heads for a flow, defaulting to expense heads.
func HeadsForFlow(value string) []string {
	if heads, ok := FlowHeads[value]; ok {
		return heads
	}
	return FlowHeads[models.FlowExpense]
}

// AllHeads returns the de-duplicated, sorted union of every head.
func AllHeads() []string {
	set := make(map[string]struct{})
	for _, heads := range FlowHeads {
		for _, head := range heads {
			set[head] = struct{}{}
		}
	}

	out := make([]string, 0, len(set))
	for head := range set {
		out = append(out, head)
	}
	sort.Strings(out)
	return out
}
