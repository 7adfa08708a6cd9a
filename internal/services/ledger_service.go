package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/nwaqas/finfortress/internal/auditctx"
	"github.com/nwaqas/finfortress/internal/models"
	"github.com/nwaqas/finfortress/pkg/metrics"
)

var (
	// ErrTransactionNotFound indicates the requested ledger entry does not exist.
	ErrTransactionNotFound = errors.New("ledger service: transaction not found")
	// ErrInvalidFlowType is returned for an unknown flow value.
	ErrInvalidFlowType = errors.New("ledger service: invalid flow type")
	// ErrInvalidAmount is returned when the amount is zero or negative.
	ErrInvalidAmount = errors.New("ledger service: amount must be positive")
)

// AuditEntry records one change to a ledger entry. Device and IP come
// from the request actor when one is present on the context.
type AuditEntry struct {
	Action string         `json:"action"`
	Note   string         `json:"note,omitempty"`
	AtMs   int64          `json:"at_ms"`
	AtIso  string         `json:"at_iso"`
	Device string         `json:"device,omitempty"`
	IP     string         `json:"ip,omitempty"`
	Before map[string]any `json:"before,omitempty"`
	After  map[string]any `json:"after,omitempty"`
}

// LedgerService records and queries ledger transactions. Codes are
// allocated from a per-user monthly counter inside the same database
// transaction as the insert, so a failed insert never burns a sequence.
type LedgerService struct {
	db  *gorm.DB
	now func() time.Time
}

// LedgerOption customises the ledger service.
type LedgerOption func(*LedgerService)

// WithLedgerClock injects a custom clock, primarily for testing.
func WithLedgerClock(clock func() time.Time) LedgerOption {
	return func(s *LedgerService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// NewLedgerService constructs a ledger service.
func NewLedgerService(db *gorm.DB, opts ...LedgerOption) (*LedgerService, error) {
	if db == nil {
		return nil, errors.New("ledger service: db is required")
	}

	s := &LedgerService{db: db, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// RecordInput captures the fields for a new ledger entry.
type RecordInput struct {
	FlowType   string
	Head       string
	Account    string
	Amount     decimal.Decimal
	Currency   string
	Note       string
	OccurredAt time.Time
}

// Record validates, allocates a transaction code, and inserts the entry.
func (s *LedgerService) Record(ctx context.Context, user *models.User, input RecordInput) (*models.Transaction, error) {
	ctx = ensuredContext(ctx)

	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, errors.New("ledger service: user is required")
	}
	if !IsValidFlowType(input.FlowType) {
		return nil, ErrInvalidFlowType
	}
	if !input.Amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	occurred := input.OccurredAt
	if occurred.IsZero() {
		occurred = s.now()
	}

	currency := strings.ToUpper(strings.TrimSpace(input.Currency))
	if currency == "" {
		currency = user.Currency
	}

	entry := &models.Transaction{
		UserID:     user.ID,
		FlowType:   input.FlowType,
		Head:       strings.TrimSpace(input.Head),
		Account:    strings.TrimSpace(input.Account),
		Amount:     input.Amount,
		Currency:   currency,
		Note:       strings.TrimSpace(input.Note),
		OccurredAt: occurred,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seq, err := s.nextSequence(tx, user.ID, occurred)
		if err != nil {
			return err
		}

		entry.Code = buildTransactionCode(seq, user.ShortID(), occurred)

		if err := tx.Create(entry).Error; err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("ledger service: duplicate code %s: %w", entry.Code, err)
			}
			return fmt.Errorf("ledger service: create transaction: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.TransactionsRecorded.WithLabelValues(entry.FlowType).Inc()

	return entry, nil
}

// Import records a batch of entries atomically. Every row is validated
// before anything is written; a bad row rejects the whole batch so a partial
// import never needs manual cleanup.
func (s *LedgerService) Import(ctx context.Context, user *models.User, inputs []RecordInput) ([]models.Transaction, error) {
	ctx = ensuredContext(ctx)

	if user == nil || strings.TrimSpace(user.ID) == "" {
		return nil, errors.New("ledger service: user is required")
	}
	if len(inputs) == 0 {
		return nil, errors.New("ledger service: import batch is empty")
	}

	for i, input := range inputs {
		if !IsValidFlowType(input.FlowType) {
			return nil, fmt.Errorf("ledger service: row %d: %w", i+1, ErrInvalidFlowType)
		}
		if !input.Amount.IsPositive() {
			return nil, fmt.Errorf("ledger service: row %d: %w", i+1, ErrInvalidAmount)
		}
	}

	entries := make([]models.Transaction, 0, len(inputs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, input := range inputs {
			occurred := input.OccurredAt
			if occurred.IsZero() {
				occurred = s.now()
			}

			currency := strings.ToUpper(strings.TrimSpace(input.Currency))
			if currency == "" {
				currency = user.Currency
			}

			seq, err := s.nextSequence(tx, user.ID, occurred)
			if err != nil {
				return err
			}

			entry := models.Transaction{
				UserID:     user.ID,
				Code:       buildTransactionCode(seq, user.ShortID(), occurred),
				FlowType:   input.FlowType,
				Head:       strings.TrimSpace(input.Head),
				Account:    strings.TrimSpace(input.Account),
				Amount:     input.Amount,
				Currency:   currency,
				Note:       strings.TrimSpace(input.Note),
				OccurredAt: occurred,
			}

			if err := tx.Create(&entry).Error; err != nil {
				return fmt.Errorf("ledger service: import row %d: %w", i+1, err)
			}
			entries = append(entries, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		metrics.TransactionsRecorded.WithLabelValues(entry.FlowType).Inc()
	}

	return entries, nil
}

func (s *LedgerService) nextSequence(tx *gorm.DB, userID string, at time.Time) (int64, error) {
	period := at.Format("0601")

	counter := models.TransactionCounter{UserID: userID, Period: period}
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where(models.TransactionCounter{UserID: userID, Period: period}).
		FirstOrCreate(&counter).Error; err != nil {
		return 0, fmt.Errorf("ledger service: load counter: %w", err)
	}

	counter.Seq++
	if err := tx.Model(&models.TransactionCounter{}).
		Where("user_id = ? AND period = ?", userID, period).
		Update("seq", counter.Seq).Error; err != nil {
		return 0, fmt.Errorf("ledger service: bump counter: %w", err)
	}

	return counter.Seq, nil
}

func buildTransactionCode(seq int64, uidShort string, at time.Time) string {
	return fmt.Sprintf("TXN-%s-%s-%07d", at.Format("0601"), uidShort, seq)
}

// Get fetches a single entry scoped to the user.
func (s *LedgerService) Get(ctx context.Context, userID, id string) (*models.Transaction, error) {
	ctx = ensuredContext(ctx)

	var entry models.Transaction
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Take(&entry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrTransactionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("ledger service: load transaction: %w", err)
	}
	return &entry, nil
}

// ListOptions filters and paginates ledger queries.
type ListOptions struct {
	Month    string // YYYY-MM
	FlowType string
	Head     string
	Account  string
	Page     int
	PerPage  int
}

// List returns entries newest first, together with the filtered total.
func (s *LedgerService) List(ctx context.Context, userID string, opts ListOptions) ([]models.Transaction, int64, error) {
	ctx = ensuredContext(ctx)

	q := s.db.WithContext(ctx).Model(&models.Transaction{}).Where("user_id = ?", userID)

	if opts.Month != "" {
		start, err := time.Parse("2006-01", opts.Month)
		if err != nil {
			return nil, 0, fmt.Errorf("ledger service: invalid month %q", opts.Month)
		}
		q = q.Where("occurred_at >= ? AND occurred_at < ?", start, start.AddDate(0, 1, 0))
	}
	if opts.FlowType != "" {
		q = q.Where("flow_type = ?", opts.FlowType)
	}
	if opts.Head != "" {
		q = q.Where("head = ?", opts.Head)
	}
	if opts.Account != "" {
		q = q.Where("account = ?", opts.Account)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("ledger service: count transactions: %w", err)
	}

	page := opts.Page
	if page < 1 {
		page = 1
	}
	perPage := opts.PerPage
	if perPage <= 0 {
		perPage = 50
	}

	var entries []models.Transaction
	if err := q.Order("occurred_at DESC, code DESC").
		Offset((page - 1) * perPage).
		Limit(perPage).
		Find(&entries).Error; err != nil {
		return nil, 0, fmt.Errorf("ledger service: list transactions: %w", err)
	}

	return entries, total, nil
}

// UpdateInput describes mutable entry fields. A nil pointer means no change.
type UpdateInput struct {
	Head       *string
	Account    *string
	Amount     *decimal.Decimal
	Note       *string
	OccurredAt *time.Time
	ChangeNote string
}

// Update applies field changes and appends an audit entry capturing the
// before and after state.
func (s *LedgerService) Update(ctx context.Context, userID, id string, input UpdateInput) (*models.Transaction, error) {
	entry, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	before := snapshotEntry(entry)

	if input.Head != nil {
		entry.Head = strings.TrimSpace(*input.Head)
	}
	if input.Account != nil {
		entry.Account = strings.TrimSpace(*input.Account)
	}
	if input.Amount != nil {
		if !input.Amount.IsPositive() {
			return nil, ErrInvalidAmount
		}
		entry.Amount = *input.Amount
	}
	if input.Note != nil {
		entry.Note = strings.TrimSpace(*input.Note)
	}
	if input.OccurredAt != nil && !input.OccurredAt.IsZero() {
		entry.OccurredAt = *input.OccurredAt
	}

	if err := s.appendAudit(ctx, entry, AuditEntry{
		Action: "updated",
		Note:   strings.TrimSpace(input.ChangeNote),
		Before: before,
		After:  snapshotEntry(entry),
	}); err != nil {
		return nil, err
	}

	if err := s.db.WithContext(ensuredContext(ctx)).Save(entry).Error; err != nil {
		return nil, fmt.Errorf("ledger service: update transaction: %w", err)
	}

	return entry, nil
}

// Delete soft-deletes an entry, recording who asked and why in the trail.
func (s *LedgerService) Delete(ctx context.Context, userID, id, note string) error {
	entry, err := s.Get(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := s.appendAudit(ctx, entry, AuditEntry{
		Action: "deleted",
		Note:   strings.TrimSpace(note),
		Before: snapshotEntry(entry),
	}); err != nil {
		return err
	}

	ctx = ensuredContext(ctx)
	if err := s.db.WithContext(ctx).Save(entry).Error; err != nil {
		return fmt.Errorf("ledger service: persist audit trail: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(entry).Error; err != nil {
		return fmt.Errorf("ledger service: delete transaction: %w", err)
	}

	return nil
}

func (s *LedgerService) appendAudit(ctx context.Context, entry *models.Transaction, audit AuditEntry) error {
	at := s.now()
	audit.AtMs = at.UnixMilli()
	audit.AtIso = at.UTC().Format(time.RFC3339)

	if actor, ok := auditctx.FromContext(ctx); ok {
		audit.Device = actor.DeviceID
		audit.IP = actor.IPAddress
	}

	var trail []AuditEntry
	if len(entry.AuditTrail) > 0 {
		if err := json.Unmarshal(entry.AuditTrail, &trail); err != nil {
			return fmt.Errorf("ledger service: decode audit trail: %w", err)
		}
	}
	trail = append(trail, audit)

	encoded, err := json.Marshal(trail)
	if err != nil {
		return fmt.Errorf("ledger service: encode audit trail: %w", err)
	}
	entry.AuditTrail = encoded
	return nil
}

func snapshotEntry(entry *models.Transaction) map[string]any {
	return map[string]any{
		"flow_type":   entry.FlowType,
		"head":        entry.Head,
		"account":     entry.Account,
		"amount":      entry.Amount.String(),
		"note":        entry.Note,
		"occurred_at": entry.OccurredAt.UTC().Format(time.RFC3339),
	}
}
