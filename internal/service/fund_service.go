package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/export"
)

type fundStore interface {
	AppendTransaction(ctx context.Context, tx *models.FundTransaction) error
	ListTransactions(ctx context.Context, filter models.TransactionFilter) ([]models.FundTransaction, error)
	Totals(ctx context.Context, classID string) (models.LedgerTotals, error)
	CreateDebt(ctx context.Context, debt *models.DebtEntry) error
	FindDebt(ctx context.Context, classID, id string) (*models.DebtEntry, error)
	ListDebts(ctx context.Context, classID string) ([]models.DebtEntry, error)
	SettleDebt(ctx context.Context, params repository.DebtSettleParams) error
}

// FundServiceConfig holds fund ledger policy.
type FundServiceConfig struct {
	RequireReceipt bool
}

// FundService keeps the append-only class ledger. The balance is always
// derived from the ledger; nothing stores it.
type FundService struct {
	clock
	store       fundStore
	access      *AccessService
	attachments attachmentChecker
	cache       *CacheService
	metrics     *MetricsService
	validator   *validator.Validate
	logger      *zap.Logger
	cfg         FundServiceConfig
	csv         *export.CSVExporter
	pdf         *export.PDFExporter
}

// NewFundService constructs a FundService.
func NewFundService(store fundStore, access *AccessService, attachments attachmentChecker, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg FundServiceConfig) *FundService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FundService{
		store:       store,
		access:      access,
		attachments: attachments,
		cache:       cache,
		metrics:     metrics,
		validator:   validate,
		logger:      logger,
		cfg:         cfg,
		csv:         export.NewCSVExporter(),
		pdf:         export.NewPDFExporter(),
	}
}

// RecordTransaction appends an income or expense entry. Corrections are new
// offsetting entries; existing entries are never edited.
func (s *FundService) RecordTransaction(ctx context.Context, actor models.Actor, req dto.RecordTransactionRequest) (result *models.FundTransaction, err error) {
	defer func() { s.metrics.ObserveCommand("funds.record", err) }()

	if _, err := s.access.Require(ctx, actor, models.CapabilityManageFunds); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid transaction payload")
	}
	if req.Amount <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, fmt.Sprintf("amount must be greater than zero, got %d", req.Amount))
	}

	category, ok := req.Type.NormalizeCategory(req.Category)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown %s category %q", req.Type, category))
	}

	receiptPath := strings.TrimSpace(req.ReceiptPath)
	hasReceipt := req.HasReceipt || receiptPath != ""
	if req.Type == models.TransactionExpense && s.cfg.RequireReceipt && !hasReceipt {
		return nil, appErrors.ErrMissingReceipt
	}
	if receiptPath != "" && s.attachments != nil {
		if err := s.attachments.CheckPath(actor.ClassID, models.AttachmentReceipt, receiptPath); err != nil {
			return nil, err
		}
	}

	now := s.Now()
	date := now
	if req.Date != nil {
		date = req.Date.UTC()
	}
	tx := &models.FundTransaction{
		ClassID:     actor.ClassID,
		Type:        req.Type,
		Description: strings.TrimSpace(req.Description),
		Amount:      req.Amount,
		Category:    category,
		Date:        date,
		HasReceipt:  hasReceipt,
		RecordedBy:  actor.UserID,
		CreatedAt:   now,
	}
	if receiptPath != "" {
		tx.ReceiptPath = &receiptPath
	}
	if err := s.store.AppendTransaction(ctx, tx); err != nil {
		return nil, internalError(err, "failed to record transaction")
	}
	_ = s.cache.Bump(ctx, fundScope(actor.ClassID), fundPattern(actor.ClassID))

	s.logger.Info("fund transaction recorded",
		zap.String("transaction_id", tx.ID),
		zap.String("class_id", tx.ClassID),
		zap.String("type", string(tx.Type)),
		zap.Int64("amount", tx.Amount),
	)
	return tx, nil
}

// ListTransactions returns the ledger ordered by date then insertion. An empty
// txType returns both kinds.
func (s *FundService) ListTransactions(ctx context.Context, actor models.Actor, txType string) ([]models.FundTransaction, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	filter := models.TransactionFilter{ClassID: actor.ClassID}
	if txType != "" {
		filter.Type = models.TransactionType(strings.ToLower(txType))
		if !filter.Type.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "unknown transaction type "+txType)
		}
	}
	txs, err := s.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, internalError(err, "failed to list transactions")
	}
	if txs == nil {
		txs = []models.FundTransaction{}
	}
	return txs, nil
}

// Categories lists the categories accepted per transaction type.
func (s *FundService) Categories(ctx context.Context, actor models.Actor) (*models.FundCategories, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	return &models.FundCategories{
		Income:  append([]string(nil), models.IncomeCategories...),
		Expense: append([]string(nil), models.ExpenseCategories...),
	}, nil
}

// Summary returns ledger totals, the derived balance and outstanding debt.
func (s *FundService) Summary(ctx context.Context, actor models.Actor) (*models.FundSummary, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	key, cacheable := s.cache.ScopedKey(ctx, fundScope(actor.ClassID), fundSummaryKey(actor.ClassID))
	if cacheable {
		var cached models.FundSummary
		if hit, err := s.cache.Get(ctx, key, &cached); err == nil && hit {
			return &cached, nil
		}
	}

	summary, err := s.computeSummary(ctx, actor.ClassID)
	if err != nil {
		return nil, err
	}
	if cacheable {
		_ = s.cache.Set(ctx, key, summary, 0)
	}
	return summary, nil
}

// ComputeBalance returns income minus expense over the whole ledger.
func (s *FundService) ComputeBalance(ctx context.Context, actor models.Actor) (int64, error) {
	summary, err := s.Summary(ctx, actor)
	if err != nil {
		return 0, err
	}
	return summary.Balance, nil
}

// Reconcile compares an externally reported balance with the ledger. The
// ledger is never adjusted; a drift has to be fixed with a new entry.
func (s *FundService) Reconcile(ctx context.Context, actor models.Actor, req dto.ReconcileBalanceRequest) (*models.FundReconciliation, error) {
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageFunds); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid reconcile payload")
	}
	summary, err := s.computeSummary(ctx, actor.ClassID)
	if err != nil {
		return nil, err
	}
	reported := *req.ReportedBalance
	out := &models.FundReconciliation{
		ComputedBalance: summary.Balance,
		ReportedBalance: reported,
		Drift:           reported - summary.Balance,
		Matches:         reported == summary.Balance,
	}
	if !out.Matches {
		s.logger.Warn("fund balance drift detected",
			zap.String("class_id", actor.ClassID),
			zap.Int64("computed", out.ComputedBalance),
			zap.Int64("reported", out.ReportedBalance),
		)
	}
	return out, nil
}

// Export renders the ledger as a CSV or PDF statement.
func (s *FundService) Export(ctx context.Context, actor models.Actor, format dto.ExportFormat) (*dto.ExportedFile, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	format = dto.ExportFormat(strings.ToLower(string(format)))
	if format == "" {
		format = dto.ExportCSV
	}
	if format != dto.ExportCSV && format != dto.ExportPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format "+string(format))
	}

	txs, err := s.store.ListTransactions(ctx, models.TransactionFilter{ClassID: actor.ClassID})
	if err != nil {
		return nil, internalError(err, "failed to list transactions")
	}
	summary, err := s.computeSummary(ctx, actor.ClassID)
	if err != nil {
		return nil, err
	}
	dataset := statementDataset(txs, summary)

	now := s.Now()
	base := fmt.Sprintf("fund-statement-%s-%s", actor.ClassID, now.Format("20060102"))
	switch format {
	case dto.ExportPDF:
		data, err := s.pdf.Render(dataset, "Class fund statement")
		if err != nil {
			return nil, internalError(err, "failed to render pdf statement")
		}
		return &dto.ExportedFile{Filename: base + ".pdf", ContentType: "application/pdf", Data: data}, nil
	default:
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, internalError(err, "failed to render csv statement")
		}
		return &dto.ExportedFile{Filename: base + ".csv", ContentType: "text/csv", Data: data}, nil
	}
}

// CreateDebt records an outstanding due for a class member.
func (s *FundService) CreateDebt(ctx context.Context, actor models.Actor, req dto.CreateDebtRequest) (*models.DebtEntry, error) {
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageFunds); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid debt payload")
	}
	if req.AmountDue <= 0 {
		return nil, appErrors.Clone(appErrors.ErrInvalidAmount, fmt.Sprintf("amount due must be greater than zero, got %d", req.AmountDue))
	}
	member, err := s.access.EnsureMember(ctx, actor.ClassID, req.StudentID)
	if err != nil {
		return nil, err
	}

	debt := &models.DebtEntry{
		ClassID:     actor.ClassID,
		StudentID:   req.StudentID,
		StudentName: member.DisplayName,
		AmountDue:   req.AmountDue,
		DueDate:     req.DueDate.UTC(),
		CreatedAt:   s.Now(),
	}
	if err := s.store.CreateDebt(ctx, debt); err != nil {
		return nil, internalError(err, "failed to create debt")
	}
	_ = s.cache.Bump(ctx, fundScope(actor.ClassID), fundPattern(actor.ClassID))
	s.logger.Info("debt created", zap.String("debt_id", debt.ID), zap.String("student_id", debt.StudentID), zap.Int64("amount_due", debt.AmountDue))
	return debt, nil
}

// ListDebts returns the class debts ordered by due date.
func (s *FundService) ListDebts(ctx context.Context, actor models.Actor) ([]models.DebtEntry, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	debts, err := s.store.ListDebts(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to list debts")
	}
	if debts == nil {
		debts = []models.DebtEntry{}
	}
	return debts, nil
}

// SettleDebt marks a debt as reconciled by hand. Settling is not linked to any
// income entry.
func (s *FundService) SettleDebt(ctx context.Context, actor models.Actor, debtID string) (result *models.DebtEntry, err error) {
	defer func() { s.metrics.ObserveCommand("funds.settle_debt", err) }()

	if _, err := s.access.Require(ctx, actor, models.CapabilityManageFunds); err != nil {
		return nil, err
	}
	err = retryOnConflict(ctx, debtID, func() error {
		debt, err := s.store.FindDebt(ctx, actor.ClassID, debtID)
		if err != nil {
			return lookupError(err, debtID, "debt not found", "failed to load debt")
		}
		if debt.Settled() {
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrInvalidState, "debt already settled"), debtID)
		}
		now := s.Now()
		err = s.store.SettleDebt(ctx, repository.DebtSettleParams{
			DebtID:          debtID,
			ClassID:         actor.ClassID,
			ExpectedVersion: debt.Version,
			SettledAt:       now,
			SettledBy:       actor.UserID,
		})
		if err := commitError(err, "failed to settle debt"); err != nil {
			return err
		}
		next := *debt
		next.SettledAt = &now
		next.SettledBy = ptr(actor.UserID)
		next.Version = debt.Version + 1
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	_ = s.cache.Bump(ctx, fundScope(actor.ClassID), fundPattern(actor.ClassID))
	s.logger.Info("debt settled", zap.String("debt_id", debtID), zap.String("user_id", actor.UserID))
	return result, nil
}

func (s *FundService) computeSummary(ctx context.Context, classID string) (*models.FundSummary, error) {
	totals, err := s.store.Totals(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to compute fund totals")
	}
	debts, err := s.store.ListDebts(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to list debts")
	}
	summary := &models.FundSummary{
		LedgerTotals: totals,
		Balance:      totals.TotalIncome - totals.TotalExpense,
		ComputedAt:   s.Now(),
	}
	for _, debt := range debts {
		if debt.Settled() {
			continue
		}
		summary.OutstandingDebt += debt.AmountDue
		summary.OpenDebts++
	}
	return summary, nil
}

func statementDataset(txs []models.FundTransaction, summary *models.FundSummary) export.Dataset {
	headers := []string{"Date", "Type", "Category", "Description", "Amount", "Receipt"}
	rows := make([]map[string]string, 0, len(txs))
	for _, tx := range txs {
		receipt := "no"
		if tx.HasReceipt {
			receipt = "yes"
		}
		rows = append(rows, map[string]string{
			"Date":        tx.Date.Format(time.DateOnly),
			"Type":        string(tx.Type),
			"Category":    tx.Category,
			"Description": tx.Description,
			"Amount":      strconv.FormatInt(tx.Signed(), 10),
			"Receipt":     receipt,
		})
	}
	return export.Dataset{
		Headers: headers,
		Rows:    rows,
		Summary: [][2]string{
			{"Total income", strconv.FormatInt(summary.TotalIncome, 10)},
			{"Total expense", strconv.FormatInt(summary.TotalExpense, 10)},
			{"Balance", strconv.FormatInt(summary.Balance, 10)},
			{"Outstanding debt", strconv.FormatInt(summary.OutstandingDebt, 10)},
		},
	}
}
