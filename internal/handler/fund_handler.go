package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/middleware"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
	"github.com/noah-isme/classpal-api/pkg/response"
)

type fundService interface {
	RecordTransaction(ctx context.Context, actor models.Actor, req dto.RecordTransactionRequest) (*models.FundTransaction, error)
	ListTransactions(ctx context.Context, actor models.Actor, txType string) ([]models.FundTransaction, error)
	Summary(ctx context.Context, actor models.Actor) (*models.FundSummary, error)
	Categories(ctx context.Context, actor models.Actor) (*models.FundCategories, error)
	Reconcile(ctx context.Context, actor models.Actor, req dto.ReconcileBalanceRequest) (*models.FundReconciliation, error)
	Export(ctx context.Context, actor models.Actor, format dto.ExportFormat) (*dto.ExportedFile, error)
	CreateDebt(ctx context.Context, actor models.Actor, req dto.CreateDebtRequest) (*models.DebtEntry, error)
	ListDebts(ctx context.Context, actor models.Actor) ([]models.DebtEntry, error)
	SettleDebt(ctx context.Context, actor models.Actor, debtID string) (*models.DebtEntry, error)
}

// FundHandler exposes the class fund ledger and dues.
type FundHandler struct {
	service fundService
}

// NewFundHandler constructs the handler.
func NewFundHandler(service fundService) *FundHandler {
	return &FundHandler{service: service}
}

// ListTransactions godoc
// @Summary List ledger entries by date
// @Tags Funds
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param type query string false "income or expense"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/funds/transactions [get]
func (h *FundHandler) ListTransactions(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	txs, err := h.service.ListTransactions(c.Request.Context(), actor, strings.TrimSpace(c.Query("type")))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "count", len(txs))
	response.JSON(c, http.StatusOK, txs, nil, middleware.ExtractMeta(c))
}

// Categories godoc
// @Summary List ledger categories per transaction type
// @Tags Funds
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/funds/categories [get]
func (h *FundHandler) Categories(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	categories, err := h.service.Categories(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, categories, nil)
}

// RecordTransaction godoc
// @Summary Record an income or expense
// @Tags Funds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param payload body dto.RecordTransactionRequest true "Ledger entry"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/funds/transactions [post]
func (h *FundHandler) RecordTransaction(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.RecordTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transaction payload"))
		return
	}
	tx, err := h.service.RecordTransaction(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, tx)
}

// Summary godoc
// @Summary Ledger totals and derived balance
// @Tags Funds
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/funds/summary [get]
func (h *FundHandler) Summary(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	summary, err := h.service.Summary(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil, middleware.ExtractMeta(c))
}

// Reconcile godoc
// @Summary Compare a reported balance with the ledger
// @Tags Funds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param payload body dto.ReconcileBalanceRequest true "Reported balance"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/funds/reconcile [post]
func (h *FundHandler) Reconcile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.ReconcileBalanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid reconcile payload"))
		return
	}
	result, err := h.service.Reconcile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Export godoc
// @Summary Download the fund statement
// @Tags Funds
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} binary
// @Router /classes/{classId}/funds/export [get]
func (h *FundHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	format := dto.ExportFormat(strings.ToLower(strings.TrimSpace(c.DefaultQuery("format", string(dto.ExportCSV)))))
	file, err := h.service.Export(c.Request.Context(), actor, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Data)
}

// ListDebts godoc
// @Summary List student dues
// @Tags Funds
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/funds/debts [get]
func (h *FundHandler) ListDebts(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	debts, err := h.service.ListDebts(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, debts, nil)
}

// CreateDebt godoc
// @Summary Record an outstanding due for a student
// @Tags Funds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param payload body dto.CreateDebtRequest true "Debt payload"
// @Success 201 {object} response.Envelope
// @Router /classes/{classId}/funds/debts [post]
func (h *FundHandler) CreateDebt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req dto.CreateDebtRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid debt payload"))
		return
	}
	debt, err := h.service.CreateDebt(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, debt)
}

// SettleDebt godoc
// @Summary Mark a due as settled
// @Tags Funds
// @Produce json
// @Security BearerAuth
// @Param classId path string true "Class ID"
// @Param debtId path string true "Debt ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{classId}/funds/debts/{debtId}/settle [post]
func (h *FundHandler) SettleDebt(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	debt, err := h.service.SettleDebt(c.Request.Context(), actor, c.Param("debtId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, debt, nil)
}
