package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

type fundServiceMock struct {
	fundService
	lastFormat dto.ExportFormat
	lastType   string
	recordErr  error
}

func (m *fundServiceMock) Export(_ context.Context, _ models.Actor, format dto.ExportFormat) (*dto.ExportedFile, error) {
	m.lastFormat = format
	return &dto.ExportedFile{Filename: "fund-statement-c1-20240506.csv", ContentType: "text/csv", Data: []byte("Date,Amount\n")}, nil
}

func (m *fundServiceMock) ListTransactions(_ context.Context, _ models.Actor, txType string) ([]models.FundTransaction, error) {
	m.lastType = txType
	return []models.FundTransaction{{ID: "t1"}}, nil
}

func (m *fundServiceMock) RecordTransaction(context.Context, models.Actor, dto.RecordTransactionRequest) (*models.FundTransaction, error) {
	return nil, m.recordErr
}

func TestFundHandlerExportDefaultsToCSV(t *testing.T) {
	mockSvc := &fundServiceMock{}
	handler := NewFundHandler(mockSvc)

	c, w := newClassContext(http.MethodGet, "/classes/c1/funds/export", nil, nil)
	handler.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ExportCSV, mockSvc.lastFormat)
	assert.Equal(t, `attachment; filename="fund-statement-c1-20240506.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Date,Amount\n", w.Body.String())
}

func TestFundHandlerExportNormalisesFormat(t *testing.T) {
	mockSvc := &fundServiceMock{}
	handler := NewFundHandler(mockSvc)

	c, _ := newClassContext(http.MethodGet, "/classes/c1/funds/export?format=PDF", nil, nil)
	handler.Export(c)

	assert.Equal(t, dto.ExportPDF, mockSvc.lastFormat)
}

func TestFundHandlerListPassesTypeFilter(t *testing.T) {
	mockSvc := &fundServiceMock{}
	handler := NewFundHandler(mockSvc)

	c, w := newClassContext(http.MethodGet, "/classes/c1/funds/transactions?type=expense", nil, nil)
	handler.ListTransactions(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "expense", mockSvc.lastType)
	assert.Contains(t, w.Body.String(), `"count":1`)
}

func TestFundHandlerRecordMissingReceipt(t *testing.T) {
	mockSvc := &fundServiceMock{recordErr: appErrors.ErrMissingReceipt}
	handler := NewFundHandler(mockSvc)

	c, w := newClassContext(http.MethodPost, "/classes/c1/funds/transactions", []byte(`{"type":"expense","description":"Chairs","amount":150000}`), nil)
	handler.RecordTransaction(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}
