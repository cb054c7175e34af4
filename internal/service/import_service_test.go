package service

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/backend/internal/categorize"
	"github.com/finboard/backend/internal/extraction"
	"github.com/finboard/backend/internal/model"
	"github.com/finboard/backend/internal/store"
)

func newImportService(st store.Store) *ImportService {
	return NewImportService(st, categorize.NewChain(nil, categorize.NewRuleCategorizer(), zerolog.Nop()), zerolog.Nop())
}

func fakeAnalysis(lines []string) func([]byte) (*extraction.PDFAnalysis, error) {
	return func([]byte) (*extraction.PDFAnalysis, error) {
		return &extraction.PDFAnalysis{PageCount: 1, Lines: lines}, nil
	}
}

func TestImportStatement(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newImportService(st)
	svc.analyze = fakeAnalysis([]string{
		"Kontoauszug Januar 2024",
		"15.01.2024 PayPal Netflix.com Lastschrift 15,99",
		"16.01.2024 REWE Markt GmbH Berlin 42,17",
		"31.01.2024 Gehalt Januar 2.500,00 H",
	})

	statement, txs, err := svc.ImportStatement(ctx, testUser, "january.pdf", []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, "january.pdf", statement.FileName)
	assert.Equal(t, 3, statement.TransactionCount)
	require.Len(t, txs, 3)

	netflix := txs[0]
	assert.Equal(t, -15.99, netflix.Amount)
	assert.Equal(t, model.TransactionTypeExpense, netflix.Type)
	assert.Equal(t, model.CategoryEntertainment, netflix.Category)
	assert.Equal(t, statement.ID, netflix.StatementID)

	salary := txs[2]
	assert.Equal(t, 2500.00, salary.Amount)
	assert.Equal(t, model.TransactionTypeIncome, salary.Type)

	stored, _, err := st.ListTransactions(ctx, testUser, nil, nil, 10, "")
	require.NoError(t, err)
	assert.Len(t, stored, 3)

	statements, err := st.ListStatements(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, statements, 1)
}

func TestImportStatementRejectsScanned(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newImportService(st)
	svc.analyze = func([]byte) (*extraction.PDFAnalysis, error) {
		return &extraction.PDFAnalysis{PageCount: 3, IsScanned: true}, nil
	}

	_, _, err := svc.ImportStatement(ctx, testUser, "scan.pdf", []byte("%PDF"))
	assert.ErrorContains(t, err, "scanned")
}

func TestImportStatementRejectsEmpty(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newImportService(st)
	svc.analyze = fakeAnalysis([]string{"no transaction lines here"})

	_, _, err := svc.ImportStatement(ctx, testUser, "empty.pdf", []byte("%PDF"))
	assert.ErrorContains(t, err, "no transactions")

	statements, err := st.ListStatements(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, statements)
}

func TestImportStatementRejectsBadPDF(t *testing.T) {
	ctx := context.Background()
	svc := newImportService(store.NewMemoryStore())

	_, _, err := svc.ImportStatement(ctx, testUser, "bad.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}
