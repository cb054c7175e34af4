package service

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finboard/backend/internal/categorize"
	"github.com/finboard/backend/internal/extraction"
	"github.com/finboard/backend/internal/model"
	"github.com/finboard/backend/internal/store"
)

// ImportService turns uploaded bank statement PDFs into stored, categorized
// transactions.
type ImportService struct {
	store       store.Store
	categorizer categorize.Categorizer
	log         zerolog.Logger
	now         func() time.Time
	analyze     func([]byte) (*extraction.PDFAnalysis, error)
}

func NewImportService(st store.Store, cat categorize.Categorizer, log zerolog.Logger) *ImportService {
	return &ImportService{
		store:       st,
		categorizer: cat,
		log:         log,
		now:         time.Now,
		analyze:     extraction.AnalyzePDF,
	}
}

// ListStatements returns the user's imported statements, newest first.
func (s *ImportService) ListStatements(ctx context.Context, userID string) ([]*model.Statement, error) {
	return s.store.ListStatements(ctx, userID)
}

// ImportStatement extracts text from the PDF, parses transaction lines,
// categorizes each, and persists the statement together with its
// transactions. Scanned PDFs and statements yielding no parseable lines are
// rejected.
func (s *ImportService) ImportStatement(ctx context.Context, userID, filename string, pdfData []byte) (*model.Statement, []*model.Transaction, error) {
	analysis, err := s.analyze(pdfData)
	if err != nil {
		return nil, nil, fmt.Errorf("analyze pdf: %w", err)
	}
	if analysis.IsScanned {
		return nil, nil, fmt.Errorf("statement %q appears to be scanned; no extractable text", filename)
	}

	parsed := extraction.ParseStatementText(analysis.Lines)
	if len(parsed) == 0 {
		return nil, nil, fmt.Errorf("no transactions found in statement %q", filename)
	}

	now := s.now()
	statement := &model.Statement{
		ID:               uuid.New().String(),
		UserID:           userID,
		FileName:         filename,
		TransactionCount: len(parsed),
		ImportedAt:       now,
	}

	txs := make([]*model.Transaction, 0, len(parsed))
	for _, p := range parsed {
		category, err := s.categorizer.Categorize(ctx, p.Description)
		if err != nil {
			category = model.CategoryOther
		}

		amount := math.Abs(p.Amount)
		txType := model.TransactionTypeIncome
		if p.IsDebit {
			amount = -amount
			txType = model.TransactionTypeExpense
		}

		txs = append(txs, &model.Transaction{
			ID:          uuid.New().String(),
			UserID:      userID,
			StatementID: statement.ID,
			Date:        p.Date,
			Description: p.Description,
			Amount:      amount,
			Type:        txType,
			Category:    category,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	if err := s.store.CreateStatement(ctx, statement); err != nil {
		return nil, nil, fmt.Errorf("persist statement: %w", err)
	}
	if err := s.store.CreateTransactions(ctx, txs); err != nil {
		return nil, nil, fmt.Errorf("persist transactions: %w", err)
	}

	s.log.Info().Str("userId", userID).Str("filename", filename).
		Int("pages", analysis.PageCount).Int("transactions", len(txs)).
		Msg("[import] statement imported")

	return statement, txs, nil
}
