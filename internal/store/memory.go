package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/finboard/backend/internal/model"
)

// MemoryStore implements Store with in-memory maps, for local development
// and tests.
type MemoryStore struct {
	mu sync.RWMutex

	statements    map[string]*model.Statement
	transactions  map[string]*model.Transaction
	subscriptions map[string]*model.UserSubscription
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statements:    make(map[string]*model.Statement),
		transactions:  make(map[string]*model.Transaction),
		subscriptions: make(map[string]*model.UserSubscription),
	}
}

// paginateIDs applies cursor-based pagination to a sorted slice of IDs.
// Returns the page and the next page token (empty if no more pages).
func paginateIDs(ids []string, pageSize int32, pageToken string) ([]string, string, error) {
	if pageSize <= 0 {
		pageSize = 100
	}

	sort.Strings(ids)

	startIdx := 0
	if pageToken != "" {
		cursorID, err := DecodePageToken(pageToken)
		if err != nil {
			return nil, "", err
		}
		startIdx = len(ids)
		for i, id := range ids {
			if id > cursorID {
				startIdx = i
				break
			}
		}
	}
	ids = ids[startIdx:]

	var nextToken string
	if int32(len(ids)) > pageSize {
		nextToken = EncodePageToken(ids[pageSize-1])
		ids = ids[:pageSize]
	}
	return ids, nextToken, nil
}

// Statement operations

func (m *MemoryStore) CreateStatement(ctx context.Context, statement *model.Statement) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if statement.ID == "" {
		statement.ID = uuid.New().String()
	}
	m.statements[statement.ID] = statement
	return nil
}

func (m *MemoryStore) GetStatement(ctx context.Context, statementID string) (*model.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.statements[statementID]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) ListStatements(ctx context.Context, userID string) ([]*model.Statement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.Statement
	for _, s := range m.statements {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ImportedAt.After(out[j].ImportedAt) })
	return out, nil
}

// Transaction operations

func (m *MemoryStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.createTransactionLocked(tx)
	return nil
}

func (m *MemoryStore) CreateTransactions(ctx context.Context, txs []*model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, tx := range txs {
		m.createTransactionLocked(tx)
	}
	return nil
}

func (m *MemoryStore) createTransactionLocked(tx *model.Transaction) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	m.transactions[tx.ID] = tx
}

func (m *MemoryStore) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	tx, ok := m.transactions[transactionID]
	if !ok {
		return nil, ErrNotFound
	}
	return tx, nil
}

func (m *MemoryStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[tx.ID]; !ok {
		return ErrNotFound
	}
	m.transactions[tx.ID] = tx
	return nil
}

func (m *MemoryStore) DeleteTransaction(ctx context.Context, transactionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.transactions[transactionID]; !ok {
		return ErrNotFound
	}
	delete(m.transactions, transactionID)
	return nil
}

func (m *MemoryStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var ids []string
	for id, tx := range m.transactions {
		if tx.UserID != userID {
			continue
		}
		if startDate != nil && tx.Date.Before(*startDate) {
			continue
		}
		if endDate != nil && tx.Date.After(*endDate) {
			continue
		}
		ids = append(ids, id)
	}

	page, nextToken, err := paginateIDs(ids, pageSize, pageToken)
	if err != nil {
		return nil, "", err
	}

	out := make([]*model.Transaction, 0, len(page))
	for _, id := range page {
		out = append(out, m.transactions[id])
	}
	return out, nextToken, nil
}

// UserSubscription operations

func (m *MemoryStore) UpsertUserSubscription(ctx context.Context, sub *model.UserSubscription) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	m.subscriptions[subscriptionDocID(sub.UserID, sub.ID)] = sub
	return nil
}

func (m *MemoryStore) GetUserSubscription(ctx context.Context, userID, subscriptionID string) (*model.UserSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.subscriptions[subscriptionDocID(userID, subscriptionID)]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

func (m *MemoryStore) DeleteUserSubscription(ctx context.Context, userID, subscriptionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	docID := subscriptionDocID(userID, subscriptionID)
	if _, ok := m.subscriptions[docID]; !ok {
		return ErrNotFound
	}
	delete(m.subscriptions, docID)
	return nil
}

func (m *MemoryStore) ListUserSubscriptions(ctx context.Context, userID string) ([]*model.UserSubscription, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*model.UserSubscription
	for _, s := range m.subscriptions {
		if s.UserID == userID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
