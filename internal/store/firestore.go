package store

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/finboard/backend/internal/model"
)

const (
	statementsCollection    = "statements"
	transactionsCollection  = "transactions"
	subscriptionsCollection = "userSubscriptions"
)

// FirestoreStore implements Store using Firestore.
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore creates a new Firestore-backed store.
func NewFirestoreStore(client *firestore.Client) Store {
	return &FirestoreStore{client: client}
}

// applyDateAwarePagination handles pagination for queries with date range
// filters. Firestore requires OrderBy on the inequality field first, so the
// query orders by date then document id, and the cursor carries both values.
func (s *FirestoreStore) applyDateAwarePagination(ctx context.Context, query firestore.Query, collection string, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy("date", firestore.Asc).OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		// The composite StartAfter needs the cursor document's date value.
		cursorDoc, err := s.client.Collection(collection).Doc(docID).Get(ctx)
		if err != nil {
			return query, fmt.Errorf("fetch cursor document %s: %w", docID, err)
		}
		query = query.StartAfter(cursorDoc.Data()["date"], docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	return query.Limit(int(pageSize) + 1), nil
}

// applyCursorPagination adds OrderBy + StartAfter + Limit to a query.
// It fetches pageSize+1 docs so the caller can detect whether a next page exists.
func applyCursorPagination(query firestore.Query, pageSize int32, pageToken string) (firestore.Query, error) {
	query = query.OrderBy(firestore.DocumentID, firestore.Asc)

	if pageToken != "" {
		docID, err := DecodePageToken(pageToken)
		if err != nil {
			return query, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.StartAfter(docID)
	}

	if pageSize <= 0 {
		pageSize = 100
	}
	return query.Limit(int(pageSize) + 1), nil
}

func notFoundAs(err error) error {
	if status.Code(err) == codes.NotFound {
		return ErrNotFound
	}
	return err
}

// Statement operations

func (s *FirestoreStore) CreateStatement(ctx context.Context, statement *model.Statement) error {
	if statement.ID == "" {
		statement.ID = uuid.New().String()
	}
	_, err := s.client.Collection(statementsCollection).Doc(statement.ID).Set(ctx, statement)
	if err != nil {
		return fmt.Errorf("create statement: %w", err)
	}
	return nil
}

func (s *FirestoreStore) GetStatement(ctx context.Context, statementID string) (*model.Statement, error) {
	doc, err := s.client.Collection(statementsCollection).Doc(statementID).Get(ctx)
	if err != nil {
		return nil, notFoundAs(err)
	}
	var statement model.Statement
	if err := doc.DataTo(&statement); err != nil {
		return nil, fmt.Errorf("decode statement %s: %w", statementID, err)
	}
	return &statement, nil
}

func (s *FirestoreStore) ListStatements(ctx context.Context, userID string) ([]*model.Statement, error) {
	iter := s.client.Collection(statementsCollection).
		Where("userId", "==", userID).
		OrderBy("importedAt", firestore.Desc).
		Documents(ctx)
	defer iter.Stop()

	var out []*model.Statement
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list statements: %w", err)
		}
		var statement model.Statement
		if err := doc.DataTo(&statement); err != nil {
			return nil, fmt.Errorf("decode statement %s: %w", doc.Ref.ID, err)
		}
		out = append(out, &statement)
	}
	return out, nil
}

// Transaction operations

func (s *FirestoreStore) CreateTransaction(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	_, err := s.client.Collection(transactionsCollection).Doc(tx.ID).Set(ctx, tx)
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

func (s *FirestoreStore) CreateTransactions(ctx context.Context, txs []*model.Transaction) error {
	// BulkWriter batches the statement import without a transaction; each
	// document write is independent. Server-side failures only surface
	// through each job's result, so every job must be checked after End.
	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(txs))
	for _, tx := range txs {
		if tx.ID == "" {
			tx.ID = uuid.New().String()
		}
		job, err := bw.Set(s.client.Collection(transactionsCollection).Doc(tx.ID), tx)
		if err != nil {
			return fmt.Errorf("queue transaction write: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	for i, job := range jobs {
		if _, err := job.Results(); err != nil {
			return fmt.Errorf("write transaction %s: %w", txs[i].ID, err)
		}
	}
	return nil
}

func (s *FirestoreStore) GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error) {
	doc, err := s.client.Collection(transactionsCollection).Doc(transactionID).Get(ctx)
	if err != nil {
		return nil, notFoundAs(err)
	}
	var tx model.Transaction
	if err := doc.DataTo(&tx); err != nil {
		return nil, fmt.Errorf("decode transaction %s: %w", transactionID, err)
	}
	return &tx, nil
}

func (s *FirestoreStore) UpdateTransaction(ctx context.Context, tx *model.Transaction) error {
	_, err := s.client.Collection(transactionsCollection).Doc(tx.ID).Set(ctx, tx)
	if err != nil {
		return fmt.Errorf("update transaction %s: %w", tx.ID, err)
	}
	return nil
}

func (s *FirestoreStore) DeleteTransaction(ctx context.Context, transactionID string) error {
	_, err := s.client.Collection(transactionsCollection).Doc(transactionID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete transaction %s: %w", transactionID, err)
	}
	return nil
}

func (s *FirestoreStore) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	query := s.client.Collection(transactionsCollection).Where("userId", "==", userID)
	hasDateFilter := startDate != nil || endDate != nil
	if startDate != nil {
		query = query.Where("date", ">=", *startDate)
	}
	if endDate != nil {
		query = query.Where("date", "<=", *endDate)
	}

	// Range filters force the ordering to start on the date field; the plain
	// path keeps the cheaper document-id ordering.
	var err error
	if hasDateFilter {
		query, err = s.applyDateAwarePagination(ctx, query, transactionsCollection, pageSize, pageToken)
	} else {
		query, err = applyCursorPagination(query, pageSize, pageToken)
	}
	if err != nil {
		return nil, "", err
	}
	if pageSize <= 0 {
		pageSize = 100
	}

	iter := query.Documents(ctx)
	defer iter.Stop()

	var out []*model.Transaction
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, "", fmt.Errorf("list transactions: %w", err)
		}
		var tx model.Transaction
		if err := doc.DataTo(&tx); err != nil {
			return nil, "", fmt.Errorf("decode transaction %s: %w", doc.Ref.ID, err)
		}
		out = append(out, &tx)
	}

	var nextToken string
	if int32(len(out)) > pageSize {
		out = out[:pageSize]
		nextToken = EncodePageToken(out[len(out)-1].ID)
	}
	return out, nextToken, nil
}

// UserSubscription operations

func (s *FirestoreStore) UpsertUserSubscription(ctx context.Context, sub *model.UserSubscription) error {
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}
	docID := subscriptionDocID(sub.UserID, sub.ID)
	_, err := s.client.Collection(subscriptionsCollection).Doc(docID).Set(ctx, sub)
	if err != nil {
		return fmt.Errorf("upsert user subscription %s: %w", sub.ID, err)
	}
	return nil
}

func (s *FirestoreStore) GetUserSubscription(ctx context.Context, userID, subscriptionID string) (*model.UserSubscription, error) {
	docID := subscriptionDocID(userID, subscriptionID)
	doc, err := s.client.Collection(subscriptionsCollection).Doc(docID).Get(ctx)
	if err != nil {
		return nil, notFoundAs(err)
	}
	var sub model.UserSubscription
	if err := doc.DataTo(&sub); err != nil {
		return nil, fmt.Errorf("decode user subscription %s: %w", subscriptionID, err)
	}
	return &sub, nil
}

func (s *FirestoreStore) DeleteUserSubscription(ctx context.Context, userID, subscriptionID string) error {
	docID := subscriptionDocID(userID, subscriptionID)
	_, err := s.client.Collection(subscriptionsCollection).Doc(docID).Delete(ctx)
	if err != nil {
		return fmt.Errorf("delete user subscription %s: %w", subscriptionID, err)
	}
	return nil
}

func (s *FirestoreStore) ListUserSubscriptions(ctx context.Context, userID string) ([]*model.UserSubscription, error) {
	iter := s.client.Collection(subscriptionsCollection).Where("userId", "==", userID).Documents(ctx)
	defer iter.Stop()

	var out []*model.UserSubscription
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list user subscriptions: %w", err)
		}
		var sub model.UserSubscription
		if err := doc.DataTo(&sub); err != nil {
			return nil, fmt.Errorf("decode user subscription %s: %w", doc.Ref.ID, err)
		}
		out = append(out, &sub)
	}
	return out, nil
}
