// Package store defines the persistence interface used by the services and
// its in-memory and Firestore implementations.
package store

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"github.com/finboard/backend/internal/model"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("store: not found")

// Store defines the database operations used by the services. All writes are
// independent single-document operations; upserts resolve concurrent writers
// last-writer-wins.
type Store interface {
	// Statement operations
	CreateStatement(ctx context.Context, statement *model.Statement) error
	GetStatement(ctx context.Context, statementID string) (*model.Statement, error)
	ListStatements(ctx context.Context, userID string) ([]*model.Statement, error)

	// Transaction operations
	CreateTransaction(ctx context.Context, tx *model.Transaction) error
	CreateTransactions(ctx context.Context, txs []*model.Transaction) error
	GetTransaction(ctx context.Context, transactionID string) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, tx *model.Transaction) error
	DeleteTransaction(ctx context.Context, transactionID string) error
	ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error)

	// UserSubscription operations. Documents are keyed by (userID, id) so
	// repeated confirm/hide calls never create duplicate rows, and two users
	// who detect the same content-derived group id never touch each other's
	// override.
	UpsertUserSubscription(ctx context.Context, sub *model.UserSubscription) error
	GetUserSubscription(ctx context.Context, userID, subscriptionID string) (*model.UserSubscription, error)
	DeleteUserSubscription(ctx context.Context, userID, subscriptionID string) error
	ListUserSubscriptions(ctx context.Context, userID string) ([]*model.UserSubscription, error)
}

// subscriptionDocID namespaces an override document per user. Group ids are
// derived from merchant/frequency/amount alone, so the same subscription
// yields the same id for every user; the document key must not.
func subscriptionDocID(userID, subscriptionID string) string {
	return userID + "_" + subscriptionID
}

// EncodePageToken encodes a document ID into a page token.
func EncodePageToken(docID string) string {
	if docID == "" {
		return ""
	}
	return base64.URLEncoding.EncodeToString([]byte(docID))
}

// DecodePageToken decodes a page token back to a document ID.
func DecodePageToken(token string) (string, error) {
	if token == "" {
		return "", nil
	}
	b, err := base64.URLEncoding.DecodeString(token)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
