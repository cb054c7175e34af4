package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/backend/internal/model"
)

func TestMemoryStoreTransactionCRUD(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	tx := &model.Transaction{
		UserID:      "user-1",
		Description: "Netflix Subscription",
		Date:        time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		Amount:      -15.99,
		Type:        model.TransactionTypeExpense,
		Category:    model.CategoryEntertainment,
	}
	require.NoError(t, m.CreateTransaction(ctx, tx))
	require.NotEmpty(t, tx.ID)

	got, err := m.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, "Netflix Subscription", got.Description)

	got.IsRecurring = true
	got.RecurringGroupID = "netflix_monthly_1599"
	require.NoError(t, m.UpdateTransaction(ctx, got))

	updated, err := m.GetTransaction(ctx, tx.ID)
	require.NoError(t, err)
	assert.True(t, updated.IsRecurring)

	require.NoError(t, m.DeleteTransaction(ctx, tx.ID))
	_, err = m.GetTransaction(ctx, tx.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreListTransactionsFiltersAndPaginates(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	for i := 0; i < 5; i++ {
		require.NoError(t, m.CreateTransaction(ctx, &model.Transaction{
			UserID: "user-1",
			Date:   time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Amount: -10,
			Type:   model.TransactionTypeExpense,
		}))
	}
	require.NoError(t, m.CreateTransaction(ctx, &model.Transaction{
		UserID: "user-2",
		Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}))

	// Other users are never visible.
	all, token, err := m.ListTransactions(ctx, "user-1", nil, nil, 100, "")
	require.NoError(t, err)
	assert.Len(t, all, 5)
	assert.Empty(t, token)

	// Date range filter.
	start := time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC)
	ranged, _, err := m.ListTransactions(ctx, "user-1", &start, nil, 100, "")
	require.NoError(t, err)
	assert.Len(t, ranged, 3)

	// Cursor pagination walks the full set exactly once.
	var seen []string
	pageToken := ""
	for {
		page, next, err := m.ListTransactions(ctx, "user-1", nil, nil, 2, pageToken)
		require.NoError(t, err)
		for _, tx := range page {
			seen = append(seen, tx.ID)
		}
		if next == "" {
			break
		}
		pageToken = next
	}
	assert.Len(t, seen, 5)
}

func TestMemoryStoreUserSubscriptionUpsert(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	sub := &model.UserSubscription{
		ID:           "netflix_monthly_1599",
		UserID:       "user-1",
		MerchantName: "netflix",
		Frequency:    model.FrequencyMonthly,
		IsConfirmed:  true,
	}
	require.NoError(t, m.UpsertUserSubscription(ctx, sub))

	// Second upsert with the same id replaces, never duplicates.
	sub2 := *sub
	sub2.IsConfirmed = false
	sub2.IsHidden = true
	require.NoError(t, m.UpsertUserSubscription(ctx, &sub2))

	rows, err := m.ListUserSubscriptions(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsHidden)

	require.NoError(t, m.DeleteUserSubscription(ctx, "user-1", sub.ID))
	rows, err = m.ListUserSubscriptions(ctx, "user-1")
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestMemoryStoreUserSubscriptionsScopedPerUser(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()

	// Content-derived ids collide across users by construction.
	const groupID = "netflix-subscription_monthly_1599"
	require.NoError(t, m.UpsertUserSubscription(ctx, &model.UserSubscription{
		ID: groupID, UserID: "alice", IsConfirmed: true,
	}))
	require.NoError(t, m.UpsertUserSubscription(ctx, &model.UserSubscription{
		ID: groupID, UserID: "bob", IsHidden: true,
	}))

	got, err := m.GetUserSubscription(ctx, "alice", groupID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.True(t, got.IsConfirmed)
	assert.False(t, got.IsHidden)

	got, err = m.GetUserSubscription(ctx, "bob", groupID)
	require.NoError(t, err)
	assert.Equal(t, "bob", got.UserID)
	assert.True(t, got.IsHidden)

	// Deleting bob's row leaves alice's untouched.
	require.NoError(t, m.DeleteUserSubscription(ctx, "bob", groupID))
	_, err = m.GetUserSubscription(ctx, "bob", groupID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetUserSubscription(ctx, "alice", groupID)
	assert.NoError(t, err)
}

func TestPageTokenRoundTrip(t *testing.T) {
	token := EncodePageToken("doc-123")
	require.NotEmpty(t, token)

	id, err := DecodePageToken(token)
	require.NoError(t, err)
	assert.Equal(t, "doc-123", id)

	id, err = DecodePageToken("")
	require.NoError(t, err)
	assert.Empty(t, id)

	_, err = DecodePageToken("%%%not-base64%%%")
	assert.Error(t, err)
}
