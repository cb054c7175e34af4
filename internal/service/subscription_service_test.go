package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/finboard/backend/internal/detect"
	"github.com/finboard/backend/internal/model"
	"github.com/finboard/backend/internal/store"
)

const testUser = "user-1"

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func expense(id, description string, date time.Time, amount float64, category model.Category) *model.Transaction {
	return expenseFor(testUser, id, description, date, amount, category)
}

func expenseFor(userID, id, description string, date time.Time, amount float64, category model.Category) *model.Transaction {
	return &model.Transaction{
		ID:          id,
		UserID:      userID,
		Description: description,
		Date:        date,
		Amount:      amount,
		Type:        model.TransactionTypeExpense,
		Category:    category,
	}
}

// seedStore fills a memory store with one monthly subscription (Netflix,
// 15.99) and one weekly gym charge (McFit, 10.00).
func seedStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	ctx := context.Background()

	txs := []*model.Transaction{
		expense("n1", "Netflix Subscription", day(2024, 1, 15), -15.99, model.CategoryEntertainment),
		expense("n2", "Netflix Subscription", day(2024, 2, 15), -15.99, model.CategoryEntertainment),
		expense("n3", "Netflix Subscription", day(2024, 3, 15), -15.99, model.CategoryEntertainment),
		expense("m1", "McFit Studio Beitrag", day(2024, 3, 1), -10.00, model.CategoryHealthFitness),
		expense("m2", "McFit Studio Beitrag", day(2024, 3, 8), -10.00, model.CategoryHealthFitness),
		expense("m3", "McFit Studio Beitrag", day(2024, 3, 15), -10.00, model.CategoryHealthFitness),
	}
	require.NoError(t, st.CreateTransactions(ctx, txs))
	return st
}

func newService(st store.Store) *SubscriptionService {
	return NewSubscriptionService(st, detect.DefaultConfig(), zerolog.Nop())
}

func findGroupByMerchant(t *testing.T, groups []model.RecurringGroup, merchant string) model.RecurringGroup {
	t.Helper()
	for _, g := range groups {
		if g.MerchantName == merchant {
			return g
		}
	}
	t.Fatalf("no group with merchant %q in %d groups", merchant, len(groups))
	return model.RecurringGroup{}
}

func TestDetectRecurringPersistsAnnotations(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	groups, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, groups, 2)

	netflix := findGroupByMerchant(t, groups, "netflix subscription")
	assert.Equal(t, model.FrequencyMonthly, netflix.Frequency)

	tx, err := st.GetTransaction(ctx, "n2")
	require.NoError(t, err)
	assert.True(t, tx.IsRecurring)
	assert.Equal(t, netflix.ID, tx.RecurringGroupID)
	assert.Equal(t, model.FrequencyMonthly, tx.RecurringFrequency)
	assert.Equal(t, "netflix subscription", tx.MerchantName)

	// Repeating the pass over unchanged data yields the same group ids.
	again, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, again, len(groups))
	for i := range groups {
		assert.Equal(t, groups[i].ID, again[i].ID)
		assert.Equal(t, groups[i].AverageAmount, again[i].AverageAmount)
	}
}

func TestDetectRecurringClearsStaleAnnotations(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newService(st)

	stale := expense("s1", "One-off purchase at some shop", day(2024, 1, 5), -42.00, model.CategoryShopping)
	stale.IsRecurring = true
	stale.RecurringGroupID = "gone_monthly_4200"
	stale.RecurringFrequency = model.FrequencyMonthly
	require.NoError(t, st.CreateTransaction(ctx, stale))

	_, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)

	tx, err := st.GetTransaction(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, tx.IsRecurring)
	assert.Empty(t, tx.RecurringGroupID)
	assert.Equal(t, model.FrequencyNone, tx.RecurringFrequency)
}

func TestListSubscriptionsHidesAndConfirms(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	groups, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)
	netflix := findGroupByMerchant(t, groups, "netflix subscription")
	mcfit := findGroupByMerchant(t, groups, "mcfit studio beitrag")

	require.NoError(t, svc.HideSubscription(ctx, testUser, netflix.ID))
	require.NoError(t, svc.ConfirmSubscription(ctx, testUser, mcfit.ID))

	visible, err := svc.ListSubscriptions(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, mcfit.ID, visible[0].ID)
	assert.True(t, visible[0].IsUserManaged)
	assert.True(t, visible[0].IsSubscription)
}

func TestConfirmHideConfirmKeepsSingleRow(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	groups, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)
	netflix := findGroupByMerchant(t, groups, "netflix subscription")

	require.NoError(t, svc.ConfirmSubscription(ctx, testUser, netflix.ID))
	require.NoError(t, svc.HideSubscription(ctx, testUser, netflix.ID))
	require.NoError(t, svc.ConfirmSubscription(ctx, testUser, netflix.ID))

	rows, err := st.ListUserSubscriptions(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, netflix.ID, rows[0].ID)
	assert.True(t, rows[0].IsConfirmed)
	assert.False(t, rows[0].IsHidden)
}

func TestOverridesIsolatedBetweenUsers(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newService(st)

	// Identical subscriptions yield the same content-derived group id for
	// both users.
	for i, user := range []string{"alice", "bob"} {
		for j, d := range []time.Time{day(2024, 1, 15), day(2024, 2, 15), day(2024, 3, 15)} {
			id := fmt.Sprintf("tx-%d-%d", i, j)
			require.NoError(t, st.CreateTransaction(ctx,
				expenseFor(user, id, "Netflix Subscription", d, -15.99, model.CategoryEntertainment)))
		}
	}

	aliceGroups, err := svc.DetectRecurring(ctx, "alice")
	require.NoError(t, err)
	bobGroups, err := svc.DetectRecurring(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, aliceGroups, 1)
	require.Len(t, bobGroups, 1)
	require.Equal(t, aliceGroups[0].ID, bobGroups[0].ID)
	groupID := aliceGroups[0].ID

	require.NoError(t, svc.ConfirmSubscription(ctx, "alice", groupID))
	require.NoError(t, svc.HideSubscription(ctx, "bob", groupID))

	// Bob's hide must not remove alice's confirmed subscription.
	aliceVisible, err := svc.ListSubscriptions(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, aliceVisible, 1)
	assert.True(t, aliceVisible[0].IsUserManaged)

	bobVisible, err := svc.ListSubscriptions(ctx, "bob")
	require.NoError(t, err)
	assert.Empty(t, bobVisible)

	// Alice's stored row still belongs to her.
	row, err := st.GetUserSubscription(ctx, "alice", groupID)
	require.NoError(t, err)
	assert.Equal(t, "alice", row.UserID)
	assert.True(t, row.IsConfirmed)
}

func TestRestoreSubscription(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	groups, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)
	netflix := findGroupByMerchant(t, groups, "netflix subscription")

	require.NoError(t, svc.HideSubscription(ctx, testUser, netflix.ID))
	require.NoError(t, svc.RestoreSubscription(ctx, testUser, netflix.ID))

	visible, err := svc.ListSubscriptions(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, visible, 2)

	// The restored override row must not be materialized a second time.
	seen := make(map[string]int)
	for _, g := range visible {
		seen[g.ID]++
	}
	for id, n := range seen {
		assert.Equalf(t, 1, n, "group %s appears %d times", id, n)
	}
}

func TestUnconfirmedGroupsQueue(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	pending, err := svc.UnconfirmedGroups(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	netflix := findGroupByMerchant(t, pending, "netflix subscription")
	require.NoError(t, svc.ConfirmSubscription(ctx, testUser, netflix.ID))

	pending, err = svc.UnconfirmedGroups(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "mcfit studio beitrag", pending[0].MerchantName)

	// Hiding counts as a decision too.
	require.NoError(t, svc.HideSubscription(ctx, testUser, pending[0].ID))
	pending, err = svc.UnconfirmedGroups(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSummaryArithmetic(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	summary, err := svc.Summary(ctx, testUser)
	require.NoError(t, err)

	// 15.99 monthly + 10.00 weekly * 4.33 = 59.29 per month.
	assert.InDelta(t, 59.29, summary.MonthlyTotal, 0.01)
	assert.InDelta(t, 711.48, summary.YearlyTotal, 0.01)
	assert.Equal(t, 2, summary.RecurringCount)
	assert.Equal(t, 2, summary.SubscriptionCount)

	require.Len(t, summary.ByCategory, 2)
	assert.Equal(t, model.CategoryHealthFitness, summary.ByCategory[0].Category)
	assert.InDelta(t, 43.30, summary.ByCategory[0].MonthlyCost, 0.01)
	assert.Equal(t, model.CategoryEntertainment, summary.ByCategory[1].Category)
	assert.InDelta(t, 15.99, summary.ByCategory[1].MonthlyCost, 0.01)
}

func TestMarkTransactionRecurring(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newService(st)

	tx := expense("t1", "Kieser Training Berlin", day(2024, 2, 1), -49.90, model.CategoryHealthFitness)
	require.NoError(t, st.CreateTransaction(ctx, tx))

	row, err := svc.MarkTransactionRecurring(ctx, testUser, "t1", model.FrequencyMonthly)
	require.NoError(t, err)
	assert.Equal(t, 49.90, row.Amount)
	assert.Equal(t, model.FrequencyMonthly, row.Frequency)
	assert.Equal(t, []string{"t1"}, row.TransactionIDs)

	visible, err := svc.ListSubscriptions(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, row.ID, visible[0].ID)
	assert.True(t, visible[0].IsUserManaged)
	assert.True(t, visible[0].IsSubscription)
	assert.Equal(t, day(2024, 3, 1), visible[0].NextExpected)
}

func TestManualSubscriptionSurvivesTransactionDeletion(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newService(st)

	tx := expense("t1", "Kieser Training Berlin", day(2024, 2, 1), -49.90, model.CategoryHealthFitness)
	require.NoError(t, st.CreateTransaction(ctx, tx))

	row, err := svc.MarkTransactionRecurring(ctx, testUser, "t1", model.FrequencyMonthly)
	require.NoError(t, err)
	require.NoError(t, st.DeleteTransaction(ctx, "t1"))

	visible, err := svc.ListSubscriptions(ctx, testUser)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, row.ID, visible[0].ID)
	assert.Empty(t, visible[0].Transactions)

	// No surviving members means no dates to project.
	assert.True(t, visible[0].LastTransaction.IsZero())
	assert.True(t, visible[0].NextExpected.IsZero())
}

func TestMarkTransactionRecurringRequiresFrequency(t *testing.T) {
	ctx := context.Background()
	svc := newService(seedStore(t))

	_, err := svc.MarkTransactionRecurring(ctx, testUser, "n1", model.FrequencyNone)
	assert.Error(t, err)
}

func TestAddSubscriptionFromVendor(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	row, err := svc.AddSubscriptionFromVendor(ctx, testUser, "McFit", []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	assert.Equal(t, "vendor_mcfit", row.ID)
	assert.Equal(t, model.FrequencyWeekly, row.Frequency)
	assert.InDelta(t, 10.00, row.Amount, 1e-9)

	// Repeating the add upserts the same row instead of duplicating it.
	_, err = svc.AddSubscriptionFromVendor(ctx, testUser, "McFit", []string{"m1", "m2", "m3"})
	require.NoError(t, err)
	rows, err := st.ListUserSubscriptions(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestAddSubscriptionFromVendorFailsFast(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	svc := newService(st)

	_, err := svc.AddSubscriptionFromVendor(ctx, testUser, "McFit", nil)
	assert.Error(t, err)

	rows, err := st.ListUserSubscriptions(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDeleteSubscription(t *testing.T) {
	ctx := context.Background()
	st := seedStore(t)
	svc := newService(st)

	groups, err := svc.DetectRecurring(ctx, testUser)
	require.NoError(t, err)
	netflix := findGroupByMerchant(t, groups, "netflix subscription")

	require.NoError(t, svc.HideSubscription(ctx, testUser, netflix.ID))
	require.NoError(t, svc.DeleteSubscription(ctx, testUser, netflix.ID))

	rows, err := st.ListUserSubscriptions(ctx, testUser)
	require.NoError(t, err)
	assert.Empty(t, rows)

	// With the override gone, the detected group is visible again.
	visible, err := svc.ListSubscriptions(ctx, testUser)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}
