// Package service wires the detection engine to the persistence store:
// running detection passes, reconciling user overrides, and aggregating the
// subscription summary.
package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/finboard/backend/internal/detect"
	"github.com/finboard/backend/internal/model"
	"github.com/finboard/backend/internal/store"
)

// weeklyToMonthly is the average number of weeks per month used when
// projecting weekly charges onto a monthly cost.
const weeklyToMonthly = 4.33

// listPageSize is the page size used when draining the transaction store.
const listPageSize = 1000

// SubscriptionService runs recurring detection over stored transactions and
// merges the result with the user's persisted subscription decisions.
type SubscriptionService struct {
	store   store.Store
	builder *detect.Builder
	log     zerolog.Logger
	now     func() time.Time
}

// NewSubscriptionService creates the service with the given detection policy.
func NewSubscriptionService(st store.Store, cfg detect.Config, log zerolog.Logger) *SubscriptionService {
	return &SubscriptionService{
		store:   st,
		builder: detect.NewBuilder(cfg),
		log:     log,
		now:     time.Now,
	}
}

// listAllTransactions drains the paginated transaction listing.
func (s *SubscriptionService) listAllTransactions(ctx context.Context, userID string) ([]model.Transaction, error) {
	var out []model.Transaction
	pageToken := ""
	for {
		page, next, err := s.store.ListTransactions(ctx, userID, nil, nil, listPageSize, pageToken)
		if err != nil {
			return nil, fmt.Errorf("list transactions: %w", err)
		}
		for _, tx := range page {
			out = append(out, *tx)
		}
		if next == "" {
			return out, nil
		}
		pageToken = next
	}
}

// ListTransactions exposes the paginated transaction listing to the API
// surface.
func (s *SubscriptionService) ListTransactions(ctx context.Context, userID string, startDate, endDate *time.Time, pageSize int32, pageToken string) ([]*model.Transaction, string, error) {
	return s.store.ListTransactions(ctx, userID, startDate, endDate, pageSize, pageToken)
}

// DetectRecurring runs a full detection pass over the user's transactions,
// persists the recurring annotations onto the member transactions, and
// returns the detected groups ordered by average amount descending.
// Detection is idempotent: group ids are content-derived, so repeated runs
// over unchanged data write identical annotations.
func (s *SubscriptionService) DetectRecurring(ctx context.Context, userID string) ([]model.RecurringGroup, error) {
	txs, err := s.listAllTransactions(ctx, userID)
	if err != nil {
		return nil, err
	}

	result := s.builder.Detect(txs)

	for i := range txs {
		tx := txs[i]
		ann, isMember := result.Annotations[tx.ID]

		switch {
		case isMember:
			if tx.IsRecurring && tx.RecurringGroupID == ann.GroupID && tx.MerchantName == ann.MerchantName {
				continue // already annotated identically
			}
			tx.IsRecurring = true
			tx.RecurringGroupID = ann.GroupID
			tx.RecurringFrequency = ann.Frequency
			tx.MerchantName = ann.MerchantName
		case tx.IsRecurring:
			// Stale annotation from an earlier run over different data.
			tx.IsRecurring = false
			tx.RecurringGroupID = ""
			tx.RecurringFrequency = model.FrequencyNone
		default:
			continue
		}

		tx.UpdatedAt = s.now()
		if err := s.store.UpdateTransaction(ctx, &tx); err != nil {
			return nil, fmt.Errorf("persist annotation for transaction %s: %w", tx.ID, err)
		}
	}

	s.log.Info().Str("userId", userID).Int("groups", len(result.Groups)).
		Int("transactions", len(txs)).Msg("[detector] detection pass completed")

	return result.Groups, nil
}

// ListSubscriptions returns the final visible subscription list: detected
// groups minus hidden ones, confirmed ones stamped user-managed, plus
// manually added subscriptions materialized from their transactions. The
// result is sorted by average amount descending.
func (s *SubscriptionService) ListSubscriptions(ctx context.Context, userID string) ([]model.RecurringGroup, error) {
	groups, err := s.DetectRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}

	overrides, err := s.store.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user subscriptions: %w", err)
	}

	hidden := make(map[string]bool)
	confirmed := make(map[string]bool)
	var manual []*model.UserSubscription
	for _, o := range overrides {
		switch {
		case o.IsHidden:
			hidden[o.ID] = true
		case o.IsConfirmed:
			confirmed[o.ID] = true
		default:
			manual = append(manual, o)
		}
	}

	autoIDs := make(map[string]bool, len(groups))
	var visible []model.RecurringGroup
	for _, g := range groups {
		autoIDs[g.ID] = true
		if hidden[g.ID] {
			continue
		}
		if confirmed[g.ID] {
			g.IsUserManaged = true
			g.IsSubscription = true
		}
		visible = append(visible, g)
	}

	for _, o := range manual {
		// A restored auto-detected row is already represented by its
		// recomputed group; materializing it again would duplicate it.
		if autoIDs[o.ID] {
			continue
		}
		g, err := s.materializeManual(ctx, o)
		if err != nil {
			return nil, err
		}
		visible = append(visible, g)
	}

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].AverageAmount > visible[j].AverageAmount
	})
	return visible, nil
}

// materializeManual shapes a manually added override into a RecurringGroup
// by re-fetching its referenced transactions.
func (s *SubscriptionService) materializeManual(ctx context.Context, o *model.UserSubscription) (model.RecurringGroup, error) {
	var members []model.Transaction
	for _, id := range o.TransactionIDs {
		tx, err := s.store.GetTransaction(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue // referenced transaction was deleted; tolerate
			}
			return model.RecurringGroup{}, fmt.Errorf("fetch transaction %s for manual subscription %s: %w", id, o.ID, err)
		}
		members = append(members, *tx)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Date.Before(members[j].Date)
	})

	// Every referenced transaction may have been deleted since the override
	// was stored; projecting dates from the zero time would fabricate a
	// year-0001 next charge.
	var last, next time.Time
	if len(members) > 0 {
		last = members[len(members)-1].Date
		next = detect.NextDate(last, o.Frequency)
	}

	return model.RecurringGroup{
		ID:              o.ID,
		MerchantName:    o.MerchantName,
		DisplayName:     detect.DisplayMerchantName(o.MerchantName),
		Category:        o.Category,
		AverageAmount:   o.Amount,
		Frequency:       o.Frequency,
		Transactions:    members,
		IsSubscription:  true,
		Variance:        0,
		LastTransaction: last,
		NextExpected:    next,
		IsUserManaged:   true,
	}, nil
}

// UnconfirmedGroups returns auto-detected groups the user has never decided
// on: no stored override row exists for their id, confirmed or hidden. This
// queue drives the onboarding review flow.
func (s *SubscriptionService) UnconfirmedGroups(ctx context.Context, userID string) ([]model.RecurringGroup, error) {
	groups, err := s.DetectRecurring(ctx, userID)
	if err != nil {
		return nil, err
	}
	overrides, err := s.store.ListUserSubscriptions(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list user subscriptions: %w", err)
	}

	decided := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		decided[o.ID] = true
	}

	var out []model.RecurringGroup
	for _, g := range groups {
		if !decided[g.ID] {
			out = append(out, g)
		}
	}
	return out, nil
}

// ConfirmSubscription records the user accepting an auto-detected group.
// Upsert-by-id makes repeated confirms idempotent.
func (s *SubscriptionService) ConfirmSubscription(ctx context.Context, userID, groupID string) error {
	existing, err := s.store.GetUserSubscription(ctx, userID, groupID)
	if err == nil {
		existing.IsConfirmed = true
		existing.IsHidden = false
		existing.UpdatedAt = s.now()
		if err := s.store.UpsertUserSubscription(ctx, existing); err != nil {
			return fmt.Errorf("confirm subscription %s: %w", groupID, err)
		}
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load subscription %s: %w", groupID, err)
	}

	group, err := s.findGroup(ctx, userID, groupID)
	if err != nil {
		return err
	}
	row := subscriptionFromGroup(userID, group, s.now())
	row.IsConfirmed = true
	if err := s.store.UpsertUserSubscription(ctx, row); err != nil {
		return fmt.Errorf("confirm subscription %s: %w", groupID, err)
	}
	s.log.Info().Str("userId", userID).Str("groupId", groupID).Msg("[subscriptions] confirmed")
	return nil
}

// HideSubscription soft-deletes a group from the visible list. Works for
// auto-detected and manually added subscriptions alike; history is kept.
func (s *SubscriptionService) HideSubscription(ctx context.Context, userID, groupID string) error {
	existing, err := s.store.GetUserSubscription(ctx, userID, groupID)
	if err == nil {
		existing.IsHidden = true
		existing.UpdatedAt = s.now()
		if err := s.store.UpsertUserSubscription(ctx, existing); err != nil {
			return fmt.Errorf("hide subscription %s: %w", groupID, err)
		}
		return nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("load subscription %s: %w", groupID, err)
	}

	group, err := s.findGroup(ctx, userID, groupID)
	if err != nil {
		return err
	}
	row := subscriptionFromGroup(userID, group, s.now())
	row.IsHidden = true
	if err := s.store.UpsertUserSubscription(ctx, row); err != nil {
		return fmt.Errorf("hide subscription %s: %w", groupID, err)
	}
	s.log.Info().Str("userId", userID).Str("groupId", groupID).Msg("[subscriptions] hidden")
	return nil
}

// RestoreSubscription clears the hidden flag on a stored override.
func (s *SubscriptionService) RestoreSubscription(ctx context.Context, userID, subscriptionID string) error {
	existing, err := s.store.GetUserSubscription(ctx, userID, subscriptionID)
	if err != nil {
		return fmt.Errorf("load subscription %s: %w", subscriptionID, err)
	}
	existing.IsHidden = false
	existing.UpdatedAt = s.now()
	if err := s.store.UpsertUserSubscription(ctx, existing); err != nil {
		return fmt.Errorf("restore subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// DeleteSubscription permanently removes a stored override. Only explicit
// user action reaches this; detection never deletes rows.
func (s *SubscriptionService) DeleteSubscription(ctx context.Context, userID, subscriptionID string) error {
	if err := s.store.DeleteUserSubscription(ctx, userID, subscriptionID); err != nil {
		return fmt.Errorf("delete subscription %s: %w", subscriptionID, err)
	}
	return nil
}

// MarkTransactionRecurring creates a manual subscription from one
// transaction.
func (s *SubscriptionService) MarkTransactionRecurring(ctx context.Context, userID, transactionID string, freq model.Frequency) (*model.UserSubscription, error) {
	if freq == model.FrequencyNone {
		return nil, fmt.Errorf("frequency is required")
	}
	tx, err := s.store.GetTransaction(ctx, transactionID)
	if err != nil {
		return nil, fmt.Errorf("load transaction %s: %w", transactionID, err)
	}

	now := s.now()
	row := &model.UserSubscription{
		ID:             uuid.New().String(),
		UserID:         userID,
		MerchantName:   detect.NormalizeMerchantKey(tx.Description),
		Category:       tx.Category,
		Amount:         math.Abs(tx.Amount),
		Frequency:      freq,
		TransactionIDs: []string{tx.ID},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.UpsertUserSubscription(ctx, row); err != nil {
		return nil, fmt.Errorf("create manual subscription: %w", err)
	}
	return row, nil
}

// AddSubscriptionFromVendor creates a manual subscription spanning the given
// transactions, typically the result of a vendor search. The id is derived
// from the vendor name so repeating the same add is an upsert, not a
// duplicate. Fails fast before any write when no transactions are given.
func (s *SubscriptionService) AddSubscriptionFromVendor(ctx context.Context, userID, vendor string, transactionIDs []string) (*model.UserSubscription, error) {
	if len(transactionIDs) == 0 {
		return nil, fmt.Errorf("add subscription from vendor %q: no transactions given", vendor)
	}
	if vendor == "" {
		return nil, fmt.Errorf("vendor name is required")
	}

	var members []model.Transaction
	for _, id := range transactionIDs {
		tx, err := s.store.GetTransaction(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load transaction %s: %w", id, err)
		}
		members = append(members, *tx)
	}
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Date.Before(members[j].Date)
	})

	var sum float64
	for _, m := range members {
		sum += math.Abs(m.Amount)
	}
	avg := sum / float64(len(members))

	gaps := make([]float64, 0, len(members)-1)
	for i := 1; i < len(members); i++ {
		gaps = append(gaps, members[i].Date.Sub(members[i-1].Date).Hours()/24)
	}
	freq := detect.ClassifyFrequency(gaps)
	if freq == model.FrequencyNone {
		freq = model.FrequencyMonthly
	}

	now := s.now()
	row := &model.UserSubscription{
		ID:             "vendor_" + detect.Slug(vendor),
		UserID:         userID,
		MerchantName:   detect.NormalizeMerchantKey(vendor),
		Category:       members[len(members)-1].Category,
		Amount:         avg,
		Frequency:      freq,
		TransactionIDs: transactionIDs,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.UpsertUserSubscription(ctx, row); err != nil {
		return nil, fmt.Errorf("create vendor subscription: %w", err)
	}
	s.log.Info().Str("userId", userID).Str("vendor", vendor).
		Int("transactions", len(transactionIDs)).Msg("[subscriptions] vendor subscription added")
	return row, nil
}

// Summary aggregates the visible subscription list into the dashboard
// totals: projected monthly cost (weekly charges scaled by 4.33, yearly
// divided by 12), projected yearly cost, and a per-category breakdown.
func (s *SubscriptionService) Summary(ctx context.Context, userID string) (*model.SubscriptionSummary, error) {
	visible, err := s.ListSubscriptions(ctx, userID)
	if err != nil {
		return nil, err
	}

	summary := &model.SubscriptionSummary{RecurringCount: len(visible)}
	byCategory := make(map[model.Category]*model.CategoryCost)

	for _, g := range visible {
		if g.IsSubscription {
			summary.SubscriptionCount++
		}

		monthly := monthlyCost(g.AverageAmount, g.Frequency)
		summary.MonthlyTotal += monthly

		cc, ok := byCategory[g.Category]
		if !ok {
			cc = &model.CategoryCost{Category: g.Category}
			byCategory[g.Category] = cc
		}
		cc.MonthlyCost += monthly
		cc.Count++
	}
	summary.YearlyTotal = summary.MonthlyTotal * 12

	for _, cc := range byCategory {
		summary.ByCategory = append(summary.ByCategory, *cc)
	}
	sort.Slice(summary.ByCategory, func(i, j int) bool {
		return summary.ByCategory[i].MonthlyCost > summary.ByCategory[j].MonthlyCost
	})

	return summary, nil
}

func monthlyCost(amount float64, freq model.Frequency) float64 {
	switch freq {
	case model.FrequencyWeekly:
		return amount * weeklyToMonthly
	case model.FrequencyYearly:
		return amount / 12
	default:
		return amount
	}
}

// findGroup recomputes detection and locates one group by id.
func (s *SubscriptionService) findGroup(ctx context.Context, userID, groupID string) (model.RecurringGroup, error) {
	groups, err := s.DetectRecurring(ctx, userID)
	if err != nil {
		return model.RecurringGroup{}, err
	}
	for _, g := range groups {
		if g.ID == groupID {
			return g, nil
		}
	}
	return model.RecurringGroup{}, fmt.Errorf("recurring group %s: %w", groupID, store.ErrNotFound)
}

func subscriptionFromGroup(userID string, g model.RecurringGroup, now time.Time) *model.UserSubscription {
	ids := make([]string, 0, len(g.Transactions))
	for _, tx := range g.Transactions {
		ids = append(ids, tx.ID)
	}
	return &model.UserSubscription{
		ID:             g.ID,
		UserID:         userID,
		MerchantName:   g.MerchantName,
		Category:       g.Category,
		Amount:         g.AverageAmount,
		Frequency:      g.Frequency,
		TransactionIDs: ids,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}
