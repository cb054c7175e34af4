// Package model defines the domain types shared across the backend:
// transactions parsed from bank statements, recurring groups computed by the
// detection engine, and the user-authored subscription overrides.
package model

import "time"

// TransactionType distinguishes money in from money out. Recurring detection
// only ever looks at expenses.
type TransactionType string

const (
	TransactionTypeIncome  TransactionType = "income"
	TransactionTypeExpense TransactionType = "expense"
)

// Frequency is the inferred payment cadence of a recurring group.
type Frequency string

const (
	FrequencyNone    Frequency = ""
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyYearly  Frequency = "yearly"
)

// Category is a label from the bounded category vocabulary. Categories are
// assigned upstream (keyword rules or the remote classifier); the detection
// engine only reads them.
type Category string

const (
	CategoryGroceries     Category = "Groceries"
	CategoryShopping      Category = "Shopping"
	CategoryRestaurants   Category = "Bars & Restaurants"
	CategoryTransport     Category = "Transport"
	CategoryEntertainment Category = "Entertainment"
	CategoryHealthFitness Category = "Health & Fitness"
	CategoryHousing       Category = "Housing"
	CategoryUtilities     Category = "Utilities"
	CategoryInsurance     Category = "Insurance"
	CategoryTravel        Category = "Travel"
	CategoryEducation     Category = "Education"
	CategorySalary        Category = "Salary"
	CategoryOther         Category = "Other"
)

// Categories lists the full vocabulary, used for validation and for the
// remote classifier prompt.
var Categories = []Category{
	CategoryGroceries,
	CategoryShopping,
	CategoryRestaurants,
	CategoryTransport,
	CategoryEntertainment,
	CategoryHealthFitness,
	CategoryHousing,
	CategoryUtilities,
	CategoryInsurance,
	CategoryTravel,
	CategoryEducation,
	CategorySalary,
	CategoryOther,
}

// ValidCategory reports whether c is part of the vocabulary.
func ValidCategory(c Category) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// Transaction is one ledger line extracted from a statement. The recurring
// annotation fields (IsRecurring, RecurringGroupID, RecurringFrequency,
// MerchantName) are outputs of the detection pass, written back through the
// store; they are empty on freshly imported transactions.
type Transaction struct {
	ID          string          `json:"id" firestore:"id"`
	UserID      string          `json:"userId" firestore:"userId"`
	StatementID string          `json:"statementId" firestore:"statementId"`
	Description string          `json:"description" firestore:"description"`
	Date        time.Time       `json:"date" firestore:"date"`
	Amount      float64         `json:"amount" firestore:"amount"`
	Type        TransactionType `json:"type" firestore:"type"`
	Category    Category        `json:"category" firestore:"category"`

	IsRecurring        bool      `json:"isRecurring" firestore:"isRecurring"`
	RecurringGroupID   string    `json:"recurringGroupId,omitempty" firestore:"recurringGroupId"`
	RecurringFrequency Frequency `json:"recurringFrequency,omitempty" firestore:"recurringFrequency"`
	MerchantName       string    `json:"merchantName,omitempty" firestore:"merchantName"`

	CreatedAt time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Statement is one imported bank-statement document.
type Statement struct {
	ID               string    `json:"id" firestore:"id"`
	UserID           string    `json:"userId" firestore:"userId"`
	FileName         string    `json:"fileName" firestore:"fileName"`
	TransactionCount int       `json:"transactionCount" firestore:"transactionCount"`
	ImportedAt       time.Time `json:"importedAt" firestore:"importedAt"`
}

// RecurringGroup is a cluster of transactions judged to originate from the
// same recurring payment relationship. Groups are recomputed from the
// transaction set on every detection run and are never persisted directly;
// the deterministic ID is what lets a recomputed group be matched against a
// stored user override.
type RecurringGroup struct {
	ID              string        `json:"id"`
	MerchantName    string        `json:"merchantName"`
	DisplayName     string        `json:"displayName"`
	Category        Category      `json:"category"`
	AverageAmount   float64       `json:"averageAmount"`
	Frequency       Frequency     `json:"frequency"`
	Transactions    []Transaction `json:"transactions"`
	IsSubscription  bool          `json:"isSubscription"`
	Variance        float64       `json:"variance"`
	LastTransaction time.Time     `json:"lastTransactionDate"`
	NextExpected    time.Time     `json:"nextExpectedDate"`
	IsUserManaged   bool          `json:"isUserManaged"`
}

// UserSubscription is a persisted, user-authoritative override of the
// detection output. Rows are created when the user confirms or hides an
// auto-detected group, marks a single transaction as a subscription, or adds
// a vendor across many transactions. Hiding is a soft delete; rows are only
// removed by an explicit permanent delete.
type UserSubscription struct {
	ID             string    `json:"id" firestore:"id"`
	UserID         string    `json:"userId" firestore:"userId"`
	MerchantName   string    `json:"merchantName" firestore:"merchantName"`
	Category       Category  `json:"category" firestore:"category"`
	Amount         float64   `json:"amount" firestore:"amount"`
	Frequency      Frequency `json:"frequency" firestore:"frequency"`
	TransactionIDs []string  `json:"transactionIds" firestore:"transactionIds"`
	IsConfirmed    bool      `json:"isConfirmed" firestore:"isConfirmed"`
	IsHidden       bool      `json:"isHidden" firestore:"isHidden"`
	CreatedAt      time.Time `json:"createdAt" firestore:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt" firestore:"updatedAt"`
}

// Annotation is the recurring-detection output for a single transaction.
// The detector returns these as a side map keyed by transaction id instead of
// mutating its inputs; the service layer decides how to persist them.
type Annotation struct {
	IsRecurring  bool      `json:"isRecurring"`
	GroupID      string    `json:"recurringGroupId"`
	Frequency    Frequency `json:"recurringFrequency"`
	MerchantName string    `json:"merchantName"`
}

// CategoryCost is one row of the per-category monthly cost breakdown.
type CategoryCost struct {
	Category    Category `json:"category"`
	MonthlyCost float64  `json:"monthlyCost"`
	Count       int      `json:"count"`
}

// SubscriptionSummary aggregates the reconciled subscription list for the
// dashboard header.
type SubscriptionSummary struct {
	SubscriptionCount int            `json:"subscriptionCount"`
	RecurringCount    int            `json:"recurringCount"`
	MonthlyTotal      float64        `json:"monthlyTotal"`
	YearlyTotal       float64        `json:"yearlyTotal"`
	ByCategory        []CategoryCost `json:"byCategory"`
}
