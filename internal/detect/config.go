// Package detect implements recurring-transaction detection: merchant key
// normalization, similarity scoring, frequency inference and subscription
// classification over a batch of expense transactions.
package detect

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/finboard/backend/internal/model"
)

//go:embed detect.yaml
var embeddedConfig []byte

// Frequency band bounds, in days. A band matches when the mean gap falls
// inside [min,max] and no single gap deviates from the mean by more than the
// band's deviation limit. The single-gap bounds apply only to two-transaction
// groups where deviation is undefined.
const (
	weeklyMeanMin  = 3
	weeklyMeanMax  = 14
	weeklyMaxDev   = 10
	monthlyMeanMin = 23
	monthlyMeanMax = 38
	monthlyMaxDev  = 12
	yearlyMeanMin  = 340
	yearlyMeanMax  = 390
	yearlyMaxDev   = 30

	singleGapMonthlyMin = 20
	singleGapMonthlyMax = 40
	singleGapYearlyMin  = 340
	singleGapYearlyMax  = 400
	singleGapWeeklyMin  = 3
	singleGapWeeklyMax  = 15
)

// Config holds every detection threshold and keyword list in one place so
// the policy can be tuned without touching the clustering or classification
// logic. Zero values are not usable; start from DefaultConfig or LoadConfig.
type Config struct {
	// SimilarityThreshold is the minimum merchant-key similarity for a
	// transaction to join an existing cluster.
	SimilarityThreshold float64 `yaml:"similarity_threshold"`

	// AmountTolerance is the maximum relative amount difference within a
	// cluster. SubscriptionAmountTolerance is the tighter bound applied when
	// the candidate transaction looks like a subscription.
	AmountTolerance             float64 `yaml:"amount_tolerance"`
	SubscriptionAmountTolerance float64 `yaml:"subscription_amount_tolerance"`

	// MinGroupSize is the minimum member count for an emitted group.
	MinGroupSize int `yaml:"min_group_size"`

	// MaxSubscriptionVariance is the amount-spread percentage below which a
	// monthly or yearly group is classified as a subscription.
	MaxSubscriptionVariance float64 `yaml:"max_subscription_variance"`

	// MinMerchantKeyLength drops transactions whose normalized key is too
	// short to group safely.
	MinMerchantKeyLength int `yaml:"min_merchant_key_length"`

	// DirectDebitMarker marks bill-like transactions; matched case-insensitively
	// against raw descriptions.
	DirectDebitMarker string `yaml:"direct_debit_marker"`

	SubscriptionKeywords    []string `yaml:"subscription_keywords"`
	NonSubscriptionKeywords []string `yaml:"non_subscription_keywords"`
	TransitAllowList        []string `yaml:"transit_allow_list"`

	ExcludedCategories []model.Category `yaml:"excluded_categories"`
}

// DefaultConfig returns the embedded default detection policy.
func DefaultConfig() Config {
	cfg, err := parseConfig(embeddedConfig)
	if err != nil {
		// The embedded file ships with the binary; failing to parse it is a
		// build defect, not a runtime condition.
		panic(fmt.Sprintf("detect: embedded config invalid: %v", err))
	}
	return cfg
}

// LoadConfig reads a detection policy from a YAML file, for deployments that
// tune keyword lists without rebuilding.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read detect config: %w", err)
	}
	return parseConfig(data)
}

func parseConfig(data []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse detect config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("similarity_threshold must be in (0,1], got %v", c.SimilarityThreshold)
	}
	if c.AmountTolerance <= 0 || c.SubscriptionAmountTolerance <= 0 {
		return fmt.Errorf("amount tolerances must be positive")
	}
	if c.SubscriptionAmountTolerance > c.AmountTolerance {
		return fmt.Errorf("subscription_amount_tolerance %v exceeds amount_tolerance %v",
			c.SubscriptionAmountTolerance, c.AmountTolerance)
	}
	if c.MinGroupSize < 2 {
		return fmt.Errorf("min_group_size must be at least 2, got %d", c.MinGroupSize)
	}
	if c.MinMerchantKeyLength < 1 {
		return fmt.Errorf("min_merchant_key_length must be positive, got %d", c.MinMerchantKeyLength)
	}
	for _, cat := range c.ExcludedCategories {
		if !model.ValidCategory(cat) {
			return fmt.Errorf("unknown excluded category %q", cat)
		}
	}
	return nil
}

// excluded reports whether cat is on the hard-exclusion list.
func (c Config) excluded(cat model.Category) bool {
	for _, e := range c.ExcludedCategories {
		if e == cat {
			return true
		}
	}
	return false
}
