package detect

import (
	"strings"

	"github.com/finboard/backend/internal/model"
)

// Classifier decides whether a recurring merchant group is a subscription
// (a billed service) as opposed to merely recurring spend. All keyword lists
// and thresholds come from the injected Config.
type Classifier struct {
	cfg Config
}

// NewClassifier builds a Classifier over the given policy.
func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// IsLikelySubscription is the merchant-keyword trigger: the key names a known
// billed service, names nothing from the definitely-not list, and the
// category is neither hard-excluded nor plain Transport. Known transit passes
// bypass the Transport exclusion.
func (c *Classifier) IsLikelySubscription(merchantKey string, category model.Category) bool {
	key := strings.ToLower(merchantKey)

	if !containsAny(key, c.cfg.SubscriptionKeywords) {
		return false
	}
	if containsAny(key, c.cfg.NonSubscriptionKeywords) {
		return false
	}
	if category == model.CategoryTransport {
		return containsAny(key, c.cfg.TransitAllowList)
	}
	return !c.cfg.excluded(category)
}

// IsSubscription classifies a surviving group. Any one trigger suffices:
// a known-service merchant key, a direct-debit marker on any member, or a
// near-fixed amount on a monthly or yearly cadence. Weekly groups never
// qualify through the variance trigger.
func (c *Classifier) IsSubscription(merchantKey string, category model.Category, hasDirectDebit bool, variance float64, freq model.Frequency) bool {
	if c.IsLikelySubscription(merchantKey, category) {
		return true
	}
	if hasDirectDebit {
		return true
	}
	if variance < c.cfg.MaxSubscriptionVariance &&
		(freq == model.FrequencyMonthly || freq == model.FrequencyYearly) {
		return true
	}
	return false
}

// AllowsCategory implements the hard pre-filter applied by the builder:
// groups in an excluded category are dropped outright unless the merchant is
// a known transit pass.
func (c *Classifier) AllowsCategory(merchantKey string, category model.Category) bool {
	if !c.cfg.excluded(category) {
		return true
	}
	return containsAny(strings.ToLower(merchantKey), c.cfg.TransitAllowList)
}

func containsAny(s string, keywords []string) bool {
	for _, kw := range keywords {
		if kw != "" && strings.Contains(s, kw) {
			return true
		}
	}
	return false
}
