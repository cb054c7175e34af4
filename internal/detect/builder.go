package detect

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/finboard/backend/internal/model"
)

// Builder runs the full detection pass: greedy merchant clustering, size and
// category filtering, frequency inference, statistics and subscription
// classification. It is a pure batch computation; re-running it over the same
// transactions yields byte-identical group ids.
type Builder struct {
	cfg        Config
	classifier *Classifier
}

// NewBuilder creates a Builder over the given policy.
func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, classifier: NewClassifier(cfg)}
}

// Result is the output of one detection pass. Annotations map transaction id
// to the recurring fields the caller may persist; input transactions are
// never mutated.
type Result struct {
	Groups      []model.RecurringGroup
	Annotations map[string]model.Annotation
}

// cluster is an open candidate group during the greedy scan. The seed is the
// first transaction; later transactions are compared against it only.
type cluster struct {
	seedKey         string
	seedAmount      float64
	seedDescription string
	members         []model.Transaction
}

// Detect partitions the expense subset of txs into recurring groups.
// Malformed transactions (income rows, keys shorter than the minimum) are
// silently skipped; an empty or all-income input yields an empty result.
func (b *Builder) Detect(txs []model.Transaction) Result {
	var clusters []*cluster

	for _, tx := range txs {
		if tx.Type != model.TransactionTypeExpense {
			continue
		}
		key := NormalizeMerchantKey(tx.Description)
		if len(key) < b.cfg.MinMerchantKeyLength {
			continue
		}

		joined := false
		for _, c := range clusters {
			if Similarity(key, c.seedKey) < b.cfg.SimilarityThreshold {
				continue
			}
			// Tolerance follows the candidate's own merchant profile, not
			// the seed's.
			likely := b.classifier.IsLikelySubscription(key, tx.Category)
			if !b.cfg.AmountsSimilar(tx.Amount, c.seedAmount, likely) {
				continue
			}
			c.members = append(c.members, tx)
			joined = true
			break
		}
		if !joined {
			clusters = append(clusters, &cluster{
				seedKey:         key,
				seedAmount:      math.Abs(tx.Amount),
				seedDescription: tx.Description,
				members:         []model.Transaction{tx},
			})
		}
	}

	result := Result{Annotations: make(map[string]model.Annotation)}

	for _, c := range clusters {
		group, ok := b.buildGroup(c)
		if !ok {
			continue
		}
		for _, member := range group.Transactions {
			result.Annotations[member.ID] = model.Annotation{
				IsRecurring:  true,
				GroupID:      group.ID,
				Frequency:    group.Frequency,
				MerchantName: group.MerchantName,
			}
		}
		result.Groups = append(result.Groups, group)
	}

	sort.SliceStable(result.Groups, func(i, j int) bool {
		return result.Groups[i].AverageAmount > result.Groups[j].AverageAmount
	})

	return result
}

// buildGroup applies the per-cluster filters and computes the emitted record.
func (b *Builder) buildGroup(c *cluster) (model.RecurringGroup, bool) {
	if len(c.members) < b.cfg.MinGroupSize {
		return model.RecurringGroup{}, false
	}

	members := make([]model.Transaction, len(c.members))
	copy(members, c.members)
	sort.SliceStable(members, func(i, j int) bool {
		return members[i].Date.Before(members[j].Date)
	})

	latest := members[len(members)-1]
	if !b.classifier.AllowsCategory(c.seedKey, latest.Category) {
		return model.RecurringGroup{}, false
	}

	gaps := make([]float64, 0, len(members)-1)
	for i := 1; i < len(members); i++ {
		gaps = append(gaps, members[i].Date.Sub(members[i-1].Date).Hours()/24)
	}
	freq := ClassifyFrequency(gaps)
	if freq == model.FrequencyNone {
		return model.RecurringGroup{}, false
	}

	var sum float64
	minAmount := math.Inf(1)
	maxAmount := math.Inf(-1)
	hasDirectDebit := false
	marker := strings.ToLower(b.cfg.DirectDebitMarker)
	for _, m := range members {
		a := math.Abs(m.Amount)
		sum += a
		minAmount = math.Min(minAmount, a)
		maxAmount = math.Max(maxAmount, a)
		if marker != "" && strings.Contains(strings.ToLower(m.Description), marker) {
			hasDirectDebit = true
		}
	}
	avg := sum / float64(len(members))

	variance := 0.0
	if avg > 0 {
		variance = (maxAmount - minAmount) / avg * 100
	}

	isSubscription := b.classifier.IsSubscription(c.seedKey, latest.Category, hasDirectDebit, variance, freq)

	return model.RecurringGroup{
		ID:              GroupID(c.seedKey, freq, avg),
		MerchantName:    c.seedKey,
		DisplayName:     DisplayMerchantName(c.seedDescription),
		Category:        latest.Category,
		AverageAmount:   avg,
		Frequency:       freq,
		Transactions:    members,
		IsSubscription:  isSubscription,
		Variance:        variance,
		LastTransaction: latest.Date,
		NextExpected:    NextDate(latest.Date, freq),
	}, true
}

// GroupID derives the deterministic group identity from the merchant key,
// frequency and average amount rounded to cents. Determinism is load-bearing:
// it is how a recomputed group is matched against stored user overrides.
func GroupID(merchantKey string, freq model.Frequency, averageAmount float64) string {
	return fmt.Sprintf("%s_%s_%d", Slug(merchantKey), freq, int64(math.Round(averageAmount*100)))
}

var slugSepRe = regexp.MustCompile(`[^a-z0-9]+`)

// Slug converts a merchant key or vendor name into a stable lowercase
// identifier fragment: unicode-folded, non-alphanumerics collapsed to single
// hyphens.
func Slug(name string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		folded = strings.ToLower(strings.TrimSpace(name))
	}
	return strings.Trim(slugSepRe.ReplaceAllString(folded, "-"), "-")
}
