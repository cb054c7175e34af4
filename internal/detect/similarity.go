package detect

import (
	"math"
	"strings"
)

// minSharedTokenLength: tokens this short ("gmbh", "der", "und" would still
// pass at 3+, but 1-2 char noise does not) are ignored for overlap scoring.
const minSharedTokenLength = 3

// Similarity scores two merchant keys in [0,1]: 1 for equality, 0.8 when one
// contains the other, otherwise a token-overlap score. Zero when the keys
// share no token longer than two characters.
func Similarity(a, b string) float64 {
	if a == b {
		return 1.0
	}
	if a == "" || b == "" {
		return 0
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 0.8
	}

	tokensA := strings.Fields(a)
	tokensB := strings.Fields(b)

	inB := make(map[string]bool, len(tokensB))
	for _, t := range tokensB {
		if len(t) >= minSharedTokenLength {
			inB[t] = true
		}
	}

	shared := 0
	seen := make(map[string]bool, len(tokensA))
	for _, t := range tokensA {
		if len(t) >= minSharedTokenLength && inB[t] && !seen[t] {
			shared++
			seen[t] = true
		}
	}
	if shared == 0 {
		return 0
	}

	longest := math.Max(float64(len(tokensA)), float64(len(tokensB)))
	return 0.5 + 0.5*float64(shared)/longest
}

// AmountsSimilar reports whether two amounts are close enough to belong to
// the same recurring relationship. The relative difference is measured
// against the average magnitude; subscription-like merchants get the tighter
// tolerance because their billing is near-fixed.
func (c Config) AmountsSimilar(x, y float64, subscriptionCandidate bool) bool {
	ax, ay := math.Abs(x), math.Abs(y)
	avg := (ax + ay) / 2
	if avg == 0 {
		return true
	}

	tolerance := c.AmountTolerance
	if subscriptionCandidate {
		tolerance = c.SubscriptionAmountTolerance
	}
	return math.Abs(ax-ay)/avg <= tolerance
}
