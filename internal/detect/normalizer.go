package detect

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const maxKeyTokens = 3

// Patterns stripped from raw statement descriptions, in application order.
// All matching happens on the lowercased string.
var (
	// Payment-method prefixes anchored at the start: card networks,
	// direct-debit, credit and charge labels. Applied repeatedly so stacked
	// prefixes ("visa lastschrift ...") are fully removed.
	payPrefixRe = regexp.MustCompile(`^(?:visa|mastercard|maestro|amex|girocard|kartenzahlung|lastschrift|kreditkarte|credit|debit|charge|pos|eftpos)\b\.?\s*`)

	// IBAN/BIC key-value fragments, e.g. "iban: de8937040044".
	ibanRe = regexp.MustCompile(`\b(?:iban|bic)[:.]?\s*[a-z0-9]+`)

	// Date tokens in DD.MM.YYYY or DD/MM/YYYY form.
	dateRe = regexp.MustCompile(`\b\d{2}[./]\d{2}[./]\d{4}\b`)

	// Reference, order and transaction-number fragments,
	// e.g. "ref: 7f2-99x" or "rechnung 2024-0113".
	refRe = regexp.MustCompile(`\b(?:ref|referenz|reference|mandatsref|mandat|mandate|auftrag|order|rechnung|invoice|trx|transaktion|kundennr)[:.]?\s*[a-z0-9][a-z0-9-]*`)

	// Monetary amounts with an optional currency glyph.
	amountRe = regexp.MustCompile(`[+-]?\d+[.,]\d+\s*(?:eur|euro|€|\$)?`)

	whitespaceRe = regexp.MustCompile(`\s+`)

	titleCaser = cases.Title(language.German)
)

// NormalizeMerchantKey reduces a raw transaction description to the canonical
// merchant key used for clustering: lowercase, payment noise stripped,
// whitespace collapsed, at most three tokens. Pure; empty input yields empty
// output and absent patterns are a no-op.
func NormalizeMerchantKey(description string) string {
	s := strings.ToLower(strings.TrimSpace(description))
	if s == "" {
		return ""
	}

	for {
		stripped := payPrefixRe.ReplaceAllString(s, "")
		if stripped == s {
			break
		}
		s = stripped
	}

	s = ibanRe.ReplaceAllString(s, " ")
	s = dateRe.ReplaceAllString(s, " ")
	s = refRe.ReplaceAllString(s, " ")
	s = amountRe.ReplaceAllString(s, " ")

	s = strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))

	tokens := strings.Fields(s)
	if len(tokens) > maxKeyTokens {
		tokens = tokens[:maxKeyTokens]
	}
	return strings.Join(tokens, " ")
}

// DisplayMerchantName formats a raw description into a human-readable
// merchant label: normalized key, title-cased per word.
func DisplayMerchantName(description string) string {
	key := NormalizeMerchantKey(description)
	if key == "" {
		return ""
	}
	words := strings.Fields(key)
	for i, w := range words {
		if len(w) > 2 {
			words[i] = titleCaser.String(w)
		} else {
			words[i] = strings.ToUpper(w)
		}
	}
	return strings.Join(words, " ")
}
