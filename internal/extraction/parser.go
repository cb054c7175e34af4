package extraction

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ParsedTransaction is one statement line recognized as a transaction.
type ParsedTransaction struct {
	Date        time.Time
	Description string
	Amount      float64
	IsDebit     bool
}

// transactionLineRe matches "date ... description ... amount" statement
// lines. Amounts may use either decimal convention (1,234.56 or 1.234,56),
// an optional sign, and an optional currency suffix.
var transactionLineRe = regexp.MustCompile(
	`(?i)^` +
		// Date: DD.MM.YYYY, DD/MM/YYYY, DD-MM-YYYY or YYYY-MM-DD
		`(\d{1,2}[./-]\d{1,2}[./-]\d{2,4}|\d{4}-\d{2}-\d{2})` +
		// Description, non-greedy
		`\s+(.+?)\s+` +
		// Amount with optional sign, thousands separators and currency
		`([+-]?\d{1,3}(?:[.,]\d{3})*[.,]\d{2})\s*(?:EUR|€|\$)?\s*(CR|DR|[HS])?$`,
)

// dateFormats tried in order when parsing extracted dates.
var dateFormats = []string{
	"02.01.2006",
	"2.1.2006",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
	"02.01.06",
	"02/01/06",
}

// ParseStatementText runs the line matcher over extracted PDF text lines and
// returns every recognized transaction. Lines that do not match are skipped
// silently; statement headers and footers never match.
func ParseStatementText(lines []string) []ParsedTransaction {
	var out []ParsedTransaction
	for _, line := range lines {
		m := transactionLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		date, ok := parseFlexibleDate(strings.TrimSpace(m[1]))
		if !ok {
			continue
		}
		amount, ok := parseAmount(strings.TrimSpace(m[3]))
		if !ok || amount == 0 {
			continue
		}

		// Credit markers: "CR" and the German "H" (Haben) mean money in.
		marker := strings.ToUpper(strings.TrimSpace(m[4]))
		isDebit := amount < 0 || (marker != "CR" && marker != "H")

		out = append(out, ParsedTransaction{
			Date:        date,
			Description: strings.TrimSpace(m[2]),
			Amount:      amount,
			IsDebit:     isDebit,
		})
	}
	return out
}

func parseFlexibleDate(s string) (time.Time, bool) {
	for _, layout := range dateFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// parseAmount handles both "1,234.56" and "1.234,56". The last separator in
// the string is the decimal point.
func parseAmount(s string) (float64, bool) {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	normalized := s
	if lastComma > lastDot {
		// German convention: dots group thousands, comma is decimal.
		normalized = strings.ReplaceAll(normalized, ".", "")
		normalized = strings.Replace(normalized, ",", ".", 1)
	} else {
		normalized = strings.ReplaceAll(normalized, ",", "")
	}

	v, err := strconv.ParseFloat(normalized, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
