package detect

import (
	"math"
	"time"

	"github.com/finboard/backend/internal/model"
)

// ClassifyFrequency infers the payment cadence from the ordered day-gaps
// between consecutive transactions. Bands are checked weekly, monthly,
// yearly; when none match and only a single gap exists, the relaxed
// single-gap bounds are tried monthly first, then yearly, then weekly,
// since deviation-based matching is undefined with one sample.
func ClassifyFrequency(gaps []float64) model.Frequency {
	if len(gaps) == 0 {
		return model.FrequencyNone
	}

	var sum float64
	for _, g := range gaps {
		sum += g
	}
	mean := sum / float64(len(gaps))

	var maxDev float64
	for _, g := range gaps {
		if d := math.Abs(g - mean); d > maxDev {
			maxDev = d
		}
	}

	switch {
	case mean >= weeklyMeanMin && mean <= weeklyMeanMax && maxDev <= weeklyMaxDev:
		return model.FrequencyWeekly
	case mean >= monthlyMeanMin && mean <= monthlyMeanMax && maxDev <= monthlyMaxDev:
		return model.FrequencyMonthly
	case mean >= yearlyMeanMin && mean <= yearlyMeanMax && maxDev <= yearlyMaxDev:
		return model.FrequencyYearly
	}

	if len(gaps) == 1 {
		return singleGapFrequency(gaps[0])
	}
	return model.FrequencyNone
}

func singleGapFrequency(gap float64) model.Frequency {
	switch {
	case gap >= singleGapMonthlyMin && gap <= singleGapMonthlyMax:
		return model.FrequencyMonthly
	case gap >= singleGapYearlyMin && gap <= singleGapYearlyMax:
		return model.FrequencyYearly
	case gap >= singleGapWeeklyMin && gap <= singleGapWeeklyMax:
		return model.FrequencyWeekly
	default:
		return model.FrequencyNone
	}
}

// NextDate advances a date by one period of the given frequency,
// calendar-aware for months and years.
func NextDate(last time.Time, freq model.Frequency) time.Time {
	switch freq {
	case model.FrequencyWeekly:
		return last.AddDate(0, 0, 7)
	case model.FrequencyMonthly:
		return last.AddDate(0, 1, 0)
	case model.FrequencyYearly:
		return last.AddDate(1, 0, 0)
	default:
		return last
	}
}
