package series

import (
	"github.com/montanaflynn/stats"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// Summarize computes descriptive statistics of a series. An empty series
// yields a zero summary.
func Summarize(s domain.WindowSeries) domain.SeriesSummary {
	summary := domain.SeriesSummary{Label: s.Label}
	data := stats.LoadRawData(s.Counts())
	if data.Len() == 0 {
		return summary
	}

	// The stats functions only fail on empty input, which is handled above.
	total, _ := data.Sum()
	mean, _ := data.Mean()
	median, _ := data.Median()
	maximum, _ := data.Max()

	summary.Total = int(total)
	summary.Mean = mean
	summary.Median = median
	summary.Max = int(maximum)
	return summary
}

// Divide returns numerator/denominator, or an invalid Quotient when the
// denominator is zero.
func Divide(numerator, denominator int) domain.Quotient {
	if denominator == 0 {
		return domain.Quotient{}
	}
	return domain.Quotient{Value: float64(numerator) / float64(denominator), Valid: true}
}
