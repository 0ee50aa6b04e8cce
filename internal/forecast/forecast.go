// Package forecast predicts when a product runs out of stock by fitting
// a line through its stock level history since the last restock.
package forecast

import (
	"time"
)

// Sample is the stock level at the end of one calendar day.
type Sample struct {
	Day   time.Time
	Stock int64
}

// MinSamples below which no prediction is attempted. A single day of
// sales says nothing about a trend.
const MinSamples = 2

// BuildSeries turns a starting stock level and per-day deltas into
// cumulative end-of-day samples. Days with no movement are filled in so
// quiet days flatten the fitted line instead of disappearing from it.
func BuildSeries(start time.Time, startStock int64, deltas map[time.Time]int64, until time.Time) []Sample {
	startDay := start.Truncate(24 * time.Hour)
	untilDay := until.Truncate(24 * time.Hour)
	if untilDay.Before(startDay) {
		return nil
	}

	var samples []Sample
	stock := startStock
	for day := startDay; !day.After(untilDay); day = day.AddDate(0, 0, 1) {
		stock += deltas[day]
		samples = append(samples, Sample{Day: day, Stock: stock})
	}
	return samples
}

// PredictOutOfStock fits stock = a + b*day over the samples and returns
// the date where the line crosses zero. It returns nil when there are
// too few samples, when stock is not trending down, or when the stock
// is already gone (the answer would be in the past, which callers treat
// as "order now" via the current quantity instead).
func PredictOutOfStock(samples []Sample) *time.Time {
	if len(samples) < MinSamples {
		return nil
	}

	origin := samples[0].Day
	n := float64(len(samples))
	var sumX, sumY, sumXY, sumXX float64
	for _, s := range samples {
		x := s.Day.Sub(origin).Hours() / 24
		y := float64(s.Stock)
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return nil
	}
	slope := (n*sumXY - sumX*sumY) / denom
	intercept := (sumY - slope*sumX) / n

	if slope >= 0 {
		return nil
	}

	daysToZero := -intercept / slope
	predicted := origin.AddDate(0, 0, int(daysToZero))
	if predicted.Before(samples[len(samples)-1].Day) {
		predicted = samples[len(samples)-1].Day
	}
	t := predicted
	return &t
}
