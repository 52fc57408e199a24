// Package billing holds the pure detention billing rules: time calculation,
// lifecycle transition tables, number and code generation, and contact ranking.
package billing

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

var minutesPerHour = decimal.NewFromInt(60)

type CalculationInput struct {
	ArrivalTime        time.Time
	DepartureTime      *time.Time
	GracePeriodMinutes int
	HourlyRate         decimal.Decimal
}

type Calculation struct {
	TotalElapsedMinutes int             `json:"total_elapsed_minutes"`
	DetentionMinutes    int             `json:"detention_minutes"`
	TotalAmount         decimal.Decimal `json:"total_amount"`
	// ClockSkew is set when departure precedes arrival and elapsed time was clamped to zero.
	ClockSkew bool `json:"clock_skew"`
}

// Calculate converts timestamps into billable minutes and an amount. A nil
// departure is measured against now, which makes it usable for live display.
func Calculate(in CalculationInput, now time.Time) Calculation {
	end := now
	if in.DepartureTime != nil {
		end = *in.DepartureTime
	}

	var result Calculation
	if end.Before(in.ArrivalTime) {
		result.ClockSkew = true
	} else {
		result.TotalElapsedMinutes = int(math.Round(float64(end.Sub(in.ArrivalTime)) / float64(time.Minute)))
	}

	result.DetentionMinutes = DetentionMinutes(result.TotalElapsedMinutes, in.GracePeriodMinutes)
	result.TotalAmount = Amount(result.DetentionMinutes, in.HourlyRate)
	return result
}

func DetentionMinutes(elapsed, grace int) int {
	if grace < 0 {
		grace = 0
	}
	if elapsed <= grace {
		return 0
	}
	return elapsed - grace
}

func Amount(detentionMinutes int, hourlyRate decimal.Decimal) decimal.Decimal {
	if detentionMinutes <= 0 || !hourlyRate.IsPositive() {
		return decimal.Zero
	}
	return Round2(decimal.NewFromInt(int64(detentionMinutes)).Mul(hourlyRate).Div(minutesPerHour))
}

// Round2 rounds to cents, half away from zero.
func Round2(v decimal.Decimal) decimal.Decimal {
	return v.Round(2)
}

// Sum adds amounts and rounds the total to cents.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return Round2(total)
}
