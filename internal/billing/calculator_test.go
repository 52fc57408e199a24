package billing

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculate(t *testing.T) {
	arrival := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	at := func(d time.Duration) *time.Time {
		ts := arrival.Add(d)
		return &ts
	}

	cases := []struct {
		name      string
		departure *time.Time
		grace     int
		rate      string
		elapsed   int
		detention int
		amount    string
		skew      bool
	}{
		{name: "billable wait", departure: at(150 * time.Minute), grace: 120, rate: "75", elapsed: 150, detention: 30, amount: "37.50"},
		{name: "inside grace", departure: at(90 * time.Minute), grace: 120, rate: "75", elapsed: 90, detention: 0, amount: "0"},
		{name: "exactly grace", departure: at(120 * time.Minute), grace: 120, rate: "75", elapsed: 120, detention: 0, amount: "0"},
		{name: "no grace", departure: at(60 * time.Minute), grace: 0, rate: "50", elapsed: 60, detention: 60, amount: "50"},
		{name: "half minute rounds up", departure: at(90 * time.Second), grace: 0, rate: "60", elapsed: 2, detention: 2, amount: "2"},
		{name: "under half minute rounds down", departure: at(29 * time.Second), grace: 0, rate: "60", elapsed: 0, detention: 0, amount: "0"},
		{name: "departure before arrival", departure: at(-10 * time.Minute), grace: 0, rate: "75", elapsed: 0, detention: 0, amount: "0", skew: true},
		{name: "negative grace clamped", departure: at(30 * time.Minute), grace: -15, rate: "60", elapsed: 30, detention: 30, amount: "30"},
		{name: "cent rounding half up", departure: at(1 * time.Minute), grace: 0, rate: "0.30", elapsed: 1, detention: 1, amount: "0.01"},
		{name: "long wait", departure: at(7*time.Hour + 20*time.Minute), grace: 120, rate: "85", elapsed: 440, detention: 320, amount: "453.33"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Calculate(CalculationInput{
				ArrivalTime:        arrival,
				DepartureTime:      tc.departure,
				GracePeriodMinutes: tc.grace,
				HourlyRate:         dec(tc.rate),
			}, arrival)
			if got.TotalElapsedMinutes != tc.elapsed {
				t.Fatalf("elapsed: expected %d, got %d", tc.elapsed, got.TotalElapsedMinutes)
			}
			if got.DetentionMinutes != tc.detention {
				t.Fatalf("detention: expected %d, got %d", tc.detention, got.DetentionMinutes)
			}
			if !got.TotalAmount.Equal(dec(tc.amount)) {
				t.Fatalf("amount: expected %s, got %s", tc.amount, got.TotalAmount)
			}
			if got.ClockSkew != tc.skew {
				t.Fatalf("skew: expected %v, got %v", tc.skew, got.ClockSkew)
			}
		})
	}
}

func TestCalculate_ActiveUsesNow(t *testing.T) {
	arrival := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	in := CalculationInput{ArrivalTime: arrival, GracePeriodMinutes: 60, HourlyRate: dec("60")}

	first := Calculate(in, arrival.Add(3*time.Hour))
	second := Calculate(in, arrival.Add(3*time.Hour))
	if first.DetentionMinutes != second.DetentionMinutes || !first.TotalAmount.Equal(second.TotalAmount) {
		t.Fatalf("expected repeated calls to agree, got %+v and %+v", first, second)
	}
	if first.DetentionMinutes != 120 || !first.TotalAmount.Equal(dec("120")) {
		t.Fatalf("unexpected live calculation %+v", first)
	}
}

func TestDetentionMinutesNeverNegative(t *testing.T) {
	for elapsed := 0; elapsed <= 300; elapsed += 7 {
		for grace := 0; grace <= 240; grace += 11 {
			got := DetentionMinutes(elapsed, grace)
			want := elapsed - grace
			if want < 0 {
				want = 0
			}
			if got != want {
				t.Fatalf("elapsed=%d grace=%d: expected %d, got %d", elapsed, grace, want, got)
			}
		}
	}
}

func TestRound2(t *testing.T) {
	cases := map[string]string{
		"37.5":    "37.5",
		"1.005":   "1.01",
		"2.675":   "2.68",
		"0.004":   "0",
		"0.005":   "0.01",
		"112.499": "112.5",
		"-1.005":  "-1.01",
	}
	for in, want := range cases {
		if got := Round2(dec(in)); !got.Equal(dec(want)) {
			t.Fatalf("Round2(%s): expected %s, got %s", in, want, got)
		}
	}
}

func TestSum(t *testing.T) {
	if got := Sum(dec("37.50"), dec("112.50")); !got.Equal(dec("150")) {
		t.Fatalf("expected 150, got %s", got)
	}
	if got := Sum(dec("0.1"), dec("0.2")); got.String() != "0.3" {
		t.Fatalf("expected exactly 0.3, got %s", got)
	}
	if got := Sum(); !got.IsZero() {
		t.Fatalf("expected zero for no amounts, got %s", got)
	}
}

func TestAmount_ThirdsOfACent(t *testing.T) {
	// 320 minutes at $85/h is 453.3333...; 1 minute at $0.30/h is exactly half a cent.
	if got := Amount(320, dec("85")); got.String() != "453.33" {
		t.Fatalf("expected 453.33, got %s", got)
	}
	if got := Amount(1, dec("0.30")); got.String() != "0.01" {
		t.Fatalf("expected 0.01, got %s", got)
	}
	if got := Amount(30, dec("-10")); !got.IsZero() {
		t.Fatalf("expected zero for non-positive rate, got %s", got)
	}
}
