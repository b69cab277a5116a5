package booking

import (
	"errors"
	"testing"
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

func TestRatesPrice(t *testing.T) {
	rates := DefaultRates()
	start := at(9, 0)
	cases := []struct {
		name     string
		category model.Category
		duration time.Duration
		want     int64
	}{
		{"90 minute regular bills two hours", model.CategoryRegular, 90 * time.Minute, 20000},
		{"30 minute VIP bills one hour", model.CategoryVIP, 30 * time.Minute, 20000},
		{"60 minute EV bills exactly one hour", model.CategoryEV, time.Hour, 15000},
		{"two-wheeler EV gets the EV surcharge", model.CategoryTwoWheelerEV, 2 * time.Hour, 30000},
		{"handicap has no surcharge", model.CategoryHandicap, 61 * time.Minute, 20000},
		{"seconds below a minute are not billed", model.CategoryTwoWheeler, time.Hour + 30*time.Second, 10000},
		{"one minute still bills an hour", model.CategoryRegular, time.Minute, 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := rates.Price(tc.category, start, start.Add(tc.duration))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tc.want {
				t.Fatalf("Price = %d, want %d", got, tc.want)
			}
		})
	}
}

func TestRatesPrice_InvalidRange(t *testing.T) {
	rates := DefaultRates()
	if _, err := rates.Price(model.CategoryRegular, at(10, 0), at(9, 0)); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange, got %v", err)
	}
	if _, err := rates.Price(model.CategoryRegular, at(10, 0), at(10, 0)); !errors.Is(err, ErrInvalidTimeRange) {
		t.Fatalf("expected ErrInvalidTimeRange for empty window, got %v", err)
	}
}

func TestRates_CustomTariff(t *testing.T) {
	rates := Rates{BaseCents: 5000, EVSurchargeCents: 1000, VIPSurchargeCents: 2500}
	got, err := rates.Price(model.CategoryVIP, at(8, 0), at(10, 15))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 3*7500 {
		t.Fatalf("Price = %d, want %d", got, 3*7500)
	}
}
