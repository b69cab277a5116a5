package booking

import (
	"time"

	"github.com/iliyamo/parking-slot-reservation/internal/model"
)

// Default rates in cents.
const (
	DefaultBaseRateCents     int64 = 10000
	DefaultEVSurchargeCents  int64 = 5000
	DefaultVIPSurchargeCents int64 = 10000
)

// Rates holds the hourly base rate and the per-category surcharges, all in
// cents.  Surcharges are added to the hourly rate before multiplying by
// the billed hours.
type Rates struct {
	BaseCents         int64
	EVSurchargeCents  int64
	VIPSurchargeCents int64
}

// DefaultRates returns the standard tariff: 100.00 per hour, +50.00 for EV
// slots and +100.00 for VIP slots.
func DefaultRates() Rates {
	return Rates{
		BaseCents:         DefaultBaseRateCents,
		EVSurchargeCents:  DefaultEVSurchargeCents,
		VIPSurchargeCents: DefaultVIPSurchargeCents,
	}
}

// HourlyCents returns the hourly rate for a slot category.
func (r Rates) HourlyCents(c model.Category) int64 {
	switch c {
	case model.CategoryEV, model.CategoryTwoWheelerEV:
		return r.BaseCents + r.EVSurchargeCents
	case model.CategoryVIP:
		return r.BaseCents + r.VIPSurchargeCents
	default:
		return r.BaseCents
	}
}

// BilledHours converts a window into the number of hours charged: whole
// minutes rounded up to the next hour, never less than one.
func BilledHours(start, end time.Time) (int64, error) {
	if err := ValidateRange(start, end); err != nil {
		return 0, err
	}
	minutes := int64(end.Sub(start) / time.Minute)
	hours := (minutes + 59) / 60
	if hours < 1 {
		hours = 1
	}
	return hours, nil
}

// Price computes the price in cents for booking a slot of category c over
// [start,end).
func (r Rates) Price(c model.Category, start, end time.Time) (int64, error) {
	hours, err := BilledHours(start, end)
	if err != nil {
		return 0, err
	}
	return r.HourlyCents(c) * hours, nil
}
