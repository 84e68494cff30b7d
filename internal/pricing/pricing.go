// Package pricing holds the occupancy-sensitive rate quote and the
// duration-based charge used when a vehicle leaves.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"
)

// GracePeriod is the parking time that is never billed.
const GracePeriod = 30 * time.Minute

// Tier is a half-open occupancy band [From, next tier's From).
type Tier struct {
	From       float64
	Multiplier decimal.Decimal
}

// Tiers is ordered by From ascending. Ratios at or above the last From use
// the last multiplier.
var Tiers = []Tier{
	{From: 0, Multiplier: decimal.RequireFromString("0.90")},
	{From: 0.25, Multiplier: decimal.RequireFromString("1.00")},
	{From: 0.50, Multiplier: decimal.RequireFromString("1.10")},
	{From: 0.75, Multiplier: decimal.RequireFromString("1.25")},
}

// Multiplier returns the tier multiplier for an occupancy ratio measured
// before the new vehicle is admitted.
func Multiplier(occupancyRatio float64) decimal.Decimal {
	m := Tiers[0].Multiplier
	for _, t := range Tiers {
		if occupancyRatio < t.From {
			break
		}
		m = t.Multiplier
	}
	return m
}

// Quote returns the hourly rate locked in at entry.
func Quote(basePrice decimal.Decimal, occupancyRatio float64) decimal.Decimal {
	return roundMoney(basePrice.Mul(Multiplier(occupancyRatio)))
}

// BillableHours returns the number of started hours after the grace period.
// Only whole elapsed minutes count.
func BillableHours(duration time.Duration) int64 {
	minutes := int64(duration / time.Minute)
	graceMinutes := int64(GracePeriod / time.Minute)
	if minutes <= graceMinutes {
		return 0
	}
	return (minutes - graceMinutes + 59) / 60
}

// Charge bills the stay between entry and exit at the given hourly rate.
// Callers validate that exit is not before entry.
func Charge(entry, exit time.Time, rate decimal.Decimal) decimal.Decimal {
	hours := BillableHours(exit.Sub(entry))
	if hours == 0 {
		return decimal.Zero
	}
	return roundMoney(rate.Mul(decimal.NewFromInt(hours)))
}

// roundMoney rounds to cents, half away from zero (half-up for the
// non-negative amounts used here).
func roundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}
