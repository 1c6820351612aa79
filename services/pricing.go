package services

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"
	"github.com/yeremiapane/restaurant-dispatch/config"
)

// CourierQuote prices a delivery for the courier who takes it:
// price = clamp(distance x rate, min, max), minutes = max(min, distance x minutes per km).
func CourierQuote(b config.Business, distanceKm float64) (decimal.Decimal, int) {
	if distanceKm < 0 {
		distanceKm = 0
	}
	price := decimal.NewFromFloat(distanceKm).Mul(b.CourierBaseRate).Round(0)
	if price.LessThan(b.MinCourierPrice) {
		price = b.MinCourierPrice
	}
	if price.GreaterThan(b.MaxCourierPrice) {
		price = b.MaxCourierPrice
	}

	minutes := int(math.Ceil(distanceKm * float64(b.MinutesPerKm)))
	if minutes < b.MinCourierMinutes {
		minutes = b.MinCourierMinutes
	}
	return price, minutes
}

// EstimateReady is (queue position + 1) x average preparation time from now.
func EstimateReady(b config.Business, queuePosition int64, now time.Time) time.Time {
	return now.Add(time.Duration(queuePosition+1) * time.Duration(b.AvgPrepMinutes) * time.Minute)
}

// Cashback is total x pct / 100.
func Cashback(total, pct decimal.Decimal) decimal.Decimal {
	return total.Mul(pct).Div(decimal.NewFromInt(100)).Round(2)
}

func ReceiptNumber(at time.Time, ticketNo int64) string {
	return fmt.Sprintf("RCP/%s/%06d", at.Format("20060102"), ticketNo)
}
