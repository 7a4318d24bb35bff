package ride

import (
	"math"

	"github.com/eboda/ride-hail-realtime/internal/geo"
)

// Fare rates in UGX.
const (
	baseFare      = 2000.0
	perKmRate     = 1500.0
	perMinuteRate = 100.0

	// assumed average city speed used to estimate trip duration
	averageSpeedKmh = 30.0

	minimumDurationMinutes = 5
)

// EstimateTrip derives the road distance and expected duration between
// pickup and dropoff. Duration is never estimated below five minutes.
func EstimateTrip(pickup, dropoff geo.Point) (distanceKm float64, durationMinutes int) {
	distanceKm = math.Round(geo.HaversineKm(pickup, dropoff)*100) / 100
	durationMinutes = int(math.Round(distanceKm / averageSpeedKmh * 60))
	if durationMinutes < minimumDurationMinutes {
		durationMinutes = minimumDurationMinutes
	}
	return distanceKm, durationMinutes
}

// CalculateFare prices a trip from distance and duration, rounded to
// the nearest 500 UGX.
func CalculateFare(distanceKm float64, durationMinutes int) float64 {
	total := baseFare + distanceKm*perKmRate + float64(durationMinutes)*perMinuteRate
	return math.Round(total/500) * 500
}
