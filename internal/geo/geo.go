package geo

import "math"

const (
	EarthRadiusKm = 6371.0

	// metersPerDegree is the length of one degree of latitude at the
	// equator, used by the cheap equirectangular approximation.
	metersPerDegree = 111000.0
)

// Point is a validated (latitude, longitude) pair.
type Point struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Valid reports whether the point lies within [-90,90]x[-180,180].
func (p Point) Valid() bool {
	return p.Latitude >= -90 && p.Latitude <= 90 &&
		p.Longitude >= -180 && p.Longitude <= 180
}

func degreesToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// HaversineKm returns the great-circle distance between two points in
// kilometers.
func HaversineKm(a, b Point) float64 {
	lat1 := degreesToRadians(a.Latitude)
	lat2 := degreesToRadians(b.Latitude)
	deltaLat := degreesToRadians(b.Latitude - a.Latitude)
	deltaLon := degreesToRadians(b.Longitude - a.Longitude)

	h := math.Pow(math.Sin(deltaLat/2), 2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Pow(math.Sin(deltaLon/2), 2)

	return EarthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// EquirectangularMeters returns an approximate distance in meters.
// It trades accuracy for speed and is only meant for the small
// displacements seen between consecutive location updates.
func EquirectangularMeters(a, b Point) float64 {
	dLat := math.Abs(b.Latitude-a.Latitude) * metersPerDegree
	dLon := math.Abs(b.Longitude-a.Longitude) * metersPerDegree * 0.9
	return math.Sqrt(dLat*dLat + dLon*dLon)
}
