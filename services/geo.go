package services

import "math"

// MilesPerDegree is the flat degrees-to-miles conversion used for the nearby
// feed. It is an approximation (exact only for latitude degrees); distances
// in the feed are advisory, not a filter, so the error is acceptable at
// neighborhood scale. Swap in HaversineMiles where accuracy matters.
const MilesPerDegree = 69.0

const earthRadiusMiles = 3958.8

// DistanceFunc computes the distance in miles between two points.
type DistanceFunc func(lat1, lng1, lat2, lng2 float64) float64

// FlatMiles converts the euclidean degree delta between two points to miles
// with a fixed multiplier. Matches the feed's historical behavior.
func FlatMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := lat2 - lat1
	dLng := lng2 - lng1
	return math.Sqrt(dLat*dLat+dLng*dLng) * MilesPerDegree
}

// HaversineMiles computes the great-circle distance between two points.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180.0
	dLng := (lng2 - lng1) * math.Pi / 180.0
	la1 := lat1 * math.Pi / 180.0
	la2 := lat2 * math.Pi / 180.0
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Sin(dLng/2)*math.Sin(dLng/2)*math.Cos(la1)*math.Cos(la2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}

// ValidCoordinates reports whether lat/lng fall in the WGS84 ranges.
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}
