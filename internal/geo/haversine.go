// Package geo provides the great-circle distance used by map questions.
package geo

import (
	"math"

	"slidecast/internal/domain"
)

// earthRadiusKM is the mean Earth radius.
const earthRadiusKM = 6371

// Haversine returns the great-circle distance between two coordinates in
// kilometers.
func Haversine(a, b domain.LatLng) float64 {
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)

	h := math.Pow(math.Sin(dLat/2), 2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Pow(math.Sin(dLng/2), 2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusKM * c
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
