package geo

import "math"

// Earth radius in miles, matching the proximity thresholds which are
// expressed in miles.
const earthRadiusMiles = 3958.8

// Proximity thresholds for the notifier.
const (
	TenMinutesMiles = 5.0
	ArrivedMiles    = 0.1
)

// HaversineMiles returns the great-circle distance between two points
// in miles.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) + math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusMiles * c
}
