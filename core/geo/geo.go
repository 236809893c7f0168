// Package geo provides the distance helpers shared by the tracker and the
// forecasting engine. All distances are in nautical miles.
package geo

import "math"

// EarthRadiusNM is the mean earth radius in nautical miles.
const EarthRadiusNM = 3440.065

// nmPerDegree is the length of one degree of latitude.
const nmPerDegree = 60.0

// Point is a WGS84 coordinate in decimal degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Valid reports whether the coordinate lies within the WGS84 range.
func (p Point) Valid() bool {
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}

// BoundingBox is an axis aligned latitude/longitude rectangle.
type BoundingBox struct {
	MinLat float64 `json:"min_lat"`
	MaxLat float64 `json:"max_lat"`
	MinLng float64 `json:"min_lng"`
	MaxLng float64 `json:"max_lng"`
}

// Contains reports whether p lies inside the box, edges included.
func (b BoundingBox) Contains(p Point) bool {
	return p.Lat >= b.MinLat && p.Lat <= b.MaxLat && p.Lng >= b.MinLng && p.Lng <= b.MaxLng
}

// GreatCircleNM returns the haversine distance between a and b.
func GreatCircleNM(a, b Point) float64 {
	if a == b {
		return 0
	}
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)
	dLat := lat2 - lat1
	dLng := toRad(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusNM * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

// PlanarNM returns a flat-earth approximation of the distance between a and b.
// Longitude degrees are scaled by the cosine of the mean latitude. Only use it
// for short ranges such as terminal geofences.
func PlanarNM(a, b Point) float64 {
	if a == b {
		return 0
	}
	dLat := b.Lat - a.Lat
	dLng := (b.Lng - a.Lng) * math.Cos(toRad((a.Lat+b.Lat)/2))
	return math.Hypot(dLat, dLng) * nmPerDegree
}

func toRad(deg float64) float64 { return deg * math.Pi / 180 }
