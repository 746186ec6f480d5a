// Package geo holds the distance math behind the nearby-provider search.
package geo

import "math"

const (
	EarthRadiusKm = 6371.0

	// DegreesPerKm is the coarse prefilter factor: 0.1 degree per km of
	// radius. One degree of latitude is ~111 km, so this over-selects by
	// roughly 11x on the latitude axis.
	DegreesPerKm = 0.1

	DefaultRadiusKm = 10.0

	// boxSlackDeg absorbs floating point error at the tangent points.
	boxSlackDeg = 1e-9
)

type Point struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

// LngRange is an inclusive longitude interval with Min <= Max.
type LngRange struct {
	Min float64
	Max float64
}

// BoundingBox is a latitude band intersected with zero or more longitude
// ranges. An empty LngRanges slice means every longitude is accepted.
type BoundingBox struct {
	MinLat    float64
	MaxLat    float64
	LngRanges []LngRange
}

func (b BoundingBox) Contains(p Point) bool {
	if p.Lat < b.MinLat || p.Lat > b.MaxLat {
		return false
	}
	if len(b.LngRanges) == 0 {
		return true
	}
	for _, r := range b.LngRanges {
		if p.Lng >= r.Min && p.Lng <= r.Max {
			return true
		}
	}
	return false
}

func toRadians(deg float64) float64 { return deg * math.Pi / 180 }
func toDegrees(rad float64) float64 { return rad * 180 / math.Pi }

// HaversineKm returns the great-circle distance between two points.
func HaversineKm(a, b Point) float64 {
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return EarthRadiusKm * c
}

// BoundingBoxFor returns a box that fully contains the circle of radiusKm
// around center.
//
// The base half-width is DegreesPerKm*radiusKm on both axes. That is always
// wide enough for latitude, but a degree of longitude shrinks with cos(lat),
// so the longitude half-width is widened to the circle's exact angular
// half-width when needed. Circles that reach a pole accept every longitude,
// and bands crossing the antimeridian are split in two.
func BoundingBoxFor(center Point, radiusKm float64) BoundingBox {
	delta := DegreesPerKm * radiusKm

	box := BoundingBox{
		MinLat: math.Max(center.Lat-delta, -90),
		MaxLat: math.Min(center.Lat+delta, 90),
	}

	angular := radiusKm / EarthRadiusKm // radians
	latRad := toRadians(math.Abs(center.Lat))
	if angular >= math.Pi/2-latRad {
		// The circle covers a pole.
		return box
	}

	exact := toDegrees(math.Asin(math.Sin(angular)/math.Cos(latRad))) + boxSlackDeg
	lngDelta := math.Max(delta, exact)
	if lngDelta >= 180 {
		return box
	}

	minLng := center.Lng - lngDelta
	maxLng := center.Lng + lngDelta
	switch {
	case minLng < -180:
		box.LngRanges = []LngRange{{Min: minLng + 360, Max: 180}, {Min: -180, Max: maxLng}}
	case maxLng > 180:
		box.LngRanges = []LngRange{{Min: minLng, Max: 180}, {Min: -180, Max: maxLng - 360}}
	default:
		box.LngRanges = []LngRange{{Min: minLng, Max: maxLng}}
	}
	return box
}

// ValidCoordinate reports whether p is a finite point on the globe.
func ValidCoordinate(p Point) bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lng) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lng, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lng >= -180 && p.Lng <= 180
}
