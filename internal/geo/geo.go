package geo

import "math"

const (
	earthRadiusM = 6371000.0

	// MetersPerNM is the length of one nautical mile
	MetersPerNM = 1852.0

	// KnotsPerMPS converts meters per second to knots
	KnotsPerMPS = 3600.0 / MetersPerNM
)

// Position is a WGS-84 latitude/longitude pair in degrees
type Position struct {
	Lat float64
	Lon float64
}

// Plane is a local tangent plane centred on a reference position.
// Offsets are east/north meters, accurate for the short distances compared
// during association.
type Plane struct {
	ref    Position
	cosLat float64
}

// NewPlane creates a local plane centred on ref
func NewPlane(ref Position) Plane {
	return Plane{ref: ref, cosLat: math.Cos(toRad(ref.Lat))}
}

// Project returns the east/north offset of p from the plane's centre in meters
func (pl Plane) Project(p Position) (x, y float64) {
	dLon := p.Lon - pl.ref.Lon
	if dLon > 180 {
		dLon -= 360
	} else if dLon < -180 {
		dLon += 360
	}
	x = toRad(dLon) * pl.cosLat * earthRadiusM
	y = toRad(p.Lat-pl.ref.Lat) * earthRadiusM
	return x, y
}

// PlanarDistance projects b onto the plane centred on a and returns the
// cartesian distance in meters
func PlanarDistance(a, b Position) float64 {
	x, y := NewPlane(a).Project(b)
	return math.Hypot(x, y)
}

// Haversine returns the great-circle distance between a and b in meters
func Haversine(a, b Position) float64 {
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	lat1 := toRad(a.Lat)
	lat2 := toRad(b.Lat)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
	return earthRadiusM * c
}

// Interpolate returns the position a fraction f of the way from a to b,
// linear in latitude and longitude
func Interpolate(a, b Position, f float64) Position {
	return Position{
		Lat: a.Lat + (b.Lat-a.Lat)*f,
		Lon: a.Lon + (b.Lon-a.Lon)*f,
	}
}

// SpeedKnots returns the ground speed implied by moving from a to b in
// seconds. Non-positive durations yield ok=false.
func SpeedKnots(a, b Position, seconds float64) (knots float64, ok bool) {
	if seconds <= 0 {
		return 0, false
	}
	return Haversine(a, b) / seconds * KnotsPerMPS, true
}

func toRad(deg float64) float64 {
	return deg * math.Pi / 180
}
