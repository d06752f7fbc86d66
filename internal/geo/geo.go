// Package geo answers distance questions on the sphere for the nearby
// listing.
package geo

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

const EarthRadiusKm = 6371.0088

// DistanceKm is the great-circle distance between two coordinates.
func DistanceKm(lat1, lng1, lat2, lng2 float64) float64 {
	a := s2.LatLngFromDegrees(lat1, lng1)
	b := s2.LatLngFromDegrees(lat2, lng2)
	return a.Distance(b).Radians() * EarthRadiusKm
}

// Within reports whether (lat, lng) lies within radiusKm of the center.
func Within(centerLat, centerLng, radiusKm, lat, lng float64) bool {
	return DistanceKm(centerLat, centerLng, lat, lng) <= radiusKm
}

// Box is a lat/lng rectangle in degrees. When WrapsLng is set the longitude
// range crosses the antimeridian or covers every longitude, and callers must
// not filter on longitude.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
	WrapsLng       bool
}

// BoundingBox returns a rectangle enclosing the spherical cap of radiusKm
// around the center, suitable as a coarse SQL prefilter.
func BoundingBox(lat, lng, radiusKm float64) Box {
	center := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lng))
	angle := s1.Angle(radiusKm / EarthRadiusKm)
	rect := s2.CapFromCenterAngle(center, angle).RectBound()

	b := Box{
		MinLat: s1.Angle(rect.Lat.Lo).Degrees(),
		MaxLat: s1.Angle(rect.Lat.Hi).Degrees(),
		MinLng: s1.Angle(rect.Lng.Lo).Degrees(),
		MaxLng: s1.Angle(rect.Lng.Hi).Degrees(),
	}
	if rect.Lng.IsFull() || rect.Lng.IsInverted() {
		b.WrapsLng = true
	}
	return b
}
