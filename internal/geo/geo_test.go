package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistanceKm(t *testing.T) {
	assert.InDelta(t, 111.195, DistanceKm(0, 0, 1, 0), 0.01)
	assert.InDelta(t, 0, DistanceKm(10.76, 106.66, 10.76, 106.66), 1e-9)

	// two points in Ho Chi Minh City, roughly 1.5 km apart
	d := DistanceKm(10.762622, 106.660172, 10.772622, 106.670172)
	assert.InDelta(t, 1.55, d, 0.05)
}

func TestWithin(t *testing.T) {
	assert.True(t, Within(10.76, 106.66, 5, 10.77, 106.67))
	assert.False(t, Within(10.76, 106.66, 5, 21.02, 105.83)) // Hanoi
}

func TestBoundingBox(t *testing.T) {
	b := BoundingBox(10.76, 106.66, 10)
	assert.False(t, b.WrapsLng)
	assert.Less(t, b.MinLat, 10.76)
	assert.Greater(t, b.MaxLat, 10.76)
	assert.Less(t, b.MinLng, 106.66)
	assert.Greater(t, b.MaxLng, 106.66)

	// the box must enclose every point on the circle
	assert.InDelta(t, 10.76-b.MinLat, b.MaxLat-10.76, 1e-6)
	assert.GreaterOrEqual(t, (b.MaxLat-10.76)*111.195, 10.0-0.01)
}

func TestBoundingBoxAcrossAntimeridian(t *testing.T) {
	b := BoundingBox(0, 179.99, 50)
	assert.True(t, b.WrapsLng)
}
