package routes

import (
	"fmt"
	"math"

	"github.com/example/medride/internal/fare"
	"github.com/example/medride/internal/models"
)

const (
	// straight-line miles understate road miles; 1.3 tracks urban grids well
	roadFactor  = 1.3
	avgSpeedMPH = 25.0
)

// Estimator derives route metrics from crow-flight distance. It serves as
// the provider of last resort so quotes always carry distance and duration
// components, just coarser ones.
type Estimator struct{}

func (Estimator) Lookup(from, to models.Coord) (fare.RouteInfo, error) {
	miles := haversineMeters(from.Lat, from.Lng, to.Lat, to.Lng) / metersPerMile * roadFactor
	mins := miles / avgSpeedMPH * 60
	return fare.RouteInfo{
		Distance: fmt.Sprintf("%.1f mi", miles),
		Duration: formatDuration(mins),
	}, nil
}

func haversineMeters(lat1, lng1, lat2, lng2 float64) float64 {
	const earthRadius = 6371000.0
	dLat := (lat2 - lat1) * math.Pi / 180
	dLng := (lng2 - lng1) * math.Pi / 180
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1*math.Pi/180)*math.Cos(lat2*math.Pi/180)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadius * c
}

// FallbackClient asks the primary provider first and degrades to the
// fallback when it errors.
type FallbackClient struct {
	Primary  Client
	Fallback Client
}

func (f *FallbackClient) Lookup(from, to models.Coord) (fare.RouteInfo, error) {
	v, err := f.Primary.Lookup(from, to)
	if err == nil {
		return v, nil
	}
	if f.Fallback == nil {
		return fare.RouteInfo{}, err
	}
	return f.Fallback.Lookup(from, to)
}
