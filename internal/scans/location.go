package scans

import (
	"context"
	"math"

	"github.com/stagecrew/rentline-backend/pkg/authz"
)

// Coordinates is a WGS84 point reported by a scanning device.
type Coordinates struct {
	Lat float64
	Lng float64
}

// LocationGate decides whether a scan reported from the given point is
// acceptable for the actor.
type LocationGate interface {
	Allow(ctx context.Context, actor authz.Actor, point Coordinates) (bool, error)
}

// HomeBaseResolver returns the warehouse location an actor scans from.
type HomeBaseResolver func(ctx context.Context, actor authz.Actor) (Coordinates, error)

// RadiusGate accepts scans within maxDistanceMeters of the actor's home
// base.
type RadiusGate struct {
	resolve           HomeBaseResolver
	maxDistanceMeters float64
}

// NewRadiusGate builds a gate around the resolver. A non-positive max
// distance disables the check.
func NewRadiusGate(resolve HomeBaseResolver, maxDistanceMeters float64) *RadiusGate {
	return &RadiusGate{resolve: resolve, maxDistanceMeters: maxDistanceMeters}
}

func (g *RadiusGate) Allow(ctx context.Context, actor authz.Actor, point Coordinates) (bool, error) {
	if g.maxDistanceMeters <= 0 {
		return true, nil
	}
	base, err := g.resolve(ctx, actor)
	if err != nil {
		return false, err
	}
	return haversineMeters(base, point) <= g.maxDistanceMeters, nil
}

const earthRadiusMeters = 6371000.0

func haversineMeters(a, b Coordinates) float64 {
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(latA)*math.Cos(latB)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
