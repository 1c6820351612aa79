package geo

import (
	"context"
	"errors"
	"math"
	"strings"

	"github.com/yeremiapane/restaurant-dispatch/utils"
)

var (
	ErrNotFound     = errors.New("address not found")
	ErrUnconfigured = errors.New("geocoder not configured")
)

type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Geocoder turns a free-form address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (Point, error)
}

const earthRadiusKm = 6371.0

// DistanceKm is the great-circle distance between a and b.
func DistanceKm(a, b Point) float64 {
	toRad := func(d float64) float64 { return d * math.Pi / 180 }
	dLat := toRad(b.Lat - a.Lat)
	dLon := toRad(b.Lon - a.Lon)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(a.Lat))*math.Cos(toRad(b.Lat))*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}

// Resolution is what checkout needs to know about a delivery address.
type Resolution struct {
	Point      *Point
	DistanceKm float64
	Estimated  bool
}

// Resolver geocodes an address and measures it from an origin, falling back
// to the keyword estimator whenever the geocoder fails.
type Resolver struct {
	geocoder Geocoder
}

func NewResolver(g Geocoder) *Resolver {
	return &Resolver{geocoder: g}
}

// Locate only geocodes; the point is nil when the lookup failed.
func (r *Resolver) Locate(ctx context.Context, address string) *Point {
	if r.geocoder == nil || strings.TrimSpace(address) == "" {
		return nil
	}
	p, err := r.geocoder.Geocode(ctx, address)
	if err != nil {
		if !errors.Is(err, ErrUnconfigured) {
			utils.InfoLogger.WithField("address", address).Warnf("Geocoding failed, using estimate: %v", err)
		}
		return nil
	}
	return &p
}

// Resolve never fails: an unknown address gets the estimator's distance.
func (r *Resolver) Resolve(ctx context.Context, address string, origin Point) Resolution {
	if p := r.Locate(ctx, address); p != nil {
		return Resolution{Point: p, DistanceKm: round1(DistanceKm(origin, *p))}
	}
	return Resolution{DistanceKm: EstimateDistanceKm(address), Estimated: true}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
