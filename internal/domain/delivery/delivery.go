// Package delivery implements delivery-fee resolution: the flat-fee rule for
// a resolved zone and the fallback chain that resolves a destination to a
// zone when the primary geocoder is unavailable.
package delivery

import (
	"context"
	"math"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Method is how the customer receives the order.
type Method string

const (
	MethodCourier Method = "delivery"
	MethodPickup  Method = "pickup"
)

// ErrNoZones is returned when a destination cannot be matched to any zone.
var ErrNoZones = errors.New("no delivery zones available")

// Zone is a geographic delivery tier: a flat fee and the order total from
// which delivery becomes free.
type Zone struct {
	ID            string
	Name          string
	Price         decimal.Decimal
	FreeFromPrice decimal.Decimal
	Center        Point
}

// Point is a WGS84 coordinate.
type Point struct {
	Lat float64
	Lng float64
}

// Fee returns the delivery fee for the zone given the pre-fee order total:
// the zone's flat price below the free-delivery threshold, zero at or above.
func Fee(z Zone, total decimal.Decimal) decimal.Decimal {
	if total.LessThan(z.FreeFromPrice) {
		return z.Price
	}
	return decimal.Zero
}

// Geocoder resolves a destination to its delivery zone. Implemented by the
// external reverse-geocoding collaborator.
type Geocoder interface {
	ResolveZone(ctx context.Context, pt Point) (*Zone, error)
}

// Ranker orders candidate zones by travel distance to the destination.
// Implemented by the external distance-matrix collaborator.
type Ranker interface {
	Rank(ctx context.Context, pt Point, zones []Zone) ([]Zone, error)
}

// ZoneSource lists the known zones for fallback matching.
type ZoneSource interface {
	ListZones(ctx context.Context) ([]Zone, error)
}

// nearestCandidates is how many zones the ranking fallback considers.
const nearestCandidates = 3

// Resolver resolves a destination to a zone with a defined fallback chain:
// reverse geocoding first, then travel-distance ranking over the nearest
// known zones, and finally the single nearest zone by raw proximity.
type Resolver struct {
	geo    Geocoder
	ranker Ranker
	zones  ZoneSource
}

// NewResolver creates a Resolver. geo and ranker may be nil, in which case
// the corresponding step of the chain is skipped.
func NewResolver(geo Geocoder, ranker Ranker, zones ZoneSource) *Resolver {
	return &Resolver{geo: geo, ranker: ranker, zones: zones}
}

// ResolveZone resolves pt to a delivery zone, walking the fallback chain.
// Each call is independent: callers perform exactly one resolution per
// pricing pass and never cache across passes.
func (r *Resolver) ResolveZone(ctx context.Context, pt Point) (*Zone, error) {
	if r.geo != nil {
		z, err := r.geo.ResolveZone(ctx, pt)
		if err == nil && z != nil {
			return z, nil
		}
	}

	all, err := r.zones.ListZones(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list zones")
	}
	if len(all) == 0 {
		return nil, ErrNoZones
	}

	candidates := nearestByHaversine(pt, all, nearestCandidates)

	if r.ranker != nil {
		ranked, err := r.ranker.Rank(ctx, pt, candidates)
		if err == nil && len(ranked) > 0 {
			z := ranked[0]
			return &z, nil
		}
	}

	z := candidates[0]
	return &z, nil
}

// nearestByHaversine returns up to limit zones sorted by great-circle
// distance from pt.
func nearestByHaversine(pt Point, zones []Zone, limit int) []Zone {
	sorted := make([]Zone, len(zones))
	copy(sorted, zones)
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && haversine(pt, sorted[j].Center) < haversine(pt, sorted[j-1].Center); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted
}

const earthRadiusKm = 6371.0

// haversine returns the great-circle distance between two points in km.
func haversine(a, b Point) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * earthRadiusKm * math.Asin(math.Sqrt(h))
}
