package repository

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bazaro/checkout/internal/domain/delivery"
)

const listZonesSQL = `SELECT id, name, price, free_from_price, lat, lng
	FROM delivery_zones WHERE active = TRUE`

var _ delivery.ZoneSource = (*ZoneRepository)(nil)

// ZoneRepository implements delivery.ZoneSource backed by PostgreSQL.
type ZoneRepository struct {
	pool *pgxpool.Pool
}

// NewZoneRepository returns a ZoneRepository that uses the given pool.
func NewZoneRepository(pool *pgxpool.Pool) *ZoneRepository {
	return &ZoneRepository{pool: pool}
}

// ListZones returns all active delivery zones.
func (r *ZoneRepository) ListZones(ctx context.Context) ([]delivery.Zone, error) {
	rows, err := r.pool.Query(ctx, listZonesSQL)
	if err != nil {
		return nil, errors.Wrap(err, "list zones")
	}

	zones, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (delivery.Zone, error) {
		var z delivery.Zone
		err := row.Scan(&z.ID, &z.Name, &z.Price, &z.FreeFromPrice, &z.Center.Lat, &z.Center.Lng)
		return z, err
	})
	if err != nil {
		return nil, errors.Wrap(err, "list zones")
	}
	return zones, nil
}
