// Command seed-db populates a development database with delivery zones,
// products, promo codes, and a few test identities. Re-running it is safe:
// every insert is an upsert keyed on the natural identifier.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bazaro/checkout/internal/repository"
)

func main() {
	var databaseURL string

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL string) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedZones(ctx, pool); err != nil {
		return errors.Wrap(err, "seed zones")
	}
	if err := seedProducts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedPromoCodes(ctx, pool); err != nil {
		return errors.Wrap(err, "seed promo codes")
	}
	if err := seedIdentities(ctx, pool); err != nil {
		return errors.Wrap(err, "seed identities")
	}

	return nil
}

const upsertZoneSQL = `INSERT INTO delivery_zones (id, name, price, free_from_price, lat, lng, active)
	VALUES ($1, $2, $3, $4, $5, $6, TRUE)
	ON CONFLICT (id) DO UPDATE SET
		name = EXCLUDED.name, price = EXCLUDED.price,
		free_from_price = EXCLUDED.free_from_price,
		lat = EXCLUDED.lat, lng = EXCLUDED.lng, active = TRUE`

func seedZones(ctx context.Context, pool *pgxpool.Pool) error {
	zones := []struct {
		id, name       string
		price, freeMin string
		lat, lng       float64
	}{
		{"zone-center", "City Center", "500", "7000", 40.1776, 44.5126},
		{"zone-north", "Northern District", "800", "10000", 40.2206, 44.5336},
		{"zone-suburbs", "Suburbs", "1200", "15000", 40.1150, 44.4800},
	}

	slog.Info("upserting delivery zones", slog.Int("count", len(zones)))

	for _, z := range zones {
		price, err := decimal.NewFromString(z.price)
		if err != nil {
			return errors.Wrapf(err, "zone %s price", z.id)
		}
		freeMin, err := decimal.NewFromString(z.freeMin)
		if err != nil {
			return errors.Wrapf(err, "zone %s free_from_price", z.id)
		}
		if _, err := pool.Exec(ctx, upsertZoneSQL, z.id, z.name, price, freeMin, z.lat, z.lng); err != nil {
			return errors.Wrapf(err, "upsert zone %s", z.id)
		}
	}
	return nil
}

const upsertProductSQL = `INSERT INTO products (id, name)
	VALUES ($1, $2)
	ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`

func seedProducts(ctx context.Context, pool *pgxpool.Pool) error {
	products := []struct{ id, name string }{
		{"prod-espresso", "Espresso Beans 1kg"},
		{"prod-grinder", "Manual Coffee Grinder"},
		{"prod-kettle", "Gooseneck Kettle"},
		{"prod-mug", "Ceramic Mug 350ml"},
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if _, err := pool.Exec(ctx, upsertProductSQL, p.id, p.name); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.id)
		}
	}
	return nil
}

const upsertPromoSQL = `INSERT INTO promo_codes (id, code, type, amount, free_shipping, min_price, usage_limit)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (code) DO UPDATE SET
		type = EXCLUDED.type, amount = EXCLUDED.amount,
		free_shipping = EXCLUDED.free_shipping,
		min_price = EXCLUDED.min_price, usage_limit = EXCLUDED.usage_limit,
		deprecated = FALSE, deleted_at = NULL`

func seedPromoCodes(ctx context.Context, pool *pgxpool.Pool) error {
	type promoSeed struct {
		id, code, promoType string
		amount              string
		freeShipping        bool
		minPrice            string
		usageLimit          *int32
	}
	one := int32(1)
	promos := []promoSeed{
		{id: "promo-welcome", code: "WELCOME10", promoType: "percent", amount: "10", usageLimit: &one},
		{id: "promo-ship", code: "FREESHIP", promoType: "free_shipping", usageLimit: &one},
		{id: "promo-big", code: "TAKE500", promoType: "fixed", amount: "500", minPrice: "5000"},
	}

	slog.Info("upserting promo codes", slog.Int("count", len(promos)))

	for _, p := range promos {
		var amount, minPrice *decimal.Decimal
		if p.amount != "" {
			d, err := decimal.NewFromString(p.amount)
			if err != nil {
				return errors.Wrapf(err, "promo %s amount", p.code)
			}
			amount = &d
		}
		if p.minPrice != "" {
			d, err := decimal.NewFromString(p.minPrice)
			if err != nil {
				return errors.Wrapf(err, "promo %s min_price", p.code)
			}
			minPrice = &d
		}
		if _, err := pool.Exec(ctx, upsertPromoSQL,
			p.id, p.code, p.promoType, amount, p.freeShipping, minPrice, p.usageLimit,
		); err != nil {
			return errors.Wrapf(err, "upsert promo %s", p.code)
		}
	}
	return nil
}

const (
	upsertUserSQL = `INSERT INTO users (id, email, points)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email`
	upsertGuestSQL = `INSERT INTO guests (id, email, verified)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email, verified = EXCLUDED.verified`
)

func seedIdentities(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("upserting test identities")

	if _, err := pool.Exec(ctx, upsertUserSQL, "user-demo", "demo@example.com", int64(1500)); err != nil {
		return errors.Wrap(err, "upsert demo user")
	}
	if _, err := pool.Exec(ctx, upsertGuestSQL, "guest-demo", "guest@example.com", true); err != nil {
		return errors.Wrap(err, "upsert demo guest")
	}
	return nil
}
