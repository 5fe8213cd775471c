// Command promo-ingest bulk-imports promo codes from gzipped code lists.
//
// Marketing exports arrive as several large files of candidate codes; only
// codes present in at least two files are considered valid. Pass 1 builds a
// bloom filter per file concurrently; pass 2 re-scans each file and keeps
// the codes that another file's filter also contains. Valid codes are
// normalized and inserted as single-use 10% percent codes unless a named
// rule overrides that.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/bazaro/checkout/internal/domain/promo"
	"github.com/bazaro/checkout/internal/repository"
)

const (
	bloomCapacity = 10_000_000
	bloomFPR      = 0.001
	numFiles      = 3
)

// codeRule overrides the default discount for a known code.
type codeRule struct {
	promoType  promo.Type
	amount     string
	usageLimit int32
}

var codeRules = map[string]codeRule{
	"WELCOME10": {promoType: promo.TypePercent, amount: "10", usageLimit: 1},
	"FREESHIP":  {promoType: promo.TypeFreeShipping, usageLimit: 1},
	"TAKE500":   {promoType: promo.TypeFixed, amount: "500", usageLimit: 1},
}

var defaultRule = codeRule{promoType: promo.TypePercent, amount: "10", usageLimit: 1}

func main() {
	var (
		dataDir     string
		databaseURL string
	)
	flag.StringVar(&dataDir, "data-dir", "data", "directory containing promobaseN.gz files")
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

	if err := run(ctx, dataDir, databaseURL); err != nil {
		slog.Error("promo ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	slog.Info("promo ingest completed")
}

func run(ctx context.Context, dataDir, databaseURL string) error {
	files := make([]string, numFiles)
	for i := range numFiles {
		files[i] = filepath.Join(dataDir, fmt.Sprintf("promobase%d.gz", i+1))
	}
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			return errors.Wrapf(err, "check file %s", f)
		}
	}

	slog.Info("pass 1: building bloom filters", slog.Int("files", numFiles))
	filters, err := buildFilters(ctx, files)
	if err != nil {
		return errors.Wrap(err, "build bloom filters")
	}

	slog.Info("pass 2: collecting valid codes")
	codes, err := collectValidCodes(ctx, files, filters)
	if err != nil {
		return errors.Wrap(err, "collect valid codes")
	}
	slog.Info("valid codes found", slog.Int("count", len(codes)))

	if len(codes) == 0 {
		return nil
	}

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	return writeCodes(ctx, pool, codes)
}

// buildFilters creates one bloom filter per file, concurrently.
func buildFilters(ctx context.Context, files []string) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(bloomCapacity, bloomFPR)
			err := scanCodes(ctx, f, func(code string) {
				filter.AddString(code)
			})
			if err != nil {
				return errors.Wrapf(err, "scan %s", f)
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}

// collectValidCodes returns the normalized codes that appear in at least two
// files, using the other files' bloom filters for the cross-check.
func collectValidCodes(ctx context.Context, files []string, filters []*bloom.BloomFilter) (map[string]struct{}, error) {
	valid := make(map[string]struct{})
	for i, f := range files {
		err := scanCodes(ctx, f, func(code string) {
			for j, filter := range filters {
				if j == i {
					continue
				}
				if filter.TestString(code) {
					valid[code] = struct{}{}
					return
				}
			}
		})
		if err != nil {
			return nil, errors.Wrapf(err, "scan %s", f)
		}
	}
	return valid, nil
}

// scanCodes streams one gzipped file line by line, calling fn with each
// normalized code. Lines that do not normalize to a valid code are skipped.
func scanCodes(ctx context.Context, path string, fn func(code string)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrap(err, "gzip reader")
	}
	defer gz.Close()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 64*1024), 64*1024)

	lines := 0
	for scanner.Scan() {
		lines++
		if lines%1_000_000 == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		code, err := promo.Normalize(scanner.Text())
		if err != nil {
			continue
		}
		fn(code)
	}
	return scanner.Err()
}

const insertCodeSQL = `INSERT INTO promo_codes (id, code, type, amount, usage_limit)
	VALUES ($1, $2, $3, $4, $5) ON CONFLICT (code) DO NOTHING`

// writeCodes inserts the valid codes in a single batch. Each row passes the
// same structural validation that the admin API applies.
func writeCodes(ctx context.Context, pool *pgxpool.Pool, codes map[string]struct{}) error {
	batch := &pgx.Batch{}
	for code := range codes {
		rule, ok := codeRules[code]
		if !ok {
			rule = defaultRule
		}
		c := promo.Code{
			ID:         uuid.New().String(),
			Code:       code,
			Type:       rule.promoType,
			UsageLimit: &rule.usageLimit,
		}
		var amount *decimal.Decimal
		if rule.promoType != promo.TypeFreeShipping {
			d, err := decimal.NewFromString(rule.amount)
			if err != nil {
				return errors.Wrapf(err, "amount for code %s", code)
			}
			c.Amount = d
			amount = &d
		}
		if err := c.Validate(); err != nil {
			return errors.Wrapf(err, "validate code %s", code)
		}
		batch.Queue(insertCodeSQL, c.ID, c.Code, string(c.Type), amount, c.UsageLimit)
	}

	res := pool.SendBatch(ctx, batch)
	defer res.Close()
	for range batch.Len() {
		if _, err := res.Exec(); err != nil {
			return errors.Wrap(err, "insert code")
		}
	}
	return nil
}
