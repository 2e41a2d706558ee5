// Command coupon-ingest imports promo codes from gzip-compressed partner
// feeds. A code is imported only when at least --min-sources feeds list it.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

func main() {
	var (
		pattern     string
		databaseURL string
		opts        options
	)

	flag.StringVar(&pattern, "files", "data/*.gz", "glob matching gzip feed files")
	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.IntVar(&opts.MinSources, "min-sources", 2, "feeds that must list a code before it is imported")
	flag.UintVar(&opts.Expected, "expected", 1_000_000, "expected codes per feed, sizes the bloom filters")
	flag.IntVar(&opts.Writers, "writers", 8, "concurrent database writers")
	flag.BoolVar(&opts.DryRun, "dry-run", false, "scan feeds without writing")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" && !opts.DryRun {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, pattern, databaseURL, opts); err != nil {
		slog.Error("coupon ingest failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("coupon ingest completed successfully")
}

type options struct {
	MinSources int
	Expected   uint
	Writers    int
	DryRun     bool
}

func run(ctx context.Context, pattern, databaseURL string, opts options) error {
	files, err := filepath.Glob(pattern)
	if err != nil {
		return errors.Wrap(err, "match feed files")
	}
	if len(files) == 0 {
		return errors.Errorf("no feed files match %q", pattern)
	}
	sort.Strings(files)

	slog.Info("scanning feeds", slog.Int("files", len(files)), slog.Int("min_sources", opts.MinSources))

	coupons, st, err := collect(ctx, files, opts)
	if err != nil {
		return err
	}

	slog.Info("feeds scanned",
		slog.Uint64("lines", st.lines),
		slog.Uint64("invalid", st.invalid),
		slog.Int("accepted", len(coupons)),
	)

	if len(coupons) == 0 || opts.DryRun {
		return nil
	}

	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	return writeCoupons(ctx, postgres.NewCouponRepository(pool), coupons, opts.Writers)
}

type upserter interface {
	Upsert(ctx context.Context, c coupon.Coupon) error
}

// writeCoupons upserts coupons with at most writers concurrent statements.
func writeCoupons(ctx context.Context, repo upserter, coupons []coupon.Coupon, writers int) error {
	slog.Info("writing coupons to database", slog.Int("count", len(coupons)))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(writers, 1))
	for i, c := range coupons {
		g.Go(func() error {
			if err := repo.Upsert(ctx, c); err != nil {
				return errors.Wrapf(err, "upsert coupon %s", c.Code)
			}
			if (i+1)%1000 == 0 {
				slog.Info("write progress", slog.Int("written", i+1), slog.Int("total", len(coupons)))
			}
			return nil
		})
	}
	return g.Wait()
}
