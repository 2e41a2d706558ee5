// Command seed-db loads the product catalog, per-user API keys and a gift
// coupon for every seeded user.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/kart-storefront/db"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
)

func main() {
	var (
		databaseURL  string
		productsFile string
		users        string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "", "path to products JSON file (embedded catalog when empty)")
	flag.StringVar(&users, "users", "", "comma separated user:apikey pairs (or KART_SEED_USERS env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or KART_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if users == "" {
		users = os.Getenv("KART_SEED_USERS")
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("KART_API_KEY_PEPPER")
	}

	creds, err := parseUsers(users)
	if err != nil {
		slog.Error("invalid users", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, creds, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

type credential struct {
	UserID string
	APIKey string
}

// parseUsers parses "alice:key1,bob:key2".
func parseUsers(s string) ([]credential, error) {
	var out []credential
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		user, key, ok := strings.Cut(pair, ":")
		if !ok || user == "" || key == "" {
			return nil, errors.Errorf("malformed pair %q, want user:apikey", pair)
		}
		out = append(out, credential{UserID: user, APIKey: key})
	}
	return out, nil
}

func run(ctx context.Context, databaseURL, productsFile string, creds []credential, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	keys := postgres.NewAPIKeyRepository(pool)
	coupons := coupon.NewService(postgres.NewCouponRepository(pool))
	for _, c := range creds {
		if err := seedUser(ctx, keys, coupons, c, pepper); err != nil {
			return errors.Wrapf(err, "seed user %s", c.UserID)
		}
	}

	return nil
}

func seedProducts(ctx context.Context, repo *postgres.ProductRepository, productsFile string) error {
	data := db.Products
	if productsFile != "" {
		slog.Info("reading products file", slog.String("path", productsFile))

		var err error
		if data, err = os.ReadFile(productsFile); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}

	products, err := decodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	for _, p := range products {
		if err := repo.Upsert(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedUser(ctx context.Context, keys *postgres.APIKeyRepository, coupons *coupon.Service, c credential, pepper string) error {
	// Stable id per user keeps reseeding idempotent.
	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte("kart-api-key:"+c.UserID)).String()

	if err := keys.Upsert(ctx, auth.APIKey{
		ID:      id,
		KeyHash: auth.HashKey([]byte(pepper), c.APIKey),
		UserID:  c.UserID,
		Name:    "seeded key for " + c.UserID,
		Active:  true,
	}); err != nil {
		return errors.Wrap(err, "upsert api key")
	}

	slog.Info("upserted API key", slog.String("id", id), slog.String("user", c.UserID))

	issued, err := coupons.Issue(ctx, c.UserID)
	if err != nil {
		return errors.Wrap(err, "issue coupon")
	}

	slog.Info("issued coupon",
		slog.String("user", c.UserID),
		slog.String("code", issued.Code),
		slog.String("discount", issued.DiscountPercentage.String()),
	)

	return nil
}
