//go:build integration

package app

import (
	"context"
	"log"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap/zaptest"

	"github.com/xenking/kart-storefront/internal/cartclient"
	"github.com/xenking/kart-storefront/internal/domain/auth"
	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/domain/product"
	"github.com/xenking/kart-storefront/internal/storage/postgres"
	"github.com/xenking/kart-storefront/internal/storefront"
	"github.com/xenking/kart-storefront/pkg/health"
)

const pepper = "integration-pepper"

var pool *pgxpool.Pool

func TestMain(m *testing.M) {
	os.Exit(testMain(m))
}

func testMain(m *testing.M) int {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("kart"),
		tcpostgres.WithUsername("kart"),
		tcpostgres.WithPassword("kart"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(time.Minute),
		),
	)
	if err != nil {
		log.Fatalf("start postgres: %v", err)
	}
	defer func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			log.Printf("terminate postgres: %v", err)
		}
	}()

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		log.Fatalf("connection string: %v", err)
	}

	if pool, err = postgres.NewPool(ctx, dsn); err != nil {
		log.Fatalf("pool: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		log.Fatalf("migrations: %v", err)
	}
	if err := seed(ctx); err != nil {
		log.Fatalf("seed: %v", err)
	}

	return m.Run()
}

func seed(ctx context.Context) error {
	products := postgres.NewProductRepository(pool)
	for _, p := range []product.Product{
		{ID: "1", Name: "Waffle with Berries", Price: decimal.RequireFromString("6.50"), Category: "Waffle", Image: "waffle.jpg"},
		{ID: "2", Name: "Classic Tiramisu", Price: decimal.RequireFromString("5.50"), Category: "Tiramisu"},
	} {
		if err := products.Upsert(ctx, p); err != nil {
			return err
		}
	}

	keys := postgres.NewAPIKeyRepository(pool)
	for _, user := range []string{"alice", "bob"} {
		if err := keys.Upsert(ctx, auth.APIKey{
			ID:      "key-" + user,
			KeyHash: auth.HashKey([]byte(pepper), user+"-key"),
			UserID:  user,
			Name:    user,
			Active:  true,
		}); err != nil {
			return err
		}
	}

	coupons := postgres.NewCouponRepository(pool)
	past := time.Now().Add(-time.Hour)
	for _, c := range []coupon.Coupon{
		{Code: "HALF50", DiscountPercentage: decimal.NewFromInt(50), Active: true},
		{Code: "OLD10", DiscountPercentage: decimal.NewFromInt(10), ExpiresAt: &past, Active: true},
		{Code: "BOBONLY", DiscountPercentage: decimal.NewFromInt(20), UserID: "bob", Active: true},
	} {
		if err := coupons.Upsert(ctx, c); err != nil {
			return err
		}
	}

	_, err := coupon.NewService(coupons).Issue(ctx, "alice")
	return err
}

type recordingNotifier struct {
	mu        sync.Mutex
	successes []string
	errors    []string
}

func (n *recordingNotifier) Success(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.successes = append(n.successes, msg)
}

func (n *recordingNotifier) Error(msg string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.errors = append(n.errors, msg)
}

func (n *recordingNotifier) lastError() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.errors) == 0 {
		return ""
	}
	return n.errors[len(n.errors)-1]
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()

	productRepo := postgres.NewProductRepository(pool)
	hs := health.New(zaptest.NewLogger(t))
	hs.AddReadinessCheck("postgres", time.Second, health.PingCheck(pool))
	hs.SetReady(true)

	cfg := &Config{ImageBaseURL: "https://cdn.example/img"}
	cfg.RateLimit.RPS = 1000
	cfg.RateLimit.Burst = 1000

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r, err := newRouter(ctx, cfg, noopTelemetry{}, services{
		products: productRepo,
		cart:     cart.NewService(postgres.NewCartRepository(pool), productRepo),
		coupons:  coupon.NewService(postgres.NewCouponRepository(pool)),
		authn:    auth.NewAuthenticator(postgres.NewAPIKeyRepository(pool), []byte(pepper)),
		health:   hs,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newStore(t *testing.T, srv *httptest.Server, key string) (*storefront.Store, *cartclient.Client, *recordingNotifier) {
	t.Helper()

	client, err := cartclient.New(srv.URL+"/api", key, cartclient.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	n := &recordingNotifier{}
	return storefront.NewStore(client, client, n, zaptest.NewLogger(t)), client, n
}

func TestStorefrontSession(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	store, client, n := newStore(t, srv, "alice-key")

	store.FetchCart(ctx)
	assert.Empty(t, store.Snapshot().Items)

	waffle, err := client.Product(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.example/img/waffle.jpg", waffle.Image)
	tiramisu, err := client.Product(ctx, "2")
	require.NoError(t, err)

	store.AddItem(ctx, waffle)
	store.AddItem(ctx, waffle)
	store.AddItem(ctx, tiramisu)

	st := store.Snapshot()
	require.Len(t, st.Items, 2)
	assert.Equal(t, 2, st.Items[0].Quantity)
	assert.True(t, st.Subtotal.Equal(decimal.RequireFromString("18.50")), st.Subtotal.String())

	// The server agrees with the mirror.
	store.FetchCart(ctx)
	st = store.Snapshot()
	require.Len(t, st.Items, 2)
	assert.Equal(t, "1", st.Items[0].Product.ID)
	assert.Equal(t, 2, st.Items[0].Quantity)
	assert.Equal(t, "2", st.Items[1].Product.ID)

	t.Run("IssuedCoupon", func(t *testing.T) {
		store.FetchAvailableCoupon(ctx)
		st := store.Snapshot()
		require.NotNil(t, st.Coupon)
		assert.True(t, strings.HasPrefix(st.Coupon.Code, "GIFT"))
		assert.False(t, st.CouponApplied)
		assert.True(t, st.Total.Equal(st.Subtotal))
	})

	t.Run("ApplyCoupon", func(t *testing.T) {
		store.ApplyCoupon(ctx, "half50")
		st := store.Snapshot()
		require.NotNil(t, st.Coupon)
		assert.Equal(t, "HALF50", st.Coupon.Code)
		assert.True(t, st.CouponApplied)
		assert.True(t, st.Total.Equal(decimal.RequireFromString("9.25")), st.Total.String())
	})

	t.Run("ExpiredCoupon", func(t *testing.T) {
		store.ApplyCoupon(ctx, "OLD10")
		assert.Equal(t, "Coupon expired", n.lastError())
		assert.Equal(t, "HALF50", store.Snapshot().Coupon.Code)

		// Deactivated on first use.
		store.ApplyCoupon(ctx, "OLD10")
		assert.Equal(t, "Coupon not found", n.lastError())
	})

	t.Run("ForeignCoupon", func(t *testing.T) {
		store.ApplyCoupon(ctx, "BOBONLY")
		assert.Equal(t, "Coupon not found", n.lastError())
	})

	t.Run("UpdateAndRemove", func(t *testing.T) {
		store.UpdateQuantity(ctx, "2", 4)
		store.UpdateQuantity(ctx, "1", 0)

		store.FetchCart(ctx)
		st := store.Snapshot()
		require.Len(t, st.Items, 1)
		assert.Equal(t, "2", st.Items[0].Product.ID)
		assert.Equal(t, 4, st.Items[0].Quantity)
		assert.True(t, st.Total.Equal(decimal.RequireFromString("11")), st.Total.String())
	})

	t.Run("UnknownProduct", func(t *testing.T) {
		store.AddItem(ctx, storefront.ProductRef{ID: "404"})
		assert.NotEmpty(t, n.lastError())
		assert.Len(t, store.Snapshot().Items, 1)
	})
}

func TestCartsAreIsolated(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)

	bob, client, _ := newStore(t, srv, "bob-key")
	waffle, err := client.Product(ctx, "1")
	require.NoError(t, err)

	bob.AddItem(ctx, waffle)
	bob.FetchCart(ctx)
	assert.Len(t, bob.Snapshot().Items, 1)

	// Bob sees only the coupon issued to him.
	bob.FetchAvailableCoupon(ctx)
	st := bob.Snapshot()
	require.NotNil(t, st.Coupon)
	assert.Equal(t, "BOBONLY", st.Coupon.Code)
	assert.False(t, st.CouponApplied)

	entries, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "1", entries[0].Product.ID)
}

func TestInvalidKey(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)

	store, client, n := newStore(t, srv, "nobody-key")
	_, err := client.List(ctx)

	var apiErr *cartclient.Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	assert.Equal(t, "Unauthorized - Invalid API key", apiErr.ServerMessage())

	store.FetchCart(ctx)
	assert.Equal(t, "Unauthorized - Invalid API key", n.lastError())

	// The catalog stays public.
	products, err := client.Products(ctx)
	require.NoError(t, err)
	assert.Len(t, products, 2)
}
