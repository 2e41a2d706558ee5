package cartclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/storefront"
)

type recorded struct {
	method string
	path   string
	apiKey string
	body   string
}

func newTestClient(t *testing.T, status int, response string) (*Client, *recorded) {
	t.Helper()

	rec := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rec.method = r.Method
		rec.path = r.URL.Path
		rec.apiKey = r.Header.Get(APIKeyHeader)
		rec.body = string(body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)

	c, err := New(srv.URL+"/api", "test-key", WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c, rec
}

func TestNew_InvalidURL(t *testing.T) {
	for _, u := range []string{"", "localhost:8080", "://bad"} {
		_, err := New(u, "key")
		assert.Error(t, err, u)
	}
}

func TestList(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `[
		{"product": {"_id": "p1", "name": "Waffle", "price": 6.5, "category": "Waffle", "image": "/img/w.jpg", "__v": 0}, "quantity": 2},
		{"id": "p2", "name": "Brownie", "price": "4.25", "quantity": 3, "featured": true},
		{"product": "p3", "quantity": 1},
		42
	]`)

	entries, err := c.List(context.Background())
	require.NoError(t, err)

	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/cart", rec.path)
	assert.Equal(t, "test-key", rec.apiKey)

	require.Len(t, entries, 3)

	assert.Equal(t, storefront.EntryWrapped, entries[0].Kind)
	assert.Equal(t, "p1", entries[0].Product.ID)
	assert.Equal(t, "Waffle", entries[0].Product.Name)
	assert.True(t, decimal.RequireFromString("6.5").Equal(entries[0].Product.Price))
	assert.Equal(t, 2, entries[0].Quantity)

	assert.Equal(t, storefront.EntryBare, entries[1].Kind)
	assert.Equal(t, "p2", entries[1].Product.ID)
	assert.True(t, decimal.RequireFromString("4.25").Equal(entries[1].Product.Price))
	assert.Equal(t, 3, entries[1].Quantity)

	assert.Equal(t, storefront.EntryWrapped, entries[2].Kind)
	assert.Equal(t, "p3", entries[2].Product.ID)
}

func TestList_MalformedBody(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `[{"product": {"id": "p1"`)

	_, err := c.List(context.Background())
	require.Error(t, err)

	var apiErr *Error
	assert.False(t, errors.As(err, &apiErr))
}

func TestMutations(t *testing.T) {
	tests := []struct {
		name       string
		call       func(c *Client) error
		wantMethod string
		wantPath   string
		wantBody   string
	}{
		{
			name:       "add",
			call:       func(c *Client) error { return c.Add(context.Background(), "p1") },
			wantMethod: http.MethodPost,
			wantPath:   "/api/cart",
			wantBody:   `{"productId":"p1"}`,
		},
		{
			name:       "set quantity",
			call:       func(c *Client) error { return c.SetQuantity(context.Background(), "p1", 4) },
			wantMethod: http.MethodPut,
			wantPath:   "/api/cart/p1",
			wantBody:   `{"quantity":4}`,
		},
		{
			name:       "remove",
			call:       func(c *Client) error { return c.Remove(context.Background(), "p1") },
			wantMethod: http.MethodDelete,
			wantPath:   "/api/cart",
			wantBody:   `{"productId":"p1"}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, rec := newTestClient(t, http.StatusOK, `[]`)

			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.wantMethod, rec.method)
			assert.Equal(t, tt.wantPath, rec.path)
			assert.JSONEq(t, tt.wantBody, rec.body)
		})
	}
}

func TestMine(t *testing.T) {
	t.Run("none", func(t *testing.T) {
		c, rec := newTestClient(t, http.StatusOK, `null`)

		cp, err := c.Mine(context.Background())
		require.NoError(t, err)
		assert.Nil(t, cp)
		assert.Equal(t, "/api/coupons", rec.path)
	})

	t.Run("issued", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK,
			`{"code": "GIFTAB12CD", "discountPercentage": 10, "isActive": true, "expirationDate": "2030-01-01T00:00:00Z"}`)

		cp, err := c.Mine(context.Background())
		require.NoError(t, err)
		require.NotNil(t, cp)
		assert.Equal(t, "GIFTAB12CD", cp.Code)
		assert.True(t, decimal.NewFromInt(10).Equal(cp.DiscountPercentage))
	})
}

func TestValidate(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK,
		`{"message": "Coupon is valid", "code": "GIFT10", "discountPercentage": 10}`)

	cp, err := c.Validate(context.Background(), "GIFT10")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, rec.method)
	assert.Equal(t, "/api/coupons/validate", rec.path)
	assert.JSONEq(t, `{"code":"GIFT10"}`, rec.body)
	assert.Equal(t, "GIFT10", cp.Code)
}

func TestValidate_MissingDiscount(t *testing.T) {
	for name, body := range map[string]string{
		"absent":    `{"message": "Coupon is valid", "code": "SAVE"}`,
		"null":      `{"code": "SAVE", "discountPercentage": null}`,
		"object":    `{"code": "SAVE", "discountPercentage": {"value": 10}}`,
		"not a num": `{"code": "SAVE", "discountPercentage": "abc"}`,
	} {
		t.Run(name, func(t *testing.T) {
			c, _ := newTestClient(t, http.StatusOK, body)

			_, err := c.Validate(context.Background(), "SAVE")
			require.Error(t, err)

			var apiErr *Error
			assert.False(t, errors.As(err, &apiErr))
		})
	}

	t.Run("store keeps coupon unapplied", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, `{"code": "SAVE", "discountPercentage": null}`)
		n := &notes{}
		s := storefront.NewStore(c, c, n, zap.NewNop())

		s.ApplyCoupon(context.Background(), "SAVE")

		st := s.Snapshot()
		assert.Nil(t, st.Coupon)
		assert.False(t, st.CouponApplied)
		assert.Equal(t, []string{"Failed to apply coupon"}, n.errors)
		assert.Empty(t, n.successes)
	})
}

func TestMine_MissingDiscount(t *testing.T) {
	c, _ := newTestClient(t, http.StatusOK, `{"code": "GIFTAB12CD"}`)

	_, err := c.Mine(context.Background())
	require.ErrorIs(t, err, storefront.ErrMalformedCoupon)
}

func TestEmptyBody(t *testing.T) {
	t.Run("cart", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, "")

		entries, err := c.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, entries)
	})

	t.Run("coupon", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, " \n")

		cp, err := c.Mine(context.Background())
		require.NoError(t, err)
		assert.Nil(t, cp)
	})

	t.Run("store", func(t *testing.T) {
		c, _ := newTestClient(t, http.StatusOK, "")
		n := &notes{}
		s := storefront.NewStore(c, c, n, zap.NewNop())

		s.FetchCart(context.Background())

		assert.Empty(t, s.Snapshot().Items)
		assert.Empty(t, n.errors)
	})
}

func TestErrorResponse(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantMsg string
	}{
		{name: "message", status: http.StatusNotFound, body: `{"code": 404, "message": "Coupon expired"}`, wantMsg: "Coupon expired"},
		{name: "plain text", status: http.StatusBadGateway, body: `bad gateway`, wantMsg: ""},
		{name: "no message field", status: http.StatusInternalServerError, body: `{"error": "boom"}`, wantMsg: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestClient(t, tt.status, tt.body)

			_, err := c.Validate(context.Background(), "X")
			require.Error(t, err)

			var apiErr *Error
			require.True(t, errors.As(err, &apiErr))
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantMsg, apiErr.ServerMessage())
		})
	}
}

func TestStoreIntegration(t *testing.T) {
	c, _ := newTestClient(t, http.StatusNotFound, `{"code": 404, "message": "Coupon not found"}`)
	n := &notes{}
	s := storefront.NewStore(c, c, n, zap.NewNop())

	s.ApplyCoupon(context.Background(), "NOPE")

	assert.Equal(t, []string{"Coupon not found"}, n.errors)
	assert.Nil(t, s.Snapshot().Coupon)
}

type notes struct {
	successes []string
	errors    []string
}

func (n *notes) Success(msg string) { n.successes = append(n.successes, msg) }
func (n *notes) Error(msg string)   { n.errors = append(n.errors, msg) }

func TestProducts(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `[
		{"id": "1", "name": "Waffle", "price": "6.50", "category": "Waffle", "isFeatured": true},
		null,
		{"id": "2", "name": "Cake", "price": 4.5}
	]`)

	products, err := c.Products(context.Background())
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, rec.method)
	assert.Equal(t, "/api/products", rec.path)

	require.Len(t, products, 2)
	assert.Equal(t, "Waffle", products[0].Name)
	assert.True(t, decimal.RequireFromString("6.5").Equal(products[0].Price))
	assert.Equal(t, "2", products[1].ID)
}

func TestProduct(t *testing.T) {
	c, rec := newTestClient(t, http.StatusOK, `{"id": "a b", "name": "Tart", "price": "3"}`)

	p, err := c.Product(context.Background(), "a b")
	require.NoError(t, err)
	assert.Equal(t, "/api/products/a b", rec.path)
	assert.Equal(t, "Tart", p.Name)

	c, _ = newTestClient(t, http.StatusNotFound, `{"code": 404, "message": "Product not found"}`)
	_, err = c.Product(context.Background(), "missing")

	var apiErr *Error
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "Product not found", apiErr.ServerMessage())
}
