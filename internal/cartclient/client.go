// Package cartclient talks to the storefront HTTP API on behalf of a
// storefront.Store.
package cartclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/kart-storefront/internal/storefront"
)

const (
	// APIKeyHeader carries the caller's API key.
	APIKeyHeader = "api_key"

	maxBodySize    = 4 << 20
	defaultTimeout = 10 * time.Second
)

var (
	_ storefront.CartAPI   = (*Client)(nil)
	_ storefront.CouponAPI = (*Client)(nil)
)

// Error is a non-2xx response from the API.
type Error struct {
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("api: status %d: %s", e.StatusCode, e.Message)
}

// ServerMessage returns the message reported by the server.
func (e *Error) ServerMessage() string { return e.Message }

// Client is a storefront API client. It is safe for concurrent use.
type Client struct {
	base   *url.URL
	apiKey string
	http   *http.Client
	tracer trace.Tracer
}

type options struct {
	httpClient *http.Client
	tp         trace.TracerProvider
}

// Option configures a Client.
type Option func(*options)

// WithHTTPClient sets the HTTP client. Its transport is used as is.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithTracerProvider sets the tracer provider for client spans and the
// default transport.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tp = tp }
}

// New creates a Client for the API rooted at baseURL, e.g.
// "http://localhost:8080/api".
func New(baseURL, apiKey string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimSuffix(baseURL, "/"))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q: scheme and host required", baseURL)
	}

	o := options{tp: otel.GetTracerProvider()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.httpClient == nil {
		o.httpClient = &http.Client{
			Timeout:   defaultTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(o.tp)),
		}
	}

	return &Client{
		base:   u,
		apiKey: apiKey,
		http:   o.httpClient,
		tracer: o.tp.Tracer("github.com/xenking/kart-storefront/internal/cartclient"),
	}, nil
}

// List returns the caller's cart.
func (c *Client) List(ctx context.Context) (_ []storefront.Entry, rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.List")
	defer func() { endSpan(span, rerr) }()

	body, err := c.do(ctx, http.MethodGet, "/cart", nil)
	if err != nil {
		return nil, err
	}
	entries, err := decodeEntries(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return entries, nil
}

// Add puts one unit of productID into the cart.
func (c *Client) Add(ctx context.Context, productID string) (rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.Add")
	defer func() { endSpan(span, rerr) }()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
	})

	_, err := c.do(ctx, http.MethodPost, "/cart", e.Bytes())
	return err
}

// SetQuantity sets the absolute quantity of productID.
func (c *Client) SetQuantity(ctx context.Context, productID string, quantity int) (rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.SetQuantity")
	defer func() { endSpan(span, rerr) }()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("quantity", func(e *jx.Encoder) { e.Int(quantity) })
	})

	_, err := c.do(ctx, http.MethodPut, "/cart/"+url.PathEscape(productID), e.Bytes())
	return err
}

// Remove deletes the line for productID.
func (c *Client) Remove(ctx context.Context, productID string) (rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.Remove")
	defer func() { endSpan(span, rerr) }()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("productId", func(e *jx.Encoder) { e.Str(productID) })
	})

	_, err := c.do(ctx, http.MethodDelete, "/cart", e.Bytes())
	return err
}

// Mine returns the coupon issued to the caller, or nil when there is none.
func (c *Client) Mine(ctx context.Context) (_ *storefront.Coupon, rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.Mine")
	defer func() { endSpan(span, rerr) }()

	body, err := c.do(ctx, http.MethodGet, "/coupons", nil)
	if err != nil {
		return nil, err
	}
	cp, err := decodeCoupon(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	return cp, nil
}

// Validate checks code and returns the coupon it denotes.
func (c *Client) Validate(ctx context.Context, code string) (_ *storefront.Coupon, rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.Validate")
	defer func() { endSpan(span, rerr) }()

	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(code) })
	})

	body, err := c.do(ctx, http.MethodPost, "/coupons/validate", e.Bytes())
	if err != nil {
		return nil, err
	}
	cp, err := decodeCoupon(body)
	if err != nil {
		return nil, errors.Wrap(err, "decode coupon")
	}
	return cp, nil
}

// Products returns the catalog.
func (c *Client) Products(ctx context.Context) (_ []storefront.ProductRef, rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.Products")
	defer func() { endSpan(span, rerr) }()

	body, err := c.do(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}

	var out []storefront.ProductRef
	if err := jx.DecodeBytes(body).Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		p, err := decodeProduct(d)
		if err != nil {
			return err
		}
		out = append(out, p)
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "decode products")
	}
	return out, nil
}

// Product returns one catalog product.
func (c *Client) Product(ctx context.Context, id string) (_ storefront.ProductRef, rerr error) {
	ctx, span := c.tracer.Start(ctx, "cartclient.Product")
	defer func() { endSpan(span, rerr) }()

	body, err := c.do(ctx, http.MethodGet, "/products/"+url.PathEscape(id), nil)
	if err != nil {
		return storefront.ProductRef{}, err
	}
	p, err := decodeProduct(jx.DecodeBytes(body))
	if err != nil {
		return storefront.ProductRef{}, errors.Wrap(err, "decode product")
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	u := c.base.JoinPath(path)

	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), r)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set(APIKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &Error{
			StatusCode: resp.StatusCode,
			Message:    decodeMessage(data),
		}
	}
	return data, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
