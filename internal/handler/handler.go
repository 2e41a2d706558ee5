// Package handler serves the storefront REST API.
package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to relative image paths in product responses.
	ImageBaseURL string
}

// Handler implements the /api routes.
type Handler struct {
	products product.Repository
	cart     *cart.Service
	coupons  *coupon.Service
	validate *validator.Validate
	metrics  *metrics

	imageBaseURL string
}

// New constructs a Handler. Metrics are registered on mp.
func New(
	cfg Config,
	products product.Repository,
	cartSvc *cart.Service,
	couponSvc *coupon.Service,
	mp metric.MeterProvider,
) (*Handler, error) {
	m, err := newMetrics(mp)
	if err != nil {
		return nil, errors.Wrap(err, "metrics")
	}
	return &Handler{
		products:     products,
		cart:         cartSvc,
		coupons:      couponSvc,
		validate:     validator.New(validator.WithRequiredStructEnabled()),
		metrics:      m,
		imageBaseURL: cfg.ImageBaseURL,
	}, nil
}

// Mount registers the API routes on r. Catalog routes are public; cart and
// coupon routes require an API key.
func (h *Handler) Mount(r chi.Router, authn Authenticator) {
	r.Get("/products", h.ListProducts)
	r.Get("/products/{productId}", h.GetProduct)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPIKey(authn))

		r.Get("/cart", h.GetCart)
		r.Post("/cart", h.AddToCart)
		r.Put("/cart/{productId}", h.UpdateQuantity)
		r.Delete("/cart", h.RemoveFromCart)

		r.Get("/coupons", h.GetCoupon)
		r.Post("/coupons/validate", h.ValidateCoupon)
	})
}

// Router returns a standalone router with the API mounted under /api.
func (h *Handler) Router(authn Authenticator) chi.Router {
	r := chi.NewRouter()
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.Route("/api", func(r chi.Router) { h.Mount(r, authn) })
	return r
}
