package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// GetCart serves GET /cart.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	h.respondCart(w, r)
}

// AddToCart serves POST /cart: one more unit of productId.
func (h *Handler) AddToCart(w http.ResponseWriter, r *http.Request) {
	var req addToCartRequest
	if err := h.bind(r, req.decode, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err := h.cart.Add(r.Context(), UserID(r.Context()), req.ProductID)
	h.metrics.cartMutation(r.Context(), "add", err)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "add to cart"))
		return
	}
	h.respondCart(w, r)
}

// UpdateQuantity serves PUT /cart/{productId}. Quantity 0 removes the line.
func (h *Handler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	var req updateQuantityRequest
	if err := h.bind(r, req.decode, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	err := h.cart.SetQuantity(r.Context(), UserID(r.Context()), chi.URLParam(r, "productId"), *req.Quantity)
	h.metrics.cartMutation(r.Context(), "set_quantity", err)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "update quantity"))
		return
	}
	h.respondCart(w, r)
}

// RemoveFromCart serves DELETE /cart. Without productId the cart is cleared.
func (h *Handler) RemoveFromCart(w http.ResponseWriter, r *http.Request) {
	var req removeFromCartRequest
	if err := h.bind(r, req.decode, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	op := "remove"
	if req.ProductID == "" {
		op = "clear"
	}
	err := h.cart.Remove(r.Context(), UserID(r.Context()), req.ProductID)
	h.metrics.cartMutation(r.Context(), op, err)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "remove from cart"))
		return
	}
	h.respondCart(w, r)
}

func (h *Handler) respondCart(w http.ResponseWriter, r *http.Request) {
	entries, err := h.cart.List(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "list cart"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { h.encodeCart(e, entries) })
}

// bind decodes the request body field by field and validates dst.
func (h *Handler) bind(r *http.Request, field func(d *jx.Decoder, key string) error, dst any) error {
	if err := decodeBody(r, field); err != nil {
		return err
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		return errors.Wrap(err, "validate")
	}
	return nil
}
