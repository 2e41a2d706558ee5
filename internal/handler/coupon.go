package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// GetCoupon serves GET /coupons: the caller's active coupon or null.
func (h *Handler) GetCoupon(w http.ResponseWriter, r *http.Request) {
	c, err := h.coupons.Mine(r.Context(), UserID(r.Context()))
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "get coupon"))
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCoupon(e, c) })
}

// ValidateCoupon serves POST /coupons/validate.
func (h *Handler) ValidateCoupon(w http.ResponseWriter, r *http.Request) {
	var req validateCouponRequest
	if err := h.bind(r, req.decode, &req); err != nil {
		h.fail(w, r, err)
		return
	}

	c, err := h.coupons.Validate(r.Context(), UserID(r.Context()), req.Code)
	h.metrics.couponValidation(r.Context(), err)
	if err != nil {
		h.fail(w, r, errors.Wrap(err, "validate coupon"))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("message", func(e *jx.Encoder) { e.Str("Coupon is valid") })
			e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
			e.Field("discountPercentage", func(e *jx.Encoder) { encodeDecimal(e, c.DiscountPercentage) })
		})
	})
}
