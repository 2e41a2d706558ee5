package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

// mapError converts domain errors into an HTTP status and client message.
// Anything unrecognized is a 500 and is logged.
func mapError(r *http.Request, err error) (int, string) {
	var (
		validationErrs validator.ValidationErrors
		notFoundErr    *cart.ProductNotFoundError
		quantityErr    *cart.InvalidQuantityError
	)
	switch {
	case errors.Is(err, errBadRequest):
		return http.StatusBadRequest, "invalid request body"
	case errors.As(err, &validationErrs):
		return http.StatusBadRequest, validationMessage(validationErrs)
	case errors.Is(err, coupon.ErrCouponExpired):
		return http.StatusNotFound, "Coupon expired"
	case errors.Is(err, coupon.ErrInvalidCoupon):
		return http.StatusNotFound, "Coupon not found"
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound, "Product not found in cart"
	case errors.As(err, &notFoundErr):
		return http.StatusUnprocessableEntity, notFoundErr.Error()
	case errors.As(err, &quantityErr):
		return http.StatusUnprocessableEntity, quantityErr.Error()
	default:
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		return http.StatusInternalServerError, "internal server error"
	}
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := mapError(r, err)
	writeError(w, status, msg)
}

func validationMessage(errs validator.ValidationErrors) string {
	if len(errs) == 0 {
		return "validation failed"
	}
	fe := errs[0]
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "max":
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	default:
		return fe.Field() + " is invalid"
	}
}
