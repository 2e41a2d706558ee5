package handler

import (
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/cart"
	"github.com/xenking/kart-storefront/internal/domain/coupon"
	"github.com/xenking/kart-storefront/internal/domain/product"
)

const maxRequestBody = 1 << 20

// errBadRequest marks a malformed request body.
var errBadRequest = errors.New("invalid request body")

func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.Obj(func(e *jx.Encoder) {
			e.Field("code", func(e *jx.Encoder) { e.Int(status) })
			e.Field("message", func(e *jx.Encoder) { e.Str(msg) })
		})
	})
}

// decodeBody reads a JSON object, calling field for each key. An empty body
// is treated as an empty object.
func decodeBody(r *http.Request, field func(d *jx.Decoder, key string) error) error {
	data, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody))
	if err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := jx.DecodeBytes(data).Obj(field); err != nil {
		return errors.Wrap(errBadRequest, err.Error())
	}
	return nil
}

func encodeDecimal(e *jx.Encoder, v decimal.Decimal) {
	e.Num(jx.Num(v.String()))
}

func (h *Handler) imageURL(path string) string {
	if path == "" || h.imageBaseURL == "" ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(h.imageBaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	e.Obj(func(e *jx.Encoder) {
		e.Field("id", func(e *jx.Encoder) { e.Str(p.ID) })
		e.Field("name", func(e *jx.Encoder) { e.Str(p.Name) })
		e.Field("description", func(e *jx.Encoder) { e.Str(p.Description) })
		e.Field("price", func(e *jx.Encoder) { encodeDecimal(e, p.Price) })
		e.Field("category", func(e *jx.Encoder) { e.Str(p.Category) })
		e.Field("image", func(e *jx.Encoder) { e.Str(h.imageURL(p.Image)) })
		e.Field("isFeatured", func(e *jx.Encoder) { e.Bool(p.Featured) })
	})
}

func (h *Handler) encodeCart(e *jx.Encoder, entries []cart.Entry) {
	e.Arr(func(e *jx.Encoder) {
		for _, entry := range entries {
			e.Obj(func(e *jx.Encoder) {
				e.Field("product", func(e *jx.Encoder) { h.encodeProduct(e, entry.Product) })
				e.Field("quantity", func(e *jx.Encoder) { e.Int(entry.Quantity) })
			})
		}
	})
}

func encodeCoupon(e *jx.Encoder, c *coupon.Coupon) {
	if c == nil {
		e.Null()
		return
	}
	e.Obj(func(e *jx.Encoder) {
		e.Field("code", func(e *jx.Encoder) { e.Str(c.Code) })
		e.Field("discountPercentage", func(e *jx.Encoder) { encodeDecimal(e, c.DiscountPercentage) })
		if c.ExpiresAt != nil {
			e.Field("expirationDate", func(e *jx.Encoder) { e.Str(c.ExpiresAt.UTC().Format(time.RFC3339)) })
		}
		e.Field("isActive", func(e *jx.Encoder) { e.Bool(c.Active) })
	})
}
