// Package storefront keeps a client-side mirror of the caller's cart and
// coupon, and derives subtotal and total from it.
//
// A Store is owned by the UI composition root and passed to whatever needs
// it; there is no package-level store. Every mutator talks to the remote API
// first and applies its local transition only after the remote call
// succeeded, so a failed call never leaves the mirror half-updated.
package storefront

import (
	"slices"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/domain/coupon"
)

// ErrMalformedCoupon is reported when the remote API returns a coupon without
// a code or with a discount outside [0, 100].
var ErrMalformedCoupon = errors.New("malformed coupon")

// ProductRef is the part of a catalog product the cart needs.
type ProductRef struct {
	ID       string
	Name     string
	Price    decimal.Decimal
	Category string
	Image    string
}

// LineItem is one product-quantity pair. Quantity is always at least 1.
type LineItem struct {
	Product  ProductRef
	Quantity int
}

// Coupon is a code entitling the cart to a percentage discount.
type Coupon struct {
	Code               string
	DiscountPercentage decimal.Decimal
}

func (c *Coupon) validate() error {
	if c.Code == "" {
		return errors.Wrap(ErrMalformedCoupon, "empty code")
	}
	if err := coupon.ValidatePercentage(c.DiscountPercentage); err != nil {
		return errors.Wrapf(ErrMalformedCoupon, "discount %s", c.DiscountPercentage)
	}
	return nil
}

// State is the mirrored cart.
type State struct {
	// Items in insertion order, unique per product ID.
	Items []LineItem
	// Coupon is either the applied coupon or, when CouponApplied is false,
	// a coupon issued to the user that has not been applied yet.
	Coupon        *Coupon
	CouponApplied bool
	Subtotal      decimal.Decimal
	Total         decimal.Decimal
}

// clone returns a deep copy of s.
func (s *State) clone() State {
	out := *s
	out.Items = slices.Clone(s.Items)
	if s.Coupon != nil {
		c := *s.Coupon
		out.Coupon = &c
	}
	return out
}

// activeCoupon returns the coupon that discounts the total, if any.
func (s *State) activeCoupon() *Coupon {
	if !s.CouponApplied {
		return nil
	}
	return s.Coupon
}

// recomputeTotals reassigns Subtotal and Total from Items and the active coupon.
func (s *State) recomputeTotals() {
	s.Subtotal, s.Total = Totals(s.Items, s.activeCoupon())
}

// Totals returns the sum of price × quantity over items and that sum reduced
// by c's percentage. A nil coupon leaves the total equal to the subtotal.
func Totals(items []LineItem, c *Coupon) (subtotal, total decimal.Decimal) {
	subtotal = decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Product.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	if c == nil {
		return subtotal, subtotal
	}
	return subtotal, coupon.Discounted(subtotal, c.DiscountPercentage)
}

// EntryKind tells which of the two cart entry shapes the server sent.
type EntryKind uint8

const (
	// EntryWrapped is {"product": {...}, "quantity": n}.
	EntryWrapped EntryKind = iota + 1
	// EntryBare is the product object itself, optionally carrying "quantity".
	EntryBare
)

// Entry is a cart line as returned by the remote cart API. Quantity is zero
// when the server omitted it.
type Entry struct {
	Kind     EntryKind
	Product  ProductRef
	Quantity int
}

// Normalize turns remote entries of either shape into line items. A missing
// or non-positive quantity becomes 1. Entries without a product ID cannot be
// addressed by later mutations and are dropped, as are repeated product IDs
// after the first occurrence.
func Normalize(entries []Entry) []LineItem {
	items := make([]LineItem, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		if e.Product.ID == "" {
			continue
		}
		if _, dup := seen[e.Product.ID]; dup {
			continue
		}
		seen[e.Product.ID] = struct{}{}

		qty := e.Quantity
		if qty < 1 {
			qty = 1
		}
		items = append(items, LineItem{Product: e.Product, Quantity: qty})
	}
	return items
}
