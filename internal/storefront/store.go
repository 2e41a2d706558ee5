package storefront

import (
	"context"
	"sync"

	"github.com/go-faster/errors"
	"go.uber.org/zap"
)

// Notification texts.
const (
	msgAdded          = "Product added to cart"
	msgCouponApplied  = "Coupon applied successfully"
	msgCouponRemoved  = "Coupon removed"
	msgGenericFailure = "An error occurred"
	msgRemoveFailure  = "Failed to remove item"
	msgUpdateFailure  = "Failed to update quantity"
	msgCouponFailure  = "Failed to apply coupon"
)

// CartAPI is the server-side cart.
type CartAPI interface {
	List(ctx context.Context) ([]Entry, error)
	// Add puts one unit of productID into the cart.
	Add(ctx context.Context, productID string) error
	// SetQuantity sets an absolute quantity.
	SetQuantity(ctx context.Context, productID string, quantity int) error
	Remove(ctx context.Context, productID string) error
}

// CouponAPI issues and validates coupons.
type CouponAPI interface {
	// Mine returns the coupon already issued to the caller, or nil.
	Mine(ctx context.Context) (*Coupon, error)
	Validate(ctx context.Context, code string) (*Coupon, error)
}

// serverMessage is implemented by errors carrying a human-readable message
// produced by the remote API.
type serverMessage interface {
	ServerMessage() string
}

// Store mirrors the server cart for one client session.
//
// Remote calls are made without holding the lock; only the local transition
// that follows a successful call is serialized. Two racing mutators are not
// coordinated beyond that: the last transition wins.
type Store struct {
	cart    CartAPI
	coupons CouponAPI
	notify  Notifier
	lg      *zap.Logger

	mu    sync.Mutex
	state State
}

// NewStore returns an empty Store.
func NewStore(cart CartAPI, coupons CouponAPI, notify Notifier, lg *zap.Logger) *Store {
	s := &Store{
		cart:    cart,
		coupons: coupons,
		notify:  notify,
		lg:      lg,
	}
	s.state.recomputeTotals()
	return s
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// update applies fn to the state and recomputes totals.
func (s *Store) update(fn func(st *State)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.state)
	s.state.recomputeTotals()
}

func (s *Store) fail(op string, err error, fallback string) {
	s.lg.Debug("Cart operation failed", zap.String("op", op), zap.Error(err))
	s.notify.Error(messageOf(err, fallback))
}

// FetchCart replaces the mirror with the server cart. On failure the items
// are cleared rather than left stale.
func (s *Store) FetchCart(ctx context.Context) {
	entries, err := s.cart.List(ctx)
	if err != nil {
		s.update(func(st *State) { st.Items = nil })
		s.fail("fetch_cart", err, msgGenericFailure)
		return
	}

	items := Normalize(entries)
	if dropped := len(entries) - len(items); dropped > 0 {
		s.lg.Warn("Dropped unaddressable cart entries", zap.Int("count", dropped))
	}
	s.update(func(st *State) { st.Items = items })
}

// AddItem adds one unit of p: an existing line is incremented, otherwise a
// new line with quantity 1 is appended.
func (s *Store) AddItem(ctx context.Context, p ProductRef) {
	if p.ID == "" {
		return
	}
	if err := s.cart.Add(ctx, p.ID); err != nil {
		s.fail("add_item", err, msgGenericFailure)
		return
	}

	s.update(func(st *State) {
		for i := range st.Items {
			if st.Items[i].Product.ID == p.ID {
				st.Items[i].Quantity++
				return
			}
		}
		st.Items = append(st.Items, LineItem{Product: p, Quantity: 1})
	})
	s.notify.Success(msgAdded)
}

// RemoveItem deletes the line for productID. An empty productID is ignored.
func (s *Store) RemoveItem(ctx context.Context, productID string) {
	if productID == "" {
		return
	}
	if err := s.cart.Remove(ctx, productID); err != nil {
		s.fail("remove_item", err, msgRemoveFailure)
		return
	}

	s.update(func(st *State) {
		items := st.Items[:0:0]
		for _, it := range st.Items {
			if it.Product.ID != productID {
				items = append(items, it)
			}
		}
		st.Items = items
	})
}

// UpdateQuantity sets the quantity of productID. A quantity of zero or less
// removes the line.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) {
	if productID == "" {
		return
	}
	if quantity <= 0 {
		s.RemoveItem(ctx, productID)
		return
	}
	if err := s.cart.SetQuantity(ctx, productID, quantity); err != nil {
		s.fail("update_quantity", err, msgUpdateFailure)
		return
	}

	s.update(func(st *State) {
		for i := range st.Items {
			if st.Items[i].Product.ID == productID {
				st.Items[i].Quantity = quantity
			}
		}
	})
}

// ApplyCoupon validates code remotely and, on success, applies it.
func (s *Store) ApplyCoupon(ctx context.Context, code string) {
	c, err := s.coupons.Validate(ctx, code)
	if err == nil {
		if c == nil {
			err = errors.Wrap(ErrMalformedCoupon, "empty response")
		} else {
			err = c.validate()
		}
	}
	if err != nil {
		s.fail("apply_coupon", err, msgCouponFailure)
		return
	}

	s.update(func(st *State) {
		st.Coupon = c
		st.CouponApplied = true
	})
	s.notify.Success(msgCouponApplied)
}

// RemoveCoupon drops the coupon locally. The server is not involved.
func (s *Store) RemoveCoupon() {
	s.update(func(st *State) {
		st.Coupon = nil
		st.CouponApplied = false
	})
	s.notify.Success(msgCouponRemoved)
}

// FetchAvailableCoupon loads the coupon issued to the user without applying
// it. Failures are logged only. An applied coupon is left in place.
func (s *Store) FetchAvailableCoupon(ctx context.Context) {
	lg := s.lg.With(zap.String("op", "fetch_available_coupon"))

	c, err := s.coupons.Mine(ctx)
	if err != nil {
		lg.Error("Error fetching coupon", zap.Error(err))
		return
	}
	if c != nil {
		if err := c.validate(); err != nil {
			lg.Error("Ignoring issued coupon", zap.Error(err))
			return
		}
	}

	s.update(func(st *State) {
		if st.CouponApplied {
			return
		}
		st.Coupon = c
	})
}

// ClearCart resets the mirror. The server cart is left untouched.
func (s *Store) ClearCart() {
	s.update(func(st *State) {
		*st = State{}
	})
}

// messageOf returns the server-provided message carried by err, or fallback.
func messageOf(err error, fallback string) string {
	var m serverMessage
	if errors.As(err, &m) {
		if msg := m.ServerMessage(); msg != "" {
			return msg
		}
	}
	return fallback
}
