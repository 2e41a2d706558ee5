package coupon

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found, is inactive,
	// or belongs to another user.
	ErrInvalidCoupon = errors.New("coupon not found")
	// ErrCouponExpired is returned when a coupon is past its expiration date.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrInvalidPercentage is returned when a discount lies outside [0, 100].
	ErrInvalidPercentage = errors.New("discount percentage must be between 0 and 100")
)

// Coupon is a code entitling its owner to a percentage discount.
type Coupon struct {
	Code               string
	DiscountPercentage decimal.Decimal
	// UserID is empty for codes anyone may redeem.
	UserID    string
	ExpiresAt *time.Time
	Active    bool
}

// ExpiredAt reports whether the coupon is past its expiration date at now.
func (c *Coupon) ExpiredAt(now time.Time) bool {
	return c.ExpiresAt != nil && c.ExpiresAt.Before(now)
}

// OwnedBy reports whether userID may redeem the coupon.
func (c *Coupon) OwnedBy(userID string) bool {
	return c.UserID == "" || c.UserID == userID
}

// Repository provides lookup and mutation of issued coupons.
type Repository interface {
	// FindActiveForUser returns the active coupon issued to userID, or
	// ErrInvalidCoupon when there is none.
	FindActiveForUser(ctx context.Context, userID string) (*Coupon, error)
	// FindByCode returns an active coupon by code (case-insensitive), or
	// ErrInvalidCoupon when there is none.
	FindByCode(ctx context.Context, code string) (*Coupon, error)
	Deactivate(ctx context.Context, code string) error
	Upsert(ctx context.Context, c Coupon) error
	// ReplaceForUser removes every coupon issued to c.UserID and stores c.
	ReplaceForUser(ctx context.Context, c Coupon) error
}
