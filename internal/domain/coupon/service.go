package coupon

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

const (
	giftPrefix   = "GIFT"
	giftLength   = 6
	giftAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

var (
	// GiftPercentage is the discount granted by issued gift coupons.
	GiftPercentage = decimal.NewFromInt(10)
	// GiftValidity is how long an issued gift coupon stays redeemable.
	GiftValidity = 30 * 24 * time.Hour
)

// Service implements the coupon endpoints on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a coupon Service backed by the given Repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Mine returns the active coupon issued to userID, or nil if there is none.
func (s *Service) Mine(ctx context.Context, userID string) (*Coupon, error) {
	c, err := s.repo.FindActiveForUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "lookup user coupon")
	}
	return c, nil
}

// Validate checks that code names an active coupon userID may redeem. An
// expired coupon is deactivated before ErrCouponExpired is returned.
func (s *Service) Validate(ctx context.Context, userID, code string) (*Coupon, error) {
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	c, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !c.OwnedBy(userID) {
		return nil, ErrInvalidCoupon
	}

	if c.ExpiredAt(s.now()) {
		if err := s.repo.Deactivate(ctx, c.Code); err != nil {
			return nil, errors.Wrap(err, "deactivate expired coupon")
		}
		return nil, ErrCouponExpired
	}

	return c, nil
}

// Issue replaces any coupon held by userID with a fresh gift coupon.
func (s *Service) Issue(ctx context.Context, userID string) (*Coupon, error) {
	code, err := GenerateCode(giftPrefix, giftLength)
	if err != nil {
		return nil, err
	}

	expires := s.now().Add(GiftValidity)
	c := Coupon{
		Code:               code,
		DiscountPercentage: GiftPercentage,
		UserID:             userID,
		ExpiresAt:          &expires,
		Active:             true,
	}
	if err := s.repo.ReplaceForUser(ctx, c); err != nil {
		return nil, errors.Wrap(err, "store issued coupon")
	}
	return &c, nil
}

// GenerateCode returns prefix followed by n random upper-case alphanumerics.
func GenerateCode(prefix string, n int) (string, error) {
	buf := make([]byte, n)
	limit := big.NewInt(int64(len(giftAlphabet)))
	for i := range buf {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", errors.Wrap(err, "generate coupon code")
		}
		buf[i] = giftAlphabet[idx.Int64()]
	}
	return prefix + string(buf), nil
}
