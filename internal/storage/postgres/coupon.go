package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/coupon"
)

const (
	couponColumns = `code, discount_percentage, user_id, expires_at, active`

	findActiveCouponForUserSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE user_id = $1 AND active = TRUE
		ORDER BY created_at DESC LIMIT 1`

	findCouponByCodeSQL = `SELECT ` + couponColumns + `
		FROM coupons WHERE code = UPPER($1) AND active = TRUE`

	deactivateCouponSQL = `UPDATE coupons SET active = FALSE WHERE code = UPPER($1)`

	upsertCouponSQL = `INSERT INTO coupons (` + couponColumns + `)
		VALUES (UPPER($1), $2, $3, $4, $5)
		ON CONFLICT (code) DO UPDATE SET
			discount_percentage = EXCLUDED.discount_percentage,
			user_id = EXCLUDED.user_id,
			expires_at = EXCLUDED.expires_at,
			active = EXCLUDED.active`

	deleteUserCouponsSQL = `DELETE FROM coupons WHERE user_id = $1`
)

var _ coupon.Repository = (*CouponRepository)(nil)

// CouponRepository implements coupon.Repository. Codes are stored upper-case.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

// FindActiveForUser returns the newest active coupon issued to userID.
func (r *CouponRepository) FindActiveForUser(ctx context.Context, userID string) (*coupon.Coupon, error) {
	return r.findOne(ctx, findActiveCouponForUserSQL, userID)
}

// FindByCode looks up an active coupon, ignoring the case of code.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	return r.findOne(ctx, findCouponByCodeSQL, code)
}

func (r *CouponRepository) findOne(ctx context.Context, query string, arg string) (*coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx, query, arg)
	if err != nil {
		return nil, errors.Wrap(err, "find coupon")
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCoupon)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "find coupon")
	}
	return &c, nil
}

// Deactivate marks the coupon inactive.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	if _, err := r.pool.Exec(ctx, deactivateCouponSQL, code); err != nil {
		return errors.Wrapf(err, "deactivate coupon %q", code)
	}
	return nil
}

// Upsert stores c, replacing the coupon with the same code.
func (r *CouponRepository) Upsert(ctx context.Context, c coupon.Coupon) error {
	if err := upsertCoupon(ctx, r.pool, c); err != nil {
		return errors.Wrapf(err, "upsert coupon %q", c.Code)
	}
	return nil
}

// ReplaceForUser deletes the coupons of c.UserID and stores c in one transaction.
func (r *CouponRepository) ReplaceForUser(ctx context.Context, c coupon.Coupon) error {
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteUserCouponsSQL, c.UserID); err != nil {
			return errors.Wrap(err, "delete previous")
		}
		return upsertCoupon(ctx, tx, c)
	})
	if err != nil {
		return errors.Wrapf(err, "replace coupon for %q", c.UserID)
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func upsertCoupon(ctx context.Context, db execer, c coupon.Coupon) error {
	_, err := db.Exec(ctx, upsertCouponSQL, c.Code, c.DiscountPercentage, c.UserID, c.ExpiresAt, c.Active)
	return err
}

func scanCoupon(row pgx.CollectableRow) (coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(&c.Code, &c.DiscountPercentage, &c.UserID, &c.ExpiresAt, &c.Active)
	return c, err
}
