package postgres

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

const (
	listCartLinesSQL = `SELECT product_id, quantity, added_at
		FROM cart_items WHERE user_id = $1 ORDER BY added_at, product_id`

	incrementCartLineSQL = `INSERT INTO cart_items (user_id, product_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + EXCLUDED.quantity`

	setCartLineQuantitySQL = `UPDATE cart_items SET quantity = $3 WHERE user_id = $1 AND product_id = $2`

	removeCartLineSQL = `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`

	clearCartSQL = `DELETE FROM cart_items WHERE user_id = $1`
)

var _ cart.Repository = (*CartRepository)(nil)

// CartRepository implements cart.Repository on the cart_items table.
type CartRepository struct {
	pool *pgxpool.Pool
}

// NewCartRepository returns a CartRepository that uses the given pool.
func NewCartRepository(pool *pgxpool.Pool) *CartRepository {
	return &CartRepository{pool: pool}
}

// Lines returns the user's lines, oldest first.
func (r *CartRepository) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	rows, err := r.pool.Query(ctx, listCartLinesSQL, userID)
	if err != nil {
		return nil, errors.Wrap(err, "list cart lines")
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (cart.Line, error) {
		var l cart.Line
		err := row.Scan(&l.ProductID, &l.Quantity, &l.AddedAt)
		return l, err
	})
}

// Increment adds delta units, keeping the original added_at of an existing line.
func (r *CartRepository) Increment(ctx context.Context, userID, productID string, delta int) error {
	if _, err := r.pool.Exec(ctx, incrementCartLineSQL, userID, productID, delta); err != nil {
		return errors.Wrapf(err, "increment %q", productID)
	}
	return nil
}

// SetQuantity returns cart.ErrLineNotFound when the line does not exist.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	tag, err := r.pool.Exec(ctx, setCartLineQuantitySQL, userID, productID, quantity)
	if err != nil {
		return errors.Wrapf(err, "set quantity of %q", productID)
	}
	if tag.RowsAffected() == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Remove deletes the line. Removing a missing line is not an error.
func (r *CartRepository) Remove(ctx context.Context, userID, productID string) error {
	if _, err := r.pool.Exec(ctx, removeCartLineSQL, userID, productID); err != nil {
		return errors.Wrapf(err, "remove %q", productID)
	}
	return nil
}

// Clear deletes every line of the user.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if _, err := r.pool.Exec(ctx, clearCartSQL, userID); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
