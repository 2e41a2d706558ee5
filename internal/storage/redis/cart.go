package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/go-faster/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/xenking/kart-storefront/internal/domain/cart"
)

var _ cart.Repository = (*CartRepository)(nil)

// setQuantityScript updates a field only if it already exists.
var setQuantityScript = goredis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[1], ARGV[1], ARGV[2])
return 1
`)

// CartRepository keeps each cart in two keys: a hash of product id to
// quantity and a sorted set of product ids scored by the time they were
// first added.
type CartRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewCartRepository returns a CartRepository. Keys are namespaced by prefix.
func NewCartRepository(client goredis.UniversalClient, prefix string) *CartRepository {
	return &CartRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *CartRepository) qtyKey(userID string) string   { return r.prefix + "cart:" + userID + ":qty" }
func (r *CartRepository) orderKey(userID string) string { return r.prefix + "cart:" + userID + ":order" }

// Lines returns the user's lines, oldest first.
func (r *CartRepository) Lines(ctx context.Context, userID string) ([]cart.Line, error) {
	var (
		order *goredis.ZSliceCmd
		qty   *goredis.MapStringStringCmd
	)
	if _, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		order = p.ZRangeWithScores(ctx, r.orderKey(userID), 0, -1)
		qty = p.HGetAll(ctx, r.qtyKey(userID))
		return nil
	}); err != nil {
		return nil, errors.Wrap(err, "read cart")
	}

	quantities := qty.Val()
	lines := make([]cart.Line, 0, len(order.Val()))
	for _, z := range order.Val() {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		raw, ok := quantities[id]
		if !ok {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return nil, errors.Wrapf(err, "quantity of %q", id)
		}
		lines = append(lines, cart.Line{
			ProductID: id,
			Quantity:  n,
			AddedAt:   time.UnixMicro(int64(z.Score)),
		})
	}
	return lines, nil
}

// Increment adds delta units, keeping the original position of an existing line.
func (r *CartRepository) Increment(ctx context.Context, userID, productID string, delta int) error {
	if _, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HIncrBy(ctx, r.qtyKey(userID), productID, int64(delta))
		p.ZAddNX(ctx, r.orderKey(userID), goredis.Z{
			Score:  float64(r.now().UnixMicro()),
			Member: productID,
		})
		return nil
	}); err != nil {
		return errors.Wrapf(err, "increment %q", productID)
	}
	return nil
}

// SetQuantity returns cart.ErrLineNotFound when the line does not exist.
func (r *CartRepository) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	ok, err := setQuantityScript.Run(ctx, r.client, []string{r.qtyKey(userID)}, productID, quantity).Int()
	if err != nil {
		return errors.Wrapf(err, "set quantity of %q", productID)
	}
	if ok == 0 {
		return cart.ErrLineNotFound
	}
	return nil
}

// Remove deletes the line. Removing a missing line is not an error.
func (r *CartRepository) Remove(ctx context.Context, userID, productID string) error {
	if _, err := r.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		p.HDel(ctx, r.qtyKey(userID), productID)
		p.ZRem(ctx, r.orderKey(userID), productID)
		return nil
	}); err != nil {
		return errors.Wrapf(err, "remove %q", productID)
	}
	return nil
}

// Clear deletes every line of the user.
func (r *CartRepository) Clear(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, r.qtyKey(userID), r.orderKey(userID)).Err(); err != nil {
		return errors.Wrap(err, "clear cart")
	}
	return nil
}
