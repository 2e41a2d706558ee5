package cart

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// ErrLineNotFound is returned when a cart has no line for the product.
var ErrLineNotFound = errors.New("product not in cart")

// MaxQuantity is the largest quantity a single cart line may hold.
const MaxQuantity = 9999

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a quantity outside [0, MaxQuantity] was
// requested.
type InvalidQuantityError struct {
	ProductID string
	Quantity  int
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid quantity %d for product %s", e.Quantity, e.ProductID)
}

// Line is a stored cart row. Lines of a cart are ordered by AddedAt.
type Line struct {
	ProductID string
	Quantity  int
	AddedAt   time.Time
}

// Entry is a cart line joined with its catalog product.
type Entry struct {
	Product  product.Product
	Quantity int
}

// Repository persists cart lines keyed by user.
type Repository interface {
	// Lines returns the user's lines in insertion order.
	Lines(ctx context.Context, userID string) ([]Line, error)
	// Increment adds delta units of productID, creating the line if needed.
	Increment(ctx context.Context, userID, productID string, delta int) error
	// SetQuantity overwrites the quantity of an existing line. It returns
	// ErrLineNotFound when the cart has no such line.
	SetQuantity(ctx context.Context, userID, productID string, quantity int) error
	Remove(ctx context.Context, userID, productID string) error
	Clear(ctx context.Context, userID string) error
}
