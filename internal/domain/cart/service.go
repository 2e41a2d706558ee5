package cart

import (
	"context"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/domain/product"
)

// Service implements the cart endpoints: it validates requests against the
// catalog and joins stored lines with their products.
type Service struct {
	lines    Repository
	products product.Repository
}

// NewService creates a cart Service.
func NewService(lines Repository, products product.Repository) *Service {
	return &Service{lines: lines, products: products}
}

// List returns the user's cart in insertion order. Lines whose product has
// left the catalog are skipped.
func (s *Service) List(ctx context.Context, userID string) ([]Entry, error) {
	lines, err := s.lines.Lines(ctx, userID)
	if err != nil {
		return nil, errors.Wrap(err, "get cart lines")
	}
	if len(lines) == 0 {
		return []Entry{}, nil
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}

	// Batch fetch all products in a single query.
	fetched, err := s.products.GetByIDs(ctx, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	entries := make([]Entry, 0, len(lines))
	for _, l := range lines {
		p, ok := byID[l.ProductID]
		if !ok {
			continue
		}
		entries = append(entries, Entry{Product: p, Quantity: l.Quantity})
	}
	return entries, nil
}

// Add puts one unit of productID into the user's cart.
func (s *Service) Add(ctx context.Context, userID, productID string) error {
	if _, err := s.products.GetByID(ctx, productID); err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return &ProductNotFoundError{ProductID: productID}
		}
		return errors.Wrap(err, "get product")
	}

	if err := s.lines.Increment(ctx, userID, productID, 1); err != nil {
		return errors.Wrap(err, "add cart line")
	}
	return nil
}

// SetQuantity sets an absolute quantity for a line already in the cart.
// A zero quantity removes the line.
func (s *Service) SetQuantity(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 0 || quantity > MaxQuantity {
		return &InvalidQuantityError{ProductID: productID, Quantity: quantity}
	}
	if quantity == 0 {
		return s.Remove(ctx, userID, productID)
	}

	if err := s.lines.SetQuantity(ctx, userID, productID, quantity); err != nil {
		if errors.Is(err, ErrLineNotFound) {
			return ErrLineNotFound
		}
		return errors.Wrap(err, "set cart quantity")
	}
	return nil
}

// Remove deletes productID from the cart. An empty productID empties the
// whole cart.
func (s *Service) Remove(ctx context.Context, userID, productID string) error {
	if productID == "" {
		if err := s.lines.Clear(ctx, userID); err != nil {
			return errors.Wrap(err, "clear cart")
		}
		return nil
	}

	if err := s.lines.Remove(ctx, userID, productID); err != nil {
		return errors.Wrap(err, "remove cart line")
	}
	return nil
}
