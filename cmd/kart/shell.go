package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/kart-storefront/internal/storefront"
)

const help = `commands:
  products              list the catalog
  cart                  show the cart
  refresh               reload the cart from the server
  add <product-id>      add one unit
  qty <product-id> <n>  set quantity (0 removes)
  rm <product-id>       remove a line
  coupon                load the coupon issued to you
  apply <code>          apply a coupon code
  unapply               drop the coupon
  clear                 forget the local cart
  quit
`

// catalog looks up products to add.
type catalog interface {
	Products(ctx context.Context) ([]storefront.ProductRef, error)
	Product(ctx context.Context, id string) (storefront.ProductRef, error)
}

type shell struct {
	store   *storefront.Store
	catalog catalog
	out     io.Writer
	timeout time.Duration
}

func newShell(store *storefront.Store, c catalog, out io.Writer, timeout time.Duration) *shell {
	return &shell{store: store, catalog: c, out: out, timeout: timeout}
}

// Run loads the cart and executes commands read from in until EOF or quit.
func (s *shell) Run(ctx context.Context, in io.Reader) error {
	s.withTimeout(ctx, func(ctx context.Context) {
		s.store.FetchCart(ctx)
		s.store.FetchAvailableCoupon(ctx)
	})
	s.render()

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(s.out, "kart> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		if ctx.Err() != nil {
			return nil
		}
		quit, err := s.exec(ctx, scanner.Text())
		if err != nil {
			fmt.Fprintln(s.out, "error:", err)
		}
		if quit {
			return nil
		}
	}
}

func (s *shell) withTimeout(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	fn(ctx)
}

var errUsage = errors.New("usage")

func (s *shell) exec(ctx context.Context, line string) (quit bool, err error) {
	args := strings.Fields(line)
	if len(args) == 0 {
		return false, nil
	}
	cmd, args := args[0], args[1:]

	want := func(n int) error {
		if len(args) != n {
			return errors.Wrapf(errUsage, "%s takes %d argument(s)", cmd, n)
		}
		return nil
	}

	switch cmd {
	case "help", "?":
		fmt.Fprint(s.out, help)
		return false, nil
	case "quit", "exit", "q":
		return true, nil
	case "products":
		return false, s.products(ctx)
	case "cart":
	case "refresh":
		s.withTimeout(ctx, s.store.FetchCart)
	case "add":
		if err := want(1); err != nil {
			return false, err
		}
		var p storefront.ProductRef
		var lookupErr error
		s.withTimeout(ctx, func(ctx context.Context) {
			if p, lookupErr = s.catalog.Product(ctx, args[0]); lookupErr == nil {
				s.store.AddItem(ctx, p)
			}
		})
		if lookupErr != nil {
			return false, errors.Wrap(lookupErr, "lookup product")
		}
	case "qty":
		if err := want(2); err != nil {
			return false, err
		}
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return false, errors.Wrap(errUsage, "quantity must be an integer")
		}
		s.withTimeout(ctx, func(ctx context.Context) { s.store.UpdateQuantity(ctx, args[0], n) })
	case "rm":
		if err := want(1); err != nil {
			return false, err
		}
		s.withTimeout(ctx, func(ctx context.Context) { s.store.RemoveItem(ctx, args[0]) })
	case "coupon":
		s.withTimeout(ctx, s.store.FetchAvailableCoupon)
	case "apply":
		if err := want(1); err != nil {
			return false, err
		}
		s.withTimeout(ctx, func(ctx context.Context) { s.store.ApplyCoupon(ctx, args[0]) })
	case "unapply":
		s.store.RemoveCoupon()
	case "clear":
		s.store.ClearCart()
	default:
		return false, errors.Errorf("unknown command %q, try help", cmd)
	}

	s.render()
	return false, nil
}

func (s *shell) products(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	products, err := s.catalog.Products(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}

	tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCATEGORY\tPRICE")
	for _, p := range products {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.ID, p.Name, p.Category, p.Price.StringFixed(2))
	}
	return tw.Flush()
}

func (s *shell) render() {
	st := s.store.Snapshot()

	if len(st.Items) == 0 {
		fmt.Fprintln(s.out, "cart is empty")
	} else {
		tw := tabwriter.NewWriter(s.out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tQTY\tPRICE")
		for _, it := range st.Items {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", it.Product.ID, it.Product.Name, it.Quantity, it.Product.Price.StringFixed(2))
		}
		_ = tw.Flush()
	}

	if st.Coupon != nil {
		state := "available"
		if st.CouponApplied {
			state = "applied"
		}
		fmt.Fprintf(s.out, "coupon %s (%s%% off, %s)\n", st.Coupon.Code, st.Coupon.DiscountPercentage.String(), state)
	}
	fmt.Fprintf(s.out, "subtotal %s  total %s\n", st.Subtotal.StringFixed(2), st.Total.StringFixed(2))
}
