package main

import (
	"bufio"
	"context"
	"math/bits"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-storefront/internal/domain/coupon"
)

const (
	bloomFPR   = 0.001
	minCodeLen = 4
	maxCodeLen = 64
	maxFeeds   = bits.UintSize
)

var errMalformed = errors.New("malformed record")

// parseRecord parses "CODE,PERCENT[,USER[,EXPIRES]]" where EXPIRES is RFC 3339.
func parseRecord(line string) (coupon.Coupon, error) {
	fields := strings.Split(strings.TrimSpace(line), ",")
	if len(fields) < 2 || len(fields) > 4 {
		return coupon.Coupon{}, errMalformed
	}

	code := strings.ToUpper(strings.TrimSpace(fields[0]))
	if len(code) < minCodeLen || len(code) > maxCodeLen {
		return coupon.Coupon{}, errors.Wrapf(errMalformed, "code length %d", len(code))
	}

	pct, err := decimal.NewFromString(strings.TrimSpace(fields[1]))
	if err != nil {
		return coupon.Coupon{}, errors.Wrap(errMalformed, "percentage")
	}
	if err := coupon.ValidatePercentage(pct); err != nil {
		return coupon.Coupon{}, err
	}

	c := coupon.Coupon{Code: code, DiscountPercentage: pct, Active: true}
	if len(fields) > 2 {
		c.UserID = strings.TrimSpace(fields[2])
	}
	if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
		exp, err := time.Parse(time.RFC3339, strings.TrimSpace(fields[3]))
		if err != nil {
			return coupon.Coupon{}, errors.Wrap(errMalformed, "expiry")
		}
		c.ExpiresAt = &exp
	}
	return c, nil
}

// scanFeed calls fn for every line of a gzip-compressed file.
func scanFeed(ctx context.Context, path string, fn func(line string)) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open %s", path)
	}
	defer func() { _ = f.Close() }()

	gz, err := pgzip.NewReader(f)
	if err != nil {
		return errors.Wrapf(err, "gzip reader for %s", path)
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		fn(scanner.Text())
	}
	return errors.Wrapf(scanner.Err(), "scan %s", path)
}

type stats struct {
	lines   uint64
	invalid uint64
}

type feedResult struct {
	coupons map[string]coupon.Coupon
	stats
}

// collect returns the coupons listed by at least opts.MinSources of files.
// When a code appears in several feeds the record from the first feed wins.
//
// The first pass fills one bloom filter per feed. The second pass keeps a
// feed's record only when enough other filters report the code, and the
// exact per-feed presence masks are then merged, so filter false positives
// never reach the result.
func collect(ctx context.Context, files []string, opts options) ([]coupon.Coupon, stats, error) {
	if len(files) > maxFeeds {
		return nil, stats{}, errors.Errorf("at most %d feeds are supported", maxFeeds)
	}
	need := max(opts.MinSources, 1)
	if need > len(files) {
		return nil, stats{}, errors.Errorf("min sources %d exceeds %d feeds", need, len(files))
	}

	var filters []*bloom.BloomFilter
	if need > 1 {
		var err error
		if filters, err = buildFilters(ctx, files, max(opts.Expected, 1)); err != nil {
			return nil, stats{}, errors.Wrap(err, "build bloom filters")
		}
	}

	results := make([]feedResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			r := feedResult{coupons: make(map[string]coupon.Coupon)}
			if err := scanFeed(gctx, path, func(line string) {
				if strings.TrimSpace(line) == "" {
					return
				}
				r.lines++
				c, err := parseRecord(line)
				if err != nil {
					r.invalid++
					return
				}
				if _, dup := r.coupons[c.Code]; dup {
					return
				}
				if 1+countOthers(filters, i, c.Code) < need {
					return
				}
				r.coupons[c.Code] = c
			}); err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats{}, err
	}

	type merged struct {
		coupon coupon.Coupon
		mask   uint
	}
	var (
		st    stats
		byKey = make(map[string]*merged)
	)
	for i, r := range results {
		st.lines += r.lines
		st.invalid += r.invalid
		for code, c := range r.coupons {
			m, ok := byKey[code]
			if !ok {
				m = &merged{coupon: c}
				byKey[code] = m
			}
			m.mask |= 1 << uint(i)
		}
	}

	var out []coupon.Coupon
	for _, m := range byKey {
		if bits.OnesCount(m.mask) >= need {
			out = append(out, m.coupon)
		}
	}
	slices.SortFunc(out, func(a, b coupon.Coupon) int { return strings.Compare(a.Code, b.Code) })
	return out, st, nil
}

func countOthers(filters []*bloom.BloomFilter, self int, code string) int {
	n := 0
	for j, f := range filters {
		if j != self && f.TestString(code) {
			n++
		}
	}
	return n
}

// buildFilters creates one bloom filter per feed, concurrently.
func buildFilters(ctx context.Context, files []string, expected uint) ([]*bloom.BloomFilter, error) {
	filters := make([]*bloom.BloomFilter, len(files))

	g, ctx := errgroup.WithContext(ctx)
	for i, path := range files {
		g.Go(func() error {
			filter := bloom.NewWithEstimates(expected, bloomFPR)
			if err := scanFeed(ctx, path, func(line string) {
				if c, err := parseRecord(line); err == nil {
					filter.AddString(c.Code)
				}
			}); err != nil {
				return err
			}
			filters[i] = filter
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return filters, nil
}
