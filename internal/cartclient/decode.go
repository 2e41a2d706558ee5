package cartclient

import (
	"bytes"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/kart-storefront/internal/storefront"
)

// Decoding is lenient: unknown fields are skipped, missing fields keep their
// zero value and "_id" is accepted for "id". Shape checks happen in the
// storefront package.

// emptyBody reports whether a successful response carried no JSON value.
func emptyBody(body []byte) bool {
	return len(bytes.TrimSpace(body)) == 0
}

func decodeEntries(body []byte) ([]storefront.Entry, error) {
	if emptyBody(body) {
		return nil, nil
	}
	d := jx.DecodeBytes(body)
	if d.Next() == jx.Null {
		return nil, d.Null()
	}

	var out []storefront.Entry
	if err := d.Arr(func(d *jx.Decoder) error {
		if d.Next() != jx.Object {
			return d.Skip()
		}
		e, err := decodeEntry(d)
		if err != nil {
			return err
		}
		out = append(out, e)
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

// decodeEntry accepts both {"product": {...}, "quantity": n} and a bare
// product object carrying its own "quantity".
func decodeEntry(d *jx.Decoder) (storefront.Entry, error) {
	var (
		bare    storefront.ProductRef
		wrapped storefront.ProductRef
		nested  bool
		qty     int
	)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		switch string(key) {
		case "product":
			nested = true
			switch d.Next() {
			case jx.Object:
				p, err := decodeProduct(d)
				wrapped = p
				return err
			case jx.String:
				// Unpopulated reference.
				id, err := d.Str()
				wrapped.ID = id
				return err
			default:
				return d.Skip()
			}
		case "quantity":
			n, err := decodeInt(d)
			qty = n
			return err
		default:
			return decodeProductField(d, key, &bare)
		}
	}); err != nil {
		return storefront.Entry{}, errors.Wrap(err, "entry")
	}

	if nested {
		return storefront.Entry{Kind: storefront.EntryWrapped, Product: wrapped, Quantity: qty}, nil
	}
	return storefront.Entry{Kind: storefront.EntryBare, Product: bare, Quantity: qty}, nil
}

func decodeProduct(d *jx.Decoder) (storefront.ProductRef, error) {
	var p storefront.ProductRef
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		return decodeProductField(d, key, &p)
	}); err != nil {
		return p, errors.Wrap(err, "product")
	}
	return p, nil
}

func decodeProductField(d *jx.Decoder, key []byte, p *storefront.ProductRef) error {
	var err error
	switch string(key) {
	case "id", "_id":
		p.ID, err = decodeString(d)
	case "name":
		p.Name, err = decodeString(d)
	case "category":
		p.Category, err = decodeString(d)
	case "image":
		p.Image, err = decodeString(d)
	case "price":
		p.Price, err = decodeDecimal(d)
	default:
		err = d.Skip()
	}
	if err != nil {
		return errors.Wrapf(err, "field %q", key)
	}
	return nil
}

func decodeCoupon(body []byte) (*storefront.Coupon, error) {
	if emptyBody(body) {
		return nil, nil
	}
	d := jx.DecodeBytes(body)
	switch d.Next() {
	case jx.Null:
		return nil, d.Null()
	case jx.Object:
	default:
		return nil, errors.Errorf("unexpected %s", d.Next())
	}

	var (
		c           storefront.Coupon
		hasDiscount bool
	)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch string(key) {
		case "code":
			c.Code, err = decodeString(d)
		case "discountPercentage":
			switch d.Next() {
			case jx.Number, jx.String:
				hasDiscount = true
				c.DiscountPercentage, err = decodeDecimal(d)
			default:
				err = d.Skip()
			}
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return nil, err
	}
	if !hasDiscount {
		return nil, errors.Wrap(storefront.ErrMalformedCoupon, "missing discountPercentage")
	}
	return &c, nil
}

// decodeMessage extracts "message" from an error body. It returns an empty
// string for anything else.
func decodeMessage(data []byte) string {
	d := jx.DecodeBytes(data)
	if d.Next() != jx.Object {
		return ""
	}
	var msg string
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != "message" {
			return d.Skip()
		}
		s, err := decodeString(d)
		msg = s
		return err
	}); err != nil {
		return ""
	}
	return msg
}

func decodeString(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.String:
		return d.Str()
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return "", err
		}
		return n.String(), nil
	default:
		return "", d.Skip()
	}
}

func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, d.Skip()
	}
}

func decodeInt(d *jx.Decoder) (int, error) {
	switch d.Next() {
	case jx.Number:
		return d.Int()
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return 0, errors.Wrap(err, "quantity")
		}
		return n, nil
	default:
		return 0, d.Skip()
	}
}
