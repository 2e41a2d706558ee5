package handler

import (
	"github.com/go-faster/jx"
)

type addToCartRequest struct {
	ProductID string `validate:"required,max=64"`
}

func (req *addToCartRequest) decode(d *jx.Decoder, key string) error {
	switch key {
	case "productId":
		v, err := d.Str()
		req.ProductID = v
		return err
	default:
		return d.Skip()
	}
}

type updateQuantityRequest struct {
	// Quantity is a pointer so a missing field fails validation while an
	// explicit 0 removes the line.
	Quantity *int `validate:"required"`
}

func (req *updateQuantityRequest) decode(d *jx.Decoder, key string) error {
	switch key {
	case "quantity":
		v, err := d.Int()
		req.Quantity = &v
		return err
	default:
		return d.Skip()
	}
}

type removeFromCartRequest struct {
	// ProductID is optional: an empty value clears the cart.
	ProductID string `validate:"omitempty,max=64"`
}

func (req *removeFromCartRequest) decode(d *jx.Decoder, key string) error {
	switch key {
	case "productId":
		if d.Next() == jx.Null {
			return d.Null()
		}
		v, err := d.Str()
		req.ProductID = v
		return err
	default:
		return d.Skip()
	}
}

type validateCouponRequest struct {
	Code string `validate:"max=64"`
}

func (req *validateCouponRequest) decode(d *jx.Decoder, key string) error {
	switch key {
	case "code":
		v, err := d.Str()
		req.Code = v
		return err
	default:
		return d.Skip()
	}
}
