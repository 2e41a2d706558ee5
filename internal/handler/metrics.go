package handler

import (
	"context"

	"github.com/go-faster/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xenking/kart-storefront/internal/domain/coupon"
)

const meterName = "github.com/xenking/kart-storefront/internal/handler"

type metrics struct {
	cartMutations     metric.Int64Counter
	couponValidations metric.Int64Counter
}

func newMetrics(mp metric.MeterProvider) (*metrics, error) {
	meter := mp.Meter(meterName)

	cartMutations, err := meter.Int64Counter("kart.cart.mutations",
		metric.WithDescription("Cart mutations by operation and outcome"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "cart mutations counter")
	}
	couponValidations, err := meter.Int64Counter("kart.coupon.validations",
		metric.WithDescription("Coupon validations by result"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "coupon validations counter")
	}

	return &metrics{
		cartMutations:     cartMutations,
		couponValidations: couponValidations,
	}, nil
}

func (m *metrics) cartMutation(ctx context.Context, op string, err error) {
	m.cartMutations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
		attribute.Bool("success", err == nil),
	))
}

func (m *metrics) couponValidation(ctx context.Context, err error) {
	result := "valid"
	switch {
	case err == nil:
	case errors.Is(err, coupon.ErrCouponExpired):
		result = "expired"
	case errors.Is(err, coupon.ErrInvalidCoupon):
		result = "invalid"
	default:
		result = "error"
	}
	m.couponValidations.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}
